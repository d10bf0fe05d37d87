package routes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/gregmarra/the-blue-alliance/internal/api"
	"github.com/gregmarra/the-blue-alliance/internal/cache"
	"github.com/gregmarra/the-blue-alliance/internal/repository"
	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

// StatusSitevar holds the payload served by /api/v2/status.
const StatusSitevar = "apistatus"

const teamListCacheSeconds = 61

// TeamReader loads team records.
type TeamReader interface {
	Team(ctx context.Context, key string) (*repository.Team, error)
	TeamPage(ctx context.Context, page int) ([]repository.Team, error)
}

// SitevarReader loads sitevar contents.
type SitevarReader interface {
	Contents(ctx context.Context, id string, out any) error
}

// Deps are the collaborators of the public router.
type Deps struct {
	Teams    TeamReader
	Sitevars SitevarReader
	Cache    cache.Backend
	Tracker  api.Tracker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Started  time.Time
}

// NewRouter wires the read API plus health and metrics endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(d.Metrics.Middleware)

	mountOps(r, d.Metrics, d.Started, "api healthy")

	base := api.NewBase(d.Tracker, d.Logger)
	h := &handlers{base: base, teams: d.Teams, sitevars: d.Sitevars}
	cached := func(name string) func(http.Handler) http.Handler {
		return cache.Public(d.Cache, name, cache.WithLogger(d.Logger), cache.WithMetrics(d.Metrics))
	}

	r.Route("/api/v2", func(r chi.Router) {
		r.With(base.Middleware("status"), cached("api_status")).
			Method(http.MethodGet, "/status", base.Handle(h.status))

		teamKey := api.PathParam("team_key", "team_key")
		r.With(base.Middleware("team/details", teamKey), cached("api_team")).
			Method(http.MethodGet, "/team/{team_key}", base.Handle(h.team))

		r.Method(http.MethodGet, "/teams/{page_num}",
			base.Wrap("teams/list", h.teamList, api.PathParam("page_num", "numeric")))
	})
	return r
}

// NewOpsRouter serves only health and metrics, for the worker.
func NewOpsRouter(m *metrics.Metrics, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	mountOps(r, m, started, "push worker healthy")
	return r
}

func mountOps(r chi.Router, m *metrics.Metrics, started time.Time, message string) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"success": true,
			"message": message,
			"meta": map[string]interface{}{
				"uptime_seconds": int(time.Since(started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	r.Handle("/metrics", m.Handler())
}

type handlers struct {
	base     *api.Base
	teams    TeamReader
	sitevars SitevarReader
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) error {
	var contents json.RawMessage
	err := h.sitevars.Contents(r.Context(), StatusSitevar, &contents)
	if errors.Is(err, repository.ErrNotFound) {
		return api.Abort(http.StatusNotFound, nil)
	}
	if err != nil {
		return err
	}
	render.JSON(w, r, contents)
	return nil
}

func (h *handlers) team(w http.ResponseWriter, r *http.Request) error {
	key := chi.URLParam(r, "team_key")
	team, err := h.teams.Team(r.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		return api.Abort(http.StatusNotFound, map[string]string{"404": key + " could not be found"})
	}
	if err != nil {
		return err
	}
	render.JSON(w, r, team)
	return nil
}

func (h *handlers) teamList(w http.ResponseWriter, r *http.Request) error {
	raw := chi.URLParam(r, "page_num")
	page, err := strconv.Atoi(raw)
	if err != nil || page > repository.MaxTeamPage {
		return api.InputError(map[string]any{"Errors": []map[string]string{{"page_num": raw + " is not a valid page"}}})
	}
	teams, err := h.teams.TeamPage(r.Context(), page)
	if err != nil {
		return err
	}
	if teams == nil {
		teams = []repository.Team{}
	}
	h.base.WriteCacheHeaders(w, teamListCacheSeconds)
	render.JSON(w, r, teams)
	return nil
}
