package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregmarra/the-blue-alliance/internal/repository"
	"github.com/gregmarra/the-blue-alliance/internal/tasks"
)

const (
	// TaskName is the deferred task that reports one API call.
	TaskName = "analytics.track"

	// SitevarID holds {"GOOGLE_ANALYTICS_ID": "..."} when the env is unset.
	SitevarID = "google_analytics.id"

	DefaultEndpoint = "http://www.google-analytics.com/collect"

	eventCategory = "api-v02"
)

// Config is resolved once at startup. An empty TrackingID disables tracking.
type Config struct {
	TrackingID string
}

// SitevarReader loads sitevar contents.
type SitevarReader interface {
	Contents(ctx context.Context, id string, out any) error
}

// ResolveConfig prefers envID and falls back to the google_analytics.id
// sitevar. Lookup failures leave tracking disabled.
func ResolveConfig(ctx context.Context, envID string, sitevars SitevarReader, logger *slog.Logger) Config {
	if envID != "" {
		return Config{TrackingID: envID}
	}
	if sitevars == nil {
		return Config{}
	}

	var contents struct {
		ID string `json:"GOOGLE_ANALYTICS_ID"`
	}
	if err := sitevars.Contents(ctx, SitevarID, &contents); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error("failed to load analytics sitevar", slog.Any("error", err))
		}
		return Config{}
	}
	return Config{TrackingID: contents.ID}
}

// Event is the payload of an analytics.track task.
type Event struct {
	TrackingID string `json:"tracking_id"`
	Action     string `json:"action"`
	Label      string `json:"label"`
	AppID      string `json:"app_id"`
}

// Tracker records API calls off the request path.
type Tracker struct {
	cfg    Config
	queue  tasks.Queue
	logger *slog.Logger
}

func NewTracker(cfg Config, queue tasks.Queue, logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
	}
}

// Track enqueues an analytics event. It never fails the caller.
func (t *Tracker) Track(ctx context.Context, action, label, appID string) {
	if t.cfg.TrackingID == "" {
		t.logger.Warn("Missing sitevar: google_analytics.id. Can't track API usage.")
		return
	}

	task, err := tasks.New(TaskName, Event{
		TrackingID: t.cfg.TrackingID,
		Action:     action,
		Label:      label,
		AppID:      appID,
	})
	if err != nil {
		t.logger.Error("failed to build analytics task", slog.Any("error", err))
		return
	}
	if err := t.queue.Enqueue(ctx, task); err != nil {
		t.logger.Warn("failed to enqueue analytics task",
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

// Collector delivers analytics events to the collection endpoint.
type Collector struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewCollector(endpoint string, timeout time.Duration, logger *slog.Logger) *Collector {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Collector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Register installs the collector as the analytics.track handler.
func (c *Collector) Register(r *tasks.Registry) {
	r.Register(TaskName, c.Handle)
}

// Handle is the analytics.track task handler.
func (c *Collector) Handle(ctx context.Context, task tasks.Task) error {
	var ev Event
	if err := task.Decode(&ev); err != nil {
		return err
	}
	if ev.TrackingID == "" {
		c.logger.Warn("Missing sitevar: google_analytics.id. Can't track API usage.")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(ev), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("analytics collect: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("analytics collect: status %d", resp.StatusCode)
	}
	return nil
}

// URL renders the measurement-protocol hit for ev.
func (c *Collector) URL(ev Event) string {
	params := url.Values{}
	params.Set("v", "1")
	params.Set("tid", ev.TrackingID)
	params.Set("cid", "1")
	params.Set("t", "event")
	params.Set("ec", eventCategory)
	params.Set("ea", ev.Action)
	params.Set("el", ev.Label)
	params.Set("cd1", ev.AppID)
	params.Set("ni", "1")

	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + params.Encode()
}
