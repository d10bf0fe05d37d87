package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushCounters(t *testing.T) {
	m := New()
	m.IncConsumed()
	m.IncConsumed()
	m.IncDelivered()
	m.IncFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pushes.WithLabelValues("consumed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushes.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushes.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.pushes.WithLabelValues("retried")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v2/team/{team_key}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/team/frc254", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/v2/team/{team_key}", "GET", "418")))
}

func TestHandlerExposesSeries(t *testing.T) {
	m := New()
	m.ObserveCache("team", "hit")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tba_response_cache_lookups_total{result="hit",route="team"} 1`)
}
