package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tba"

// Metrics owns a private Prometheus registry and the counters shared by the
// API and the push worker.
type Metrics struct {
	registry *prometheus.Registry

	pushes       *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	tasks        *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// New returns a Metrics collector with every series registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_jobs_total",
			Help:      "Push jobs by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_lookups_total",
			Help:      "Response cache lookups by route and result.",
		}, []string{"route", "result"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferred_tasks_total",
			Help:      "Deferred tasks by name and outcome.",
		}, []string{"task", "outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
	}
	m.registry.MustRegister(
		m.pushes,
		m.cacheLookups,
		m.tasks,
		m.httpDuration,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IncConsumed()   { m.pushes.WithLabelValues("consumed").Inc() }
func (m *Metrics) IncDelivered()  { m.pushes.WithLabelValues("delivered").Inc() }
func (m *Metrics) IncFailed()     { m.pushes.WithLabelValues("failed").Inc() }
func (m *Metrics) IncRetried()    { m.pushes.WithLabelValues("retried").Inc() }
func (m *Metrics) IncSuppressed() { m.pushes.WithLabelValues("suppressed").Inc() }

// PushCounter returns the push_jobs_total series for outcome.
func (m *Metrics) PushCounter(outcome string) prometheus.Counter {
	return m.pushes.WithLabelValues(outcome)
}

// ObserveCache records a response cache lookup; result is "hit", "miss" or "error".
func (m *Metrics) ObserveCache(route, result string) {
	m.cacheLookups.WithLabelValues(route, result).Inc()
}

// CacheCounter returns the response_cache_lookups_total series for route and result.
func (m *Metrics) CacheCounter(route, result string) prometheus.Counter {
	return m.cacheLookups.WithLabelValues(route, result)
}

// ObserveTask records a deferred task outcome ("enqueued", "dropped", "done", "failed").
func (m *Metrics) ObserveTask(task, outcome string) {
	m.tasks.WithLabelValues(task, outcome).Inc()
}

// TaskCounter returns the deferred_tasks_total series for task and outcome.
func (m *Metrics) TaskCounter(task, outcome string) prometheus.Counter {
	return m.tasks.WithLabelValues(task, outcome)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records RED metrics keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil && routeCtx.RoutePattern() != "" {
			path = routeCtx.RoutePattern()
		}

		status := strconv.Itoa(ww.Status())
		m.httpDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(path, r.Method, status).Inc()
	})
}
