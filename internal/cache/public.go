package cache

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

// DefaultTTL is the public cache lifetime when a route sets none.
const DefaultTTL = 61 * time.Second

type options struct {
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option tunes Public.
type Option func(*options)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Key is the storage key for a request to the route called name:
// "<name>/<path without leading slash>/<raw query>".
func Key(name string, r *http.Request) string {
	return name + "/" + strings.TrimPrefix(r.URL.Path, "/") + "/" + r.URL.RawQuery
}

// ETag is the quoted hex SHA-1 of body.
func ETag(body []byte) string {
	sum := sha1.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// Public marks successful GET responses as publicly cacheable and keeps
// their bodies in backend for the TTL. Non-2xx responses pass through
// untouched and are never stored.
func Public(backend Backend, name string, opts ...Option) func(http.Handler) http.Handler {
	o := options{ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if backend == nil {
		backend = NullBackend{}
	}
	seconds := int(o.ttl / time.Second)
	cacheControl := fmt.Sprintf("public, max-age=%d, s-maxage=%d", seconds, seconds)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := Key(name, r)

			body, ok, err := backend.Get(ctx, key)
			switch {
			case err != nil:
				o.logger.Warn("response cache get failed", slog.String("key", key), slog.Any("error", err))
				o.observe(name, "error")
			case ok:
				o.observe(name, "hit")
				serve(w, r, body, cacheControl)
				return
			default:
				o.observe(name, "miss")
			}

			buf := &bufferedWriter{header: w.Header()}
			next.ServeHTTP(buf, r)

			status := buf.statusCode()
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				w.WriteHeader(status)
				_, _ = w.Write(buf.body.Bytes())
				return
			}

			if err := backend.Set(ctx, key, buf.body.Bytes(), o.ttl); err != nil {
				o.logger.Warn("response cache set failed", slog.String("key", key), slog.Any("error", err))
			}
			serve(w, r, buf.body.Bytes(), cacheControl)
		})
	}
}

func (o options) observe(route, result string) {
	if o.metrics != nil {
		o.metrics.ObserveCache(route, result)
	}
}

func serve(w http.ResponseWriter, r *http.Request, body []byte, cacheControl string) {
	etag := ETag(body)
	h := w.Header()
	h.Set("Cache-Control", cacheControl)
	h.Set("ETag", etag)

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		h.Del("Content-Length")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", http.DetectContentType(body))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// bufferedWriter holds the handler's response so it can be inspected
// before anything reaches the client. Headers go straight to the real
// writer's map.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}
