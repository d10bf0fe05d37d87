package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregmarra/the-blue-alliance/pkg/logger"
	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

func hello(status int) (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
		_, _ = w.Write([]byte("Hello!"))
	}), &calls
}

func get(h http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newRedisBackend(t *testing.T) (*miniredis.Miniredis, *RedisBackend) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisBackend(client)
}

func TestNoPublicCacheWithoutMiddleware(t *testing.T) {
	h, _ := hello(http.StatusOK)
	rec := get(h, "/", nil)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestPublicSkipsErrors(t *testing.T) {
	h, _ := hello(http.StatusUnauthorized)
	rec := get(Public(NullBackend{}, "view", WithLogger(logger.Discard()))(h), "/", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Hello!", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestPublicDefaultTTL(t *testing.T) {
	h, _ := hello(http.StatusOK)
	rec := get(Public(NullBackend{}, "view")(h), "/", nil)
	assert.Equal(t, "public, max-age=61, s-maxage=61", rec.Header().Get("Cache-Control"))
}

func TestPublicCustomTTL(t *testing.T) {
	h, _ := hello(http.StatusOK)
	rec := get(Public(NullBackend{}, "view", WithTTL(time.Hour))(h), "/", nil)
	assert.Equal(t, "public, max-age=3600, s-maxage=3600", rec.Header().Get("Cache-Control"))
}

func TestPublicETag(t *testing.T) {
	h, _ := hello(http.StatusOK)
	mw := Public(NullBackend{}, "view")(h)

	rec := get(mw, "/", nil)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, ETag([]byte("Hello!")), etag)

	rec2 := get(mw, "/", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, rec2.Code)
	assert.Empty(t, rec2.Body.String())

	rec3 := get(mw, "/", http.Header{"If-None-Match": {"bad-etag"}})
	assert.Equal(t, http.StatusOK, rec3.Code)
	assert.Equal(t, "Hello!", rec3.Body.String())
}

func TestPublicNullBackendAlwaysRunsHandler(t *testing.T) {
	h, calls := hello(http.StatusOK)
	mw := Public(NullBackend{}, "view")(h)

	get(mw, "/", nil)
	rec := get(mw, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, *calls)
}

func TestPublicRedisStoresBody(t *testing.T) {
	_, backend := newRedisBackend(t)
	h, calls := hello(http.StatusOK)
	m := metrics.New()
	mw := Public(backend, "view", WithMetrics(m))(h)

	rec := get(mw, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, ok, err := backend.Get(context.Background(), "view//")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Body.String(), string(stored))

	rec2 := get(mw, "/", nil)
	assert.Equal(t, "Hello!", rec2.Body.String())
	assert.Equal(t, "public, max-age=61, s-maxage=61", rec2.Header().Get("Cache-Control"))
	assert.Equal(t, 1, *calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheCounter("view", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheCounter("view", "hit")))
}

func TestPublicRedisExpires(t *testing.T) {
	mr, backend := newRedisBackend(t)
	h, _ := hello(http.StatusOK)
	mw := Public(backend, "view", WithTTL(10*time.Second))(h)

	rec := get(mw, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok, _ := backend.Get(context.Background(), "view//")
	require.True(t, ok)

	mr.FastForward(15 * time.Second)

	_, ok, err := backend.Get(context.Background(), "view//")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublicRedisServesUntilExpiry(t *testing.T) {
	mr, backend := newRedisBackend(t)
	h, calls := hello(http.StatusOK)
	mw := Public(backend, "view", WithTTL(10*time.Second))(h)

	rec := get(mw, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, *calls)

	mr.FastForward(9 * time.Second)
	rec = get(mw, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", rec.Body.String())
	assert.Equal(t, 1, *calls)

	mr.FastForward(2 * time.Second)
	rec = get(mw, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", rec.Body.String())
	assert.Equal(t, 2, *calls)
}

func TestPublicRedisSkipsErrors(t *testing.T) {
	_, backend := newRedisBackend(t)
	h, _ := hello(http.StatusInternalServerError)

	rec := get(Public(backend, "view")(h), "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	_, ok, err := backend.Get(context.Background(), "view//")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v2/team/frc254?page=2", nil)
	assert.Equal(t, "team/api/v2/team/frc254/page=2", Key("team", req))
	assert.Equal(t, "view//", Key("view", httptest.NewRequest(http.MethodGet, "/", nil)))
}

type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenBackend) Delete(context.Context, string) error { return nil }

func TestPublicDegradesOnBackendErrors(t *testing.T) {
	h, calls := hello(http.StatusOK)
	rec := get(Public(brokenBackend{}, "view", WithLogger(logger.Discard()))(h), "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, 1, *calls)
}

func TestConfigure(t *testing.T) {
	assert.IsType(t, NullBackend{}, Configure(context.Background(), "", logger.Discard()))

	mr := miniredis.RunT(t)
	assert.IsType(t, &RedisBackend{}, Configure(context.Background(), "redis://"+mr.Addr(), logger.Discard()))
	assert.IsType(t, &RedisBackend{}, Configure(context.Background(), mr.Addr(), logger.Discard()))

	addr := mr.Addr()
	mr.Close()
	assert.IsType(t, NullBackend{}, Configure(context.Background(), addr, logger.Discard()))
}
