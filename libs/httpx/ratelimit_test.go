package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func hit(h http.Handler, user string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-Id", user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func byUser(r *http.Request) string { return r.Header.Get("X-User-Id") }

func TestRateLimiterPerKey(t *testing.T) {
	h := NewRateLimiter(2, time.Minute, byUser).Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "u1"))
	assert.Equal(t, http.StatusOK, hit(h, "u1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "u1"))
	assert.Equal(t, http.StatusOK, hit(h, "u2"))
}

func TestRateLimiterWindowResets(t *testing.T) {
	rl := NewRateLimiter(1, time.Second, nil)
	now := time.Now()
	assert.True(t, rl.allow("k", now))
	assert.False(t, rl.allow("k", now.Add(500*time.Millisecond)))
	assert.True(t, rl.allow("k", now.Add(2*time.Second)))
}

func TestRedisRateLimiterSharesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Two replicas share one counter.
	a := NewRedisRateLimiter(rdb, 2, time.Minute, "orders", byUser).Middleware(logger, false)(okHandler())
	b := NewRedisRateLimiter(rdb, 2, time.Minute, "orders", byUser).Middleware(logger, false)(okHandler())

	assert.Equal(t, http.StatusOK, hit(a, "u1"))
	assert.Equal(t, http.StatusOK, hit(b, "u1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(a, "u1"))
}

func TestRedisRateLimiterFailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	open := NewRedisRateLimiter(rdb, 1, time.Minute, "orders", byUser).Middleware(logger, true)(okHandler())
	closed := NewRedisRateLimiter(rdb, 1, time.Minute, "orders", byUser).Middleware(logger, false)(okHandler())

	assert.Equal(t, http.StatusOK, hit(open, "u1"))
	assert.Equal(t, http.StatusServiceUnavailable, hit(closed, "u1"))
}
