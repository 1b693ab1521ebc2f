package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limiterMiddleware(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, cfg)(okHandler())
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	handler := limiterMiddleware(t, RateLimitConfig{Rate: 0.001, Burst: 3})

	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests"}`, w.Body.String())
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	handler := limiterMiddleware(t, RateLimitConfig{Rate: 0.001, Burst: 1})

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:2", "10.0.0.3:3"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "first request from %s should pass", addr)
	}
}

func TestRateLimit_RefillRestoresTokens(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Rate: 10, Burst: 2})
	now := time.Now()

	_, allowed := rl.allow("k", now)
	require.True(t, allowed)
	_, allowed = rl.allow("k", now)
	require.True(t, allowed)
	_, allowed = rl.allow("k", now)
	require.False(t, allowed, "bucket should be empty")

	// 100ms at 10 req/s refills one token.
	_, allowed = rl.allow("k", now.Add(100*time.Millisecond))
	assert.True(t, allowed)
}

func TestRateLimit_ForwardedForTakesPrecedence(t *testing.T) {
	handler := limiterMiddleware(t, RateLimitConfig{Rate: 0.001, Burst: 1})

	// Same proxy address, different forwarded clients: independent buckets.
	for _, client := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.9:4242"
		req.Header.Set("X-Forwarded-For", client+", 10.0.0.9")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Repeat for the first client should hit the empty bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4242"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Rate: 1, Burst: 5})
	now := time.Now()

	rl.allow("stale", now.Add(-time.Hour))
	rl.allow("fresh", now)

	rl.evict(now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.buckets, "stale")
	assert.Contains(t, rl.buckets, "fresh")
}
