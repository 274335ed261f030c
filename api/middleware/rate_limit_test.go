package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"processor-service/service/rate_limiter"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	limiter := rate_limiter.NewRateLimiter(rate_limiter.NewMemoryCounter(),
		rate_limiter.RateLimitRule{Scope: rate_limiter.ScopeClient, Window: time.Minute, MaxRequests: 1})
	handler := RateLimit(limiter)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"status":429`)

	// 同一地址换用API Key视为不同客户端
	req.Header.Set(ClientIDHeader, "team-a")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	handler := RateLimit(rate_limiter.NewRateLimiter(rate_limiter.NewMemoryCounter()))(okHandler())
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/process", nil))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.0.9:1234"
	assert.Equal(t, "ip:192.168.0.9", ClientID(req))
	req.RemoteAddr = "bad-addr"
	assert.Equal(t, "ip:bad-addr", ClientID(req))
	req.Header.Set(ClientIDHeader, "k1")
	assert.Equal(t, "key:k1", ClientID(req))
}
