package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-boxoffice/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func hit(h http.Handler, addr string) int {
	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 2, logger.NewDiscard())
	frozen := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	h := rl.Handler(ok)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5002"))

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:5000"), "other clients keep their own bucket")

	frozen = frozen.Add(time.Minute)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:5003"))
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(time.Second, 1, logger.NewDiscard())
	frozen := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }

	rl.allow("a")
	frozen = frozen.Add(time.Hour)
	rl.allow("b")

	assert.Len(t, rl.limiters, 1)
}

func TestRequestLoggerAndHeaders(t *testing.T) {
	h := RequestLogger(logger.NewDiscard())(SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
