package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/utils"
)

// RequestLogger writes one access line per request through the category
// logger, escalating on client and server errors.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start).String()
			switch {
			case status >= 500:
				log.Error("API", fmt.Sprintf("%s %s - %d (%s)", r.Method, r.URL.Path, status, duration))
			case status >= 400:
				log.Warn("API", fmt.Sprintf("%s %s - %d (%s) - Client Error", r.Method, r.URL.Path, status, duration))
			default:
				log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", status), duration)
			}
		})
	}
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	every    time.Duration
	burst    int
	ttl      time.Duration
	log      *logger.Logger
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(every time.Duration, burst int, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		every:    every,
		burst:    burst,
		ttl:      10 * time.Minute,
		log:      log,
		now:      time.Now,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = now

	for k, other := range rl.limiters {
		if now.Sub(other.lastSeen) > rl.ttl {
			delete(rl.limiters, k)
		}
	}
	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			rl.log.LogSecurity("RATE_LIMIT", fmt.Sprintf("Rate limit exceeded for IP: %s on %s", ip, r.URL.Path))
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.every.Seconds()+0.5))
			utils.WriteJSON(w, http.StatusTooManyRequests, utils.ErrorResponse("Too Many Requests", "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
