package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/globetrotter/identity-service/internal/http/response"
)

// Limiter answers whether one more request from the given key fits in the
// current window. Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// FailurePolicy controls behavior when the limiter backend errors out.
type FailurePolicy int

const (
	FailOpen FailurePolicy = iota
	FailClosed
)

// RateLimiter applies a fixed-window per-client limit keyed by remote IP.
func RateLimiter(limiter Limiter, limit int, window time.Duration, policy FailurePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				if policy == FailClosed {
					response.Error(w, r, http.StatusServiceUnavailable, "rate_limiter_unavailable", "Service temporarily unavailable", nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(window))
				response.Error(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

type windowCounter struct {
	count  int
	expiry time.Time
}

// localFixedWindowLimiter is an in-process fallback used when no Redis URL is
// configured. Counters are swept lazily on access.
type localFixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowCounter
	now     func() time.Time
}

func NewLocalLimiter() Limiter {
	return &localFixedWindowLimiter{windows: make(map[string]*windowCounter), now: time.Now}
}

func (l *localFixedWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	wc, ok := l.windows[key]
	if !ok || now.After(wc.expiry) {
		l.windows[key] = &windowCounter{count: 1, expiry: now.Add(window)}
		l.sweep(now)
		return true, nil
	}
	if wc.count >= limit {
		return false, nil
	}
	wc.count++
	return true, nil
}

func (l *localFixedWindowLimiter) sweep(now time.Time) {
	if len(l.windows) < 4096 {
		return
	}
	for k, wc := range l.windows {
		if now.After(wc.expiry) {
			delete(l.windows, k)
		}
	}
}
