package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/marcus/shelf/internal/serverdb"
)

// RateLimiter implements per-key fixed-window rate limiting.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count    int
	windowAt time.Time
}

// NewRateLimiter creates a RateLimiter. Stale buckets are dropped by the
// server's cleanup loop.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket)}
}

// Allow checks if the key is within the rate limit (limit per 1-minute window).
func (rl *RateLimiter) Allow(key string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowAt) >= time.Minute {
		rl.buckets[key] = &bucket{count: 1, windowAt: now}
		return true
	}
	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-2 * time.Minute)
	for k, b := range rl.buckets {
		if b.windowAt.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// Default rate limits per endpoint tier.
const (
	rateLimitAuth  = 10  // sign-in/sign-up per IP
	rateLimitOther = 300 // all other per user
)

// isAuthPath reports whether the request targets a credential endpoint.
func isAuthPath(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/v1/auth/") {
		return true
	}
	return r.Method == http.MethodPost && (r.URL.Path == "/sign-in" || r.URL.Path == "/sign-up")
}

// authRateLimitMiddleware rate-limits auth endpoints by IP address.
// Applied globally; only acts on credential paths.
// When a rate limit is exceeded, the event is logged to the store.
func authRateLimitMiddleware(rl *RateLimiter, limit int, store *serverdb.ServerDB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isAuthPath(r) {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				if !rl.Allow("ip:"+host, limit) {
					if err := store.InsertRateLimitEvent("", host, "auth"); err != nil {
						slog.Error("log rate limit event", "err", err)
					}
					writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withRateLimit wraps an authenticated handler with per-user rate limiting.
// When a rate limit is exceeded, the event is logged to the store.
func (s *Server) withRateLimit(handler http.HandlerFunc, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := getUserFromContext(r.Context())
		if user == nil {
			handler(w, r)
			return
		}
		key := fmt.Sprintf("user:%s:%d", user.UserID, limit)
		if !s.rateLimiter.Allow(key, limit) {
			if err := s.store.InsertRateLimitEvent(user.UserID, clientIP(r), classifyEndpoint(r)); err != nil {
				slog.Error("log rate limit event", "err", err)
			}
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		handler(w, r)
	}
}

// classifyEndpoint returns the endpoint class for rate limit auditing.
func classifyEndpoint(r *http.Request) string {
	if isAuthPath(r) {
		return "auth"
	}
	if r.Method != http.MethodGet {
		return "mutate"
	}
	return "other"
}

// clientIP extracts the client IP from the request, checking X-Forwarded-For first.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
