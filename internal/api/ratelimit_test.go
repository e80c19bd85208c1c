package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/serverdb"
)

func TestRateLimiterAllowDeny(t *testing.T) {
	rl := NewRateLimiter()

	// Should allow up to the limit
	for i := 0; i < 5; i++ {
		if !rl.Allow("k1", 5) {
			t.Fatalf("expected allow on request %d", i+1)
		}
	}

	// Should deny at the limit
	if rl.Allow("k1", 5) {
		t.Fatal("expected deny after limit reached")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 3; i++ {
		rl.Allow("k1", 3)
	}
	if rl.Allow("k1", 3) {
		t.Fatal("expected deny after limit")
	}

	// Simulate window expiry by backdating the bucket
	rl.mu.Lock()
	rl.buckets["k1"].windowAt = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()

	if !rl.Allow("k1", 3) {
		t.Fatal("expected allow after window reset")
	}
}

func TestRateLimiterKeyIsolation(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 2; i++ {
		rl.Allow("key1", 2)
	}
	if rl.Allow("key1", 2) {
		t.Fatal("expected key1 denied")
	}
	if !rl.Allow("key2", 2) {
		t.Fatal("expected key2 allowed")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("stale", 10)
	rl.Allow("fresh", 10)

	rl.mu.Lock()
	rl.buckets["stale"].windowAt = time.Now().Add(-5 * time.Minute)
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.Lock()
	_, hasStale := rl.buckets["stale"]
	_, hasFresh := rl.buckets["fresh"]
	rl.mu.Unlock()

	if hasStale {
		t.Fatal("expected stale entry to be cleaned up")
	}
	if !hasFresh {
		t.Fatal("expected fresh entry to remain")
	}
}

func testStore(t *testing.T) *serverdb.ServerDB {
	t.Helper()
	store, err := serverdb.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAuthRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	store := testStore(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := authRateLimitMiddleware(rl, rateLimitAuth, store)(inner)

	for i := 0; i < rateLimitAuth; i++ {
		req := httptest.NewRequest("POST", "/v1/auth/sign-in", nil)
		req.RemoteAddr = "1.2.3.4:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	// The HTML sign-in form shares the budget.
	req := httptest.NewRequest("POST", "/sign-in", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	ev, err := store.LatestRateLimitEvent()
	if err != nil || ev == nil {
		t.Fatalf("expected rate limit event, got %v", err)
	}
	if ev.IP != "1.2.3.4" || ev.EndpointClass != "auth" || ev.UserID != "" {
		t.Errorf("unexpected event: %+v", ev)
	}

	// Other paths and other IPs are unaffected.
	req = httptest.NewRequest("GET", "/api/authors", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("non-auth path: expected 200, got %d", w.Code)
	}
	req = httptest.NewRequest("POST", "/v1/auth/sign-in", nil)
	req.RemoteAddr = "5.6.7.8:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("other ip: expected 200, got %d", w.Code)
	}
}

func TestPerUserRateLimit(t *testing.T) {
	h := newTestHarness(t, func(c *Config) { c.RateLimitOther = 2 })
	uid, session := h.CreateUser("alice")

	for i := 0; i < 2; i++ {
		resp := h.Do("POST", "/api/authors", session, models.NewAuthorParams{Name: "Author Number"})
		AssertStatus(t, resp, http.StatusCreated)
		resp.Body.Close()
	}
	AssertErrorResponse(t, h.Do("POST", "/api/authors", session, models.NewAuthorParams{Name: "One Too Many"}),
		http.StatusTooManyRequests, ErrCodeRateLimited)

	ev, _ := h.Store.LatestRateLimitEvent()
	if ev == nil || ev.UserID != uid || ev.EndpointClass != "mutate" {
		t.Fatalf("unexpected rate limit event: %+v", ev)
	}

	// A different user has their own budget.
	_, other := h.CreateUser("bobby")
	AssertStatus(t, h.Do("GET", "/api/authors", other, nil), http.StatusOK)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("remote addr: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("forwarded: got %q", got)
	}
}
