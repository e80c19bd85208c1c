package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marcus/shelf/internal/serverdb"
)

// cleanupInterval is how often expired sessions and old audit rows are purged.
const cleanupInterval = 5 * time.Minute

// Server is the HTTP server for shelf.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	metrics     *Metrics
	rateLimiter *RateLimiter
	hub         *Hub
	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.RateLimitAuth <= 0 {
		cfg.RateLimitAuth = rateLimitAuth
	}
	if cfg.RateLimitOther <= 0 {
		cfg.RateLimitOther = rateLimitOther
	}
	m := NewMetrics()
	s := &Server{
		config:      cfg,
		store:       store,
		metrics:     m,
		rateLimiter: NewRateLimiter(),
		hub:         NewHub(m),
		done:        make(chan struct{}),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("cleanup panic", "panic", r)
			}
		}()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()

	return nil
}

// cleanup purges expired sessions, old audit rows, and stale rate limit buckets.
func (s *Server) cleanup() {
	if n, err := s.store.CleanupExpiredSessions(); err != nil {
		slog.Error("cleanup expired sessions", "err", err)
	} else if n > 0 {
		slog.Info("cleaned up expired sessions", "count", n)
	}
	if n, err := s.store.CleanupAuthEvents(s.config.AuthEventRetention); err != nil {
		slog.Error("cleanup auth events", "err", err)
	} else if n > 0 {
		slog.Info("cleaned up auth events", "count", n)
	}
	if n, err := s.store.CleanupRateLimitEvents(s.config.RateLimitEventRetention); err != nil {
		slog.Error("cleanup rate limit events", "err", err)
	} else if n > 0 {
		slog.Info("cleaned up rate limit events", "count", n)
	}
	s.rateLimiter.cleanup()
}

// Shutdown gracefully stops the server and disconnects event subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeOnce.Do(func() { close(s.done) })
	return s.http.Shutdown(ctx)
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	other := s.config.RateLimitOther

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Auth (JSON)
	mux.HandleFunc("POST /v1/auth/sign-up", s.handleSignUp)
	mux.HandleFunc("POST /v1/auth/sign-in", s.handleSignIn)
	mux.HandleFunc("POST /v1/auth/sign-out", s.requireAuth(s.handleSignOut))
	mux.HandleFunc("GET /v1/auth/me", s.requireAuth(s.handleMe))
	mux.HandleFunc("PATCH /v1/auth/me", s.requireAuth(s.withRateLimit(s.handleUpdateProfile, other)))

	// Auth (HTML)
	mux.HandleFunc("GET /sign-in", s.handleSignInPage)
	mux.HandleFunc("POST /sign-in", s.handleSignInSubmit)
	mux.HandleFunc("GET /sign-up", s.handleSignUpPage)
	mux.HandleFunc("POST /sign-up", s.handleSignUpSubmit)
	mux.HandleFunc("POST /sign-out", s.handleSignOutSubmit)

	// Invalidation events
	mux.HandleFunc("GET /v1/events", s.requireAuth(s.handleEvents))

	// REST
	mux.HandleFunc("GET /api/authors", s.requireAuth(s.withRateLimit(s.handleListAuthors, other)))
	mux.HandleFunc("POST /api/authors", s.requireAuth(s.withRateLimit(s.handleCreateAuthor, other)))
	mux.HandleFunc("PUT /api/authors", s.requireAuth(s.withRateLimit(s.handleUpdateAuthor, other)))
	mux.HandleFunc("DELETE /api/authors", s.requireAuth(s.withRateLimit(s.handleDeleteAuthor, other)))
	mux.HandleFunc("GET /api/books", s.requireAuth(s.withRateLimit(s.handleListBooks, other)))
	mux.HandleFunc("POST /api/books", s.requireAuth(s.withRateLimit(s.handleCreateBook, other)))
	mux.HandleFunc("PUT /api/books", s.requireAuth(s.withRateLimit(s.handleUpdateBook, other)))
	mux.HandleFunc("DELETE /api/books", s.requireAuth(s.withRateLimit(s.handleDeleteBook, other)))

	// RPC
	mux.HandleFunc("POST /rpc/{procedure}", s.requireAuth(s.withRateLimit(s.handleRPC, other)))

	// Server-rendered forms
	mux.HandleFunc("GET /{$}", s.requirePageAuth(s.handleHomePage))
	mux.HandleFunc("GET /authors", s.requirePageAuth(s.handleAuthorsPage))
	mux.HandleFunc("POST /authors", s.requirePageAuth(s.handleAuthorCreateSubmit))
	mux.HandleFunc("GET /authors/{id}", s.requirePageAuth(s.handleAuthorPage))
	mux.HandleFunc("GET /authors/{id}/edit", s.requirePageAuth(s.handleAuthorEditPage))
	mux.HandleFunc("POST /authors/{id}", s.requirePageAuth(s.handleAuthorUpdateSubmit))
	mux.HandleFunc("POST /authors/{id}/delete", s.requirePageAuth(s.handleAuthorDeleteSubmit))
	mux.HandleFunc("GET /books", s.requirePageAuth(s.handleBooksPage))
	mux.HandleFunc("POST /books", s.requirePageAuth(s.handleBookCreateSubmit))
	mux.HandleFunc("POST /books/{id}", s.requirePageAuth(s.handleBookUpdateSubmit))
	mux.HandleFunc("POST /books/{id}/delete", s.requirePageAuth(s.handleBookDeleteSubmit))

	return chain(mux,
		recoveryMiddleware,
		requestIDMiddleware,
		loggerMiddleware,
		metricsMiddleware(s.metrics),
		loggingMiddleware,
		maxBytesMiddleware(1<<20),
		s.CORSMiddleware,
		authRateLimitMiddleware(s.rateLimiter, s.config.RateLimitAuth, s.store),
	)
}

// Handler exposes the routed handler, for embedding in tests and tools.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
