package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
)

type contextKey int

const (
	ctxKeyAuthUser contextKey = iota
	ctxKeyRequestID
	_ // reserved
	ctxKeyLogger
)

// AuthUser holds the authenticated user information extracted from the session.
type AuthUser struct {
	UserID    string
	Username  string
	SessionID string
}

// getUserFromContext returns the authenticated user from the request context, or nil.
func getUserFromContext(ctx context.Context) *AuthUser {
	u, _ := ctx.Value(ctxKeyAuthUser).(*AuthUser)
	return u
}

// getRequestID returns the request ID from the context.
func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// logFor returns the context-scoped logger, falling back to the default logger.
func logFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// loggerMiddleware creates a per-request logger with the request ID and stores it in the context.
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := slog.Default().With("rid", getRequestID(r.Context()))
		ctx := context.WithValue(r.Context(), ctxKeyLogger, l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metricsMiddleware records request counts and categorizes response status codes.
func metricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RecordRequest()
			cm := httpsnoop.CaptureMetrics(next, w, r)
			switch {
			case cm.Code >= 500:
				m.RecordError()
			case cm.Code >= 400:
				m.RecordClientError()
			}
		})
	}
}

// recoveryMiddleware catches panics and returns a 500 response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logFor(r.Context()).Error("panic recovered", "panic", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// generateRequestID creates a random hex string for request tracing.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// requestIDMiddleware generates a unique request ID and adds it to the context and response headers.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := generateRequestID()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with method, path, status, and duration.
// httpsnoop keeps the optional writer interfaces (Hijacker, Flusher) intact,
// so websocket upgrades pass through.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		logFor(r.Context()).Info("req",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"dur", m.Duration.String(),
		)
	})
}

// sessionToken returns the session id from the auth cookie, falling back
// to an "Authorization: Bearer" header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// authenticate validates the request's session. A renewed session gets a
// fresh cookie. Returns nil when the request is not signed in.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, *AuthUser, error) {
	token := sessionToken(r)
	if token == "" {
		return r, nil, nil
	}
	sess, user, err := s.store.ValidateSession(token, s.config.sessionTTL())
	if err != nil || sess == nil {
		return r, nil, err
	}
	if sess.Fresh {
		s.setSessionCookie(w, sess)
	}

	authUser := &AuthUser{UserID: user.ID, Username: user.Username, SessionID: sess.ID}
	ctx := context.WithValue(r.Context(), ctxKeyAuthUser, authUser)
	// Enrich logger with user ID
	ctx = context.WithValue(ctx, ctxKeyLogger, logFor(ctx).With("uid", user.ID))
	return r.WithContext(ctx), authUser, nil
}

// requireAuth returns an http.HandlerFunc that verifies the session cookie
// or Bearer token and injects AuthUser into the context before calling the
// inner handler.
func (s *Server) requireAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, user, err := s.authenticate(w, r)
		if err != nil {
			logFor(r.Context()).Error("validate session", "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to verify session")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "not signed in")
			return
		}
		handler(w, r)
	}
}

// requirePageAuth is requireAuth for HTML pages: anonymous visitors are
// redirected to the sign-in page.
func (s *Server) requirePageAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, user, err := s.authenticate(w, r)
		if err != nil {
			logFor(r.Context()).Error("validate session", "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
			return
		}
		handler(w, r)
	}
}

// maxBytesMiddleware limits request body size to prevent abuse.
func maxBytesMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order (first applied is outermost).
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// currentUserID returns the signed-in user's id. Only valid behind requireAuth.
func currentUserID(r *http.Request) string {
	return getUserFromContext(r.Context()).UserID
}
