package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/serverdb"
)

// sessionCookieName is the cookie carrying the session id.
const sessionCookieName = "auth_session"

// authResponse is the JSON response for sign-up and sign-in.
type authResponse struct {
	User      models.User `json:"user"`
	Session   string      `json:"session"`
	ExpiresAt string      `json:"expires_at"`
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *serverdb.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.IdleExpires,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// signUp validates credentials, creates the user and opens a session.
// Returned errors are FieldErrors, serverdb.ErrUsernameTaken, errSignupDisabled
// or internal failures.
func (s *Server) signUp(r *http.Request, p models.AuthParams) (*serverdb.User, *serverdb.Session, error) {
	if !s.config.AllowSignup {
		return nil, nil, errSignupDisabled
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	user, err := s.store.CreateUserWithPassword(p.Username, p.Password)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.store.CreateSession(user.ID, s.config.sessionTTL())
	if err != nil {
		return nil, nil, err
	}
	s.logAuthEvent(user.ID, user.Username, serverdb.AuthEventSignedUp, r)
	logFor(r.Context()).Info("user signed up", "uid", user.ID)
	return user, sess, nil
}

// signIn checks credentials and opens a session.
func (s *Server) signIn(r *http.Request, p models.AuthParams) (*serverdb.User, *serverdb.Session, error) {
	user, err := s.store.VerifyPassword(p.Username, p.Password)
	if err != nil {
		if errors.Is(err, serverdb.ErrInvalidCredentials) {
			s.logAuthEvent("", p.Username, serverdb.AuthEventSignInFailed, r)
		}
		return nil, nil, err
	}
	sess, err := s.store.CreateSession(user.ID, s.config.sessionTTL())
	if err != nil {
		return nil, nil, err
	}
	s.logAuthEvent(user.ID, user.Username, serverdb.AuthEventSignedIn, r)
	return user, sess, nil
}

var errSignupDisabled = errors.New("signups are disabled")

// writeAuthError maps sign-up/sign-in failures to API errors.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var fe models.FieldErrors
	switch {
	case errors.As(err, &fe):
		writeAPIError(w, http.StatusBadRequest, APIError{Code: ErrCodeValidation, Message: "invalid input", Issues: fe})
	case errors.Is(err, errSignupDisabled):
		writeError(w, http.StatusForbidden, ErrCodeSignupDisabled, err.Error())
	case errors.Is(err, serverdb.ErrUsernameTaken):
		writeError(w, http.StatusConflict, ErrCodeUsernameTaken, err.Error())
	case errors.Is(err, serverdb.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidCredentials, "Incorrect username or password")
	default:
		logFor(r.Context()).Error("auth", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "authentication failed")
	}
}

func decodeAuthParams(w http.ResponseWriter, r *http.Request) (models.AuthParams, bool) {
	var p models.AuthParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return p, false
	}
	return p, true
}

func (s *Server) writeSession(w http.ResponseWriter, status int, user *serverdb.User, sess *serverdb.Session) {
	s.setSessionCookie(w, sess)
	writeJSON(w, status, authResponse{
		User:      user.Model(),
		Session:   sess.ID,
		ExpiresAt: sess.IdleExpires.Format(time.RFC3339),
	})
}

// handleSignUp handles POST /v1/auth/sign-up.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	p, ok := decodeAuthParams(w, r)
	if !ok {
		return
	}
	user, sess, err := s.signUp(r, p)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusCreated, user, sess)
}

// handleSignIn handles POST /v1/auth/sign-in.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p, ok := decodeAuthParams(w, r)
	if !ok {
		return
	}
	user, sess, err := s.signIn(r, p)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, user, sess)
}

// handleSignOut handles POST /v1/auth/sign-out.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	u := getUserFromContext(r.Context())
	if err := s.store.InvalidateSession(u.SessionID); err != nil {
		logFor(r.Context()).Error("invalidate session", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to sign out")
		return
	}
	s.logAuthEvent(u.UserID, u.Username, serverdb.AuthEventSignedOut, r)
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// handleMe handles GET /v1/auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByID(currentUserID(r))
	if err != nil {
		logFor(r.Context()).Error("get user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "user no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, user.Model())
}

// handleUpdateProfile handles PATCH /v1/auth/me.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p models.ProfileParams
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := p.Validate(); err != nil {
		writeStoreError(w, r, "update profile", err)
		return
	}

	user, err := s.store.GetUserByID(currentUserID(r))
	if err != nil {
		writeStoreError(w, r, "update profile", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "user no longer exists")
		return
	}

	next := p.Apply(user.Model())
	if err := s.store.UpdateProfile(user.ID, next.Name, next.Email); err != nil {
		writeStoreError(w, r, "update profile", err)
		return
	}
	if user, err = s.store.GetUserByID(user.ID); err != nil || user == nil {
		logFor(r.Context()).Error("reload user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user.Model())
}

// logAuthEvent records an auth event, logging but otherwise ignoring errors.
func (s *Server) logAuthEvent(userID, username, eventType string, r *http.Request) {
	metadata := "{}"
	if b, err := json.Marshal(map[string]string{
		"ip":         clientIP(r),
		"user_agent": r.Header.Get("User-Agent"),
	}); err == nil {
		metadata = string(b)
	}
	if err := s.store.InsertAuthEvent(userID, username, eventType, metadata); err != nil {
		slog.Warn("log auth event", "type", eventType, "err", err)
	}
}
