package api

import (
	"net/http"
	"testing"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/serverdb"
)

func TestSignUpSignInSignOut(t *testing.T) {
	h := newTestHarness(t)

	resp := h.Do("POST", "/v1/auth/sign-up", "", models.AuthParams{Username: "reader", Password: "secret123"})
	AssertStatus(t, resp, http.StatusCreated)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	signup := ReadJSON[authResponse](t, resp)
	if signup.Session == "" || signup.User.Username != "reader" {
		t.Fatalf("unexpected sign-up response: %+v", signup)
	}
	if cookie == nil || cookie.Value != signup.Session || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}

	me := ReadJSON[models.User](t, h.Do("GET", "/v1/auth/me", signup.Session, nil))
	if me.ID != signup.User.ID {
		t.Fatalf("me returned %s, want %s", me.ID, signup.User.ID)
	}

	var signin authResponse
	h.DoJSON("POST", "/v1/auth/sign-in", "", models.AuthParams{Username: "READER", Password: "secret123"}, &signin)
	if signin.Session == "" || signin.Session == signup.Session {
		t.Fatalf("expected a new session, got %q", signin.Session)
	}

	resp = h.Do("POST", "/v1/auth/sign-out", signin.Session, nil)
	AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	AssertErrorResponse(t, h.Do("GET", "/v1/auth/me", signin.Session, nil), http.StatusUnauthorized, ErrCodeUnauthorized)
	// The first session is unaffected.
	AssertStatus(t, h.Do("GET", "/v1/auth/me", signup.Session, nil), http.StatusOK)

	events, err := h.Store.ListAuthEvents("", "reader", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 auth events, got %d", len(events))
	}
	if events[0].EventType != serverdb.AuthEventSignedOut || events[2].EventType != serverdb.AuthEventSignedUp {
		t.Errorf("unexpected event order: %+v", events)
	}
}

func TestSignUpValidation(t *testing.T) {
	h := newTestHarness(t)
	e := AssertErrorResponse(t,
		h.Do("POST", "/v1/auth/sign-up", "", models.AuthParams{Username: "ab", Password: "123"}),
		http.StatusBadRequest, ErrCodeValidation)
	if e.Error.Issues.First("username") == "" || e.Error.Issues.First("password") == "" {
		t.Fatalf("expected username and password issues, got %+v", e.Error.Issues)
	}
}

func TestSignUpDuplicateUsername(t *testing.T) {
	h := newTestHarness(t)
	h.CreateUser("taken")
	AssertErrorResponse(t,
		h.Do("POST", "/v1/auth/sign-up", "", models.AuthParams{Username: "Taken", Password: "secret123"}),
		http.StatusConflict, ErrCodeUsernameTaken)
}

func TestSignUpDisabled(t *testing.T) {
	h := newTestHarness(t, func(c *Config) { c.AllowSignup = false })
	AssertErrorResponse(t,
		h.Do("POST", "/v1/auth/sign-up", "", models.AuthParams{Username: "newbie", Password: "secret123"}),
		http.StatusForbidden, ErrCodeSignupDisabled)
}

func TestSignInWrongPassword(t *testing.T) {
	h := newTestHarness(t)
	h.CreateUser("alice")
	AssertErrorResponse(t,
		h.Do("POST", "/v1/auth/sign-in", "", models.AuthParams{Username: "alice", Password: "nope-nope"}),
		http.StatusBadRequest, ErrCodeInvalidCredentials)

	events, _ := h.Store.ListAuthEvents(serverdb.AuthEventSignInFailed, "alice", 0)
	if len(events) != 1 {
		t.Fatalf("expected a failed sign-in event, got %d", len(events))
	}
}

func TestSignInBadJSON(t *testing.T) {
	h := newTestHarness(t)
	resp := h.Do("POST", "/v1/auth/sign-in", "", "not an object")
	AssertErrorResponse(t, resp, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestRequireAuthRejectsUnknownSession(t *testing.T) {
	h := newTestHarness(t)
	AssertErrorResponse(t, h.Do("GET", "/api/authors", "", nil), http.StatusUnauthorized, ErrCodeUnauthorized)
	AssertErrorResponse(t, h.Do("GET", "/api/authors", "bogus", nil), http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestHarness(t)
	health := ReadJSON[map[string]string](t, h.Do("GET", "/healthz", "", nil))
	if health["status"] != "ok" {
		t.Fatalf("unexpected health: %v", health)
	}

	_, session := h.CreateUser("metric")
	h.CreateAuthor(session, "Mary Shelley")
	h.Do("GET", "/api/authors", "", nil).Body.Close()

	m := ReadJSON[MetricsSnapshot](t, h.Do("GET", "/metricz", "", nil))
	if m.Mutations != 1 {
		t.Errorf("mutations = %d, want 1", m.Mutations)
	}
	if m.ClientErrors < 1 {
		t.Errorf("client errors = %d, want >= 1", m.ClientErrors)
	}
	if m.Requests < 3 {
		t.Errorf("requests = %d, want >= 3", m.Requests)
	}
}

func TestUpdateProfile(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("reader")

	name, email := "  Ursula  ", "Ursula@Example.com"
	var me models.User
	h.DoJSON("PATCH", "/v1/auth/me", session, models.ProfileParams{Name: &name, Email: &email}, &me)
	if me.Name != "Ursula" || me.Email != "ursula@example.com" {
		t.Fatalf("profile not saved: %+v", me)
	}

	// Omitted fields are kept; an empty string clears.
	empty := ""
	h.DoJSON("PATCH", "/v1/auth/me", session, models.ProfileParams{Email: &empty}, &me)
	if me.Name != "Ursula" || me.Email != "" {
		t.Fatalf("unexpected profile after clearing email: %+v", me)
	}

	bad := "not-an-email"
	errResp := AssertErrorResponse(t, h.Do("PATCH", "/v1/auth/me", session, models.ProfileParams{Email: &bad}), http.StatusBadRequest, ErrCodeValidation)
	if len(errResp.Error.Issues["email"]) == 0 {
		t.Fatalf("expected email issue, got %+v", errResp.Error.Issues)
	}

	AssertErrorResponse(t, h.Do("PATCH", "/v1/auth/me", "", models.ProfileParams{Name: &name}), http.StatusUnauthorized, ErrCodeUnauthorized)
}
