package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/serverdb"
)

// TestHarness wraps a full Server with a real HTTP listener for integration tests.
type TestHarness struct {
	t       *testing.T
	Server  *Server
	Store   *serverdb.ServerDB
	BaseURL string
	client  *http.Client
	httpSrv *httptest.Server
}

// newTestHarness creates a TestHarness with a real HTTP server on a random port.
func newTestHarness(t *testing.T, opts ...func(*Config)) *TestHarness {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "shelf.db")
	store, err := serverdb.Open(dbPath)
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}

	cfg := Config{
		RateLimitAuth:  100000,
		RateLimitOther: 100000,
		ListenAddr:     ":0",
		DBPath:         dbPath,
		AllowSignup:    true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := NewServer(cfg, store)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	httpSrv := httptest.NewServer(srv.Handler())

	h := &TestHarness{
		t:       t,
		Server:  srv,
		Store:   store,
		BaseURL: httpSrv.URL,
		// Redirects are asserted, not followed.
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}},
		httpSrv: httpSrv,
	}

	t.Cleanup(func() {
		srv.closeOnce.Do(func() { close(srv.done) })
		httpSrv.Close()
		store.Close()
	})

	return h
}

// Do sends an HTTP request and returns the response.
// Caller must close resp.Body unless using assertion helpers (AssertStatus,
// AssertErrorResponse, ReadJSON) which close it automatically.
func (h *TestHarness) Do(method, path, token string, body any) *http.Response {
	h.t.Helper()

	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		rdr = &buf
	}

	req, err := http.NewRequest(method, h.BaseURL+path, rdr)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("do request %s %s: %v", method, path, err)
	}
	return resp
}

// DoJSON sends an HTTP request and decodes the JSON response into out.
// Fatals if the response status is >= 400 or if JSON decoding fails.
func (h *TestHarness) DoJSON(method, path, token string, body any, out any) *http.Response {
	h.t.Helper()

	resp := h.Do(method, path, token, body)
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		h.t.Fatalf("DoJSON %s %s: expected success, got %d: %s", method, path, resp.StatusCode, respBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		h.t.Fatalf("decode response: %v", err)
	}
	return resp
}

// PostForm submits an HTML form with the session cookie.
func (h *TestHarness) PostForm(path, session string, form url.Values) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest("POST", h.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session})
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("post form %s: %v", path, err)
	}
	return resp
}

// GetPage fetches an HTML page with the session cookie and any extra cookies.
// Returns the status and body.
func (h *TestHarness) GetPage(path, session string, cookies ...*http.Cookie) (int, string) {
	h.t.Helper()
	req, err := http.NewRequest("GET", h.BaseURL+path, nil)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session})
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("get page %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

// CreateUser creates a user with a password and an open session.
func (h *TestHarness) CreateUser(username string) (userID, session string) {
	h.t.Helper()

	user, err := h.Store.CreateUserWithPassword(username, "password123")
	if err != nil {
		h.t.Fatalf("create user: %v", err)
	}
	sess, err := h.Store.CreateSession(user.ID, serverdb.DefaultSessionTTL())
	if err != nil {
		h.t.Fatalf("create session: %v", err)
	}
	return user.ID, sess.ID
}

// CreateAuthor creates an author through the REST API.
func (h *TestHarness) CreateAuthor(session, name string) models.Author {
	h.t.Helper()
	var a models.Author
	resp := h.DoJSON("POST", "/api/authors", session, models.NewAuthorParams{Name: name}, &a)
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("create author: expected 201, got %d", resp.StatusCode)
	}
	return a
}

// CreateBook creates a book through the REST API.
func (h *TestHarness) CreateBook(session, title, authorID string) models.CompleteBook {
	h.t.Helper()
	var b models.CompleteBook
	resp := h.DoJSON("POST", "/api/books", session, models.NewBookParams{Title: title, AuthorID: authorID}, &b)
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("create book: expected 201, got %d", resp.StatusCode)
	}
	return b
}

// --- Response assertion helpers ---

// AssertStatus checks the HTTP status code matches expected. Reads and closes the body on failure.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, string(body))
	}
}

// AssertErrorResponse checks the response has the expected status and error code.
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedCode string) ErrorResponse {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		t.Fatalf("expected status %d, got %d: %s", expectedStatus, resp.StatusCode, string(body))
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Error.Code != expectedCode {
		t.Fatalf("expected error code %q, got %q: %s", expectedCode, errResp.Error.Code, errResp.Error.Message)
	}
	return errResp
}

// ReadJSON decodes a JSON response body into the given type.
func ReadJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json response: %v", err)
	}
	return out
}

// AssertCORSHeaders checks the response has the expected CORS origin header.
func AssertCORSHeaders(t *testing.T, resp *http.Response, expectedOrigin string) {
	t.Helper()
	origin := resp.Header.Get("Access-Control-Allow-Origin")
	if origin != expectedOrigin {
		t.Fatalf("expected Access-Control-Allow-Origin %q, got %q", expectedOrigin, origin)
	}
}
