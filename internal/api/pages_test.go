package api

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestPagesRedirectAnonymousToSignIn(t *testing.T) {
	h := newTestHarness(t)
	for _, path := range []string{"/", "/authors", "/books"} {
		resp := h.Do("GET", path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/sign-in" {
			t.Errorf("%s: got %d -> %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestSignInPageFlow(t *testing.T) {
	h := newTestHarness(t)
	h.CreateUser("alice")

	status, body := h.GetPage("/sign-in", "")
	if status != http.StatusOK || !strings.Contains(body, "Create an account") {
		t.Fatalf("sign-in page: %d", status)
	}

	resp := h.PostForm("/sign-in", "", url.Values{"username": {"alice"}, "password": {"wrong-pass"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = h.PostForm("/sign-in", "", url.Values{"username": {"alice"}, "password": {"password123"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d", resp.StatusCode)
	}
	var session string
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			session = c.Value
		}
	}
	if session == "" {
		t.Fatal("expected session cookie")
	}

	status, body = h.GetPage("/", session)
	if status != http.StatusOK || !strings.Contains(body, "Signed in as alice") {
		t.Fatalf("home page: %d %s", status, body)
	}

	// Signed-in users skip the sign-in page.
	resp = h.Do("GET", "/sign-in", session, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect for signed-in user, got %d", resp.StatusCode)
	}
}

func TestSignUpPageValidation(t *testing.T) {
	h := newTestHarness(t)
	resp := h.PostForm("/sign-up", "", url.Values{"username": {"ab"}, "password": {"secret123"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAuthorFormsPostRedirectGet(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("alice")

	resp := h.PostForm("/authors", session, url.Values{"name": {"Jules Verne"}, "location": {"Nantes"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/authors" {
		t.Fatalf("expected redirect to /authors, got %d", resp.StatusCode)
	}
	var flash *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == flashCookieName {
			flash = c
		}
	}
	if flash == nil {
		t.Fatal("expected flash cookie")
	}

	status, body := h.GetPage("/authors", session, flash)
	if status != http.StatusOK {
		t.Fatalf("authors page: %d", status)
	}
	if !strings.Contains(body, "Author created!") || !strings.Contains(body, "Jules Verne") {
		t.Fatalf("expected flash and new author in page:\n%s", body)
	}

	authors, _ := h.Store.ListAuthors(getUserIDForSession(t, h, session))
	id := authors[0].ID

	status, body = h.GetPage("/authors/"+id+"/edit", session)
	if status != http.StatusOK || !strings.Contains(body, `value="Nantes"`) {
		t.Fatalf("edit page: %d", status)
	}

	resp = h.PostForm("/authors/"+id, session, url.Values{"name": {"J."}, "location": {"Nantes"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 re-render, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = h.PostForm("/authors/"+id, session, url.Values{"name": {"Jules G. Verne"}, "location": {"Amiens"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/authors/"+id {
		t.Fatalf("expected redirect to author page, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	status, body = h.GetPage("/authors/"+id, session)
	if status != http.StatusOK || !strings.Contains(body, "Jules G. Verne") {
		t.Fatalf("author page: %d", status)
	}

	resp = h.PostForm("/authors/"+id+"/delete", session, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect after delete, got %d", resp.StatusCode)
	}
	if status, _ := h.GetPage("/authors/"+id, session); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestAuthorCreateFormShowsErrors(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("alice")

	resp := h.PostForm("/authors", session, url.Values{"name": {"Bo"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)
	if !strings.Contains(body, "String must contain at least 5 character(s)") {
		t.Fatalf("expected field error in page:\n%s", body)
	}
	if !strings.Contains(body, `value="Bo"`) {
		t.Fatal("expected entered value to be kept")
	}
}

func TestBookForms(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("alice")
	a := h.CreateAuthor(session, "Mary Shelley")

	resp := h.PostForm("/books", session, url.Values{"title": {"Frankenstein"}, "authorId": {a.ID}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}

	books, _ := h.Store.ListBooks(getUserIDForSession(t, h, session))
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}
	id := books[0].ID

	status, body := h.GetPage("/books?edit="+id, session)
	if status != http.StatusOK || !strings.Contains(body, `action="/books/`+id+`"`) {
		t.Fatalf("expected inline editor, got %d", status)
	}

	resp = h.PostForm("/books/"+id, session, url.Values{"title": {"Frankenstein; or, The Modern Prometheus"}, "authorId": {a.ID}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}

	resp = h.PostForm("/books/"+id, session, url.Values{"title": {"F"}, "authorId": {a.ID}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = h.PostForm("/books/"+id+"/delete", session, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
}

func TestSignOutForm(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("alice")

	resp := h.PostForm("/sign-out", session, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/sign-in" {
		t.Fatalf("unexpected sign-out response: %d", resp.StatusCode)
	}
	AssertErrorResponse(t, h.Do("GET", "/v1/auth/me", session, nil), http.StatusUnauthorized, ErrCodeUnauthorized)
}

func getUserIDForSession(t *testing.T, h *TestHarness, session string) string {
	t.Helper()
	_, u, err := h.Store.ValidateSession(session, h.Server.config.sessionTTL())
	if err != nil || u == nil {
		t.Fatalf("validate session: %v", err)
	}
	return u.ID
}
