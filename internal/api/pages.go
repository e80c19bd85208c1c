package api

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/serverdb"
)

//go:embed templates/*.html
var templatesFS embed.FS

type authorSelect struct {
	Authors  []models.Author
	Selected string
}

var pageFuncs = template.FuncMap{
	"selectData": func(authors []models.Author, selected string) authorSelect {
		return authorSelect{Authors: authors, Selected: selected}
	},
}

// pages maps a page name to its template, each parsed with the shared layout.
var pages = func() map[string]*template.Template {
	m := make(map[string]*template.Template)
	for _, name := range []string{"auth", "home", "authors", "author", "author_edit", "books"} {
		m[name] = template.Must(template.New(name).Funcs(pageFuncs).ParseFS(templatesFS,
			"templates/layout.html", "templates/"+name+".html"))
	}
	return m
}()

const flashCookieName = "shelf_flash"

// pageData carries the fields every page renders.
type pageData struct {
	Title  string
	User   *AuthUser
	Flash  string
	Errors models.FieldErrors
}

type authPageData struct {
	pageData
	Action    string
	Submit    string
	Error     string
	Username  string
	AltPrompt string
	AltHref   string
	AltText   string
}

type homePageData struct {
	pageData
	AuthorCount int
	BookCount   int
}

type authorsPageData struct {
	pageData
	Authors []models.Author
	Form    models.NewAuthorParams
}

type authorPageData struct {
	pageData
	Author *models.Author
	Books  []models.CompleteBook
	Form   models.UpdateAuthorParams
}

type booksPageData struct {
	pageData
	Books   []models.CompleteBook
	Authors []models.Author
	EditID  string
	Form    models.UpdateBookParams
}

// render executes the named page with status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages[name].ExecuteTemplate(w, "layout", data); err != nil {
		logFor(r.Context()).Error("render page", "page", name, "err", err)
	}
}

// newPageData builds the common fields and consumes any pending flash notice.
func (s *Server) newPageData(w http.ResponseWriter, r *http.Request, title string) pageData {
	d := pageData{Title: title, User: getUserFromContext(r.Context())}
	if c, err := r.Cookie(flashCookieName); err == nil {
		if msg, err := url.QueryUnescape(c.Value); err == nil {
			d.Flash = msg
		}
		http.SetCookie(w, &http.Cookie{Name: flashCookieName, Path: "/", MaxAge: -1})
	}
	return d
}

// redirectWithFlash implements post-redirect-get, carrying msg to the next page.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// writePageError renders a plain error page for store failures that have
// no form to re-render.
func writePageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, serverdb.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	logFor(r.Context()).Error(op, "err", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// formErrors extracts field errors from err, or returns nil when err is
// not a validation failure.
func formErrors(err error) models.FieldErrors {
	var fe models.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

// --- Sign in / sign up ---

func signInPage(d pageData) authPageData {
	d.Title = "Sign in"
	return authPageData{
		pageData:  d,
		Action:    "/sign-in",
		Submit:    "Sign in",
		AltPrompt: "Don't have an account yet?",
		AltHref:   "/sign-up",
		AltText:   "Create an account",
	}
}

func signUpPage(d pageData) authPageData {
	d.Title = "Create an account"
	return authPageData{
		pageData:  d,
		Action:    "/sign-up",
		Submit:    "Sign up",
		AltPrompt: "Already have an account?",
		AltHref:   "/sign-in",
		AltText:   "Sign in",
	}
}

// redirectIfSignedIn sends visitors with a valid session home.
func (s *Server) redirectIfSignedIn(w http.ResponseWriter, r *http.Request) bool {
	_, user, err := s.authenticate(w, r)
	if err == nil && user != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return true
	}
	return false
}

// handleSignInPage handles GET /sign-in.
func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfSignedIn(w, r) {
		return
	}
	s.render(w, r, http.StatusOK, "auth", signInPage(s.newPageData(w, r, "")))
}

// handleSignUpPage handles GET /sign-up.
func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	if s.redirectIfSignedIn(w, r) {
		return
	}
	s.render(w, r, http.StatusOK, "auth", signUpPage(s.newPageData(w, r, "")))
}

func formAuthParams(r *http.Request) models.AuthParams {
	return models.AuthParams{Username: r.PostFormValue("username"), Password: r.PostFormValue("password")}
}

// handleSignInSubmit handles POST /sign-in.
func (s *Server) handleSignInSubmit(w http.ResponseWriter, r *http.Request) {
	p := formAuthParams(r)
	_, sess, err := s.signIn(r, p)
	if err != nil {
		d := signInPage(s.newPageData(w, r, ""))
		d.Username = p.Username
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, serverdb.ErrInvalidCredentials):
			d.Error = "Incorrect username or password"
		default:
			logFor(r.Context()).Error("sign in", "err", err)
			d.Error = "Something went wrong. Please try again."
			status = http.StatusInternalServerError
		}
		s.render(w, r, status, "auth", d)
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSignUpSubmit handles POST /sign-up.
func (s *Server) handleSignUpSubmit(w http.ResponseWriter, r *http.Request) {
	p := formAuthParams(r)
	_, sess, err := s.signUp(r, p)
	if err != nil {
		d := signUpPage(s.newPageData(w, r, ""))
		d.Username = p.Username
		status := http.StatusBadRequest
		switch {
		case formErrors(err) != nil:
			d.Errors = formErrors(err)
		case errors.Is(err, serverdb.ErrUsernameTaken):
			d.Error = "Username already taken"
		case errors.Is(err, errSignupDisabled):
			d.Error = "Signups are disabled."
			status = http.StatusForbidden
		default:
			logFor(r.Context()).Error("sign up", "err", err)
			d.Error = "Something went wrong. Please try again."
			status = http.StatusInternalServerError
		}
		s.render(w, r, status, "auth", d)
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSignOutSubmit handles POST /sign-out.
func (s *Server) handleSignOutSubmit(w http.ResponseWriter, r *http.Request) {
	r, user, err := s.authenticate(w, r)
	if err == nil && user != nil {
		if err := s.store.InvalidateSession(user.SessionID); err != nil {
			logFor(r.Context()).Error("invalidate session", "err", err)
		}
		s.logAuthEvent(user.UserID, user.Username, serverdb.AuthEventSignedOut, r)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
}

// --- Home ---

// handleHomePage handles GET /.
func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	authors, err := s.store.ListAuthors(uid)
	if err != nil {
		writePageError(w, r, "list authors", err)
		return
	}
	books, err := s.store.ListBooks(uid)
	if err != nil {
		writePageError(w, r, "list books", err)
		return
	}
	s.render(w, r, http.StatusOK, "home", homePageData{
		pageData:    s.newPageData(w, r, "Home"),
		AuthorCount: len(authors),
		BookCount:   len(books),
	})
}

// --- Authors ---

func (s *Server) renderAuthors(w http.ResponseWriter, r *http.Request, status int, form models.NewAuthorParams, fe models.FieldErrors) {
	authors, err := s.store.ListAuthors(currentUserID(r))
	if err != nil {
		writePageError(w, r, "list authors", err)
		return
	}
	d := authorsPageData{pageData: s.newPageData(w, r, "Authors"), Authors: authors, Form: form}
	d.Errors = fe
	s.render(w, r, status, "authors", d)
}

// handleAuthorsPage handles GET /authors.
func (s *Server) handleAuthorsPage(w http.ResponseWriter, r *http.Request) {
	s.renderAuthors(w, r, http.StatusOK, models.NewAuthorParams{}, nil)
}

// handleAuthorCreateSubmit handles POST /authors.
func (s *Server) handleAuthorCreateSubmit(w http.ResponseWriter, r *http.Request) {
	p := models.NewAuthorParams{Name: r.PostFormValue("name"), Location: r.PostFormValue("location")}
	if _, err := s.store.CreateAuthor(currentUserID(r), p); err != nil {
		if fe := formErrors(err); fe != nil {
			s.renderAuthors(w, r, http.StatusBadRequest, p, fe)
			return
		}
		writePageError(w, r, "create author", err)
		return
	}
	s.publish(r, TopicAuthors)
	redirectWithFlash(w, r, "/authors", "Author created!")
}

// handleAuthorPage handles GET /authors/{id}.
func (s *Server) handleAuthorPage(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	a, err := s.store.GetAuthor(uid, r.PathValue("id"))
	if err != nil {
		writePageError(w, r, "get author", err)
		return
	}
	all, err := s.store.ListBooks(uid)
	if err != nil {
		writePageError(w, r, "list books", err)
		return
	}
	var books []models.CompleteBook
	for _, b := range all {
		if b.AuthorID == a.ID {
			books = append(books, b)
		}
	}
	s.render(w, r, http.StatusOK, "author", authorPageData{pageData: s.newPageData(w, r, a.Name), Author: a, Books: books})
}

// handleAuthorEditPage handles GET /authors/{id}/edit.
func (s *Server) handleAuthorEditPage(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAuthor(currentUserID(r), r.PathValue("id"))
	if err != nil {
		writePageError(w, r, "get author", err)
		return
	}
	s.render(w, r, http.StatusOK, "author_edit", authorPageData{
		pageData: s.newPageData(w, r, "Edit "+a.Name),
		Author:   a,
		Form:     models.UpdateAuthorParams{ID: a.ID, Name: a.Name, Location: a.Location},
	})
}

// handleAuthorUpdateSubmit handles POST /authors/{id}.
func (s *Server) handleAuthorUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	uid := currentUserID(r)
	p := models.UpdateAuthorParams{ID: r.PathValue("id"), Name: r.PostFormValue("name"), Location: r.PostFormValue("location")}
	a, err := s.store.UpdateAuthor(uid, p)
	if err != nil {
		if fe := formErrors(err); fe != nil {
			current, gerr := s.store.GetAuthor(uid, p.ID)
			if gerr != nil {
				writePageError(w, r, "get author", gerr)
				return
			}
			d := authorPageData{pageData: s.newPageData(w, r, "Edit "+current.Name), Author: current, Form: p}
			d.Errors = fe
			s.render(w, r, http.StatusBadRequest, "author_edit", d)
			return
		}
		writePageError(w, r, "update author", err)
		return
	}
	s.publishAuthorChange(r)
	redirectWithFlash(w, r, "/authors/"+url.PathEscape(a.ID), "Author updated!")
}

// handleAuthorDeleteSubmit handles POST /authors/{id}/delete.
func (s *Server) handleAuthorDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.DeleteAuthor(currentUserID(r), r.PathValue("id")); err != nil {
		writePageError(w, r, "delete author", err)
		return
	}
	s.publishAuthorChange(r)
	redirectWithFlash(w, r, "/authors", "Author deleted!")
}

// --- Books ---

func (s *Server) renderBooks(w http.ResponseWriter, r *http.Request, status int, editID string, form models.UpdateBookParams, fe models.FieldErrors) {
	uid := currentUserID(r)
	books, err := s.store.ListBooks(uid)
	if err != nil {
		writePageError(w, r, "list books", err)
		return
	}
	authors, err := s.store.ListAuthors(uid)
	if err != nil {
		writePageError(w, r, "list authors", err)
		return
	}
	if editID != "" && form.ID == "" {
		for _, b := range books {
			if b.ID == editID {
				form = models.UpdateBookParams{ID: b.ID, Title: b.Title, AuthorID: b.AuthorID}
			}
		}
	}
	d := booksPageData{pageData: s.newPageData(w, r, "Books"), Books: books, Authors: authors, EditID: editID, Form: form}
	d.Errors = fe
	s.render(w, r, status, "books", d)
}

// handleBooksPage handles GET /books. ?edit=<id> opens the inline editor.
func (s *Server) handleBooksPage(w http.ResponseWriter, r *http.Request) {
	s.renderBooks(w, r, http.StatusOK, strings.TrimSpace(r.URL.Query().Get("edit")), models.UpdateBookParams{}, nil)
}

// handleBookCreateSubmit handles POST /books.
func (s *Server) handleBookCreateSubmit(w http.ResponseWriter, r *http.Request) {
	p := models.NewBookParams{Title: r.PostFormValue("title"), AuthorID: r.PostFormValue("authorId")}
	if _, err := s.store.CreateBook(currentUserID(r), p); err != nil {
		if fe := formErrors(err); fe != nil {
			s.renderBooks(w, r, http.StatusBadRequest, "", models.UpdateBookParams{Title: p.Title, AuthorID: p.AuthorID}, fe)
			return
		}
		writePageError(w, r, "create book", err)
		return
	}
	s.publish(r, TopicBooks)
	redirectWithFlash(w, r, "/books", "Book created!")
}

// handleBookUpdateSubmit handles POST /books/{id}.
func (s *Server) handleBookUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	p := models.UpdateBookParams{ID: r.PathValue("id"), Title: r.PostFormValue("title"), AuthorID: r.PostFormValue("authorId")}
	if _, err := s.store.UpdateBook(currentUserID(r), p); err != nil {
		if fe := formErrors(err); fe != nil {
			s.renderBooks(w, r, http.StatusBadRequest, p.ID, p, fe)
			return
		}
		writePageError(w, r, "update book", err)
		return
	}
	s.publish(r, TopicBooks)
	redirectWithFlash(w, r, "/books", "Book updated!")
}

// handleBookDeleteSubmit handles POST /books/{id}/delete.
func (s *Server) handleBookDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.DeleteBook(currentUserID(r), r.PathValue("id")); err != nil {
		writePageError(w, r, "delete book", err)
		return
	}
	s.publish(r, TopicBooks)
	redirectWithFlash(w, r, "/books", "Book deleted!")
}
