package api

import (
	"encoding/json"
	"net/http"

	"github.com/marcus/shelf/internal/models"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return false
	}
	return true
}

// requireQueryID reads the ?id= parameter, writing a validation error when absent.
func requireQueryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		fe := models.FieldErrors{}
		fe.Add("id", "Required")
		writeAPIError(w, http.StatusBadRequest, APIError{Code: ErrCodeValidation, Message: "invalid input", Issues: fe})
		return "", false
	}
	return id, true
}

// --- Authors ---

// handleListAuthors handles GET /api/authors.
func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.store.ListAuthors(currentUserID(r))
	if err != nil {
		writeStoreError(w, r, "list authors", err)
		return
	}
	writeJSON(w, http.StatusOK, authors)
}

// handleCreateAuthor handles POST /api/authors.
func (s *Server) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var p models.NewAuthorParams
	if !decodeJSON(w, r, &p) {
		return
	}
	a, err := s.store.CreateAuthor(currentUserID(r), p)
	if err != nil {
		writeStoreError(w, r, "create author", err)
		return
	}
	s.publish(r, TopicAuthors)
	writeJSON(w, http.StatusCreated, a)
}

// handleUpdateAuthor handles PUT /api/authors?id=.
func (s *Server) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQueryID(w, r)
	if !ok {
		return
	}
	var p models.UpdateAuthorParams
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = id
	a, err := s.store.UpdateAuthor(currentUserID(r), p)
	if err != nil {
		writeStoreError(w, r, "update author", err)
		return
	}
	s.publishAuthorChange(r)
	writeJSON(w, http.StatusOK, a)
}

// handleDeleteAuthor handles DELETE /api/authors?id=.
func (s *Server) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQueryID(w, r)
	if !ok {
		return
	}
	a, err := s.store.DeleteAuthor(currentUserID(r), id)
	if err != nil {
		writeStoreError(w, r, "delete author", err)
		return
	}
	s.publishAuthorChange(r)
	writeJSON(w, http.StatusOK, a)
}

// publishAuthorChange notifies both lists: books embed the author's name
// and are removed along with their author.
func (s *Server) publishAuthorChange(r *http.Request) {
	s.publish(r, TopicAuthors)
	s.hub.Publish(currentUserID(r), TopicBooks)
}

// --- Books ---

// handleListBooks handles GET /api/books.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(currentUserID(r))
	if err != nil {
		writeStoreError(w, r, "list books", err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// handleCreateBook handles POST /api/books.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var p models.NewBookParams
	if !decodeJSON(w, r, &p) {
		return
	}
	b, err := s.store.CreateBook(currentUserID(r), p)
	if err != nil {
		writeStoreError(w, r, "create book", err)
		return
	}
	s.publish(r, TopicBooks)
	writeJSON(w, http.StatusCreated, b)
}

// handleUpdateBook handles PUT /api/books?id=.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQueryID(w, r)
	if !ok {
		return
	}
	var p models.UpdateBookParams
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = id
	b, err := s.store.UpdateBook(currentUserID(r), p)
	if err != nil {
		writeStoreError(w, r, "update book", err)
		return
	}
	s.publish(r, TopicBooks)
	writeJSON(w, http.StatusOK, b)
}

// handleDeleteBook handles DELETE /api/books?id=.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQueryID(w, r)
	if !ok {
		return
	}
	b, err := s.store.DeleteBook(currentUserID(r), id)
	if err != nil {
		writeStoreError(w, r, "delete book", err)
		return
	}
	s.publish(r, TopicBooks)
	writeJSON(w, http.StatusOK, b)
}
