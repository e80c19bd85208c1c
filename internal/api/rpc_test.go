package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/marcus/shelf/internal/models"
)

type rpcEnvelope[T any] struct {
	Result struct {
		Data T `json:"data"`
	} `json:"result"`
}

func TestRPCAuthorsRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("alice")

	created := ReadJSON[rpcEnvelope[models.Author]](t,
		h.Do("POST", "/rpc/authors.createAuthor", session, models.NewAuthorParams{Name: "Ann Leckie"}))
	id := created.Result.Data.ID
	if id == "" {
		t.Fatal("expected created author id")
	}

	got := ReadJSON[rpcEnvelope[models.Author]](t, h.Do("POST", "/rpc/authors.getAuthorById", session, IDInput{ID: id}))
	if got.Result.Data.Name != "Ann Leckie" {
		t.Fatalf("unexpected author: %+v", got.Result.Data)
	}

	updated := ReadJSON[rpcEnvelope[models.Author]](t, h.Do("POST", "/rpc/authors.updateAuthor", session,
		models.UpdateAuthorParams{ID: id, Name: "Ann Leckie", Location: "St. Louis"}))
	if updated.Result.Data.Location != "St. Louis" {
		t.Fatalf("update not applied: %+v", updated.Result.Data)
	}

	list := ReadJSON[rpcEnvelope[[]models.Author]](t, h.Do("POST", "/rpc/authors.getAuthors", session, nil))
	if len(list.Result.Data) != 1 {
		t.Fatalf("expected 1 author, got %d", len(list.Result.Data))
	}

	AssertStatus(t, h.Do("POST", "/rpc/authors.deleteAuthor", session, IDInput{ID: id}), http.StatusOK)
	AssertErrorResponse(t, h.Do("POST", "/rpc/authors.getAuthorById", session, IDInput{ID: id}),
		http.StatusNotFound, ErrCodeNotFound)
}

func TestRPCBooks(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("alice")
	a := h.CreateAuthor(session, "Iain M. Banks")

	created := ReadJSON[rpcEnvelope[models.CompleteBook]](t,
		h.Do("POST", "/rpc/books.createBook", session, models.NewBookParams{Title: "Excession", AuthorID: a.ID}))
	if created.Result.Data.AuthorName() != "Iain M. Banks" {
		t.Fatalf("expected joined author, got %+v", created.Result.Data)
	}

	list := ReadJSON[rpcEnvelope[[]models.CompleteBook]](t, h.Do("POST", "/rpc/books.getBooks", session, nil))
	if len(list.Result.Data) != 1 {
		t.Fatalf("expected 1 book, got %d", len(list.Result.Data))
	}

	AssertStatus(t, h.Do("POST", "/rpc/books.deleteBook", session, IDInput{ID: created.Result.Data.ID}), http.StatusOK)
}

func TestRPCErrors(t *testing.T) {
	h := newTestHarness(t)
	_, session := h.CreateUser("alice")

	AssertErrorResponse(t, h.Do("POST", "/rpc/authors.nope", session, nil), http.StatusNotFound, ErrCodeUnknownProcedure)
	AssertErrorResponse(t, h.Do("POST", "/rpc/authors.deleteAuthor", session, nil), http.StatusBadRequest, ErrCodeValidation)
	AssertErrorResponse(t, h.Do("POST", "/rpc/authors.createAuthor", session, json.RawMessage(`[1,2]`)),
		http.StatusBadRequest, ErrCodeBadRequest)

	e := AssertErrorResponse(t, h.Do("POST", "/rpc/books.updateBook", session, models.UpdateBookParams{Title: "ok title"}),
		http.StatusBadRequest, ErrCodeValidation)
	if e.Error.Issues.First("id") != "Required" || e.Error.Issues.First("authorId") != "Required" {
		t.Fatalf("unexpected issues: %+v", e.Error.Issues)
	}
}
