package shelfclient

import (
	"context"
	"net/url"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/optimistic"
)

// Transports select how list backends reach the server.
const (
	TransportREST = "rest"
	TransportRPC  = "rpc"
)

var (
	_ optimistic.Backend[models.Author]       = AuthorsREST{}
	_ optimistic.Backend[models.Author]       = AuthorsRPC{}
	_ optimistic.Backend[models.CompleteBook] = BooksREST{}
	_ optimistic.Backend[models.CompleteBook] = BooksRPC{}
)

// Authors returns the author backend for transport. Unknown transports use REST.
func (c *Client) Authors(transport string) optimistic.Backend[models.Author] {
	if transport == TransportRPC {
		return AuthorsRPC{c}
	}
	return AuthorsREST{c}
}

// Books returns the book backend for transport. Unknown transports use REST.
func (c *Client) Books(transport string) optimistic.Backend[models.CompleteBook] {
	if transport == TransportRPC {
		return BooksRPC{c}
	}
	return BooksREST{c}
}

func byID(path, id string) string {
	return path + "?id=" + url.QueryEscape(id)
}

// --- REST ---

// AuthorsREST reaches /api/authors.
type AuthorsREST struct{ C *Client }

func (b AuthorsREST) List(ctx context.Context) ([]models.Author, error) {
	var out []models.Author
	err := b.C.do(ctx, "GET", "/api/authors", nil, &out)
	return out, err
}

func (b AuthorsREST) Create(ctx context.Context, a models.Author) (models.Author, error) {
	var out models.Author
	err := b.C.do(ctx, "POST", "/api/authors", models.NewAuthorParams{Name: a.Name, Location: a.Location}, &out)
	return out, err
}

func (b AuthorsREST) Update(ctx context.Context, id string, a models.Author) (models.Author, error) {
	var out models.Author
	err := b.C.do(ctx, "PUT", byID("/api/authors", id), models.UpdateAuthorParams{ID: id, Name: a.Name, Location: a.Location}, &out)
	return out, err
}

func (b AuthorsREST) Delete(ctx context.Context, id string) (models.Author, error) {
	var out models.Author
	err := b.C.do(ctx, "DELETE", byID("/api/authors", id), nil, &out)
	return out, err
}

// BooksREST reaches /api/books.
type BooksREST struct{ C *Client }

func (b BooksREST) List(ctx context.Context) ([]models.CompleteBook, error) {
	var out []models.CompleteBook
	err := b.C.do(ctx, "GET", "/api/books", nil, &out)
	return out, err
}

func (b BooksREST) Create(ctx context.Context, book models.CompleteBook) (models.CompleteBook, error) {
	var out models.CompleteBook
	err := b.C.do(ctx, "POST", "/api/books", models.NewBookParams{Title: book.Title, AuthorID: book.AuthorID}, &out)
	return out, err
}

func (b BooksREST) Update(ctx context.Context, id string, book models.CompleteBook) (models.CompleteBook, error) {
	var out models.CompleteBook
	err := b.C.do(ctx, "PUT", byID("/api/books", id), models.UpdateBookParams{ID: id, Title: book.Title, AuthorID: book.AuthorID}, &out)
	return out, err
}

func (b BooksREST) Delete(ctx context.Context, id string) (models.CompleteBook, error) {
	var out models.CompleteBook
	err := b.C.do(ctx, "DELETE", byID("/api/books", id), nil, &out)
	return out, err
}

// --- RPC ---

type idInput struct {
	ID string `json:"id"`
}

// AuthorsRPC reaches the authors.* procedures.
type AuthorsRPC struct{ C *Client }

func (b AuthorsRPC) List(ctx context.Context) ([]models.Author, error) {
	var out []models.Author
	err := b.C.call(ctx, "authors.getAuthors", nil, &out)
	return out, err
}

// Get returns one author.
func (b AuthorsRPC) Get(ctx context.Context, id string) (models.Author, error) {
	var out models.Author
	err := b.C.call(ctx, "authors.getAuthorById", idInput{id}, &out)
	return out, err
}

func (b AuthorsRPC) Create(ctx context.Context, a models.Author) (models.Author, error) {
	var out models.Author
	err := b.C.call(ctx, "authors.createAuthor", models.NewAuthorParams{Name: a.Name, Location: a.Location}, &out)
	return out, err
}

func (b AuthorsRPC) Update(ctx context.Context, id string, a models.Author) (models.Author, error) {
	var out models.Author
	err := b.C.call(ctx, "authors.updateAuthor", models.UpdateAuthorParams{ID: id, Name: a.Name, Location: a.Location}, &out)
	return out, err
}

func (b AuthorsRPC) Delete(ctx context.Context, id string) (models.Author, error) {
	var out models.Author
	err := b.C.call(ctx, "authors.deleteAuthor", idInput{id}, &out)
	return out, err
}

// BooksRPC reaches the books.* procedures.
type BooksRPC struct{ C *Client }

func (b BooksRPC) List(ctx context.Context) ([]models.CompleteBook, error) {
	var out []models.CompleteBook
	err := b.C.call(ctx, "books.getBooks", nil, &out)
	return out, err
}

// Get returns one book with its author.
func (b BooksRPC) Get(ctx context.Context, id string) (models.CompleteBook, error) {
	var out models.CompleteBook
	err := b.C.call(ctx, "books.getBookById", idInput{id}, &out)
	return out, err
}

func (b BooksRPC) Create(ctx context.Context, book models.CompleteBook) (models.CompleteBook, error) {
	var out models.CompleteBook
	err := b.C.call(ctx, "books.createBook", models.NewBookParams{Title: book.Title, AuthorID: book.AuthorID}, &out)
	return out, err
}

func (b BooksRPC) Update(ctx context.Context, id string, book models.CompleteBook) (models.CompleteBook, error) {
	var out models.CompleteBook
	err := b.C.call(ctx, "books.updateBook", models.UpdateBookParams{ID: id, Title: book.Title, AuthorID: book.AuthorID}, &out)
	return out, err
}

func (b BooksRPC) Delete(ctx context.Context, id string) (models.CompleteBook, error) {
	var out models.CompleteBook
	err := b.C.call(ctx, "books.deleteBook", idInput{id}, &out)
	return out, err
}
