package serverdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/shelf/internal/models"
)

const bookSelect = `
	SELECT b.id, b.title, b.author_id, b.user_id,
	       a.id, a.name, a.location, a.user_id
	FROM books b
	LEFT JOIN authors a ON a.id = b.author_id`

func scanBook(row interface{ Scan(...any) error }) (models.CompleteBook, error) {
	var b models.CompleteBook
	var aID, aName, aLoc, aUser sql.NullString
	if err := row.Scan(&b.ID, &b.Title, &b.AuthorID, &b.UserID, &aID, &aName, &aLoc, &aUser); err != nil {
		return b, err
	}
	if aID.Valid {
		b.Author = &models.Author{ID: aID.String, Name: aName.String, Location: aLoc.String, UserID: aUser.String}
	}
	return b, nil
}

// CreateBook inserts a book owned by userID. The author must belong to the
// same user.
func (db *ServerDB) CreateBook(userID string, p models.NewBookParams) (*models.CompleteBook, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, err := db.GetAuthor(userID, p.AuthorID); err != nil {
		return nil, err
	}

	b := p.Book(userID)
	b.ID = uuid.NewString()
	now := time.Now().UTC()

	_, err := db.conn.Exec(
		`INSERT INTO books (id, title, author_id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.AuthorID, b.UserID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return db.GetBook(userID, b.ID)
}

// ListBooks returns the user's books, with authors joined, in insertion order.
func (db *ServerDB) ListBooks(userID string) ([]models.CompleteBook, error) {
	rows, err := db.conn.Query(bookSelect+` WHERE b.user_id = ? ORDER BY b.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []models.CompleteBook{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: iterate: %w", err)
	}
	return books, nil
}

// GetBook returns the user's book with the given id, or ErrNotFound.
func (db *ServerDB) GetBook(userID, id string) (*models.CompleteBook, error) {
	b, err := scanBook(db.conn.QueryRow(bookSelect+` WHERE b.id = ? AND b.user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// UpdateBook replaces the title and author of the user's book.
func (db *ServerDB) UpdateBook(userID string, p models.UpdateBookParams) (*models.CompleteBook, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.Trimmed()
	if _, err := db.GetAuthor(userID, p.AuthorID); err != nil {
		return nil, err
	}

	res, err := db.conn.Exec(
		`UPDATE books SET title = ?, author_id = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		p.Title, p.AuthorID, time.Now().UTC(), p.ID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("book %s: %w", p.ID, ErrNotFound)
	}
	return db.GetBook(userID, p.ID)
}

// DeleteBook removes the user's book and returns the deleted row.
func (db *ServerDB) DeleteBook(userID, id string) (*models.CompleteBook, error) {
	b, err := db.GetBook(userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := db.conn.Exec(`DELETE FROM books WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}
	return b, nil
}
