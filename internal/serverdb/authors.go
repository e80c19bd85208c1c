package serverdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/shelf/internal/models"
)

// CreateAuthor inserts an author owned by userID and returns it with its new id.
func (db *ServerDB) CreateAuthor(userID string, p models.NewAuthorParams) (*models.Author, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	a := p.Author(userID)
	a.ID = uuid.NewString()
	now := time.Now().UTC()

	_, err := db.conn.Exec(
		`INSERT INTO authors (id, name, location, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Location, a.UserID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert author: %w", err)
	}
	return &a, nil
}

// ListAuthors returns the user's authors in insertion order.
func (db *ServerDB) ListAuthors(userID string) ([]models.Author, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, location, user_id FROM authors WHERE user_id = ? ORDER BY rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	authors := []models.Author{}
	for rows.Next() {
		var a models.Author
		if err := rows.Scan(&a.ID, &a.Name, &a.Location, &a.UserID); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list authors: iterate: %w", err)
	}
	return authors, nil
}

// GetAuthor returns the user's author with the given id, or ErrNotFound.
func (db *ServerDB) GetAuthor(userID, id string) (*models.Author, error) {
	var a models.Author
	err := db.conn.QueryRow(
		`SELECT id, name, location, user_id FROM authors WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&a.ID, &a.Name, &a.Location, &a.UserID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("author %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	return &a, nil
}

// UpdateAuthor replaces the name and location of the user's author.
func (db *ServerDB) UpdateAuthor(userID string, p models.UpdateAuthorParams) (*models.Author, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.Trimmed()

	res, err := db.conn.Exec(
		`UPDATE authors SET name = ?, location = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		p.Name, p.Location, time.Now().UTC(), p.ID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("author %s: %w", p.ID, ErrNotFound)
	}
	return db.GetAuthor(userID, p.ID)
}

// DeleteAuthor removes the user's author (and its books) and returns the deleted row.
func (db *ServerDB) DeleteAuthor(userID, id string) (*models.Author, error) {
	a, err := db.GetAuthor(userID, id)
	if err != nil {
		return nil, err
	}
	if _, err := db.conn.Exec(`DELETE FROM authors WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, fmt.Errorf("delete author: %w", err)
	}
	return a, nil
}
