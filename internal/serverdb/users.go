package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/shelf/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// ProviderUsername is the key provider for username/password credentials.
const ProviderUsername = "username"

// User represents a registered user.
type User struct {
	ID        string
	Username  string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Model converts the row to the shared domain type.
func (u *User) Model() models.User {
	return models.User{ID: u.ID, Username: u.Username, Name: u.Name, Email: u.Email}
}

func keyID(provider, providerUserID string) string {
	return provider + ":" + providerUserID
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CreateUserWithPassword inserts a user and its username credential in a
// single transaction. Usernames are stored lowercased.
func (db *ServerDB) CreateUserWithPassword(username, password string) (*User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	existing, err := db.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := generateID("u_")
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO users (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, username, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO user_keys (id, user_id, hashed_password, created_at) VALUES (?, ?, ?, ?)`,
		keyID(ProviderUsername, username), id, string(hash), now,
	); err != nil {
		return nil, fmt.Errorf("insert user key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &User{ID: id, Username: username, CreatedAt: now, UpdatedAt: now}, nil
}

// VerifyPassword checks a username/password pair and returns the user.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (db *ServerDB) VerifyPassword(username, password string) (*User, error) {
	username = normalizeUsername(username)

	var userID string
	var hash sql.NullString
	err := db.conn.QueryRow(
		`SELECT user_id, hashed_password FROM user_keys WHERE id = ?`,
		keyID(ProviderUsername, username),
	).Scan(&userID, &hash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user key: %w", err)
	}
	if !hash.Valid {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	u, err := db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

const userColumns = `id, username, COALESCE(name, ''), COALESCE(email, ''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByID returns the user with the given ID, or nil if not found.
func (db *ServerDB) GetUserByID(id string) (*User, error) {
	u, err := scanUser(db.conn.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the user with the given username (case-insensitive), or nil if not found.
func (db *ServerDB) GetUserByUsername(username string) (*User, error) {
	u, err := scanUser(db.conn.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, normalizeUsername(username)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// UpdateProfile sets the optional display name and email.
func (db *ServerDB) UpdateProfile(userID, name, email string) error {
	res, err := db.conn.Exec(
		`UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?`,
		nullIfEmpty(name), nullIfEmpty(strings.ToLower(strings.TrimSpace(email))), time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
