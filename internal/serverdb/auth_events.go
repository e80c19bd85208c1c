package serverdb

import (
	"fmt"
	"strings"
	"time"
)

// AuthEvent represents a row in the auth_events table.
type AuthEvent struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	EventType string    `json:"event_type"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Auth event type constants.
const (
	AuthEventSignedUp     = "signed_up"
	AuthEventSignedIn     = "signed_in"
	AuthEventSignInFailed = "sign_in_failed"
	AuthEventSignedOut    = "signed_out"
)

// InsertAuthEvent inserts an auth event row.
func (db *ServerDB) InsertAuthEvent(userID, username, eventType, metadata string) error {
	if metadata == "" {
		metadata = "{}"
	}
	_, err := db.conn.Exec(
		`INSERT INTO auth_events (user_id, username, event_type, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, normalizeUsername(username), eventType, metadata, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// ListAuthEvents returns the newest events first, optionally filtered by
// event type and username. limit <= 0 means 100.
func (db *ServerDB) ListAuthEvents(eventType, username string, limit int) ([]AuthEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, user_id, username, event_type, metadata, created_at FROM auth_events`
	var conditions []string
	var args []any
	if eventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, eventType)
	}
	if username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, normalizeUsername(username))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	defer rows.Close()

	var events []AuthEvent
	for rows.Next() {
		var e AuthEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.EventType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auth events: iterate: %w", err)
	}
	return events, nil
}

// CleanupAuthEvents deletes auth events older than the given duration.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupAuthEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := db.conn.Exec(`DELETE FROM auth_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup auth events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
