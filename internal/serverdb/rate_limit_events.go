package serverdb

import (
	"database/sql"
	"fmt"
	"time"
)

// RateLimitEvent represents a rate limit violation event.
type RateLimitEvent struct {
	ID            int64
	UserID        string // empty for IP-based limits (NULL in DB)
	IP            string
	EndpointClass string // auth, mutate, other
	CreatedAt     time.Time
}

// InsertRateLimitEvent inserts a rate limit violation event.
// userID may be empty for IP-based rate limiting (stored as NULL).
func (db *ServerDB) InsertRateLimitEvent(userID, ip, endpointClass string) error {
	_, err := db.conn.Exec(
		`INSERT INTO rate_limit_events (user_id, ip, endpoint_class, created_at) VALUES (?, ?, ?, ?)`,
		nullIfEmpty(userID), ip, endpointClass, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert rate limit event: %w", err)
	}
	return nil
}

// CountRateLimitEvents returns the number of events recorded for ip since the given time.
func (db *ServerDB) CountRateLimitEvents(ip string, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM rate_limit_events WHERE ip = ? AND created_at >= ?`,
		ip, since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rate limit events: %w", err)
	}
	return n, nil
}

// LatestRateLimitEvent returns the newest event, or nil when none exist.
func (db *ServerDB) LatestRateLimitEvent() (*RateLimitEvent, error) {
	var e RateLimitEvent
	var userID sql.NullString
	err := db.conn.QueryRow(
		`SELECT id, user_id, ip, endpoint_class, created_at FROM rate_limit_events ORDER BY id DESC LIMIT 1`,
	).Scan(&e.ID, &userID, &e.IP, &e.EndpointClass, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest rate limit event: %w", err)
	}
	e.UserID = userID.String
	return &e, nil
}

// CleanupRateLimitEvents deletes events older than the given duration.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupRateLimitEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := db.conn.Exec(
		`DELETE FROM rate_limit_events WHERE created_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup rate limit events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
