package serverdb

import (
	"database/sql"
	"fmt"
	"time"
)

// Default session lifetimes. A session is active for SessionActiveTTL; after
// that it may still be used (and is renewed) until the idle period ends.
const (
	SessionActiveTTL = 24 * time.Hour
	SessionIdleTTL   = 14 * 24 * time.Hour
)

// SessionTTL configures session lifetimes.
type SessionTTL struct {
	Active time.Duration
	Idle   time.Duration
}

// DefaultSessionTTL returns the default lifetimes.
func DefaultSessionTTL() SessionTTL {
	return SessionTTL{Active: SessionActiveTTL, Idle: SessionIdleTTL}
}

func (t SessionTTL) orDefault() SessionTTL {
	if t.Active <= 0 {
		t.Active = SessionActiveTTL
	}
	if t.Idle <= 0 {
		t.Idle = SessionIdleTTL
	}
	return t
}

// Session is a signed-in browser or CLI.
type Session struct {
	ID            string
	UserID        string
	ActiveExpires time.Time
	IdleExpires   time.Time
	CreatedAt     time.Time
	// Fresh is set when the session was created or renewed by this call.
	Fresh bool
}

// CreateSession opens a new session for userID.
func (db *ServerDB) CreateSession(userID string, ttl SessionTTL) (*Session, error) {
	ttl = ttl.orDefault()

	id, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now().UTC()
	s := &Session{
		ID:            id,
		UserID:        userID,
		ActiveExpires: now.Add(ttl.Active),
		IdleExpires:   now.Add(ttl.Active + ttl.Idle),
		CreatedAt:     now,
		Fresh:         true,
	}

	_, err = db.conn.Exec(
		`INSERT INTO user_sessions (id, user_id, active_expires, idle_expires, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.ActiveExpires, s.IdleExpires, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// ValidateSession returns the session and its user, or nils when the
// session is unknown or past its idle expiry. Sessions in their idle period
// are renewed and returned with Fresh set.
func (db *ServerDB) ValidateSession(id string, ttl SessionTTL) (*Session, *User, error) {
	if id == "" {
		return nil, nil, nil
	}
	ttl = ttl.orDefault()

	s := &Session{}
	u := &User{}
	err := db.conn.QueryRow(`
		SELECT s.id, s.user_id, s.active_expires, s.idle_expires, s.created_at,
		       u.id, u.username, COALESCE(u.name, ''), COALESCE(u.email, ''), u.created_at, u.updated_at
		FROM user_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?
	`, id).Scan(
		&s.ID, &s.UserID, &s.ActiveExpires, &s.IdleExpires, &s.CreatedAt,
		&u.ID, &u.Username, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	now := time.Now().UTC()
	if !now.Before(s.IdleExpires) {
		if err := db.InvalidateSession(id); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}

	if !now.Before(s.ActiveExpires) {
		s.ActiveExpires = now.Add(ttl.Active)
		s.IdleExpires = now.Add(ttl.Active + ttl.Idle)
		s.Fresh = true
		if _, err := db.conn.Exec(
			`UPDATE user_sessions SET active_expires = ?, idle_expires = ? WHERE id = ?`,
			s.ActiveExpires, s.IdleExpires, s.ID,
		); err != nil {
			return nil, nil, fmt.Errorf("renew session: %w", err)
		}
	}

	return s, u, nil
}

// InvalidateSession deletes a session. Unknown ids are not an error.
func (db *ServerDB) InvalidateSession(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM user_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// InvalidateUserSessions deletes every session belonging to userID.
func (db *ServerDB) InvalidateUserSessions(userID string) (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM user_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CleanupExpiredSessions deletes sessions past their idle expiry.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupExpiredSessions() (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM user_sessions WHERE idle_expires <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
