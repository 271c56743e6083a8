package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Session is one connection to a cube, from ready to disconnect.
type Session struct {
	SessionID   string
	DeviceAddr  string
	StartedAtMs int64
	EndedAtMs   *int64
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create starts a new session record and returns its ID.
func (r *SessionRepository) Create(deviceAddr string, startedAtMs int64) (string, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(`
		INSERT INTO sessions (session_id, device_addr, started_at_ms)
		VALUES (?, ?, ?)
	`, id, deviceAddr, startedAtMs)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// End marks a session as finished.
func (r *SessionRepository) End(sessionID string, endedAtMs int64) error {
	_, err := r.db.Exec(`
		UPDATE sessions SET ended_at_ms = ? WHERE session_id = ?
	`, endedAtMs, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(sessionID string) (*Session, error) {
	var s Session
	err := r.db.QueryRow(`
		SELECT session_id, device_addr, started_at_ms, ended_at_ms
		FROM sessions WHERE session_id = ?
	`, sessionID).Scan(&s.SessionID, &s.DeviceAddr, &s.StartedAtMs, &s.EndedAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// List retrieves sessions newest first, up to limit.
func (r *SessionRepository) List(limit int) ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT session_id, device_addr, started_at_ms, ended_at_ms
		FROM sessions ORDER BY started_at_ms DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionID, &s.DeviceAddr, &s.StartedAtMs, &s.EndedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
