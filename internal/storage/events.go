package storage

import (
	"fmt"
)

// Event types recorded against a session.
const (
	EventTypeMove       = "move"
	EventTypeState      = "state"
	EventTypeSolved     = "solved"
	EventTypeDisconnect = "disconnect"
)

// Event is one telemetry record in the database. Move fields are set for
// move events, facelets and solved for state events.
type Event struct {
	EventID   int64
	SessionID string
	TsMs      int64
	EventType string
	Move      *string
	Serial    *int64
	Facelets  *string
	Solved    *bool
}

// EventRepository provides CRUD operations for events.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// RecordMove stores a face turn.
func (r *EventRepository) RecordMove(sessionID string, tsMs int64, move string, serial int64) (int64, error) {
	return r.insert(Event{
		SessionID: sessionID,
		TsMs:      tsMs,
		EventType: EventTypeMove,
		Move:      &move,
		Serial:    &serial,
	})
}

// RecordState stores a decoded full cube state.
func (r *EventRepository) RecordState(sessionID string, tsMs int64, facelets string, solved bool) (int64, error) {
	return r.insert(Event{
		SessionID: sessionID,
		TsMs:      tsMs,
		EventType: EventTypeState,
		Facelets:  &facelets,
		Solved:    &solved,
	})
}

// RecordMarker stores a bare marker event such as solved or disconnect.
func (r *EventRepository) RecordMarker(sessionID string, tsMs int64, eventType string) (int64, error) {
	return r.insert(Event{SessionID: sessionID, TsMs: tsMs, EventType: eventType})
}

func (r *EventRepository) insert(e Event) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO events (session_id, ts_ms, event_type, move, serial, facelets, solved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.TsMs, e.EventType, e.Move, e.Serial, e.Facelets, e.Solved)
	if err != nil {
		return 0, fmt.Errorf("failed to create event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event ID: %w", err)
	}
	return id, nil
}

// GetBySession retrieves all events for a session in time order.
func (r *EventRepository) GetBySession(sessionID string) ([]Event, error) {
	rows, err := r.db.Query(`
		SELECT event_id, session_id, ts_ms, event_type, move, serial, facelets, solved
		FROM events
		WHERE session_id = ?
		ORDER BY ts_ms, event_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		err := rows.Scan(&e.EventID, &e.SessionID, &e.TsMs, &e.EventType, &e.Move, &e.Serial, &e.Facelets, &e.Solved)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of events for a session.
func (r *EventRepository) Count(sessionID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM events WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
