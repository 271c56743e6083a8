package storage

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)
	version, err := db.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionRepository(db)

	id, err := sessions.Create("CF:AA:79:C9:96:9C", 1000)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	s, err := sessions.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s == nil || s.DeviceAddr != "CF:AA:79:C9:96:9C" || s.EndedAtMs != nil {
		t.Fatalf("Get() = %+v, want open session for the device", s)
	}

	if err := sessions.End(id, 5000); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	s, err = sessions.Get(id)
	if err != nil {
		t.Fatalf("Get() after end error = %v", err)
	}
	if s.EndedAtMs == nil || *s.EndedAtMs != 5000 {
		t.Errorf("ended_at_ms = %v, want 5000", s.EndedAtMs)
	}

	list, err := sessions.List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() returned %d sessions, want 1", len(list))
	}
}

func TestEventRecording(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionRepository(db)
	events := NewEventRepository(db)

	id, err := sessions.Create("CF:AA:79:C9:96:9C", 1000)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := events.RecordMove(id, 1100, "R'", 7); err != nil {
		t.Fatalf("RecordMove() error = %v", err)
	}
	if _, err := events.RecordState(id, 1200, "UUUUUUUUURRRRRRRRRFFFFFFFFFDDDDDDDDDLLLLLLLLLBBBBBBBBB", true); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}
	if _, err := events.RecordMarker(id, 1200, EventTypeSolved); err != nil {
		t.Fatalf("RecordMarker() error = %v", err)
	}

	got, err := events.GetBySession(id)
	if err != nil {
		t.Fatalf("GetBySession() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetBySession() returned %d events, want 3", len(got))
	}
	if got[0].EventType != EventTypeMove || got[0].Move == nil || *got[0].Move != "R'" || *got[0].Serial != 7 {
		t.Errorf("move event = %+v", got[0])
	}
	if got[1].EventType != EventTypeState || got[1].Solved == nil || !*got[1].Solved {
		t.Errorf("state event = %+v", got[1])
	}
	if got[2].EventType != EventTypeSolved {
		t.Errorf("marker event = %+v", got[2])
	}

	n, err := events.Count(id)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestEventsCascadeWithSession(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionRepository(db)
	events := NewEventRepository(db)

	id, err := sessions.Create("CF:AA:79:C9:96:9C", 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := events.RecordMove(id, 10, "U", 1); err != nil {
		t.Fatalf("RecordMove() error = %v", err)
	}

	if _, err := db.Exec("DELETE FROM sessions WHERE session_id = ?", id); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	n, err := events.Count(id)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("events after session delete = %d, want 0", n)
	}
}
