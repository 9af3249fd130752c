package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session represents one application run. The baseline strategies active for
// the run are recorded so event streams can be interpreted later.
type Session struct {
	ID               string
	StartedAt        time.Time
	EndedAt          *time.Time
	SteeringStrategy string
	VolumeStrategy   string
}

// SessionEvent is one recorded event within a session.
type SessionEvent struct {
	ID         int64
	SessionID  string
	Type       string
	Payload    string
	RecordedAt time.Time
}

// SessionRepository provides persistence for sessions and their event streams.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Begin creates a new session starting now and returns it.
func (r *SessionRepository) Begin(steeringStrategy, volumeStrategy string) (*Session, error) {
	s := &Session{
		ID:               uuid.New().String(),
		StartedAt:        time.Now(),
		SteeringStrategy: steeringStrategy,
		VolumeStrategy:   volumeStrategy,
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at, steering_strategy, volume_strategy)
		 VALUES (?, ?, ?, ?)`,
		s.ID, s.StartedAt, s.SteeringStrategy, s.VolumeStrategy,
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// End marks the session as finished.
func (r *SessionRepository) End(id string) error {
	res, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s := &Session{}
	var endedAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, started_at, ended_at, steering_strategy, volume_strategy
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.StartedAt, &endedAt, &s.SteeringStrategy, &s.VolumeStrategy)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	return s, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, started_at, ended_at, steering_strategy, volume_strategy
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		var endedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.StartedAt, &endedAt, &s.SteeringStrategy, &s.VolumeStrategy); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			s.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// RecordEvent appends one event to the session's stream.
func (r *SessionRepository) RecordEvent(sessionID, eventType, payload string) error {
	if payload == "" {
		payload = "{}"
	}

	_, err := r.db.Exec(
		`INSERT INTO session_events (session_id, type, payload, recorded_at)
		 VALUES (?, ?, ?, ?)`,
		sessionID, eventType, payload, time.Now(),
	)
	return err
}

// Events retrieves the recorded event stream of a session in order.
func (r *SessionRepository) Events(sessionID string) ([]*SessionEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, type, payload, recorded_at
		 FROM session_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*SessionEvent
	for rows.Next() {
		e := &SessionEvent{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &e.Payload, &e.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
