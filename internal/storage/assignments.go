package storage

import (
	"database/sql"
	"errors"
	"time"
)

// SaveAssignment stores a session's engine assignment, replacing any earlier one.
func (s *SQLiteStorage) SaveAssignment(a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return nil
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO ab_assignments (session_id, engine, strategy, created_at)
		VALUES (?, ?, ?, ?)
	`, a.SessionID, a.Engine, a.Strategy, formatTime(a.CreatedAt))
	if err != nil {
		s.log.Warn("failed to save assignment", "session", a.SessionID, "error", err)
	}

	return nil
}

// GetAssignment returns the assignment of sessionID, if one exists.
func (s *SQLiteStorage) GetAssignment(sessionID string) (Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return Assignment{}, false, nil
	}

	var a Assignment
	var created string
	err := s.db.QueryRow(`
		SELECT session_id, engine, strategy, created_at
		FROM ab_assignments
		WHERE session_id = ?
	`, sessionID).Scan(&a.SessionID, &a.Engine, &a.Strategy, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, false, nil
	}
	if err != nil {
		return Assignment{}, false, err
	}

	if a.CreatedAt, err = parseTime(created); err != nil {
		return Assignment{}, false, err
	}
	return a, true, nil
}
