package storage

import (
	"database/sql"
	"time"
)

// RecordOutcome stores one engine round-trip outcome. A missing ID or
// timestamp is filled in.
func (s *SQLiteStorage) RecordOutcome(o OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return nil
	}

	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	if o.ID == "" {
		o.ID = s.newID(o.Timestamp)
	}
	if o.Action == "" {
		o.Action = "none"
	}

	_, err := s.db.Exec(`
		INSERT INTO query_outcomes
			(id, session_id, query_hash, engine, style, confidence, latency_ms, fallback_used, action, ab_test, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID,
		o.SessionID,
		o.QueryHash,
		o.Engine,
		o.Style,
		o.Confidence,
		o.LatencyMs,
		boolToInt(o.FallbackUsed),
		o.Action,
		boolToInt(o.ABTest),
		formatTime(o.Timestamp),
	)
	if err != nil {
		s.log.Warn("failed to record outcome", "engine", o.Engine, "error", err)
	}

	return nil
}

// OutcomeHistory returns outcomes for engine since a given time, newest first.
func (s *SQLiteStorage) OutcomeHistory(engine string, since time.Time) ([]OutcomeRecord, error) {
	return s.queryOutcomes(`
		SELECT id, session_id, query_hash, engine, style, confidence, latency_ms, fallback_used, action, ab_test, timestamp
		FROM query_outcomes
		WHERE engine = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`, engine, formatTime(since))
}

// Outcomes returns outcomes of every engine since a given time, newest first.
func (s *SQLiteStorage) Outcomes(since time.Time, limit int) ([]OutcomeRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryOutcomes(`
		SELECT id, session_id, query_hash, engine, style, confidence, latency_ms, fallback_used, action, ab_test, timestamp
		FROM query_outcomes
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, formatTime(since), limit)
}

func (s *SQLiteStorage) queryOutcomes(query string, args ...any) ([]OutcomeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return []OutcomeRecord{}, nil
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		s.log.Warn("failed to query outcomes", "error", err)
		return []OutcomeRecord{}, nil
	}
	defer rows.Close()

	outcomes := []OutcomeRecord{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			s.log.Warn("failed to scan outcome row", "error", err)
			continue
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

func scanOutcome(rows *sql.Rows) (OutcomeRecord, error) {
	var o OutcomeRecord
	var fallback, abTest int
	var ts string

	if err := rows.Scan(
		&o.ID,
		&o.SessionID,
		&o.QueryHash,
		&o.Engine,
		&o.Style,
		&o.Confidence,
		&o.LatencyMs,
		&fallback,
		&o.Action,
		&abTest,
		&ts,
	); err != nil {
		return o, err
	}

	o.FallbackUsed = fallback == 1
	o.ABTest = abTest == 1

	t, err := parseTime(ts)
	if err != nil {
		return o, err
	}
	o.Timestamp = t
	return o, nil
}

// Cleanup removes records older than retention.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return nil
	}

	cutoff := formatTime(time.Now().Add(-retention))

	if _, err := s.db.Exec("DELETE FROM query_outcomes WHERE timestamp < ?", cutoff); err != nil {
		s.log.Warn("failed to clean up query_outcomes", "error", err)
	}
	if _, err := s.db.Exec("DELETE FROM ab_assignments WHERE created_at < ?", cutoff); err != nil {
		s.log.Warn("failed to clean up ab_assignments", "error", err)
	}

	// Vacuum to reclaim space
	if _, err := s.db.Exec("VACUUM"); err != nil {
		s.log.Warn("failed to vacuum database", "error", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
