package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// timeLayout sorts lexicographically when times are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// runMigrations executes database schema migrations. Callers hold s.mu.
func (s *SQLiteStorage) runMigrations() error {
	if s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: s.migration001InitialSchema},
		{version: 2, name: "entry_vectors", up: s.migration002EntryVectors},
	}

	for _, m := range migrations {
		if version < m.version {
			s.log.Debug("running migration", "version", m.version, "name", m.name)
			if err := m.up(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setMigrationVersion(m.version, m.name); err != nil {
				return err
			}
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

func (s *SQLiteStorage) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteStorage) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

func (s *SQLiteStorage) migration001InitialSchema() error {
	stmts := []struct {
		what string
		sql  string
	}{
		{"query_outcomes table", `
			CREATE TABLE IF NOT EXISTS query_outcomes (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				query_hash TEXT NOT NULL,
				engine TEXT NOT NULL,
				style TEXT NOT NULL,
				confidence REAL NOT NULL,
				latency_ms INTEGER NOT NULL,
				fallback_used INTEGER NOT NULL,
				action TEXT NOT NULL,
				ab_test INTEGER NOT NULL,
				timestamp TEXT NOT NULL
			)`},
		{"query_outcomes engine index", `
			CREATE INDEX IF NOT EXISTS idx_query_outcomes_engine
			ON query_outcomes(engine, timestamp DESC)`},
		{"query_outcomes timestamp index", `
			CREATE INDEX IF NOT EXISTS idx_query_outcomes_timestamp
			ON query_outcomes(timestamp DESC)`},
		{"ab_assignments table", `
			CREATE TABLE IF NOT EXISTS ab_assignments (
				session_id TEXT PRIMARY KEY,
				engine TEXT NOT NULL,
				strategy TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`},
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.what, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) migration002EntryVectors() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entry_vectors (
			key TEXT PRIMARY KEY,
			vector BLOB NOT NULL,
			version TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create entry_vectors table: %w", err)
	}
	return nil
}

// vectorToJSON converts a float32 vector to JSON for storage.
func vectorToJSON(vector []float32) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// jsonToVector parses JSON storage back to a float32 vector.
func jsonToVector(jsonStr string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(jsonStr), &vector); err != nil {
		return nil, err
	}
	return vector, nil
}
