/*
Package storage persists engine query outcomes, A/B assignments and cached
entry vectors for cross-session engine comparison.

The database lives at ~/.profile-qa/history.db by default and uses
modernc.org/sqlite (a pure Go, CGo-free implementation). When the database
cannot be opened the storage disables itself and every operation becomes a
no-op, so the query pipeline never fails because of persistence.
*/
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/khanglvm/profile-qa/internal/logging"
)

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// Init opens the database and runs migrations.
	Init() error

	// RecordOutcome stores one engine round-trip outcome.
	RecordOutcome(o OutcomeRecord) error

	// OutcomeHistory returns outcomes for an engine since a given time, newest first.
	OutcomeHistory(engine string, since time.Time) ([]OutcomeRecord, error)

	// Outcomes returns outcomes of every engine since a given time, newest first.
	// A limit <= 0 means no limit.
	Outcomes(since time.Time, limit int) ([]OutcomeRecord, error)

	// SaveAssignment stores a session's A/B engine assignment.
	SaveAssignment(a Assignment) error

	// GetAssignment returns the assignment of a session, if one exists.
	GetAssignment(sessionID string) (Assignment, bool, error)

	// SaveEmbedding caches an entry vector.
	SaveEmbedding(key string, vector []float32, version string) error

	// GetEmbedding retrieves a cached entry vector.
	GetEmbedding(key string) ([]float32, string, error)

	// Cleanup removes records older than retention.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	log      logging.Logger
	mu       sync.Mutex
	initOnce sync.Once
	entropy  *rand.Rand
}

// DefaultPath returns ~/.profile-qa/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".profile-qa", "history.db"), nil
}

// NewStorage creates a SQLite storage at path. An empty path means DefaultPath.
//
// If the directory doesn't exist, Init creates it.
// If no path can be resolved, the storage is disabled but operations do not fail.
func NewStorage(path string, logger logging.Logger) *SQLiteStorage {
	log := logging.OrDefault(logger).With("component", "storage")
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			log.Warn("storage disabled", "error", err)
			return &SQLiteStorage{enabled: false, log: log}
		}
		path = p
	}

	return &SQLiteStorage{
		dbPath:  path,
		enabled: true,
		log:     log,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.dbPath }

// Enabled reports whether the storage is operational.
func (s *SQLiteStorage) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.db != nil
}

// Init opens the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		fail := func(err error) {
			initErr = err
			s.enabled = false
			if s.db != nil {
				_ = s.db.Close()
				s.db = nil
			}
			s.log.Warn("storage disabled", "error", err)
		}

		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
			fail(fmt.Errorf("failed to create db directory: %w", err))
			return
		}

		db, err := sql.Open("sqlite", s.dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
		if err != nil {
			fail(fmt.Errorf("failed to open database: %w", err))
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			fail(fmt.Errorf("failed to ping database: %w", err))
			return
		}

		if err := s.runMigrations(); err != nil {
			fail(fmt.Errorf("failed to run migrations: %w", err))
			return
		}
	})

	return initErr
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// ready reports whether queries may run. Callers hold s.mu.
func (s *SQLiteStorage) ready() bool {
	return s.enabled && s.db != nil
}

// newID returns a time-sortable record id. Callers hold s.mu.
func (s *SQLiteStorage) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// HashQuery creates a SHA256 hash of a query string for privacy.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:])
}
