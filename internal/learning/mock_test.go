package learning

import (
	"sync"
	"time"

	"github.com/khanglvm/profile-qa/internal/storage"
)

// mockStorage is an in-memory storage.Storage for testing.
type mockStorage struct {
	mu      sync.Mutex
	history map[string][]storage.OutcomeRecord
	initErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{history: make(map[string][]storage.OutcomeRecord)}
}

func (m *mockStorage) Init() error  { return m.initErr }
func (m *mockStorage) Close() error { return nil }

func (m *mockStorage) RecordOutcome(o storage.OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[o.Engine] = append(m.history[o.Engine], o)
	return nil
}

func (m *mockStorage) OutcomeHistory(engine string, since time.Time) ([]storage.OutcomeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.OutcomeRecord
	for _, o := range m.history[engine] {
		if !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockStorage) Outcomes(since time.Time, limit int) ([]storage.OutcomeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.OutcomeRecord
	for _, h := range m.history {
		out = append(out, h...)
	}
	return out, nil
}

func (m *mockStorage) count(engine string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history[engine])
}

func (m *mockStorage) SaveAssignment(storage.Assignment) error { return nil }
func (m *mockStorage) GetAssignment(string) (storage.Assignment, bool, error) {
	return storage.Assignment{}, false, nil
}
func (m *mockStorage) SaveEmbedding(string, []float32, string) error { return nil }
func (m *mockStorage) GetEmbedding(string) ([]float32, string, error) {
	return nil, "", nil
}
func (m *mockStorage) Cleanup(time.Duration) error { return nil }
