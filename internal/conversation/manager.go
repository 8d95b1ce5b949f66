package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/profile-qa/internal/knowledge"
)

const (
	// DefaultMaxTurns caps the stored history.
	DefaultMaxTurns = 25
	// DefaultWindow is the number of recent turns returned by Context.
	DefaultWindow = 5
)

// Stats summarizes a session's history.
type Stats struct {
	SessionID         string   `json:"session_id"`
	Turns             int      `json:"turns"`
	AverageConfidence float64  `json:"average_confidence"`
	Topics            []string `json:"topics"`
}

// Manager is the history of a single session. It is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	turns     []Turn
	maxTurns  int
	window    int
	sessionID string
	now       func() time.Time
}

// NewManager creates a Manager. Non-positive values select the defaults.
func NewManager(maxTurns, window int) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		maxTurns:  maxTurns,
		window:    window,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

// SessionID identifies the current conversation.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// AddTurn appends one exchange, evicting the oldest turns past the cap.
func (m *Manager) AddTurn(question, answer string, matchedIDs []string, confidence float64, style knowledge.Style) Turn {
	turn := Turn{
		Question:   strings.TrimSpace(question),
		Answer:     strings.TrimSpace(answer),
		MatchedIDs: append([]string(nil), matchedIDs...),
		Confidence: confidence,
		Style:      style,
		CreatedAt:  m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turn)
	if over := len(m.turns) - m.maxTurns; over > 0 {
		kept := make([]Turn, m.maxTurns)
		copy(kept, m.turns[over:])
		m.turns = kept
	}
	return turn.clone()
}

// Context returns the most recent n turns, oldest first.
// n <= 0 selects the configured window.
func (m *Manager) Context(n int) []Turn {
	if n <= 0 {
		n = m.window
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recent(n)
}

// TopicContext returns turns related to any of topicIDs in original order.
// When nothing relates, it returns the recent window instead of an empty
// slice, so a non-empty history never yields an empty context.
func (m *Manager) TopicContext(topicIDs []string) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(topicIDs) == 0 {
		return m.recent(m.window)
	}

	var out []Turn
	for _, t := range m.turns {
		if t.RelatedTo(topicIDs) {
			out = append(out, t.clone())
		}
	}
	if len(out) == 0 {
		return m.recent(m.window)
	}
	return out
}

// History returns a copy of every stored turn.
func (m *Manager) History() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recent(len(m.turns))
}

// Len returns the number of stored turns.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Clear empties the history and starts a new session.
func (m *Manager) Clear() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.sessionID = uuid.NewString()
	return m.sessionID
}

// Stats reports count, mean confidence and unique matched topics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{SessionID: m.sessionID, Turns: len(m.turns), Topics: []string{}}
	if len(m.turns) == 0 {
		return s
	}

	seen := make(map[string]bool)
	var sum float64
	for _, t := range m.turns {
		sum += t.Confidence
		for _, id := range t.MatchedIDs {
			if !seen[id] {
				seen[id] = true
				s.Topics = append(s.Topics, id)
			}
		}
	}
	s.AverageConfidence = sum / float64(len(m.turns))
	return s
}

// recent must be called with the lock held.
func (m *Manager) recent(n int) []Turn {
	if n > len(m.turns) {
		n = len(m.turns)
	}
	out := make([]Turn, 0, n)
	for _, t := range m.turns[len(m.turns)-n:] {
		out = append(out, t.clone())
	}
	return out
}
