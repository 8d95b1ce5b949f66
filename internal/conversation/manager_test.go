package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/profile-qa/internal/knowledge"
)

func TestAddTurnEvictsOldest(t *testing.T) {
	m := NewManager(0, 0)
	for i := 0; i < 30; i++ {
		m.AddTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil, 0.5, knowledge.StyleDeveloper)
	}

	history := m.History()
	require.Len(t, history, DefaultMaxTurns)
	assert.Equal(t, "q5", history[0].Question)
	assert.Equal(t, "q29", history[len(history)-1].Question)

	ctx := m.Context(0)
	require.Len(t, ctx, 5)
	for i, turn := range ctx {
		assert.Equal(t, fmt.Sprintf("q%d", 25+i), turn.Question)
	}
}

func TestAddTurnTrimsText(t *testing.T) {
	m := NewManager(0, 0)
	turn := m.AddTurn("  hello there \n", "\tanswer ", []string{"x"}, 0.9, knowledge.StyleFriend)

	assert.Equal(t, "hello there", turn.Question)
	assert.Equal(t, "answer", turn.Answer)
	assert.False(t, turn.CreatedAt.IsZero())
}

func TestContextShorterHistory(t *testing.T) {
	m := NewManager(0, 0)
	m.AddTurn("one", "1", nil, 1, knowledge.StyleHR)
	m.AddTurn("two", "2", nil, 1, knowledge.StyleHR)

	assert.Len(t, m.Context(5), 2)
	assert.Len(t, m.Context(1), 1)
	assert.Equal(t, "two", m.Context(1)[0].Question)
}

func TestTopicContext(t *testing.T) {
	m := NewManager(0, 0)
	for i, topic := range []string{"A", "B", "A", "C", "A"} {
		m.AddTurn(fmt.Sprintf("q%d", i), "a", []string{topic}, 0.7, knowledge.StyleDeveloper)
	}

	got := m.TopicContext([]string{"A"})
	require.Len(t, got, 3)
	assert.Equal(t, "q0", got[0].Question)
	assert.Equal(t, "q2", got[1].Question)
	assert.Equal(t, "q4", got[2].Question)
}

func TestTopicContextMatchesCategory(t *testing.T) {
	m := NewManager(0, 0)
	m.AddTurn("react", "a", []string{"skills_react"}, 0.8, knowledge.StyleDeveloper)
	m.AddTurn("acme", "a", []string{"experience_acme"}, 0.8, knowledge.StyleDeveloper)

	got := m.TopicContext([]string{"skills_vue"})
	require.Len(t, got, 1)
	assert.Equal(t, "react", got[0].Question)
}

func TestTopicContextFallsBackToRecent(t *testing.T) {
	m := NewManager(0, 2)
	m.AddTurn("one", "a", []string{"A"}, 0.8, knowledge.StyleDeveloper)
	m.AddTurn("two", "a", []string{"B"}, 0.8, knowledge.StyleDeveloper)
	m.AddTurn("three", "a", nil, 0.8, knowledge.StyleDeveloper)

	got := m.TopicContext([]string{"Z"})
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Question)
	assert.Equal(t, "three", got[1].Question)

	assert.Empty(t, NewManager(0, 0).TopicContext([]string{"Z"}))
}

func TestReturnedTurnsAreCopies(t *testing.T) {
	m := NewManager(0, 0)
	ids := []string{"A"}
	m.AddTurn("q", "a", ids, 0.5, knowledge.StyleDeveloper)
	ids[0] = "mutated"

	got := m.Context(1)
	got[0].MatchedIDs[0] = "changed"
	assert.Equal(t, "A", m.Context(1)[0].MatchedIDs[0])
}

func TestClearIssuesNewSession(t *testing.T) {
	m := NewManager(0, 0)
	m.AddTurn("q", "a", nil, 0.5, knowledge.StyleDeveloper)
	before := m.SessionID()

	after := m.Clear()
	assert.NotEqual(t, before, after)
	assert.Equal(t, after, m.SessionID())
	assert.Equal(t, 0, m.Len())
}

func TestStats(t *testing.T) {
	m := NewManager(0, 0)
	empty := m.Stats()
	assert.Equal(t, 0, empty.Turns)
	assert.Equal(t, 0.0, empty.AverageConfidence)
	assert.Empty(t, empty.Topics)

	m.AddTurn("q1", "a", []string{"A", "B"}, 0.4, knowledge.StyleDeveloper)
	m.AddTurn("q2", "a", []string{"B"}, 0.8, knowledge.StyleDeveloper)

	s := m.Stats()
	assert.Equal(t, 2, s.Turns)
	assert.InDelta(t, 0.6, s.AverageConfidence, 1e-9)
	assert.Equal(t, []string{"A", "B"}, s.Topics)
}
