/*
Package learning tracks engine outcomes and ranks engines with an ε-greedy
bandit.

Outcomes are queued without blocking the query path and written to storage
in batches. Scores computed from that history drive the "bandit" A/B
strategy and the cross-session engine comparison summary.
*/
package learning

import (
	"strings"
	"time"

	"github.com/khanglvm/profile-qa/internal/storage"
)

// OutcomeEvent is one engine round-trip reported for learning.
type OutcomeEvent struct {
	SessionID string

	// QueryHash is the SHA256 hash of the normalized query for privacy.
	QueryHash string

	Engine     string
	Style      string
	Confidence float64
	Latency    time.Duration

	// FallbackUsed is set when the engine answered after another engine failed.
	FallbackUsed bool

	// Action is the escalation action that followed the answer.
	Action string

	// ABTest marks outcomes produced under an A/B assignment.
	ABTest bool

	Timestamp time.Time
}

// NewOutcomeEvent creates an event for tracking. The raw query is hashed
// and never stored.
func NewOutcomeEvent(sessionID, query, engine, style string, confidence float64, latency time.Duration, fallbackUsed bool, action string, abTest bool) OutcomeEvent {
	return OutcomeEvent{
		SessionID:    sessionID,
		QueryHash:    hashQuery(query),
		Engine:       engine,
		Style:        style,
		Confidence:   confidence,
		Latency:      latency,
		FallbackUsed: fallbackUsed,
		Action:       action,
		ABTest:       abTest,
		Timestamp:    time.Now(),
	}
}

// NewFailureEvent records that engine returned no answer for query. It is
// charged to the failing engine so the engine that rescued it keeps its score.
func NewFailureEvent(sessionID, query, engine, style string, latency time.Duration, abTest bool) OutcomeEvent {
	return NewOutcomeEvent(sessionID, query, engine, style, 0, latency, false, storage.ActionFailed, abTest)
}

// ToStorage converts the event to its storage record.
func (e OutcomeEvent) ToStorage() storage.OutcomeRecord {
	return storage.OutcomeRecord{
		SessionID:    e.SessionID,
		QueryHash:    e.QueryHash,
		Engine:       e.Engine,
		Style:        e.Style,
		Confidence:   e.Confidence,
		LatencyMs:    e.Latency.Milliseconds(),
		FallbackUsed: e.FallbackUsed,
		Action:       e.Action,
		ABTest:       e.ABTest,
		Timestamp:    e.Timestamp,
	}
}

// hashQuery hashes the trimmed, lowercased query so equal questions share a hash.
func hashQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ""
	}
	return storage.HashQuery(q)
}
