package storage

import "time"

// OutcomeRecord is one persisted engine round-trip.
type OutcomeRecord struct {
	// ID is a ULID, sortable by creation time.
	ID string `json:"id"`

	// SessionID is the conversation session that issued the query.
	SessionID string `json:"session_id"`

	// QueryHash is the SHA256 hash of the normalized query for privacy.
	QueryHash string `json:"query_hash"`

	// Engine is the engine that produced the answer, or that failed when
	// Action is ActionFailed.
	Engine string `json:"engine"`

	// Style is the response style requested.
	Style string `json:"style"`

	Confidence float64 `json:"confidence"`
	LatencyMs  int64   `json:"latency_ms"`

	// FallbackUsed is set when the answering engine was not the one selected first.
	FallbackUsed bool `json:"fallback_used"`

	// Action is the escalation action that followed (none, rephrase, email),
	// or ActionFailed when the engine returned no answer.
	Action string `json:"action"`

	// ABTest marks outcomes produced under an A/B assignment.
	ABTest bool `json:"ab_test"`

	Timestamp time.Time `json:"timestamp"`
}

// ActionFailed marks a round-trip that errored or timed out.
const ActionFailed = "failed"

// Escalated reports whether the outcome led to a rephrase or email prompt.
func (o OutcomeRecord) Escalated() bool {
	return o.Action != "" && o.Action != "none" && o.Action != ActionFailed
}

// Failed reports whether the engine returned no answer.
func (o OutcomeRecord) Failed() bool {
	return o.Action == ActionFailed
}

// Assignment is a session's fixed A/B engine choice.
type Assignment struct {
	SessionID string    `json:"session_id"`
	Engine    string    `json:"engine"`
	Strategy  string    `json:"strategy"`
	CreatedAt time.Time `json:"created_at"`
}
