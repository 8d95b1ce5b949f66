/*
Package escalation decides what to do when an answer is not good enough.

Each normalized query string moves through NoAttempt → Rephrase → EmailOffer.
The Handler owns the per-query attempt counters; they only grow until Reset.
None of its methods return errors: every outcome maps to an action.
*/
package escalation

import (
	"strings"
	"sync"
)

// Action is what the caller should present next.
type Action string

const (
	ActionNone     Action = ""
	ActionRephrase Action = "rephrase"
	ActionEmail    Action = "email"
)

// Reason explains a fallback decision.
type Reason string

const (
	ReasonNoMatches            Reason = "no_matches"
	ReasonVeryLowConfidence    Reason = "very_low_confidence"
	ReasonLowConfidence        Reason = "low_confidence"
	ReasonSufficientConfidence Reason = "sufficient_confidence"
)

// Decision is the outcome of ShouldTriggerFallback.
type Decision struct {
	ShouldFallback bool   `json:"should_fallback"`
	Reason         Reason `json:"reason"`
	Action         Action `json:"action,omitempty"`
}

// Config tunes the handler.
type Config struct {
	VeryLowConfidence float64 `koanf:"very_low_confidence" validate:"gte=0,lte=1"`
	LowConfidence     float64 `koanf:"low_confidence" validate:"gte=0,lte=1,gtefield=VeryLowConfidence"`
	MaxAttempts       int     `koanf:"max_attempts" validate:"gte=1"`
	ContactEmail      string  `koanf:"contact_email" validate:"omitempty,email"`
	Subject           string  `koanf:"subject"`
	// ExcerptTurns is how many recent turns the contact email quotes; 0 quotes none.
	ExcerptTurns int `koanf:"excerpt_turns" validate:"gte=0"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		VeryLowConfidence: 0.3,
		LowConfidence:     0.5,
		MaxAttempts:       2,
		ContactEmail:      "contact@example.com",
		Subject:           "Question from the profile assistant",
		ExcerptTurns:      3,
	}
}

// Handler tracks escalation state for one session.
type Handler struct {
	cfg Config

	mu       sync.Mutex
	attempts map[string]int
}

// NewHandler creates a Handler. Zero thresholds fall back to the defaults.
func NewHandler(cfg Config) *Handler {
	def := DefaultConfig()
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = def.LowConfidence
	}
	if cfg.VeryLowConfidence <= 0 {
		cfg.VeryLowConfidence = def.VeryLowConfidence
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.ContactEmail == "" {
		cfg.ContactEmail = def.ContactEmail
	}
	if cfg.Subject == "" {
		cfg.Subject = def.Subject
	}
	if cfg.ExcerptTurns < 0 {
		cfg.ExcerptTurns = def.ExcerptTurns
	}
	return &Handler{cfg: cfg, attempts: make(map[string]int)}
}

// Normalize returns the attempt-map key for query.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// ShouldTriggerFallback classifies an answer by its confidence and matches.
func (h *Handler) ShouldTriggerFallback(confidence float64, query string, matchedIDs []string) Decision {
	switch {
	case len(matchedIDs) == 0:
		return Decision{ShouldFallback: true, Reason: ReasonNoMatches, Action: ActionRephrase}
	case confidence < h.cfg.VeryLowConfidence:
		return Decision{ShouldFallback: true, Reason: ReasonVeryLowConfidence, Action: ActionRephrase}
	case confidence < h.cfg.LowConfidence:
		return Decision{ShouldFallback: true, Reason: ReasonLowConfidence, Action: ActionRephrase}
	default:
		return Decision{ShouldFallback: false, Reason: ReasonSufficientConfidence}
	}
}

// NextAction records another failed attempt for query and returns the
// action for it: rephrase first, email from the second attempt on.
func (h *Handler) NextAction(query string) Action {
	key := Normalize(query)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.attempts[key]++
	if h.attempts[key] >= h.cfg.MaxAttempts {
		return ActionEmail
	}
	return ActionRephrase
}

// Attempts returns the recorded attempt count for query.
func (h *Handler) Attempts(query string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts[Normalize(query)]
}

// HasReachedMaxAttempts reports whether query has escalated to email.
func (h *Handler) HasReachedMaxAttempts(query string) bool {
	return h.Attempts(query) >= h.cfg.MaxAttempts
}

// Reset forgets every attempt counter.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = make(map[string]int)
}
