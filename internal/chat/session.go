/*
Package chat is the conversation surface a presentation layer talks to.

A Session ties one Orchestrator to one conversation history. It owns the
selected response style, appends a turn after every answered query and
turns contact form submissions into a mailto link.
*/
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/errkind"
	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/orchestrator"
)

// Reply is what the user sees for one query.
type Reply struct {
	Answer          string            `json:"answer"`
	Confidence      float64           `json:"confidence"`
	MatchedIDs      []string          `json:"matched_ids"`
	FallbackAction  escalation.Action `json:"fallback_action,omitempty"`
	Suggestions     []string          `json:"suggestions,omitempty"`
	ShowContactForm bool              `json:"show_contact_form,omitempty"`

	Engine       string `json:"engine,omitempty"`
	FallbackUsed bool   `json:"fallback_used,omitempty"`
	Cached       bool   `json:"cached,omitempty"`
	// Unavailable is set when no engine could answer.
	Unavailable bool `json:"unavailable,omitempty"`
}

// ContactResult is the outcome of a contact form submission. Either
// Success is true and Mailto is set, or FieldErrors explains what to fix.
type ContactResult struct {
	Success     bool                   `json:"success"`
	Mailto      string                 `json:"mailto,omitempty"`
	FieldErrors escalation.FieldErrors `json:"fieldErrors,omitempty"`
}

// Stats reports the session and engine state.
type Stats struct {
	Conversation  conversation.Stats           `json:"conversation"`
	Style         knowledge.Style              `json:"style"`
	Primary       string                       `json:"primary"`
	Available     []string                     `json:"available"`
	Engines       []orchestrator.EngineMetrics `json:"engines"`
	ABTest        orchestrator.ABSummary       `json:"ab_test"`
	CachedAnswers int                          `json:"cached_answers"`
}

// Session is one user's conversation. Queries are serialized so turns and
// metrics are recorded in completion order.
type Session struct {
	orch *orchestrator.Orchestrator
	conv *conversation.Manager
	log  logging.Logger

	queryMu sync.Mutex

	mu    sync.Mutex
	style knowledge.Style
	// failedQuery is the latest question that escalated; answered questions
	// never replace it.
	failedQuery string
}

// NewSession starts a session over orch. A nil conv gets the default caps.
func NewSession(orch *orchestrator.Orchestrator, conv *conversation.Manager, logger logging.Logger) *Session {
	if conv == nil {
		conv = conversation.NewManager(0, 0)
	}
	s := &Session{
		orch:  orch,
		conv:  conv,
		log:   logging.OrDefault(logger).With("component", "chat"),
		style: knowledge.DefaultStyle,
	}
	orch.BeginSession(conv.SessionID())
	return s
}

// ID returns the current session id.
func (s *Session) ID() string { return s.conv.SessionID() }

// Style returns the selected response style.
func (s *Session) Style() knowledge.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// SelectStyle changes the response style for the following queries.
func (s *Session) SelectStyle(style knowledge.Style) error {
	if !style.Valid() {
		return errkind.InvalidInput("unknown style %q", style)
	}
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
	return nil
}

// ProcessQuery answers text in the selected style. When every engine fails
// the reply carries a generic retry message instead of an error.
func (s *Session) ProcessQuery(ctx context.Context, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errkind.InvalidInput("query is empty")
	}

	s.queryMu.Lock()
	defer s.queryMu.Unlock()

	style := s.Style()
	out, err := s.orch.ProcessQuery(ctx, orchestrator.Query{
		Message: text,
		Style:   style,
		History: s.conv,
	})
	if errors.Is(err, orchestrator.ErrAllEnginesFailed) {
		s.log.Error("no engine could answer", "session", s.ID(), "error", err)
		return &Reply{Answer: unavailableMessage(style), MatchedIDs: []string{}, Unavailable: true}, nil
	}
	if err != nil {
		return nil, err
	}

	s.conv.AddTurn(text, out.Answer, out.MatchedIDs, out.Confidence, style)

	if out.Action != escalation.ActionNone {
		s.mu.Lock()
		s.failedQuery = text
		s.mu.Unlock()
	}

	reply := &Reply{
		Answer:         out.Answer,
		Confidence:     out.Confidence,
		MatchedIDs:     out.MatchedIDs,
		FallbackAction: out.Action,
		Engine:         out.Engine,
		FallbackUsed:   out.FallbackUsed,
		Cached:         out.Cached,
	}
	if reply.MatchedIDs == nil {
		reply.MatchedIDs = []string{}
	}
	if out.Escalation != nil {
		reply.Suggestions = out.Escalation.Suggestions
		reply.ShowContactForm = out.Escalation.ShowContactForm
	}
	return reply, nil
}

// Restart clears the history and begins a new session. The style is kept.
func (s *Session) Restart() string {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()

	id := s.conv.Clear()
	s.orch.BeginSession(id)

	s.mu.Lock()
	s.failedQuery = ""
	s.mu.Unlock()

	s.log.Info("session restarted", "session", id)
	return id
}

// SubmitContactForm validates the form and builds a mailto link for the
// last question that could not be answered, together with a short excerpt
// of the conversation.
func (s *Session) SubmitContactForm(name, email string) ContactResult {
	contact, fieldErrs := escalation.ValidateContact(name, email)
	if fieldErrs != nil {
		return ContactResult{FieldErrors: fieldErrs}
	}

	s.mu.Lock()
	query, style := s.failedQuery, s.style
	s.mu.Unlock()

	link := s.orch.Escalation().MailtoLink(contact.Name, contact.Email, query, style, s.conv.Context(0))
	return ContactResult{Success: true, Mailto: link}
}

// History returns the stored turns, oldest first.
func (s *Session) History() []conversation.Turn { return s.conv.History() }

// Stats reports conversation, engine and A/B state.
func (s *Session) Stats() Stats {
	return Stats{
		Conversation:  s.conv.Stats(),
		Style:         s.Style(),
		Primary:       s.orch.Primary(),
		Available:     s.orch.Available(),
		Engines:       s.orch.Metrics(),
		ABTest:        s.orch.ABSummary(),
		CachedAnswers: s.orch.CacheLen(),
	}
}

func unavailableMessage(style knowledge.Style) string {
	switch style {
	case knowledge.StyleHR:
		return "I'm unable to answer right now. Please try again in a moment."
	case knowledge.StyleFriend:
		return "Oops, my brain is taking a break. Try again in a sec?"
	default:
		return "Both answer engines are unavailable right now. Please try again shortly."
	}
}
