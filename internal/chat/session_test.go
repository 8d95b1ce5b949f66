package chat

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/engine/lexical"
	"github.com/khanglvm/profile-qa/internal/engine/worker"
	"github.com/khanglvm/profile-qa/internal/errkind"
	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/orchestrator"
	"github.com/khanglvm/profile-qa/internal/search"
)

const profileDoc = `
skills:
  react:
    keywords: [react, hooks, jsx]
    responses:
      hr: "Led the React migration for the storefront."
      developer: "I build React apps with hooks."
      friend: "React is my jam."
hobbies:
  sailing:
    keywords: [sailing, boats]
    responses:
      friend: "I sail most weekends!"
`

type brokenEngine struct{ name string }

func (b brokenEngine) Name() string                { return b.name }
func (b brokenEngine) Start(context.Context) error { return nil }
func (b brokenEngine) Available() bool             { return true }
func (b brokenEngine) Close() error                { return nil }
func (b brokenEngine) Query(context.Context, engine.Request) (*engine.Success, error) {
	return nil, engine.ErrEngineTerminated
}

func newSession(t *testing.T, engines ...engine.Engine) *Session {
	t.Helper()

	base, err := knowledge.Parse([]byte(profileDoc))
	require.NoError(t, err)

	if len(engines) == 0 {
		lex := lexical.New(base, logging.Nop())
		engines = []engine.Engine{
			engine.NewClient(lexical.Name, worker.Dialer(lex, worker.DefaultOptions(lexical.Name)), engine.Options{Logger: logging.Nop()}),
		}
	}

	cfg := orchestrator.DefaultConfig()
	cfg.Cache.Size = 0
	orch, err := orchestrator.New(cfg, orchestrator.Deps{
		Engines:    engines,
		Retriever:  search.NewRetriever(base, search.DefaultConfig()),
		Escalation: escalation.NewHandler(escalation.Config{ContactEmail: "me@example.com"}),
		Logger:     logging.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(func() { _ = orch.Close() })

	return NewSession(orch, conversation.NewManager(25, 5), logging.Nop())
}

func TestProcessQueryAnswersAndRecordsTurn(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.SelectStyle(knowledge.StyleHR))

	reply, err := s.ProcessQuery(context.Background(), "react hooks")
	require.NoError(t, err)

	assert.Equal(t, "Led the React migration for the storefront.", reply.Answer)
	assert.Equal(t, []string{"skills_react"}, reply.MatchedIDs)
	assert.Equal(t, escalation.ActionNone, reply.FallbackAction)
	assert.Equal(t, lexical.Name, reply.Engine)
	assert.Greater(t, reply.Confidence, 0.5)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "react hooks", history[0].Question)
	assert.Equal(t, knowledge.StyleHR, history[0].Style)
}

func TestProcessQueryEscalatesThenOffersContact(t *testing.T) {
	s := newSession(t)

	first, err := s.ProcessQuery(context.Background(), "What about Vue.js?")
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionRephrase, first.FallbackAction)
	assert.NotEmpty(t, first.Suggestions)
	assert.False(t, first.ShowContactForm)

	second, err := s.ProcessQuery(context.Background(), "What about Vue.js?")
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEmail, second.FallbackAction)
	assert.True(t, second.ShowContactForm)

	res := s.SubmitContactForm("Jane Smith", "jane@example.com")
	require.True(t, res.Success)
	assert.Nil(t, res.FieldErrors)
	assert.True(t, strings.HasPrefix(res.Mailto, "mailto:me%40example.com?"))

	decoded, err := url.PathUnescape(res.Mailto)
	require.NoError(t, err)
	assert.Contains(t, decoded, "Jane Smith")
	assert.Contains(t, decoded, "jane@example.com")
	assert.Contains(t, decoded, "Vue.js")
}

func TestSubmitContactFormQuotesEscalatedQuestion(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.ProcessQuery(ctx, "What about Vue.js?")
		require.NoError(t, err)
	}
	answered, err := s.ProcessQuery(ctx, "react hooks")
	require.NoError(t, err)
	require.Equal(t, escalation.ActionNone, answered.FallbackAction)

	res := s.SubmitContactForm("Jane Smith", "jane@example.com")
	require.True(t, res.Success)

	decoded, err := url.PathUnescape(res.Mailto)
	require.NoError(t, err)
	assert.Contains(t, decoded, `couldn't answer my question: "What about Vue.js?"`)
	assert.NotContains(t, decoded, `couldn't answer my question: "react hooks"`)

	s.Restart()
	res = s.SubmitContactForm("Jane Smith", "jane@example.com")
	require.True(t, res.Success)
	decoded, err = url.PathUnescape(res.Mailto)
	require.NoError(t, err)
	assert.NotContains(t, decoded, "Vue.js")
}

func TestSubmitContactFormFieldErrors(t *testing.T) {
	s := newSession(t)

	res := s.SubmitContactForm("<b>J</b>", "not-an-email")
	assert.False(t, res.Success)
	assert.Empty(t, res.Mailto)
	assert.Contains(t, res.FieldErrors, "name")
	assert.Contains(t, res.FieldErrors, "email")
}

func TestProcessQueryAllEnginesFailed(t *testing.T) {
	s := newSession(t, brokenEngine{name: "lexical"}, brokenEngine{name: "semantic"})

	reply, err := s.ProcessQuery(context.Background(), "react hooks")
	require.NoError(t, err)
	assert.True(t, reply.Unavailable)
	assert.Contains(t, reply.Answer, "try again")
	assert.NotContains(t, reply.Answer, "terminated")
	assert.Empty(t, reply.MatchedIDs)
	assert.Empty(t, s.History(), "failed queries are not recorded")
}

func TestProcessQueryRejectsEmpty(t *testing.T) {
	s := newSession(t)
	_, err := s.ProcessQuery(context.Background(), "  ")
	assert.True(t, errkind.IsInvalidInput(err))
}

func TestSelectStyle(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, knowledge.DefaultStyle, s.Style())

	assert.True(t, errkind.IsInvalidInput(s.SelectStyle("pirate")))
	assert.Equal(t, knowledge.DefaultStyle, s.Style())

	require.NoError(t, s.SelectStyle(knowledge.StyleFriend))
	reply, err := s.ProcessQuery(context.Background(), "react hooks")
	require.NoError(t, err)
	assert.Equal(t, "React is my jam.", reply.Answer)
}

func TestRestart(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.SelectStyle(knowledge.StyleFriend))

	_, err := s.ProcessQuery(context.Background(), "What about Vue.js?")
	require.NoError(t, err)
	before := s.ID()

	id := s.Restart()
	assert.NotEqual(t, before, id)
	assert.Equal(t, id, s.ID())
	assert.Empty(t, s.History())
	assert.Equal(t, knowledge.StyleFriend, s.Style())

	reply, err := s.ProcessQuery(context.Background(), "What about Vue.js?")
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionRephrase, reply.FallbackAction, "restart resets escalation attempts")
}

func TestStats(t *testing.T) {
	s := newSession(t)

	_, err := s.ProcessQuery(context.Background(), "react hooks")
	require.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, s.ID(), st.Conversation.SessionID)
	assert.Equal(t, 1, st.Conversation.Turns)
	assert.Equal(t, []string{"skills_react"}, st.Conversation.Topics)
	assert.Equal(t, lexical.Name, st.Primary)
	assert.Equal(t, []string{lexical.Name}, st.Available)
	require.Len(t, st.Engines, 1)
	assert.Equal(t, 1, st.Engines[0].Queries)
}
