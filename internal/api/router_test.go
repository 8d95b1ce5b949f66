package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/profile-qa/internal/chat"
	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/engine/lexical"
	"github.com/khanglvm/profile-qa/internal/engine/worker"
	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/orchestrator"
	"github.com/khanglvm/profile-qa/internal/search"
)

const profileDoc = `
skills:
  go:
    keywords: [go, golang, goroutines]
    responses:
      hr: "Shipped three Go services to production."
      developer: "I write Go daily, mostly network services."
`

func newServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()

	base, err := knowledge.Parse([]byte(profileDoc))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	lex := lexical.New(base, logging.Nop())
	orch, err := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
		Engines: []engine.Engine{
			engine.NewClient(lexical.Name, worker.Dialer(lex, worker.DefaultOptions(lexical.Name)), engine.Options{Logger: logging.Nop()}),
		},
		Retriever:  search.NewRetriever(base, search.DefaultConfig()),
		Escalation: escalation.NewHandler(escalation.DefaultConfig()),
		Registerer: reg,
		Logger:     logging.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(func() { _ = orch.Close() })

	session := chat.NewSession(orch, conversation.NewManager(0, 0), logging.Nop())
	srv := httptest.NewServer(NewRouter(session, reg, cfg, logging.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestQuery(t *testing.T) {
	srv := newServer(t, DefaultConfig())

	resp := post(t, srv, "/query", `{"text":"golang goroutines","style":"hr"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	reply := decode[chat.Reply](t, resp)
	assert.Equal(t, "Shipped three Go services to production.", reply.Answer)
	assert.Equal(t, []string{"skills_go"}, reply.MatchedIDs)
	assert.Empty(t, reply.FallbackAction)
}

func TestQueryValidation(t *testing.T) {
	srv := newServer(t, DefaultConfig())

	tests := []struct {
		name string
		body string
	}{
		{"empty text", `{"text":"  "}`},
		{"unknown style", `{"text":"go","style":"pirate"}`},
		{"malformed body", `{"text":`},
		{"unknown field", `{"question":"go"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])
		})
	}
}

func TestStyleAndStats(t *testing.T) {
	srv := newServer(t, DefaultConfig())

	resp := post(t, srv, "/style", `{"style":"Friend"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "friend", decode[map[string]string](t, resp)["style"])

	resp = post(t, srv, "/style", `{"style":"robot"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	post(t, srv, "/query", `{"text":"golang"}`)

	statsResp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	st := decode[chat.Stats](t, statsResp)
	assert.Equal(t, knowledge.StyleFriend, st.Style)
	assert.Equal(t, 1, st.Conversation.Turns)
}

func TestRestart(t *testing.T) {
	srv := newServer(t, DefaultConfig())

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	before := decode[healthResponse](t, health).SessionID

	resp := post(t, srv, "/restart", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[map[string]string](t, resp)["session_id"]
	assert.NotEmpty(t, after)
	assert.NotEqual(t, before, after)
}

func TestContact(t *testing.T) {
	srv := newServer(t, Config{ContactRate: 0.001, ContactBurst: 2})

	resp := post(t, srv, "/contact", `{"name":"J","email":"nope"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	bad := decode[chat.ContactResult](t, resp)
	assert.False(t, bad.Success)
	assert.Contains(t, bad.FieldErrors, "name")
	assert.Contains(t, bad.FieldErrors, "email")

	resp = post(t, srv, "/contact", `{"name":"Jane Smith","email":"jane@example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ok := decode[chat.ContactResult](t, resp)
	assert.True(t, ok.Success)
	assert.True(t, strings.HasPrefix(ok.Mailto, "mailto:"))

	resp = post(t, srv, "/contact", `{"name":"Jane Smith","email":"jane@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(t, DefaultConfig())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := decode[healthResponse](t, resp)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, []string{lexical.Name}, h.Available)

	post(t, srv, "/query", `{"text":"golang"}`)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `profile_qa_engine_queries_total{engine="lexical",result="success"} 1`)
	assert.Contains(t, string(body), `profile_qa_engine_available{engine="lexical"} 1`)
}

func TestRequestIDPropagates(t *testing.T) {
	srv := newServer(t, DefaultConfig())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc123", resp.Header.Get("X-Request-ID"))
}
