package benchmark

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/prompt"
	"github.com/khanglvm/profile-qa/internal/search"
)

const profileDoc = `
skills:
  react:
    keywords: [react, hooks, jsx]
    responses:
      developer: "I build React apps with hooks."
  typescript:
    keywords: [typescript]
    responses:
      developer: "TypeScript everywhere."
hobbies:
  sailing:
    keywords: [sailing, boats]
    responses:
      friend: "I sail most weekends!"
  misc:
    responses:
      friend: "Nothing to see here."
`

// stubEngine answers with the entry whose keyword appears in the message.
type stubEngine struct {
	name      string
	available bool
	byWord    map[string]string
	conf      float64
	err       error
}

func (s *stubEngine) Name() string                    { return s.name }
func (s *stubEngine) Start(ctx context.Context) error { return nil }
func (s *stubEngine) Available() bool                 { return s.available }
func (s *stubEngine) Close() error                    { return nil }

func (s *stubEngine) Query(ctx context.Context, req engine.Request) (*engine.Success, error) {
	if s.err != nil {
		return nil, s.err
	}
	for word, id := range s.byWord {
		if strings.Contains(req.Message, word) {
			return &engine.Success{Answer: id, Confidence: s.conf, Matches: []engine.EntryScore{{ID: id, Similarity: 1}}}, nil
		}
	}
	return &engine.Success{Confidence: s.conf / 2}, nil
}

func newFixture(t *testing.T) (*knowledge.Base, *search.Retriever, *prompt.Builder) {
	t.Helper()
	base, err := knowledge.Parse([]byte(profileDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return base, search.NewRetriever(base, search.DefaultConfig()), prompt.NewBuilder("Alex", 0, 0)
}

func TestProbesFromBase(t *testing.T) {
	base, _, _ := newFixture(t)

	probes := ProbesFromBase(base, knowledge.StyleDeveloper)

	// misc has no keywords
	if len(probes) != 3 {
		t.Fatalf("Expected 3 probes, got %d", len(probes))
	}
	if probes[0].Expected != "skills_react" {
		t.Errorf("Expected first probe for skills_react, got %q", probes[0].Expected)
	}
	if probes[0].Question != "What about react and hooks?" {
		t.Errorf("Unexpected question: %q", probes[0].Question)
	}
	if probes[1].Question != "What about typescript?" {
		t.Errorf("Unexpected question: %q", probes[1].Question)
	}
	for _, p := range probes {
		if p.Style != knowledge.StyleDeveloper {
			t.Errorf("probe %q has style %q", p.Question, p.Style)
		}
	}
}

func TestRunBenchmark(t *testing.T) {
	base, retriever, builder := newFixture(t)
	probes := ProbesFromBase(base, knowledge.StyleFriend)

	accurate := &stubEngine{
		name:      "accurate",
		available: true,
		conf:      0.8,
		byWord: map[string]string{
			"react":      "skills_react",
			"typescript": "skills_typescript",
			"sailing":    "hobbies_sailing",
		},
	}
	sloppy := &stubEngine{
		name:      "sloppy",
		available: true,
		conf:      0.9,
		byWord:    map[string]string{"react": "skills_react"},
	}
	broken := &stubEngine{name: "broken", available: true, err: errors.New("boom")}
	offline := &stubEngine{name: "offline"}

	result, err := RunBenchmark(context.Background(), []engine.Engine{sloppy, accurate, broken, offline}, retriever, builder, probes)
	if err != nil {
		t.Fatalf("RunBenchmark failed: %v", err)
	}

	if result.Probes != 3 {
		t.Errorf("Expected 3 probes, got %d", result.Probes)
	}
	if result.AvgPromptTokens <= 0 {
		t.Errorf("Expected a positive prompt token estimate, got %d", result.AvgPromptTokens)
	}

	byName := map[string]EngineResult{}
	for _, r := range result.Engines {
		byName[r.Engine] = r
	}

	acc := byName["accurate"]
	if acc.Correct != 3 || acc.Answered != 3 || acc.Accuracy != 100 {
		t.Errorf("unexpected accurate result: %+v", acc)
	}
	if acc.AvgConfidence < 0.79 || acc.AvgConfidence > 0.81 {
		t.Errorf("Expected avg confidence 0.8, got %.3f", acc.AvgConfidence)
	}

	sl := byName["sloppy"]
	if sl.Correct != 1 || sl.Answered != 3 {
		t.Errorf("unexpected sloppy result: %+v", sl)
	}

	if byName["broken"].Errors != 3 || byName["broken"].Answered != 0 {
		t.Errorf("unexpected broken result: %+v", byName["broken"])
	}
	if byName["offline"].Errors != 3 {
		t.Errorf("unavailable engines should count as errors: %+v", byName["offline"])
	}

	// Accuracy beats raw confidence
	if result.Winner != "accurate" {
		t.Errorf("Expected winner 'accurate', got %q", result.Winner)
	}
}

func TestRunBenchmarkNoProbes(t *testing.T) {
	_, retriever, builder := newFixture(t)

	if _, err := RunBenchmark(context.Background(), nil, retriever, builder, nil); err == nil {
		t.Error("RunBenchmark should fail without probes")
	}
}

func TestRunBenchmarkCancelled(t *testing.T) {
	base, retriever, builder := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBenchmark(ctx, nil, retriever, builder, ProbesFromBase(base, knowledge.StyleHR))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestWinnerTieBreaks(t *testing.T) {
	tests := []struct {
		name    string
		results []EngineResult
		want    string
	}{
		{
			name:    "no answers",
			results: []EngineResult{{Engine: "a"}, {Engine: "b"}},
			want:    "",
		},
		{
			name: "confidence breaks accuracy tie",
			results: []EngineResult{
				{Engine: "a", Answered: 1, Accuracy: 50, AvgConfidence: 0.4},
				{Engine: "b", Answered: 1, Accuracy: 50, AvgConfidence: 0.6},
			},
			want: "b",
		},
		{
			name: "latency breaks full tie",
			results: []EngineResult{
				{Engine: "a", Answered: 1, Accuracy: 50, AvgConfidence: 0.5, AvgLatencyMs: 9},
				{Engine: "b", Answered: 1, Accuracy: 50, AvgConfidence: 0.5, AvgLatencyMs: 3},
			},
			want: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := winner(tt.results); got != tt.want {
				t.Errorf("winner() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountTokens(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		wantMin int
		wantMax int
	}{
		{
			name:    "simple string",
			input:   "hello world",
			wantMin: 3, // ~13 chars / 3 = 4 tokens
			wantMax: 10,
		},
		{
			name: "json object",
			input: map[string]interface{}{
				"name":        "test",
				"description": "A test tool",
			},
			wantMin: 10,
			wantMax: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountTokens(tt.input)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("CountTokens() = %d, want between %d and %d", got, tt.wantMin, tt.wantMax)
			}
		})
	}

	if EstimateTextTokens("twelve chars") != 3 {
		t.Errorf("EstimateTextTokens should use 4 characters per token")
	}
}

func TestFormatResult(t *testing.T) {
	result := &BenchmarkResult{
		Probes:          4,
		AvgPromptTokens: 120,
		Engines: []EngineResult{
			{Engine: "lexical", Queries: 4, Answered: 4, Correct: 3, Accuracy: 75, AvgConfidence: 0.7},
		},
		Winner: "lexical",
	}

	out := FormatResult(result)
	for _, want := range []string{"ENGINE COMPARISON", "LEXICAL", "75.0%", "Preferred engine: lexical"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	result.Winner = ""
	if !strings.Contains(FormatResult(result), "no engine answered") {
		t.Error("output should explain a missing winner")
	}
}
