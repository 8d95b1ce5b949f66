/*
Package benchmark compares answer engines over a set of probe questions.

Every probe is retrieved and prompted exactly as the orchestrator would,
then sent to each engine in turn. An answer is counted as correct when the
engine based it on the entry the probe was written for.

Prompt size is reported in estimated tokens (~4 characters per token for
English text, ~3 for JSON/code).
*/
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/prompt"
	"github.com/khanglvm/profile-qa/internal/search"
)

// Probe is one benchmark question and the entry expected to answer it.
type Probe struct {
	Question string          `json:"question"`
	Expected string          `json:"expected"`
	Style    knowledge.Style `json:"style"`
}

// EngineResult aggregates one engine's answers over all probes.
type EngineResult struct {
	Engine        string  `json:"engine"`
	Queries       int     `json:"queries"`
	Answered      int     `json:"answered"`
	Correct       int     `json:"correct"`
	Errors        int     `json:"errors"`
	Accuracy      float64 `json:"accuracy"`
	AvgConfidence float64 `json:"avgConfidence"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	MaxLatencyMs  float64 `json:"maxLatencyMs"`

	confidenceSum float64
	latencySum    time.Duration
}

// BenchmarkResult contains comparison results.
type BenchmarkResult struct {
	Probes          int            `json:"probes"`
	AvgPromptTokens int            `json:"avgPromptTokens"`
	Engines         []EngineResult `json:"engines"`
	// Winner has the best accuracy, then confidence, then latency.
	Winner string `json:"winner"`
}

// MaxKeywordsPerProbe bounds the keywords a derived probe mentions.
const MaxKeywordsPerProbe = 2

// ProbesFromBase derives one probe per entry from its keywords, in the
// base's order. Entries without keywords are skipped.
func ProbesFromBase(base *knowledge.Base, style knowledge.Style) []Probe {
	var probes []Probe
	for _, e := range base.Entries() {
		if len(e.Keywords) == 0 {
			continue
		}
		kws := e.Keywords
		if len(kws) > MaxKeywordsPerProbe {
			kws = kws[:MaxKeywordsPerProbe]
		}
		probes = append(probes, Probe{
			Question: fmt.Sprintf("What about %s?", strings.Join(kws, " and ")),
			Expected: e.ID,
			Style:    style,
		})
	}
	return probes
}

// RunBenchmark sends every probe to every available engine. Engines must
// already be started.
func RunBenchmark(ctx context.Context, engines []engine.Engine, retriever *search.Retriever, builder *prompt.Builder, probes []Probe) (*BenchmarkResult, error) {
	if len(probes) == 0 {
		return nil, fmt.Errorf("no probe questions")
	}

	results := make([]EngineResult, len(engines))
	for i, eng := range engines {
		results[i].Engine = eng.Name()
	}

	promptTokens := 0
	for _, p := range probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := BuildRequest(retriever, builder, p)
		if err != nil {
			return nil, fmt.Errorf("probe %q: %w", p.Question, err)
		}
		promptTokens += EstimateTextTokens(req.Prompt)

		for i, eng := range engines {
			r := &results[i]
			r.Queries++
			if !eng.Available() {
				r.Errors++
				continue
			}

			start := time.Now()
			res, err := eng.Query(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				r.Errors++
				continue
			}

			r.Answered++
			r.latencySum += elapsed
			r.confidenceSum += res.Confidence
			if ms := float64(elapsed.Microseconds()) / 1000; ms > r.MaxLatencyMs {
				r.MaxLatencyMs = ms
			}
			if slices.Contains(res.MatchedIDs(), p.Expected) {
				r.Correct++
			}
		}
	}

	for i := range results {
		r := &results[i]
		if r.Queries > 0 {
			r.Accuracy = float64(r.Correct) / float64(r.Queries) * 100
		}
		if r.Answered > 0 {
			r.AvgConfidence = r.confidenceSum / float64(r.Answered)
			r.AvgLatencyMs = float64(r.latencySum.Microseconds()) / 1000 / float64(r.Answered)
		}
	}

	return &BenchmarkResult{
		Probes:          len(probes),
		AvgPromptTokens: promptTokens / len(probes),
		Engines:         results,
		Winner:          winner(results),
	}, nil
}

// BuildRequest retrieves matches for a probe and renders its engine request.
func BuildRequest(retriever *search.Retriever, builder *prompt.Builder, p Probe) (engine.Request, error) {
	matches, err := retriever.Retrieve(p.Question, nil)
	if err != nil {
		return engine.Request{}, err
	}
	text, err := builder.Build(p.Question, matches, p.Style, nil)
	if err != nil {
		return engine.Request{}, err
	}

	refs := make([]engine.MatchRef, len(matches))
	for i, m := range matches {
		refs[i] = engine.MatchRef{ID: m.ID(), Score: m.Score}
	}
	return engine.Request{
		Message: p.Question,
		Style:   p.Style,
		Prompt:  text,
		Matches: refs,
	}, nil
}

func winner(results []EngineResult) string {
	ranked := make([]EngineResult, 0, len(results))
	for _, r := range results {
		if r.Answered > 0 {
			ranked = append(ranked, r)
		}
	}
	if len(ranked) == 0 {
		return ""
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		if a.AvgConfidence != b.AvgConfidence {
			return a.AvgConfidence > b.AvgConfidence
		}
		return a.AvgLatencyMs < b.AvgLatencyMs
	})
	return ranked[0].Engine
}

// CountTokens estimates token count for a JSON structure.
// Uses approximation: ~3 characters per token for JSON/code.
func CountTokens(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data) / 3
}

// EstimateTextTokens estimates tokens of English prose at ~4 characters
// per token.
func EstimateTextTokens(s string) int {
	return len(s) / 4
}

// FormatResult formats the benchmark result for display.
func FormatResult(result *BenchmarkResult) string {
	var sb strings.Builder

	sb.WriteString("╔══════════════════════════════════════════════════════════════╗\n")
	sb.WriteString("║              ENGINE COMPARISON BENCHMARK RESULTS             ║\n")
	sb.WriteString("╠══════════════════════════════════════════════════════════════╣\n")
	sb.WriteString(fmt.Sprintf("║  Probes: %-4d  Avg prompt: ~%-5d tokens                      ║\n", result.Probes, result.AvgPromptTokens))
	for _, r := range result.Engines {
		sb.WriteString("╠══════════════════════════════════════════════════════════════╣\n")
		sb.WriteString(fmt.Sprintf("║  ⚙️  %-56s ║\n", strings.ToUpper(r.Engine)))
		sb.WriteString(fmt.Sprintf("║     Correct:    %3d / %-3d (%5.1f%%)                           ║\n", r.Correct, r.Queries, r.Accuracy))
		sb.WriteString(fmt.Sprintf("║     Errors:     %-3d                                          ║\n", r.Errors))
		sb.WriteString(fmt.Sprintf("║     Confidence: %.2f avg                                     ║\n", r.AvgConfidence))
		sb.WriteString(fmt.Sprintf("║     Latency:    %8.2f ms avg, %8.2f ms max            ║\n", r.AvgLatencyMs, r.MaxLatencyMs))
	}
	sb.WriteString("╠══════════════════════════════════════════════════════════════╣\n")
	w := result.Winner
	if w == "" {
		w = "none (no engine answered)"
	}
	sb.WriteString(fmt.Sprintf("║  🏆 Preferred engine: %-38s ║\n", w))
	sb.WriteString("╚══════════════════════════════════════════════════════════════╝\n")

	return sb.String()
}
