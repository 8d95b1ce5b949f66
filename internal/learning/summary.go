package learning

import (
	"sort"

	"github.com/khanglvm/profile-qa/internal/storage"
)

// EngineSummary compares one engine's outcomes.
type EngineSummary struct {
	Engine         string  `json:"engine"`
	Queries        int     `json:"queries"`
	AvgConfidence  float64 `json:"avg_confidence"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	FallbackRate   float64 `json:"fallback_rate"`
	EscalationRate float64 `json:"escalation_rate"`
	FailureRate    float64 `json:"failure_rate"`
}

// Summarize aggregates outcome records per engine, ordered by engine name.
func Summarize(records []storage.OutcomeRecord) []EngineSummary {
	type acc struct {
		n, fallbacks, escalations, failures int
		conf, latency            float64
	}
	byEngine := make(map[string]*acc)

	for _, r := range records {
		a := byEngine[r.Engine]
		if a == nil {
			a = &acc{}
			byEngine[r.Engine] = a
		}
		a.n++
		a.conf += r.Confidence
		a.latency += float64(r.LatencyMs)
		if r.FallbackUsed {
			a.fallbacks++
		}
		if r.Escalated() {
			a.escalations++
		}
		if r.Failed() {
			a.failures++
		}
	}

	out := make([]EngineSummary, 0, len(byEngine))
	for name, a := range byEngine {
		n := float64(a.n)
		out = append(out, EngineSummary{
			Engine:         name,
			Queries:        a.n,
			AvgConfidence:  a.conf / n,
			AvgLatencyMs:   a.latency / n,
			FallbackRate:   float64(a.fallbacks) / n,
			EscalationRate: float64(a.escalations) / n,
			FailureRate:    float64(a.failures) / n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Engine < out[j].Engine })
	return out
}

// Preferred names the engine with the higher mean confidence, ties broken
// by lower latency. Engines without queries are ignored.
func Preferred(summaries []EngineSummary) string {
	best := -1
	for i, s := range summaries {
		if s.Queries == 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := summaries[best]
		if s.AvgConfidence > b.AvgConfidence ||
			(s.AvgConfidence == b.AvgConfidence && s.AvgLatencyMs < b.AvgLatencyMs) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return summaries[best].Engine
}
