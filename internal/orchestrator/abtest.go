package orchestrator

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/learning"
)

// A/B assignment strategies.
const (
	StrategySplit  = "split"
	StrategyBandit = "bandit"
)

// ABConfig controls A/B engine assignment.
type ABConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Strategy string `koanf:"strategy" validate:"oneof=split bandit"`
	// Split is the share of sessions assigned to the first engine.
	Split   float64 `koanf:"split" validate:"gte=0,lte=1"`
	Epsilon float64 `koanf:"epsilon" validate:"gte=0,lte=1"`
}

// DefaultABConfig splits sessions evenly when enabled.
func DefaultABConfig() ABConfig {
	return ABConfig{Strategy: StrategySplit, Split: 0.5, Epsilon: learning.DefaultEpsilon}
}

// ABSummary compares engines over the sessions of this process.
type ABSummary struct {
	Enabled    bool                     `json:"enabled"`
	Strategy   string                   `json:"strategy"`
	SessionID  string                   `json:"session_id"`
	Assignment string                   `json:"assignment"`
	Engines    []learning.EngineSummary `json:"engines"`
	Preferred  string                   `json:"preferred"`
}

// splitAssign maps a session deterministically onto engines: the first
// engine takes the split share, the rest share the remainder evenly.
func splitAssign(sessionID string, engines []string, split float64) string {
	switch len(engines) {
	case 0:
		return ""
	case 1:
		return engines[0]
	}

	h := fnv.New32a()
	h.Write([]byte(sessionID))
	frac := float64(h.Sum32()%10000) / 10000

	if frac < split {
		return engines[0]
	}
	rest := engines[1:]
	i := int((frac - split) / (1 - split) * float64(len(rest)))
	if i >= len(rest) {
		i = len(rest) - 1
	}
	return rest[i]
}

type tally struct {
	queries, fallbacks, escalations int
	confidence, latencyMs           float64
}

// abTally aggregates outcomes produced under an A/B assignment.
type abTally struct {
	mu     sync.Mutex
	byName map[string]*tally
}

func newABTally() *abTally {
	return &abTally{byName: make(map[string]*tally)}
}

// add charges o to the engine the session was assigned, so a fallback
// counts against the arm whose engine failed.
func (t *abTally) add(o *Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.byName[o.Selected]
	if e == nil {
		e = &tally{}
		t.byName[o.Selected] = e
	}
	e.queries++
	e.confidence += o.Confidence
	e.latencyMs += float64(o.ProcessingTime.Microseconds()) / 1000
	if o.FallbackUsed {
		e.fallbacks++
	}
	if o.Action != escalation.ActionNone {
		e.escalations++
	}
}

// summaries returns one entry per engine, ordered by name.
func (t *abTally) summaries() []learning.EngineSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]learning.EngineSummary, 0, len(t.byName))
	for name, e := range t.byName {
		n := float64(e.queries)
		out = append(out, learning.EngineSummary{
			Engine:         name,
			Queries:        e.queries,
			AvgConfidence:  e.confidence / n,
			AvgLatencyMs:   e.latencyMs / n,
			FallbackRate:   float64(e.fallbacks) / n,
			EscalationRate: float64(e.escalations) / n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Engine < out[j].Engine })
	return out
}

func (t *abTally) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byName = make(map[string]*tally)
}
