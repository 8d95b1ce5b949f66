package learning

import (
	"math/rand"
	"sync"
	"time"

	"github.com/khanglvm/profile-qa/internal/storage"
)

// DefaultEpsilon is the exploration rate (0.1 = 10% explore, 90% exploit).
const DefaultEpsilon = 0.1

// EpsilonGreedy implements an ε-greedy multi-armed bandit over engines.
type EpsilonGreedy struct {
	mu      sync.Mutex
	epsilon float64
	rng     *rand.Rand
}

// NewEpsilonGreedy creates a bandit. A seed of 0 seeds from the clock.
func NewEpsilonGreedy(epsilon float64, seed int64) *EpsilonGreedy {
	if epsilon < 0 || epsilon > 1 {
		epsilon = DefaultEpsilon
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &EpsilonGreedy{epsilon: epsilon, rng: rand.New(rand.NewSource(seed))}
}

// SelectEngine picks an engine using ε-greedy.
// With probability ε it explores (uniform choice); otherwise it exploits the
// highest-scoring engine. explored reports which branch was taken.
func (e *EpsilonGreedy) SelectEngine(engines []string, s storage.Storage) (engine string, explored bool) {
	if len(engines) == 0 {
		return "", false
	}
	if len(engines) == 1 {
		return engines[0], false
	}

	e.mu.Lock()
	explore := e.rng.Float64() < e.epsilon
	pick := e.rng.Intn(len(engines))
	e.mu.Unlock()

	if explore || s == nil {
		return engines[pick], true
	}

	scores := RankEngines(engines, s)
	if len(scores) == 0 || scores[0].Samples == 0 {
		// No history yet: explore
		return engines[pick], true
	}

	return scores[0].Engine, false
}

// SetEpsilon updates the exploration rate. Values outside [0,1] are ignored.
func (e *EpsilonGreedy) SetEpsilon(eps float64) {
	if eps < 0 || eps > 1 {
		return
	}
	e.mu.Lock()
	e.epsilon = eps
	e.mu.Unlock()
}

// Epsilon returns the current exploration rate.
func (e *EpsilonGreedy) Epsilon() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epsilon
}
