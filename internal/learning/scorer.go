package learning

import (
	"math"
	"sort"
	"time"

	"github.com/khanglvm/profile-qa/internal/storage"
)

const (
	// qualityWeight is the weight of mean answer confidence.
	qualityWeight = 0.6

	// reliabilityWeight is the weight of answering without failing or escalating.
	reliabilityWeight = 0.3

	// speedWeight is the weight of latency.
	speedWeight = 0.1

	// ScoreWindow is how far back history is considered.
	ScoreWindow = 7 * 24 * time.Hour

	// recencyHalfLife is the half-life for exponential decay of old outcomes.
	recencyHalfLife = 24 * time.Hour

	// referenceLatency is the latency that scores 0.5 on speed.
	referenceLatency = time.Second
)

// Score rates an engine from its outcome history in [0,1].
// Formula: 0.6*quality + 0.3*reliability + 0.1*speed, each a recency-weighted mean.
func Score(history []storage.OutcomeRecord) float64 {
	if len(history) == 0 {
		return 0.0
	}

	now := time.Now()
	var totalWeight, quality, reliability, speed float64

	for _, o := range history {
		// weight = e^(-ln(2) * t / half_life): 0.5 after a day, 0.25 after two
		hoursSince := math.Max(0, now.Sub(o.Timestamp).Hours())
		w := math.Exp(-math.Ln2 * hoursSince / recencyHalfLife.Hours())

		if !o.Failed() {
			quality += w * math.Max(0, math.Min(1, o.Confidence))
			if !o.Escalated() {
				reliability += w
			}
		}
		speed += w * speedOf(time.Duration(o.LatencyMs)*time.Millisecond)
		totalWeight += w
	}

	if totalWeight == 0 {
		return 0.0
	}

	return qualityWeight*quality/totalWeight +
		reliabilityWeight*reliability/totalWeight +
		speedWeight*speed/totalWeight
}

// speedOf maps latency to (0,1], halving at referenceLatency.
func speedOf(latency time.Duration) float64 {
	if latency <= 0 {
		return 1
	}
	return 1 / (1 + float64(latency)/float64(referenceLatency))
}

// EngineScore is an engine with its score for ranking.
type EngineScore struct {
	Engine string
	Score  float64
	// Samples is the number of outcomes the score is based on.
	Samples int
}

// RankEngines sorts engines by score, descending. Ties keep the given order.
func RankEngines(engines []string, s storage.Storage) []EngineScore {
	scores := make([]EngineScore, 0, len(engines))
	since := time.Now().Add(-ScoreWindow)

	for _, name := range engines {
		history, err := s.OutcomeHistory(name, since)
		if err != nil {
			continue
		}
		scores = append(scores, EngineScore{
			Engine:  name,
			Score:   Score(history),
			Samples: len(history),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}
