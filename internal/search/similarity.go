package search

import (
	"math"

	"github.com/khanglvm/profile-qa/internal/errkind"
)

// CosineSimilarity computes the cosine of the angle between a and b.
// It returns 0 when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errkind.InvalidInput("vector lengths differ: %d vs %d", len(a), len(b))
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		if !finite(x) || !finite(y) {
			return 0, errkind.InvalidInput("vector component %d is not a finite number", i)
		}
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push the result a hair past the unit interval.
	return math.Max(-1, math.Min(1, sim)), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
