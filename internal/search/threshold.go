package search

import (
	"math"
	"strings"
)

// ThresholdConfig tunes the adaptive acceptance cutoff.
// Short and interrogative queries lower the bar; technical queries raise it.
type ThresholdConfig struct {
	Base                float64  `koanf:"base_threshold" validate:"gte=0,lte=1"`
	ShortOffset         float64  `koanf:"short_offset" validate:"gte=0,lte=1"`
	InterrogativeOffset float64  `koanf:"interrogative_offset" validate:"gte=0,lte=1"`
	TechnicalOffset     float64  `koanf:"technical_offset" validate:"gte=0,lte=1"`
	ShortLength         int      `koanf:"short_length" validate:"gte=1"`
	Min                 float64  `koanf:"min_threshold" validate:"gte=0,lte=1"`
	Max                 float64  `koanf:"max_threshold" validate:"gte=0,lte=1,gtefield=Min"`
	TechnicalTerms      []string `koanf:"technical_terms"`
}

// DefaultThresholdConfig returns the stock threshold tuning.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Base:                0.25,
		ShortOffset:         0.10,
		InterrogativeOffset: 0.05,
		TechnicalOffset:     0.10,
		ShortLength:         20,
		Min:                 0.05,
		Max:                 0.9,
		TechnicalTerms: []string{
			"architecture", "algorithm", "implementation", "api", "database",
			"infrastructure", "microservices", "kubernetes", "docker", "framework",
			"typescript", "concurrency", "scalability", "performance",
			"optimization", "deployment", "latency", "protocol",
		},
	}
}

var questionWords = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"can", "could", "do", "does", "did", "is", "are", "have", "tell",
}

// IsInterrogative reports whether query contains '?' or starts with a question word.
func IsInterrogative(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if strings.Contains(q, "?") {
		return true
	}
	first, _, _ := strings.Cut(q, " ")
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}
	return false
}

// IsTechnical reports whether query mentions a configured technical term.
func (c ThresholdConfig) IsTechnical(query string) bool {
	lower := strings.ToLower(query)
	for _, term := range c.TechnicalTerms {
		if containsWord(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// For returns the acceptance threshold for query.
func (c ThresholdConfig) For(query string) float64 {
	q := strings.TrimSpace(query)
	t := c.Base

	if len([]rune(q)) < c.ShortLength {
		t -= c.ShortOffset
	}
	if IsInterrogative(q) {
		t -= c.InterrogativeOffset
	}
	if c.IsTechnical(q) {
		t += c.TechnicalOffset
	}

	lo, hi := c.Min, c.Max
	if hi <= 0 {
		hi = 1
	}
	return math.Max(lo, math.Min(hi, t))
}
