/*
Package search ranks knowledge entries against a free-text question.

Ranking combines keyword overlap with optional vector similarity, filters
by an adaptive threshold and returns a small, stably sorted match list.
*/
package search

import "github.com/khanglvm/profile-qa/internal/knowledge"

// Match is the result of scoring one entry against one query.
type Match struct {
	Entry *knowledge.Entry `json:"-"`
	// RawScore is the unweighted similarity/keyword score.
	RawScore float64 `json:"raw_score"`
	// Score is the priority- and confidence-adjusted ranking score.
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
	// Related marks a match appended from the best match's related list.
	Related bool `json:"related,omitempty"`
}

// ID returns the matched entry id.
func (m Match) ID() string {
	if m.Entry == nil {
		return ""
	}
	return m.Entry.ID
}

// IDs returns the entry ids of matches in order.
func IDs(matches []Match) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID())
	}
	return ids
}

// TopScore returns the best score, or 0 for an empty list.
func TopScore(matches []Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	return matches[0].Score
}
