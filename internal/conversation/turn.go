/*
Package conversation keeps the bounded history of one chat session.

The Manager owns the ordered turn sequence. Turns are appended, evicted
oldest-first past the cap, and never modified after creation.
*/
package conversation

import (
	"time"

	"github.com/khanglvm/profile-qa/internal/knowledge"
)

// Turn is one user/assistant exchange.
type Turn struct {
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	MatchedIDs []string        `json:"matched_ids,omitempty"`
	Confidence float64         `json:"confidence"`
	Style      knowledge.Style `json:"style,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RelatedTo reports whether any matched id of t shares identity or category
// with one of topicIDs.
func (t Turn) RelatedTo(topicIDs []string) bool {
	for _, id := range t.MatchedIDs {
		for _, topic := range topicIDs {
			if knowledge.Related(id, topic) {
				return true
			}
		}
	}
	return false
}

// clone returns a deep copy so callers cannot reach the manager's slices.
func (t Turn) clone() Turn {
	if t.MatchedIDs != nil {
		ids := make([]string, len(t.MatchedIDs))
		copy(ids, t.MatchedIDs)
		t.MatchedIDs = ids
	}
	return t
}
