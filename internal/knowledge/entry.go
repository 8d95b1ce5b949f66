/*
Package knowledge models the fixed knowledge base the assistant answers from.

A knowledge base is a hierarchical mapping of category → entry key → Entry.
Entries are created once at load time and never mutated afterwards.
*/
package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// Style is a response style. The set is closed.
type Style string

const (
	// StyleHR answers for recruiters: achievements and business impact.
	StyleHR Style = "hr"
	// StyleDeveloper answers for engineers: technical depth.
	StyleDeveloper Style = "developer"
	// StyleFriend answers casually.
	StyleFriend Style = "friend"
)

// DefaultStyle is used when no style has been selected.
const DefaultStyle = StyleDeveloper

// Styles returns the closed set of response styles in display order.
func Styles() []Style {
	return []Style{StyleHR, StyleDeveloper, StyleFriend}
}

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	switch s {
	case StyleHR, StyleDeveloper, StyleFriend:
		return true
	}
	return false
}

// ParseStyle normalizes s and reports whether it names a known style.
func ParseStyle(s string) (Style, bool) {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Entry is one immutable fact/topic of the knowledge base.
type Entry struct {
	ID         string           `json:"id" yaml:"id"`
	Category   string           `json:"category" yaml:"category"`
	Keywords   []string         `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Embedding  []float32        `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	Responses  map[Style]string `json:"responses" yaml:"responses"`
	Details    map[string]any   `json:"details,omitempty" yaml:"details,omitempty"`
	Priority   int              `json:"priority" yaml:"priority"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Related    []string         `json:"related,omitempty" yaml:"related,omitempty"`

	searchText string
	order      int
}

// SearchText is the lowercase text keyword matching runs against.
func (e *Entry) SearchText() string { return e.searchText }

// Order is the entry's insertion position in its knowledge base.
func (e *Entry) Order() int { return e.order }

// HasEmbedding reports whether the entry carries a vector representation.
func (e *Entry) HasEmbedding() bool { return len(e.Embedding) > 0 }

// PriorityWeight maps priority 1..5 to a weight of 1.0..0.2.
func (e *Entry) PriorityWeight() float64 {
	return float64(6-e.Priority) / 5
}

// Response returns the canonical answer text for style.
// Unknown or missing styles fall back to the first available style.
func (e *Entry) Response(style Style) string {
	if text, ok := e.Responses[style]; ok && text != "" {
		return text
	}
	for _, s := range Styles() {
		if text := e.Responses[s]; text != "" {
			return text
		}
	}
	return ""
}

// validate enforces the entry invariants.
func (e *Entry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry has empty id")
	}
	if e.Priority < 1 || e.Priority > 5 {
		return fmt.Errorf("entry %s: priority %d outside 1..5", e.ID, e.Priority)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("entry %s: confidence %.2f outside [0,1]", e.ID, e.Confidence)
	}
	return nil
}

// buildSearchText flattens every textual field into one lowercase string.
func (e *Entry) buildSearchText() {
	parts := []string{e.ID, e.Category}
	parts = append(parts, e.Keywords...)
	for _, s := range Styles() {
		if text := e.Responses[s]; text != "" {
			parts = append(parts, text)
		}
	}
	parts = append(parts, flattenDetails(e.Details)...)
	e.searchText = strings.ToLower(strings.Join(parts, " "))
}

// flattenDetails collects string values from nested detail fields in key order.
func flattenDetails(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, flattenDetails(item)...)
		}
		return out
	case []string:
		return val
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, flattenDetails(val[k])...)
		}
		return out
	default:
		return nil
	}
}

// CategoryOf returns the leading category segment of an entry id,
// the text before the first '_', '.', '/' or ':'.
func CategoryOf(id string) string {
	if i := strings.IndexAny(id, "_./:"); i > 0 {
		return id[:i]
	}
	return id
}

// Related reports whether two entry ids share an identity or a category segment.
func Related(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || CategoryOf(a) == CategoryOf(b)
}
