package knowledge

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultPriority   = 3
	defaultConfidence = 1.0
)

// LoadError reports a knowledge document that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("knowledge base: %v", e.Err)
	}
	return fmt.Sprintf("knowledge base %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// rawEntry mirrors Entry with pointer fields so absent values can be defaulted.
type rawEntry struct {
	ID         string            `yaml:"id"`
	Category   string            `yaml:"category"`
	Keywords   []string          `yaml:"keywords"`
	Embedding  []float32         `yaml:"embedding"`
	Responses  map[string]string `yaml:"responses"`
	Details    map[string]any    `yaml:"details"`
	Priority   *int              `yaml:"priority"`
	Confidence *float64          `yaml:"confidence"`
	Related    []string          `yaml:"related"`
}

// Load reads a knowledge document from path. Both YAML and JSON are accepted.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	base, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	return base, nil
}

// Parse decodes a category → key → entry document, keeping document order.
func Parse(data []byte) (*Base, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewBase(nil)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &LoadError{Err: fmt.Errorf("line %d: top level must be a mapping of categories", root.Line)}
	}

	var entries []*Entry
	for i := 0; i+1 < len(root.Content); i += 2 {
		category := root.Content[i].Value
		items := root.Content[i+1]
		if items.Kind != yaml.MappingNode {
			return nil, &LoadError{Err: fmt.Errorf("line %d: category %q must be a mapping of entries", items.Line, category)}
		}
		for j := 0; j+1 < len(items.Content); j += 2 {
			key := items.Content[j].Value
			e, err := decodeEntry(category, key, items.Content[j+1])
			if err != nil {
				return nil, &LoadError{Err: err}
			}
			entries = append(entries, e)
		}
	}

	base, err := NewBase(entries)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	return base, nil
}

func decodeEntry(category, key string, node *yaml.Node) (*Entry, error) {
	var raw rawEntry
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("line %d: entry %s.%s: %w", node.Line, category, key, err)
	}

	e := &Entry{
		ID:         raw.ID,
		Category:   raw.Category,
		Keywords:   raw.Keywords,
		Embedding:  raw.Embedding,
		Details:    raw.Details,
		Priority:   defaultPriority,
		Confidence: defaultConfidence,
		Related:    raw.Related,
		Responses:  make(map[Style]string, len(raw.Responses)),
	}
	if e.ID == "" {
		e.ID = category + "_" + key
	}
	if e.Category == "" {
		e.Category = category
	}
	if raw.Priority != nil {
		e.Priority = *raw.Priority
	}
	if raw.Confidence != nil {
		e.Confidence = *raw.Confidence
	}
	for style, text := range raw.Responses {
		if st, ok := ParseStyle(style); ok {
			e.Responses[st] = text
		}
	}
	return e, nil
}
