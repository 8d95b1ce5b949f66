package knowledge

import "fmt"

// Base is an immutable, ordered knowledge base.
type Base struct {
	entries    []*Entry
	byID       map[string]*Entry
	categories []string
	byCategory map[string][]*Entry
	dims       int
}

// NewBase validates entries and indexes them in the given order.
func NewBase(entries []*Entry) (*Base, error) {
	b := &Base{
		entries:    make([]*Entry, 0, len(entries)),
		byID:       make(map[string]*Entry, len(entries)),
		byCategory: make(map[string][]*Entry),
	}

	for _, e := range entries {
		if e == nil {
			continue
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		if _, dup := b.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate entry id %q", e.ID)
		}
		if e.HasEmbedding() {
			if b.dims == 0 {
				b.dims = len(e.Embedding)
			} else if len(e.Embedding) != b.dims {
				return nil, fmt.Errorf("entry %s: embedding has %d dims, expected %d", e.ID, len(e.Embedding), b.dims)
			}
		}

		e.order = len(b.entries)
		e.buildSearchText()

		b.entries = append(b.entries, e)
		b.byID[e.ID] = e
		if _, seen := b.byCategory[e.Category]; !seen {
			b.categories = append(b.categories, e.Category)
		}
		b.byCategory[e.Category] = append(b.byCategory[e.Category], e)
	}

	return b, nil
}

// Entries returns all entries in insertion order.
func (b *Base) Entries() []*Entry {
	out := make([]*Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Get looks an entry up by id.
func (b *Base) Get(id string) (*Entry, bool) {
	e, ok := b.byID[id]
	return e, ok
}

// Categories returns category names in first-seen order.
func (b *Base) Categories() []string {
	out := make([]string, len(b.categories))
	copy(out, b.categories)
	return out
}

// Category returns the entries of one category in insertion order.
func (b *Base) Category(name string) []*Entry {
	src := b.byCategory[name]
	out := make([]*Entry, len(src))
	copy(out, src)
	return out
}

// Len returns the number of entries.
func (b *Base) Len() int { return len(b.entries) }

// Dims returns the embedding dimension, or 0 when no entry has a vector.
func (b *Base) Dims() int { return b.dims }
