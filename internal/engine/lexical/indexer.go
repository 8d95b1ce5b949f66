/*
Package lexical is a reference engine that answers from a BM25 index of the
knowledge base.
*/
package lexical

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/logging"
)

// Hit is one BM25 search result.
type Hit struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Indexer manages the search index for knowledge entries.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	log        logging.Logger
}

// NewIndexer creates a new search indexer with in-memory Bleve index.
func NewIndexer(logger logging.Logger) (*Indexer, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Indexer{
		bleveIndex: index,
		log:        logging.OrDefault(logger),
	}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	entryMapping := bleve.NewDocumentMapping()

	// Keywords carry the strongest signal
	entryMapping.AddFieldMappingsAt("keywords", bleve.NewTextFieldMapping())
	entryMapping.AddFieldMappingsAt("text", bleve.NewTextFieldMapping())

	// Category is matched exactly for scoped searches
	categoryMapping := bleve.NewKeywordFieldMapping()
	categoryMapping.IncludeInAll = false
	entryMapping.AddFieldMappingsAt("category", categoryMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", entryMapping)

	return indexMapping
}

// Index adds every entry of base to the index.
func (i *Indexer) Index(base *knowledge.Base) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()

	for _, e := range base.Entries() {
		doc := map[string]interface{}{
			"keywords": strings.Join(e.Keywords, " "),
			"text":     e.SearchText(),
			"category": e.Category,
		}
		if err := batch.Index(e.ID, doc); err != nil {
			i.log.Warn("failed to index entry", "id", e.ID, "error", err)
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index entries: %w", err)
	}

	return nil
}

// Count returns the total number of indexed entries.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}

	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}

	return nil
}

// buildMatchQuery creates a match query for BM25 search.
func (i *Indexer) buildMatchQuery(searchText string) query.Query {
	return bleve.NewMatchQuery(searchText)
}
