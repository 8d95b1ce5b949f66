package lexical

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchBM25 performs BM25 keyword search using Bleve.
func (i *Indexer) SearchBM25(text string, limit int) ([]Hit, error) {
	return i.search(i.buildMatchQuery(text), limit)
}

// SearchByCategory performs BM25 search scoped to one category.
func (i *Indexer) SearchByCategory(text, category string, limit int) ([]Hit, error) {
	// (match query) AND (category filter)
	categoryQuery := bleve.NewTermQuery(category)
	categoryQuery.SetField("category")

	return i.search(bleve.NewConjunctionQuery(i.buildMatchQuery(text), categoryQuery), limit)
}

func (i *Indexer) search(q query.Query, limit int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	searchRequest := bleve.NewSearchRequestOptions(q, limit, 0, false)
	searchRequest.Fields = []string{"category"}

	results, err := i.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(results), nil
}

// convertBleveResults converts Bleve search results to hits.
func convertBleveResults(results *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		category, _ := h.Fields["category"].(string)
		hits = append(hits, Hit{ID: h.ID, Category: category, Score: h.Score})
	}
	return hits
}

// normalizeScores scales scores so the best hit is 1.0.
func normalizeScores(hits []Hit) []Hit {
	if len(hits) == 0 {
		return hits
	}

	maxScore := hits[0].Score
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	normalized := make([]Hit, len(hits))
	for i, h := range hits {
		normalized[i] = h
		if maxScore > 0 {
			normalized[i].Score = h.Score / maxScore
		} else {
			normalized[i].Score = 0
		}
	}
	return normalized
}
