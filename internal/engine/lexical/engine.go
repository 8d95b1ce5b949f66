package lexical

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/logging"
)

const (
	// Name is the engine kind.
	Name = "lexical"

	maxHits = 3
	// hitWeight blends the saturated BM25 score with the retrieval prior.
	hitWeight = 0.6
)

// Engine answers with the best BM25 hit's style-specific text.
type Engine struct {
	base *knowledge.Base
	log  logging.Logger

	mu      sync.Mutex
	indexer *Indexer
}

// New creates a lexical engine over base. Init builds the index.
func New(base *knowledge.Base, logger logging.Logger) *Engine {
	return &Engine{base: base, log: logging.OrDefault(logger).With("engine", Name)}
}

// Init builds the in-memory index. Calling it again is a no-op.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.indexer != nil {
		return nil
	}
	if e.base == nil {
		return errors.New("no knowledge base loaded")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, err := NewIndexer(e.log)
	if err != nil {
		return err
	}
	if err := idx.Index(e.base); err != nil {
		_ = idx.Close()
		return err
	}

	count, _ := idx.Count()
	e.log.Debug("index built", "entries", count)
	e.indexer = idx
	return nil
}

// Answer searches the index, scoped to the retrieval top match's category
// when that yields anything.
func (e *Engine) Answer(ctx context.Context, req engine.Request) (*engine.Success, error) {
	e.mu.Lock()
	idx := e.indexer
	e.mu.Unlock()
	if idx == nil {
		return nil, engine.ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hits []Hit
	var err error
	if len(req.Matches) > 0 {
		if top, ok := e.base.Get(req.Matches[0].ID); ok {
			hits, err = idx.SearchByCategory(req.Message, top.Category, maxHits)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(hits) == 0 {
		hits, err = idx.SearchBM25(req.Message, maxHits)
		if err != nil {
			return nil, err
		}
	}

	if len(hits) == 0 {
		return &engine.Success{Confidence: priorOf(req) * (1 - hitWeight)}, nil
	}

	best, ok := e.base.Get(hits[0].ID)
	if !ok {
		return nil, errors.New("index and knowledge base out of sync")
	}

	normalized := normalizeScores(hits)
	matches := make([]engine.EntryScore, 0, len(hits))
	for _, h := range normalized {
		matches = append(matches, engine.EntryScore{ID: h.ID, Similarity: h.Score})
	}

	return &engine.Success{
		Answer:     best.Response(req.Style),
		Confidence: confidence(hits[0].Score, priorOf(req)),
		Matches:    matches,
	}, nil
}

// Close releases the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexer == nil {
		return nil
	}
	err := e.indexer.Close()
	e.indexer = nil
	return err
}

// confidence saturates the raw BM25 score into [0,1) and blends in the prior.
func confidence(bm25, prior float64) float64 {
	saturated := bm25 / (bm25 + 1)
	c := hitWeight*saturated + (1-hitWeight)*prior
	return math.Max(0, math.Min(1, c))
}

func priorOf(req engine.Request) float64 {
	if len(req.Matches) == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, req.Matches[0].Score))
}
