/*
Package semantic is a reference engine that ranks knowledge entries by cosine
similarity between the embedded question and each entry's vector.

Entries that ship without a vector are embedded from their search text when
the engine initializes, so every entry takes part in ranking.
*/
package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/khanglvm/profile-qa/internal/embedding"
	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/search"
)

// Name is the engine kind.
const Name = "semantic"

const (
	maxMatches = 3
	// minSimilarity drops near-orthogonal entries from the match list.
	minSimilarity = 0.05
	priorWeight   = 0.3
)

type vectorEntry struct {
	entry  *knowledge.Entry
	vector []float32
}

// VectorCache stores entry vectors between runs.
type VectorCache interface {
	GetEmbedding(key string) ([]float32, string, error)
	SaveEmbedding(key string, vector []float32, version string) error
}

// Engine answers with the style-specific text of the closest entry.
type Engine struct {
	base     *knowledge.Base
	embedder embedding.Embedder
	cache    VectorCache
	log      logging.Logger

	mu      sync.RWMutex
	vectors []vectorEntry
}

// New creates a semantic engine. A nil embedder means a hashing embedder
// sized to the knowledge base vectors.
func New(base *knowledge.Base, embedder embedding.Embedder, logger logging.Logger) *Engine {
	if embedder == nil {
		dims := 0
		if base != nil {
			dims = base.Dims()
		}
		embedder = embedding.NewHashing(dims)
	}
	return &Engine{
		base:     base,
		embedder: embedder,
		log:      logging.OrDefault(logger).With("engine", Name),
	}
}

// WithCache makes Init reuse vectors computed by earlier runs.
func (e *Engine) WithCache(c VectorCache) *Engine {
	e.cache = c
	return e
}

// Init prepares one vector per entry. Entries whose stored vector does not
// fit the embedder are re-embedded from text.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vectors != nil {
		return nil
	}
	if e.base == nil {
		return errors.New("no knowledge base loaded")
	}

	entries := e.base.Entries()
	vectors := make([]vectorEntry, len(entries))

	var missing []int
	var texts []string
	for i, entry := range entries {
		vectors[i].entry = entry
		if entry.HasEmbedding() && len(entry.Embedding) == e.embedder.Dims() {
			vectors[i].vector = entry.Embedding
			continue
		}
		if vec, ok := e.cached(entry); ok {
			vectors[i].vector = vec
			continue
		}
		missing = append(missing, i)
		texts = append(texts, entry.SearchText())
	}

	if len(texts) > 0 {
		embedded, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed knowledge entries: %w", err)
		}
		if len(embedded) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d entries", len(embedded), len(texts))
		}
		for j, idx := range missing {
			vectors[idx].vector = embedded[j]
			e.store(vectors[idx].entry, embedded[j])
		}
	}

	e.log.Debug("vectors ready", "entries", len(vectors), "embedded", len(texts))
	e.vectors = vectors
	return nil
}

func (e *Engine) cached(entry *knowledge.Entry) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	vec, version, err := e.cache.GetEmbedding(entry.ID)
	if err != nil || vec == nil {
		return nil, false
	}
	if version != e.vectorVersion(entry) || len(vec) != e.embedder.Dims() {
		return nil, false
	}
	return vec, true
}

func (e *Engine) store(entry *knowledge.Entry, vec []float32) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SaveEmbedding(entry.ID, vec, e.vectorVersion(entry)); err != nil {
		e.log.Warn("failed to cache vector", "id", entry.ID, "error", err)
	}
}

// vectorVersion changes whenever the entry text or the embedder changes.
func (e *Engine) vectorVersion(entry *knowledge.Entry) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%T|%d|%s", e.embedder, e.embedder.Dims(), entry.SearchText())))
	return hex.EncodeToString(h[:8])
}

// Answer embeds the question and returns the closest entries.
func (e *Engine) Answer(ctx context.Context, req engine.Request) (*engine.Success, error) {
	e.mu.RLock()
	vectors := e.vectors
	e.mu.RUnlock()
	if vectors == nil {
		return nil, engine.ErrNotReady
	}

	out, err := e.embedder.Embed(ctx, []string{req.Message})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 question", len(out))
	}
	query := out[0]

	type scored struct {
		entry *knowledge.Entry
		sim   float64
	}
	var ranked []scored
	for _, v := range vectors {
		sim, err := search.CosineSimilarity(query, v.vector)
		if err != nil {
			e.log.Warn("skipping entry", "id", v.entry.ID, "error", err)
			continue
		}
		if sim < minSimilarity {
			continue
		}
		ranked = append(ranked, scored{entry: v.entry, sim: sim})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
	if len(ranked) > maxMatches {
		ranked = ranked[:maxMatches]
	}

	if len(ranked) == 0 {
		return &engine.Success{}, nil
	}

	matches := make([]engine.EntryScore, len(ranked))
	for i, r := range ranked {
		matches[i] = engine.EntryScore{ID: r.entry.ID, Similarity: r.sim}
	}

	best := ranked[0]
	return &engine.Success{
		Answer:     best.entry.Response(req.Style),
		Confidence: confidence(best.sim, best.entry, req),
		Matches:    matches,
	}, nil
}

// Close drops the prepared vectors.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.vectors = nil
	e.mu.Unlock()
	return nil
}

// confidence weights similarity by the entry's own confidence and blends in
// the retrieval score when retrieval agreed on the same entry.
func confidence(sim float64, entry *knowledge.Entry, req engine.Request) float64 {
	c := sim * entry.Confidence
	for _, m := range req.Matches {
		if m.ID == entry.ID {
			c = (1-priorWeight)*c + priorWeight*m.Score
			break
		}
	}
	return math.Max(0, math.Min(1, c))
}
