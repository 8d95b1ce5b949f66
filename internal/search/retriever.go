package search

import (
	"sort"
	"strings"

	"github.com/khanglvm/profile-qa/internal/errkind"
	"github.com/khanglvm/profile-qa/internal/knowledge"
)

const (
	// DefaultMaxResults bounds the match list handed to prompts.
	DefaultMaxResults = 3
	// DefaultRelatedFactor scales the best score for an appended related entry.
	DefaultRelatedFactor = 0.5
)

// Config controls retrieval.
type Config struct {
	Threshold     ThresholdConfig
	Fusion        FusionConfig
	MaxResults    int
	RelatedFactor float64
}

// DefaultConfig returns the stock retrieval settings.
func DefaultConfig() Config {
	return Config{
		Threshold:     DefaultThresholdConfig(),
		Fusion:        DefaultFusionConfig,
		MaxResults:    DefaultMaxResults,
		RelatedFactor: DefaultRelatedFactor,
	}
}

// Retriever ranks the entries of one knowledge base. It is safe for
// concurrent use since the base is immutable.
type Retriever struct {
	base *knowledge.Base
	cfg  Config
}

// NewRetriever creates a Retriever over base.
func NewRetriever(base *knowledge.Base, cfg Config) *Retriever {
	if cfg.MaxResults <= 0 || cfg.MaxResults > DefaultMaxResults {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.RelatedFactor <= 0 {
		cfg.RelatedFactor = DefaultRelatedFactor
	}
	return &Retriever{base: base, cfg: cfg}
}

// Base returns the knowledge base being searched.
func (r *Retriever) Base() *knowledge.Base { return r.base }

// Threshold returns the adaptive threshold that applies to query.
func (r *Retriever) Threshold(query string) float64 {
	return r.cfg.Threshold.For(query)
}

// Retrieve returns at most MaxResults matches (plus one related entry when
// only a single match survives), sorted by adjusted score. queryVec may be
// nil, in which case only keyword overlap is used.
func (r *Retriever) Retrieve(query string, queryVec []float32) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errkind.InvalidInput("query is empty")
	}
	if len(queryVec) > 0 && r.base.Dims() > 0 && len(queryVec) != r.base.Dims() {
		return nil, errkind.InvalidInput("query vector has %d dims, knowledge base uses %d", len(queryVec), r.base.Dims())
	}

	tokens := contentTokens(query)
	threshold := r.Threshold(query)

	var matches []Match
	for _, e := range r.base.Entries() {
		m, err := r.score(e, tokens, queryVec)
		if err != nil {
			return nil, err
		}
		if m.Score > 0 && m.Score >= threshold {
			matches = append(matches, m)
		}
	}

	// Entries arrive in insertion order, so a stable sort breaks ties by it.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > r.cfg.MaxResults {
		matches = matches[:r.cfg.MaxResults]
	}

	if len(matches) == 1 {
		if rel, ok := r.related(matches[0]); ok {
			matches = append(matches, rel)
		}
	}
	return matches, nil
}

func (r *Retriever) score(e *knowledge.Entry, tokens []string, queryVec []float32) (Match, error) {
	kw, terms := keywordScore(e.SearchText(), e.Keywords, tokens)
	hasKeyword := len(tokens) > 0

	var raw, weighted float64
	hasSemantic := len(queryVec) > 0 && e.HasEmbedding()
	if hasSemantic {
		sim, err := CosineSimilarity(queryVec, e.Embedding)
		if err != nil {
			return Match{}, err
		}
		if sim < 0 {
			sim = 0
		}
		raw = sim
		weighted = sim * e.PriorityWeight() * e.Confidence
	}

	return Match{
		Entry:        e,
		RawScore:     fuseScores(raw, kw, hasSemantic, hasKeyword, r.cfg.Fusion),
		Score:        fuseScores(weighted, kw, hasSemantic, hasKeyword, r.cfg.Fusion),
		MatchedTerms: terms,
	}, nil
}

// related picks the first resolvable related entry of best.
func (r *Retriever) related(best Match) (Match, bool) {
	for _, id := range best.Entry.Related {
		if id == best.Entry.ID {
			continue
		}
		if e, ok := r.base.Get(id); ok {
			return Match{
				Entry:   e,
				Score:   best.Score * r.cfg.RelatedFactor,
				Related: true,
			}, true
		}
	}
	return Match{}, false
}
