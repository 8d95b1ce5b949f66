package search

// FusionConfig defines weights for hybrid score fusion.
type FusionConfig struct {
	SemanticWeight float64 `koanf:"semantic_weight" validate:"gte=0,lte=1"`
	KeywordWeight  float64 `koanf:"keyword_weight" validate:"gte=0,lte=1"`
}

// DefaultFusionConfig provides balanced fusion (70% semantic, 30% keyword).
var DefaultFusionConfig = FusionConfig{
	SemanticWeight: 0.7,
	KeywordWeight:  0.3,
}

// fuseScores combines the two signals. A missing signal contributes nothing
// and the present one is used as is.
func fuseScores(semantic, keyword float64, hasSemantic, hasKeyword bool, config FusionConfig) float64 {
	switch {
	case hasSemantic && hasKeyword:
		return config.SemanticWeight*semantic + config.KeywordWeight*keyword
	case hasSemantic:
		return semantic
	case hasKeyword:
		return keyword
	default:
		return 0
	}
}
