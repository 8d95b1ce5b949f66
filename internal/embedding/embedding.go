/*
Package embedding turns text into vectors for the semantic retrieval path.

Two providers exist: a deterministic feature-hashing embedder that needs no
network, and an OpenAI-compatible embeddings client.
*/
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder converts texts to equal-length vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
}

// Provider names.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
)

// Config selects and configures an embedder.
type Config struct {
	Provider string `koanf:"provider" validate:"oneof=hashing openai"`
	Model    string `koanf:"model"`
	Dims     int    `koanf:"dims" validate:"gte=8,lte=4096"`
	BaseURL  string `koanf:"base_url" validate:"omitempty,url"`
	APIKey   string `koanf:"api_key"`
}

// DefaultConfig uses the offline hashing embedder.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderHashing,
		Model:    "text-embedding-3-small",
		Dims:     256,
	}
}

// New builds the embedder named by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", ProviderHashing:
		return NewHashing(cfg.Dims), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Hashing is a bag-of-words feature-hashing embedder. Equal text always
// yields an equal, L2-normalized vector.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing embedder with dims buckets.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultConfig().Dims
	}
	return &Hashing{dims: dims}
}

// Dims returns the vector size.
func (h *Hashing) Dims() int { return h.dims }

// Embed hashes every word and character trigram of each text into buckets.
func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *Hashing) embedOne(text string) []float32 {
	vec := make([]float32, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		h.add(vec, "w:"+w, 1)
		padded := []rune("^" + w + "$")
		for j := 0; j+3 <= len(padded); j++ {
			h.add(vec, "g:"+string(padded[j:j+3]), 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// add uses the hash's top bit as a sign so collisions tend to cancel.
func (h *Hashing) add(vec []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
