package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAI calls an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI embedder. The API key falls back to OPENAI_API_KEY.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai embedder needs an api key or a base url")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   cfg.Dims,
	}, nil
}

// Dims returns the requested vector size.
func (o *OpenAI) Dims() int { return o.dims }

// Embed sends texts in one batch request and returns vectors in input order.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dims,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings call failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned out-of-range embedding index %d", d.Index)
		}
		if o.dims > 0 && len(d.Embedding) != o.dims {
			return nil, fmt.Errorf("openai returned %d dims, expected %d", len(d.Embedding), o.dims)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
