package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates embeddings through an OpenAI-compatible
// /v1/embeddings endpoint. It works against the OpenAI API as well as local
// llama.cpp servers exposing the same interface via a custom base URL.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIProvider creates an embedding provider for the given endpoint.
// dimension is the expected vector size; every returned embedding is
// validated against it.
func NewOpenAIProvider(baseURL, apiKey, model string, dimension int) (*OpenAIProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: embedding base URL not configured", ErrUnavailable)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: embedding model not configured", ErrUnavailable)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be greater than 0", ErrUnavailable)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL + "/v1"

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed generates embeddings for the given texts in a single batched call.
// The result has the same length and order as the input.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != p.dimension {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), p.dimension)
		}
		result[i] = data.Embedding
	}

	return result, nil
}

// Dimension returns the configured vector size.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

// ModelInfo returns the model identifier.
func (p *OpenAIProvider) ModelInfo() string { return p.model }

// Available reports true; construction already validated configuration.
func (p *OpenAIProvider) Available() bool { return true }
