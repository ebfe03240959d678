package client

import (
	"context"
	"net/http"
	"time"

	"github.com/hirewise/api/internal/config"
)

// EmbeddingClient talks to an OpenAI-compatible /embeddings endpoint.
type EmbeddingClient struct {
	api   compatAPI
	model string
}

type EmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type EmbeddingResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewEmbeddingClient(cfg *config.EmbeddingConfig) *EmbeddingClient {
	return &EmbeddingClient{
		api:   newCompatAPI("embedding", cfg.BaseURL, cfg.APIKey, 30*time.Second),
		model: cfg.Model,
	}
}

// CreateEmbedding embeds a single input. Model falls back to the configured one
// when the provider leaves it out.
func (c *EmbeddingClient) CreateEmbedding(ctx context.Context, input string) (*EmbeddingResponse, error) {
	var out EmbeddingResponse
	if err := c.api.do(ctx, http.MethodPost, "/embeddings", EmbeddingRequest{Model: c.model, Input: input}, &out); err != nil {
		return nil, err
	}
	if out.Model == "" {
		out.Model = c.model
	}
	return &out, nil
}

func (c *EmbeddingClient) IsConfigured() bool {
	return c.api.configured()
}
