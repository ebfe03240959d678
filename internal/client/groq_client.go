package client

import (
	"context"
	"net/http"
	"time"

	"github.com/hirewise/api/internal/config"
)

const (
	groqTimeout     = 90 * time.Second
	groqTemperature = 0.2
	groqMaxTokens   = 2048
)

// GroqClient asks a Groq-hosted model for JSON answers.
type GroqClient struct {
	api   compatAPI
	model string
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse keeps only what callers read.
type ChatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func NewGroqClient(cfg *config.GroqConfig) *GroqClient {
	return &GroqClient{
		api:   newCompatAPI("groq", cfg.BaseURL, cfg.APIKey, groqTimeout),
		model: cfg.Model,
	}
}

// ChatCompletion runs one system+user exchange in JSON mode and returns the
// first choice's content, or "" when the model produced nothing.
func (c *GroqClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	req := ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    groqTemperature,
		MaxTokens:      groqMaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	var resp ChatCompletionResponse
	if err := c.api.do(ctx, http.MethodPost, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping lists models; a 200 means the key is accepted.
func (c *GroqClient) Ping(ctx context.Context) error {
	return c.api.do(ctx, http.MethodGet, "/models", nil, nil)
}

func (c *GroqClient) IsConfigured() bool {
	return c.api.apiKey != ""
}
