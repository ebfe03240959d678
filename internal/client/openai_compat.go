package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 512

// APIError is a non-2xx answer from an upstream provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// compatAPI is the bearer-token JSON transport shared by OpenAI-compatible providers.
type compatAPI struct {
	provider string
	hc       *http.Client
	baseURL  string
	apiKey   string
}

func newCompatAPI(provider, baseURL, apiKey string, timeout time.Duration) compatAPI {
	return compatAPI{
		provider: provider,
		hc:       &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
	}
}

func (a compatAPI) configured() bool {
	return a.apiKey != "" && a.baseURL != ""
}

// do sends in as JSON (nil means no body) and decodes a 200 answer into out.
func (a compatAPI) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", a.provider, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", a.provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", a.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Provider: a.provider, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", a.provider, err)
	}
	return nil
}
