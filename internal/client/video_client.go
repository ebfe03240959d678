package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hirewise/api/internal/config"
)

// VideoClient calls the external video-analysis service that turns interview
// recordings into transcripts
type VideoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	// scrub zeroes the encoded form once the request is done
	scrub func([]byte)
}

// TranscribeRequest carries the recording to transcribe
type TranscribeRequest struct {
	FileName string
	MIMEType string
	Data     []byte
	Language string
}

type TranscriptSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// TranscribeResponse represents the transcription returned by the service
type TranscribeResponse struct {
	Transcript string              `json:"transcript"`
	Language   string              `json:"language"`
	Duration   float64             `json:"duration"`
	Segments   []TranscriptSegment `json:"segments,omitempty"`
}

// NewVideoClient creates a new video analysis client
func NewVideoClient(cfg *config.VideoConfig) *VideoClient {
	return &VideoClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
		apiKey:  cfg.APIKey,
		scrub:   func(b []byte) { clear(b) },
	}
}

// Transcribe uploads the recording as multipart form data
func (c *VideoClient) Transcribe(ctx context.Context, in *TranscribeRequest) (*TranscribeResponse, error) {
	// sized up front so the form holds the recording's only extra copy
	var body bytes.Buffer
	body.Grow(len(in.Data) + 4096)
	w := multipart.NewWriter(&body)
	if in.Language != "" {
		if err := w.WriteField("language", in.Language); err != nil {
			return nil, fmt.Errorf("failed to write form: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", in.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(in.Data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}
	form := body.Bytes()
	defer c.scrub(form)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Provider: "video", StatusCode: resp.StatusCode, Body: string(respBody[:min(len(respBody), maxErrorBody)])}
	}

	var result TranscribeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// HealthCheck checks if the video service is available
func (c *VideoClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("video service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// HasAPIKey reports whether the analysis key is present
func (c *VideoClient) HasAPIKey() bool {
	return c.apiKey != ""
}

// IsConfigured returns true if the client has valid configuration
func (c *VideoClient) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}
