package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/api/internal/config"
)

func TestGroqClient_ChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`)
	}))
	defer srv.Close()

	c := NewGroqClient(&config.GroqConfig{APIKey: "key", BaseURL: srv.URL, Model: "test-model"})
	out, err := c.ChatCompletion(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.True(t, c.IsConfigured())
}

func TestGroqClient_StatusErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"slow down"}`)
	}))
	defer srv.Close()

	c := NewGroqClient(&config.GroqConfig{APIKey: "key", BaseURL: srv.URL})
	_, err := c.ChatCompletion(context.Background(), "sys", "user")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "slow down")
}

func TestEmbeddingClient_CreateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		io.WriteString(w, `{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()

	c := NewEmbeddingClient(&config.EmbeddingConfig{APIKey: "key", BaseURL: srv.URL, Model: "embed-small"})
	out, err := c.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.Len(t, out.Data[0].Embedding, 3)
	assert.Equal(t, "embed-small", out.Model)
}

func TestVideoClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)
		assert.Equal(t, "vk", r.Header.Get("X-API-Key"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "interview.mp4", header.Filename)
		assert.Equal(t, []byte("video-bytes"), data)

		io.WriteString(w, `{"transcript":"hello there","language":"en","duration":12.5}`)
	}))
	defer srv.Close()

	c := NewVideoClient(&config.VideoConfig{ServiceURL: srv.URL, APIKey: "vk", Timeout: 5})
	out, err := c.Transcribe(context.Background(), &TranscribeRequest{
		FileName: "interview.mp4",
		MIMEType: "video/mp4",
		Data:     []byte("video-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out.Transcript)
	assert.True(t, c.IsConfigured())
}

func TestVideoClient_NotConfiguredWithoutKey(t *testing.T) {
	c := NewVideoClient(&config.VideoConfig{ServiceURL: "http://localhost"})
	assert.False(t, c.IsConfigured())
	assert.False(t, c.HasAPIKey())
}

func TestNewR2Client_RequiresConfig(t *testing.T) {
	_, err := NewR2Client(&config.R2Config{AccessKeyID: "k", SecretAccessKey: "s", BucketName: "b"})
	assert.ErrorContains(t, err, "account id")

	_, err = NewR2Client(&config.R2Config{AccountID: "acct", BucketName: "b"})
	assert.ErrorContains(t, err, "credentials")

	_, err = NewR2Client(&config.R2Config{AccountID: "acct", AccessKeyID: "k", SecretAccessKey: "s"})
	assert.ErrorContains(t, err, "bucket")
}

func TestR2Client_PresignUpload(t *testing.T) {
	c, err := NewR2Client(&config.R2Config{
		AccountID:       "acct",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "uploads",
		PublicURL:       "https://cdn.hirewise.test/",
	})
	require.NoError(t, err)

	signed, err := c.PresignUpload(context.Background(), "intents/j1/cv.pdf", "application/pdf", 1024, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, signed.Method)
	assert.True(t, strings.HasPrefix(signed.URL, "https://acct.r2.cloudflarestorage.com/uploads/intents/j1/cv.pdf?"), signed.URL)
	assert.Contains(t, signed.URL, "X-Amz-Signature=")
	assert.NotContains(t, signed.Headers, "Host")
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), signed.ExpiresAt, 5*time.Second)

	assert.Equal(t, "https://cdn.hirewise.test/intents/j1/cv.pdf", c.objectURL("intents/j1/cv.pdf"))
}

func TestClientHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Host", "acct.r2.cloudflarestorage.com")
	h.Set("Content-Length", "1024")
	h.Set("Content-Type", "application/pdf")

	assert.Equal(t, map[string]string{"Content-Type": "application/pdf"}, clientHeaders(h))
}

func TestVideoClient_TranscribeScrubsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"transcript":"ok"}`)
	}))
	defer srv.Close()

	c := NewVideoClient(&config.VideoConfig{ServiceURL: srv.URL, APIKey: "vk", Timeout: 5})
	var form []byte
	c.scrub = func(b []byte) {
		clear(b)
		form = b
	}

	recording := []byte("secret-interview-bytes")
	_, err := c.Transcribe(context.Background(), &TranscribeRequest{FileName: "i.mp4", MIMEType: "video/mp4", Data: recording})
	require.NoError(t, err)

	require.Greater(t, len(form), len(recording))
	assert.Equal(t, len(form), bytes.Count(form, []byte{0}), "form buffer must be zeroed")
}

func TestVideoClient_HealthCheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "vk", r.Header.Get("X-API-Key"))
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := NewVideoClient(&config.VideoConfig{ServiceURL: srv.URL, APIKey: "vk", Timeout: 5})
	require.NoError(t, c.HealthCheck(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	assert.ErrorContains(t, c.HealthCheck(context.Background()), "503")
}
