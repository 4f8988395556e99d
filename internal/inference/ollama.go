package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/logging"
	"github.com/jmadden/news-digest/internal/retry"
)

// OllamaClient talks to a local Ollama server over its chat API.
//
// The HTTP client carries no timeout of its own: the gateway bounds every
// call through its context, and a second clock here would fight it.
type OllamaClient struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaClient creates a client from config.
func NewOllamaClient(cfg config.InferenceConfig) *OllamaClient {
	return &OllamaClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		client:   &http.Client{},
	}
}

func (c *OllamaClient) Name() string {
	return "ollama"
}

// Available reports whether the server is reachable and has the configured
// model pulled.
func (c *OllamaClient) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logging.Debug("ollama not reachable", "endpoint", c.endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	for _, m := range result.Models {
		if m.Name == c.model {
			return true
		}
	}
	logging.Debug("ollama model not found", "model", c.model, "available", len(result.Models))
	return false
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Generate sends one chat completion request. Transport failures come back
// as plain errors for the gateway to retry; unusable replies wrap
// ErrBadResponse and are permanent.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	jsonBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if retry.HTTPStatusRetryable(resp.StatusCode) {
			return "", fmt.Errorf("API error (status %d)", resp.StatusCode)
		}
		return "", fmt.Errorf("%w: API error (status %d): %s", ErrBadResponse, resp.StatusCode, previewBody(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrBadResponse, err)
	}

	content := strings.TrimSpace(result.Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrBadResponse)
	}

	logging.Debug("ollama call complete", "model", result.Model, "content_length", len(content))
	return content, nil
}

// previewBody keeps error messages readable when the server dumps HTML.
func previewBody(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
