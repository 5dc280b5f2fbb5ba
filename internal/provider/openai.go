package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig configures the remote-hosted-service adapter.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

// OpenAIProvider talks to a remote hosted chat-completion style API.
// Transport-error retry classification follows the same idiom as
// alantangok-Scriberr's OpenAIAdapter.Transcribe: match the error string
// for transient network symptoms and retry a bounded number of times.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider builds an adapter for the remote hosted model service.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1/chat/completions"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &OpenAIProvider{apiKey: cfg.APIKey, model: model, baseURL: base, client: client}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize sends text to the remote hosted model service.
func (p *OpenAIProvider) Summarize(ctx context.Context, text string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You summarize text concisely and preserve key facts."},
			{Role: "user", Content: text},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}

	resp, err := p.doWithRetry(ctx, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: unexpected response status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("openai: malformed response body: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: malformed response body: no choices returned")
	}

	slog.Debug("openai summarize complete", "model", p.model, "input_len", len(text))
	return parsed.Choices[0].Message.Content, nil
}

// doWithRetry retries the HTTP call a bounded number of times on transient
// network errors, mirroring Scriberr's OpenAIAdapter transport-retry idiom.
// Retryable decisions about provider-level failures (timeouts, 5xx) belong
// to the scheduler's own retry/backoff loop (spec.md §4.2); this only
// absorbs flaky connection setup below that layer.
func (p *OpenAIProvider) doWithRetry(ctx context.Context, payload []byte) (*http.Response, error) {
	const maxAttempts = 2
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("openai: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isTransient(err) || attempt == maxAttempts {
			return nil, fmt.Errorf("openai: request failed: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("openai: request failed: %w", lastErr)
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "eof") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection closed")
}

// Health issues a cheap request to confirm the remote service is reachable.
func (p *OpenAIProvider) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.openai.com/v1/models", nil)
	if err != nil {
		return false, fmt.Errorf("openai: build health request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("openai: health request failed: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
