package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// OllamaConfig configures the local-model-server adapter.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// OllamaProvider talks to a local Ollama-compatible model server.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider builds an adapter for the local model server.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	base := cfg.BaseURL
	if base == "" {
		base = "http://127.0.0.1:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaProvider{baseURL: base, model: model, client: client}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Summarize sends text to the local model server and returns its summary.
func (p *OllamaProvider) Summarize(ctx context.Context, text string) (string, error) {
	prompt := summarizePrompt(text)
	body, err := json.Marshal(ollamaGenerateRequest{Model: p.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: unexpected response status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("ollama: malformed response body: %w", err)
	}

	slog.Debug("ollama summarize complete", "model", p.model, "input_len", len(text), "output_len", len(parsed.Response))
	return parsed.Response, nil
}

// Health pings the local model server's tags endpoint.
func (p *OllamaProvider) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("ollama: build health request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("ollama: health request failed: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func summarizePrompt(text string) string {
	return fmt.Sprintf("Summarize the following text concisely, preserving key facts:\n\n%s", text)
}
