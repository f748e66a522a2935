package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama generation can be slow on first load while the model is paged in.
const ollamaTimeout = 120 * time.Second

// OllamaProvider implements Provider against a local Ollama instance.
// No API key is required.
type OllamaProvider struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg *Config) (*OllamaProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		model:      model,
		baseURL:    strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{Timeout: ollamaTimeout},
	}, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return ProviderOllama
}

// Generate produces a value for the request.
func (p *OllamaProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	raw, err := p.Complete(ctx, buildPrompt(req))
	if err != nil {
		return nil, err
	}
	value, err := parseGeneratedValue(raw)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOllama, Message: "failed to parse response", Cause: err}
	}
	return &GenerateResponse{Value: value, RawResponse: raw}, nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete runs a free-form completion.
func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: p.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: ProviderOllama, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &ProviderError{Provider: ProviderOllama, Message: "malformed response", Cause: err}
	}
	if parsed.Error != "" {
		return "", &ProviderError{Provider: ProviderOllama, Message: parsed.Error}
	}
	return parsed.Response, nil
}
