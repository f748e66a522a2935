package ai

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

const (
	anthropicDefaultEndpoint = "https://api.anthropic.com/v1"
	anthropicAPIVersion      = "2023-06-01"
	anthropicTimeout         = 30 * time.Second
)

// AnthropicProvider implements Provider using Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg *Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for Anthropic", ErrAPIKeyMissing)
	}
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = anthropicDefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &AnthropicProvider{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: anthropicTimeout},
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Generate produces a value for the request.
func (p *AnthropicProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	raw, tokens, err := p.message(ctx, buildPrompt(req))
	if err != nil {
		return nil, err
	}
	value, err := parseGeneratedValue(raw)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderAnthropic, Message: "failed to parse response", Cause: err}
	}
	return &GenerateResponse{Value: value, RawResponse: raw, TokensUsed: tokens}, nil
}

// Complete runs a free-form completion.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	raw, _, err := p.message(ctx, prompt)
	return raw, err
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicProvider) message(ctx context.Context, prompt string) (string, int, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, &ProviderError{Provider: ProviderAnthropic, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", 0, &ProviderError{Provider: ProviderAnthropic, Message: "malformed response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", 0, &ProviderError{Provider: ProviderAnthropic, Message: msg}
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, parsed.Usage.InputTokens + parsed.Usage.OutputTokens, nil
		}
	}
	return "", 0, &ProviderError{Provider: ProviderAnthropic, Message: "no text content in response"}
}
