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
	openAIDefaultEndpoint = "https://api.openai.com/v1"
	openAITimeout         = 30 * time.Second
)

// OpenAIProvider implements Provider against any OpenAI-compatible chat
// completions API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg *Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for OpenAI", ErrAPIKeyMissing)
	}
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = openAIDefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &OpenAIProvider{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: openAITimeout},
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Generate produces a value for the request.
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	raw, tokens, err := p.chat(ctx, buildPrompt(req))
	if err != nil {
		return nil, err
	}
	value, err := parseGeneratedValue(raw)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "failed to parse response", Cause: err}
	}
	return &GenerateResponse{Value: value, RawResponse: raw, TokensUsed: tokens}, nil
}

// Complete runs a free-form completion.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	raw, _, err := p.chat(ctx, prompt)
	return raw, err
}

type openAIChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) chat(ctx context.Context, prompt string) (string, int, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:     p.model,
		Messages:  []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, &ProviderError{Provider: ProviderOpenAI, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, err
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", 0, &ProviderError{Provider: ProviderOpenAI, Message: "malformed response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", 0, &ProviderError{Provider: ProviderOpenAI, Message: msg}
	}
	if len(parsed.Choices) == 0 {
		return "", 0, &ProviderError{Provider: ProviderOpenAI, Message: "empty choices"}
	}
	return parsed.Choices[0].Message.Content, parsed.Usage.TotalTokens, nil
}
