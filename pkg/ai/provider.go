// Package ai abstracts the LLM providers used for response augmentation and
// for the inferencer's spec-tightening pass. Providers are optional: every
// caller falls back to deterministic output when generation fails.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mockforge/mockforge/pkg/spec"
)

// Provider generates values from schema-derived prompts.
type Provider interface {
	// Generate produces a value for the request. Implementations must
	// honour ctx cancellation; callers bound the call with a deadline.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Complete runs a free-form completion. The inferencer uses it for
	// whole-document prompts.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider identifier ("openai", "anthropic", "ollama").
	Name() string
}

// GenerateRequest describes the value to generate.
type GenerateRequest struct {
	// Schema the generated value must satisfy.
	Schema *spec.Schema `json:"schema,omitempty"`

	// OperationID, Method and Path identify the endpoint for prompt context.
	OperationID string `json:"operationId,omitempty"`
	Method      string `json:"method,omitempty"`
	Path        string `json:"path,omitempty"`

	// Status is the response status being synthesized.
	Status string `json:"status,omitempty"`
}

// GenerateResponse carries the generated value.
type GenerateResponse struct {
	// Value is the generated JSON value.
	Value any `json:"value"`

	// RawResponse is the provider's raw text, kept for debugging.
	RawResponse string `json:"rawResponse,omitempty"`

	// TokensUsed is the token count when the provider reports one.
	TokensUsed int `json:"tokensUsed,omitempty"`
}

// Common errors.
var (
	// ErrProviderNotConfigured is returned when no provider is configured.
	ErrProviderNotConfigured = errors.New("LLM provider not configured")

	// ErrAPIKeyMissing is returned when the API key is not set.
	ErrAPIKeyMissing = errors.New("API key is required")

	// ErrInvalidResponse is returned when the provider output cannot be parsed.
	ErrInvalidResponse = errors.New("invalid response from provider")
)

// ProviderError wraps provider failures with context.
type ProviderError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProvider creates a provider from configuration.
func NewProvider(cfg *Config) (Provider, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, ErrProviderNotConfigured
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg)
	case ProviderOllama:
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
