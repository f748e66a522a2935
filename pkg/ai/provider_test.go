package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockforge/mockforge/pkg/spec"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvProvider, "anthropic")
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvModel, "")

	cfg := ConfigFromEnv()
	require.NotNil(t, cfg)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, DefaultAnthropicModel, cfg.Model)
}

func TestConfigFromEnv_Unset(t *testing.T) {
	t.Setenv(EnvProvider, "")
	assert.Nil(t, ConfigFromEnv())
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	_, err := NewProvider(&Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)

	_, err = NewProvider(&Config{Provider: ProviderAnthropic})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)

	// Ollama needs no key.
	p, err := NewProvider(&Config{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())
}

func TestNewProvider_Unknown(t *testing.T) {
	t.Parallel()
	_, err := NewProvider(&Config{Provider: "cohere-classic"})
	assert.Error(t, err)

	_, err = NewProvider(nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestOpenAIProvider_Generate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"id": 7}`}},
			},
			"usage": map[string]any{"total_tokens": 12},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(&Config{Provider: ProviderOpenAI, APIKey: "sk-test", Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), &GenerateRequest{
		Schema: &spec.Schema{Type: "object"},
		Method: "GET", Path: "/users/{id}",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(7)}, resp.Value)
	assert.Equal(t, 12, resp.TokensUsed)
}

func TestAnthropicProvider_Generate_CodeFenced(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "```json\n{\"name\": \"ada\"}\n```"},
			},
			"usage": map[string]any{"input_tokens": 5, "output_tokens": 9},
		})
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(&Config{Provider: ProviderAnthropic, APIKey: "sk-ant", Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), &GenerateRequest{Schema: &spec.Schema{Type: "object"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada"}, resp.Value)
	assert.Equal(t, 14, resp.TokensUsed)
}

func TestOpenAIProvider_ErrorSurfaced(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(&Config{Provider: ProviderOpenAI, APIKey: "sk", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), &GenerateRequest{})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "rate limited")
}

func TestParseGeneratedValue(t *testing.T) {
	t.Parallel()

	v, err := parseGeneratedValue(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)

	v, err = parseGeneratedValue("Here you go: [1, 2]")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, v)

	_, err = parseGeneratedValue("no json here")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
