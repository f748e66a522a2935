// Package synth produces response bodies that satisfy an operation's
// response schema. The deterministic core is pure; Faker and LLM levels
// layer richer data on top and degrade a tier at a time (LLM to Faker,
// Faker to the deterministic output) rather than erroring.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/mockforge/mockforge/pkg/ai"
	"github.com/mockforge/mockforge/pkg/cache"
	"github.com/mockforge/mockforge/pkg/logging"
	"github.com/mockforge/mockforge/pkg/spec"
)

// RealityLevel selects the generator tier.
type RealityLevel string

const (
	// LevelTemplate is the deterministic, schema-derived generator.
	LevelTemplate RealityLevel = "template"
	// LevelFaker produces seeded pseudo-random realistic data.
	LevelFaker RealityLevel = "faker"
	// LevelLlm augments generation with an external provider, falling back
	// to Faker then Template on any failure.
	LevelLlm RealityLevel = "llm"
)

// ParseRealityLevel parses a reality level string, defaulting to template.
func ParseRealityLevel(s string) RealityLevel {
	switch s {
	case string(LevelFaker):
		return LevelFaker
	case string(LevelLlm):
		return LevelLlm
	default:
		return LevelTemplate
	}
}

// Options configures a Synthesizer.
type Options struct {
	// Level is the generator tier. Defaults to LevelTemplate.
	Level RealityLevel

	// Provider is the LLM provider for LevelLlm. When nil, LevelLlm
	// behaves as LevelFaker.
	Provider ai.Provider

	// LlmTimeout bounds one provider call. Defaults to 10s.
	LlmTimeout time.Duration

	// Seed drives the Faker tier. Zero means seed from the operation id,
	// which keeps output stable across requests for the same endpoint.
	Seed uint64

	// CacheSize bounds the template cache. Defaults to 256 entries.
	CacheSize int

	// Logger receives fallback warnings. Defaults to a no-op logger.
	Logger *slog.Logger
}

// Synthesizer produces response bodies for operations.
type Synthesizer struct {
	level    RealityLevel
	provider ai.Provider
	timeout  time.Duration
	seed     uint64
	log      *slog.Logger

	// templates caches deterministic bodies keyed by operation, status and
	// schema shape.
	templates *cache.Cache[string, json.RawMessage]
}

// New creates a Synthesizer.
func New(opts Options) *Synthesizer {
	if opts.Level == "" {
		opts.Level = LevelTemplate
	}
	if opts.LlmTimeout <= 0 {
		opts.LlmTimeout = 10 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Synthesizer{
		level:     opts.Level,
		provider:  opts.Provider,
		timeout:   opts.LlmTimeout,
		seed:      opts.Seed,
		log:       opts.Logger,
		templates: cache.New[string, json.RawMessage](opts.CacheSize),
	}
}

// Level returns the configured reality level.
func (s *Synthesizer) Level() RealityLevel {
	return s.level
}

// Synthesize produces the status code and JSON body for an operation.
// statusHint selects a declared response explicitly; pass 0 to use the
// default selection (lowest 2xx, else "default", else 200).
func (s *Synthesizer) Synthesize(ctx context.Context, op *spec.Operation, statusHint int) (int, json.RawMessage, error) {
	statusKey, resp := selectResponse(op, statusHint)
	status := statusFromKey(statusKey)

	if resp == nil {
		return status, json.RawMessage(`{}`), nil
	}

	// A declared example always wins, at every reality level.
	if resp.Example != nil {
		body, err := json.Marshal(resp.Example)
		if err != nil {
			return status, nil, fmt.Errorf("failed to marshal response example: %w", err)
		}
		return status, body, nil
	}

	if resp.Schema == nil {
		return status, json.RawMessage(`{}`), nil
	}

	switch s.level {
	case LevelLlm:
		if value, ok := s.generateLlm(ctx, op, statusKey, resp.Schema); ok {
			body, err := json.Marshal(value)
			if err == nil {
				return status, body, nil
			}
			s.log.Warn("failed to marshal LLM value, falling back", "operation", op.ID, "error", err)
		}
		fallthrough
	case LevelFaker:
		value := s.faker(op).FromSchema(resp.Schema)
		body, err := json.Marshal(value)
		if err == nil {
			return status, body, nil
		}
		s.log.Warn("failed to marshal faker value, falling back to template", "operation", op.ID, "error", err)
		fallthrough
	default:
		body, err := s.template(op, statusKey, resp.Schema)
		return status, body, err
	}
}

// template returns the deterministic body, cached per operation, status and
// schema shape.
func (s *Synthesizer) template(op *spec.Operation, statusKey string, schema *spec.Schema) (json.RawMessage, error) {
	key := op.ID + "|" + statusKey + "|" + shapeHash(schema)
	return s.templates.GetOrInsert(key, func() (json.RawMessage, error) {
		value := FromSchema(schema)
		body, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal synthesized value: %w", err)
		}
		return body, nil
	})
}

func (s *Synthesizer) faker(op *spec.Operation) *Faker {
	seed := s.seed
	if seed == 0 {
		seed = hashString(op.ID)
	}
	return NewFaker(seed)
}

// CacheStats exposes the template cache counters.
func (s *Synthesizer) CacheStats() cache.Stats {
	return s.templates.Stats()
}

// selectResponse picks the response descriptor for the request. An explicit
// 2xx always wins over "default"; "default" is the error catch-all in
// OpenAPI and would synthesize error bodies for happy paths.
func selectResponse(op *spec.Operation, statusHint int) (string, *spec.Response) {
	if len(op.Responses) == 0 {
		return "200", nil
	}

	if statusHint > 0 {
		key := strconv.Itoa(statusHint)
		if resp, ok := op.Responses[key]; ok {
			return key, resp
		}
		if resp, ok := op.Responses["default"]; ok {
			return key, resp
		}
		return key, nil
	}

	var twoxx []string
	for key := range op.Responses {
		if n, err := strconv.Atoi(key); err == nil && n >= 200 && n < 300 {
			twoxx = append(twoxx, key)
		}
	}
	if len(twoxx) > 0 {
		sort.Strings(twoxx)
		return twoxx[0], op.Responses[twoxx[0]]
	}

	if resp, ok := op.Responses["default"]; ok {
		return "default", resp
	}
	return "200", nil
}

// statusFromKey maps a response key to the HTTP status to emit. "default"
// serves as 200.
func statusFromKey(key string) int {
	if n, err := strconv.Atoi(key); err == nil {
		return n
	}
	return 200
}

// shapeHash fingerprints a schema so template cache entries survive reloads
// that keep the shape and die with ones that change it.
func shapeHash(schema *spec.Schema) string {
	data, err := json.Marshal(schema)
	if err != nil {
		return "0"
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
