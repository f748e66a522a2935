package infer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mockforge/mockforge/pkg/ai"
	"github.com/mockforge/mockforge/pkg/logging"
	"github.com/mockforge/mockforge/pkg/spec"
)

// DefaultMinConfidence is the floor below which inferred paths are elided
// from the draft (they stay in the metadata report).
const DefaultMinConfidence = 0.7

// Config parameterizes an inference run.
type Config struct {
	// MinConfidence elides paths scoring below it. Defaults to 0.7.
	MinConfidence float64

	// Provider enables the optional LLM tightening pass.
	Provider ai.Provider

	// LlmTimeout bounds the tightening call. Defaults to 30s.
	LlmTimeout time.Duration

	// Logger receives progress and fallback messages.
	Logger *slog.Logger
}

// Report is the per-path metadata produced alongside the draft.
type Report struct {
	// PathConfidence maps every inferred path (including elided ones) to
	// its score.
	PathConfidence map[string]ConfidenceScore `json:"pathConfidence"`

	// TotalSamples is the number of exchanges consumed.
	TotalSamples int `json:"totalSamples"`

	// ElidedPaths lists paths dropped from the draft for low confidence.
	ElidedPaths []string `json:"elidedPaths,omitempty"`

	// LlmTightened reports whether the LLM pass produced the final draft.
	LlmTightened bool `json:"llmTightened"`
}

// Result is the outcome of one inference run.
type Result struct {
	// Draft is the assembled OpenAPI 3.0.3 document.
	Draft json.RawMessage `json:"draft"`

	// Doc is the draft loaded through the spec pipeline.
	Doc *spec.Document `json:"-"`

	// Report carries per-path confidence metadata.
	Report *Report `json:"report"`

	// Patterns are the learned traffic patterns for the shaper.
	Patterns []*LearnedPattern `json:"patterns,omitempty"`
}

// Inferencer reconstructs draft specifications from recorded traffic.
type Inferencer struct {
	cfg Config
	log *slog.Logger
}

// New creates an Inferencer.
func New(cfg Config) *Inferencer {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.LlmTimeout <= 0 {
		cfg.LlmTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Inferencer{cfg: cfg, log: cfg.Logger}
}

// Run consumes every exchange from the source and produces a draft spec,
// a confidence report and learned patterns.
func (inf *Inferencer) Run(ctx context.Context, source Source) (*Result, error) {
	exchanges, err := source.Exchanges()
	if err != nil {
		return nil, fmt.Errorf("failed to read recorded exchanges: %w", err)
	}
	if len(exchanges) == 0 {
		return nil, fmt.Errorf("no recorded exchanges to infer from")
	}

	clusters := clusterPaths(exchanges)

	scores := make(map[string]ConfidenceScore, len(clusters))
	report := &Report{
		PathConfidence: scores,
		TotalSamples:   len(exchanges),
	}
	for _, c := range clusters {
		scores[c.pattern] = scoreCluster(c, len(exchanges))
		if scores[c.pattern].Score < inf.cfg.MinConfidence {
			report.ElidedPaths = append(report.ElidedPaths, c.pattern)
		}
	}

	doc := assemble(clusters, scores, inf.cfg.MinConfidence)
	draft, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft spec: %w", err)
	}

	if inf.cfg.Provider != nil {
		if tightened, ok := inf.tighten(ctx, draft, clusters); ok {
			draft = tightened
			report.LlmTightened = true
		}
	}

	// When every path fell below the confidence floor the draft has no
	// paths; it cannot load as a spec but the metadata report is still
	// the deliverable.
	var loaded *spec.Document
	if paths, ok := doc["paths"].(map[string]any); ok && len(paths) > 0 {
		var loadReport *spec.ValidationReport
		loaded, loadReport = spec.Load(draft, "inferred.json")
		if loaded == nil {
			return nil, fmt.Errorf("inferred draft failed to load: %s", loadReport.Error())
		}
	}

	patterns := learnPatterns(clusters, scores, time.Now())

	inf.log.Info("inference complete",
		"samples", len(exchanges),
		"paths", len(clusters),
		"elided", len(report.ElidedPaths),
		"llmTightened", report.LlmTightened)

	return &Result{
		Draft:    draft,
		Doc:      loaded,
		Report:   report,
		Patterns: patterns,
	}, nil
}
