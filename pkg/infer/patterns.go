package infer

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// PatternKind classifies a learned pattern.
type PatternKind string

const (
	PatternLatency   PatternKind = "latency"
	PatternErrorRate PatternKind = "error-rate"
)

// LearnedPattern is one behavior extracted from recorded traffic. Patterns
// are rebuilt wholesale on each inference run.
type LearnedPattern struct {
	ID         string             `json:"id"`
	Kind       PatternKind        `json:"kind"`
	Method     string             `json:"method"`
	Path       string             `json:"path"`
	Parameters map[string]float64 `json:"parameters"`
	Confidence float64            `json:"confidence"`
	Samples    int                `json:"samples"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// PatternStore publishes learned patterns to the serving path. Writers
// (the inferencer) replace the whole snapshot; readers are lock-free.
type PatternStore struct {
	snapshot atomic.Pointer[patternSnapshot]
}

type patternSnapshot struct {
	byEndpoint map[string]*LearnedPattern // latency patterns
	all        []*LearnedPattern
}

// NewPatternStore creates an empty store.
func NewPatternStore() *PatternStore {
	s := &PatternStore{}
	s.snapshot.Store(&patternSnapshot{byEndpoint: make(map[string]*LearnedPattern)})
	return s
}

// Publish atomically replaces the pattern set.
func (s *PatternStore) Publish(patterns []*LearnedPattern) {
	snap := &patternSnapshot{
		byEndpoint: make(map[string]*LearnedPattern, len(patterns)),
		all:        patterns,
	}
	for _, p := range patterns {
		if p.Kind == PatternLatency {
			snap.byEndpoint[endpointKey(p.Method, p.Path)] = p
		}
	}
	s.snapshot.Store(snap)
}

// All returns the current pattern set.
func (s *PatternStore) All() []*LearnedPattern {
	return s.snapshot.Load().all
}

// LatencyPattern implements shaping.PatternSource: it reports the learned
// mean latency for an endpoint. Lookup tries the concrete path first, then
// template matching against learned path patterns.
func (s *PatternStore) LatencyPattern(method, path string) (float64, float64, bool) {
	snap := s.snapshot.Load()
	if p, ok := snap.byEndpoint[endpointKey(method, path)]; ok {
		return p.Parameters["meanMs"], p.Confidence, true
	}
	for _, p := range snap.all {
		if p.Kind == PatternLatency && strings.EqualFold(p.Method, method) && templateMatches(p.Path, path) {
			return p.Parameters["meanMs"], p.Confidence, true
		}
	}
	return 0, 0, false
}

func endpointKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// templateMatches reports whether a concrete path matches a path template.
func templateMatches(pattern, path string) bool {
	ps := splitSegments(pattern)
	xs := splitSegments(path)
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if isPlaceholder(ps[i]) {
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}

// learnPatterns extracts latency and error-rate patterns from the
// clusters. Latency patterns need recorded latencies; clusters without
// them yield only error-rate patterns.
func learnPatterns(clusters []*cluster, scores map[string]ConfidenceScore, now time.Time) []*LearnedPattern {
	var out []*LearnedPattern

	for _, c := range clusters {
		score := scores[c.pattern]
		byMethod := make(map[string][]*Exchange)
		for _, ex := range c.exchanges {
			m := strings.ToUpper(ex.Method)
			byMethod[m] = append(byMethod[m], ex)
		}

		for method, exs := range byMethod {
			var latencySum float64
			latencySamples := 0
			errors := 0
			for _, ex := range exs {
				if ex.LatencyMillis > 0 {
					latencySum += ex.LatencyMillis
					latencySamples++
				}
				if ex.Status >= 500 {
					errors++
				}
			}

			if latencySamples > 0 {
				out = append(out, &LearnedPattern{
					ID:     fmt.Sprintf("latency:%s:%s", strings.ToLower(method), c.pattern),
					Kind:   PatternLatency,
					Method: method,
					Path:   c.pattern,
					Parameters: map[string]float64{
						"meanMs": latencySum / float64(latencySamples),
					},
					Confidence: score.Score,
					Samples:    latencySamples,
					UpdatedAt:  now,
				})
			}

			out = append(out, &LearnedPattern{
				ID:     fmt.Sprintf("error-rate:%s:%s", strings.ToLower(method), c.pattern),
				Kind:   PatternErrorRate,
				Method: method,
				Path:   c.pattern,
				Parameters: map[string]float64{
					"rate": float64(errors) / float64(len(exs)),
				},
				Confidence: score.Score,
				Samples:    len(exs),
				UpdatedAt:  now,
			})
		}
	}

	return out
}
