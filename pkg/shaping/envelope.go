package shaping

import (
	"encoding/json"
	"log/slog"
	mathrand "math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mockforge/mockforge/pkg/logging"
	"github.com/mockforge/mockforge/pkg/ratelimit"
)

// minPatternConfidence is the floor below which learned patterns are
// ignored by the shaper.
const minPatternConfidence = 0.5

// defaultFaultBody is emitted when fault injection has no configured body.
var defaultFaultBody = json.RawMessage(`{"code":"INJECTED_FAULT","message":"simulated upstream failure"}`)

// PatternSource exposes learned traffic patterns to the shaper. The serving
// path reads a lock-free snapshot; implementations must not block.
type PatternSource interface {
	// LatencyPattern returns the learned mean latency for an endpoint and
	// the pattern's confidence. ok is false when no pattern exists.
	LatencyPattern(method, path string) (meanMs float64, confidence float64, ok bool)
}

// Stats counts shaping decisions. Counters are monotonic and may trail the
// responses they describe.
type Stats struct {
	Requests        atomic.Int64
	Throttled       atomic.Int64
	FaultsInjected  atomic.Int64
	LatencyInjected atomic.Int64
	BytesThrottled  atomic.Int64
}

// StatsSnapshot is the JSON view of Stats.
type StatsSnapshot struct {
	Requests        int64 `json:"requests"`
	Throttled       int64 `json:"throttled"`
	FaultsInjected  int64 `json:"faultsInjected"`
	LatencyInjected int64 `json:"latencyInjected"`
	BytesThrottled  int64 `json:"bytesThrottled"`
}

// Envelope applies the shaping config around every response. The active
// Config is behind an atomic pointer: SetConfig publishes a new snapshot
// and in-flight requests finish under the one they started with.
type Envelope struct {
	config  atomic.Pointer[Config]
	limiter atomic.Pointer[ratelimit.Limiter]

	patterns     PatternSource
	learningRate float64

	stats Stats
	log   *slog.Logger

	rng     func() float64
	normRng func() float64
}

// Option configures an Envelope.
type Option func(*Envelope)

// WithPatternSource attaches learned traffic patterns that bias latency.
func WithPatternSource(src PatternSource) Option {
	return func(e *Envelope) { e.patterns = src }
}

// WithLearningRate sets how strongly learned patterns pull the latency
// mean. Defaults to 0.5.
func WithLearningRate(rate float64) Option {
	return func(e *Envelope) { e.learningRate = rate }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Envelope) { e.log = log }
}

// withRNG fixes the random sources, for tests.
func withRNG(uniform, normal func() float64) Option {
	return func(e *Envelope) {
		e.rng = uniform
		e.normRng = normal
	}
}

// NewEnvelope creates an Envelope with the given initial config.
func NewEnvelope(cfg *Config, opts ...Option) *Envelope {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Envelope{
		learningRate: 0.5,
		log:          logging.Nop(),
		rng:          mathrand.Float64,
		normRng:      mathrand.NormFloat64,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.SetConfig(cfg)
	return e
}

// Config returns the active snapshot. Callers must treat it as read-only.
func (e *Envelope) Config() *Config {
	return e.config.Load()
}

// SetConfig atomically publishes a new snapshot and rebuilds the rate
// limiter when its parameters changed.
func (e *Envelope) SetConfig(cfg *Config) {
	old := e.config.Load()
	e.config.Store(cfg)

	if old == nil ||
		old.RateLimit.Enabled != cfg.RateLimit.Enabled ||
		old.RateLimit.RPM != cfg.RateLimit.RPM ||
		old.RateLimit.Scope != cfg.RateLimit.Scope {
		if cfg.RateLimit.Enabled {
			e.limiter.Store(ratelimit.NewLimiter(cfg.RateLimit.RPM, ratelimit.Scope(cfg.RateLimit.Scope)))
		} else {
			e.limiter.Store(nil)
		}
	}
}

// Stats returns a snapshot of the counters.
func (e *Envelope) Stats() StatsSnapshot {
	return StatsSnapshot{
		Requests:        e.stats.Requests.Load(),
		Throttled:       e.stats.Throttled.Load(),
		FaultsInjected:  e.stats.FaultsInjected.Load(),
		LatencyInjected: e.stats.LatencyInjected.Load(),
		BytesThrottled:  e.stats.BytesThrottled.Load(),
	}
}

// Pre runs the pre-phase rate limit check. When the budget is exhausted it
// writes the throttle response and returns false; the caller must skip the
// rest of the pipeline.
func (e *Envelope) Pre(w http.ResponseWriter, r *http.Request) bool {
	e.stats.Requests.Add(1)

	cfg := e.config.Load()
	limiter := e.limiter.Load()
	if !cfg.RateLimit.Enabled || limiter == nil {
		return true
	}

	key := clientKey(r)
	if limiter.Scope() == ratelimit.ScopeEndpoint {
		key = r.Method + " " + r.URL.Path
	}

	allowed, retryAfter := limiter.Allow(key)
	if allowed {
		return true
	}

	e.stats.Throttled.Add(1)
	status := cfg.RateLimit.ThrottleStatus
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	seconds := int(retryAfter/time.Second) + 1
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"code":"RATE_LIMITED","message":"request budget exhausted"}`))
	return false
}

// Post runs the post-phase over a synthesized response: fault injection,
// then latency, then the bandwidth-shaped write. It owns writing the
// response.
func (e *Envelope) Post(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	cfg := e.config.Load()
	ctx := r.Context()

	// 1. Fault injection replaces status and body.
	if cfg.Faults.Enabled && cfg.Faults.Probability > 0 && e.rng() < cfg.Faults.Probability {
		e.stats.FaultsInjected.Add(1)
		status = e.pickFaultStatus(&cfg.Faults)
		body = cfg.Faults.Body
		if len(body) == 0 {
			body = defaultFaultBody
		}
		contentType = "application/json"
		if status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "1")
		}
	}

	// 2. Latency sleep, biased by learned per-endpoint patterns.
	if cfg.Latency.Enabled {
		delay := sampleLatency(&cfg.Latency, e.rng, e.normRng)
		delay = e.biasDelay(delay, r.Method, r.URL.Path)
		if delay > 0 {
			e.stats.LatencyInjected.Add(1)
			if err := sleep(ctx, delay); err != nil {
				// Client went away mid-sleep; abandon the response.
				return
			}
		}
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)

	// 3. Bandwidth-shaped body write.
	if cfg.Bandwidth.Enabled && cfg.Bandwidth.BytesPerSecond > 0 {
		n, err := writeThrottled(ctx, w, body, &cfg.Bandwidth)
		e.stats.BytesThrottled.Add(int64(n))
		if err != nil {
			e.log.Debug("bandwidth-shaped write aborted", "error", err)
		}
		return
	}
	_, _ = w.Write(body)
}

func (e *Envelope) pickFaultStatus(cfg *FaultConfig) int {
	if len(cfg.StatusCodes) == 0 {
		return http.StatusInternalServerError
	}
	idx := int(e.rng() * float64(len(cfg.StatusCodes)))
	if idx >= len(cfg.StatusCodes) {
		idx = len(cfg.StatusCodes) - 1
	}
	return cfg.StatusCodes[idx]
}

// biasDelay pulls the sampled delay toward a learned per-endpoint mean by
// learning-rate x confidence. Patterns below the confidence floor are
// ignored.
func (e *Envelope) biasDelay(delay time.Duration, method, path string) time.Duration {
	if e.patterns == nil {
		return delay
	}
	meanMs, confidence, ok := e.patterns.LatencyPattern(method, path)
	if !ok || confidence < minPatternConfidence {
		return delay
	}
	factor := e.learningRate * confidence
	biased := float64(delay) + factor*(meanMs*float64(time.Millisecond)-float64(delay))
	if biased < 0 {
		biased = 0
	}
	return time.Duration(biased)
}

// clientKey extracts the client address for per-client limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
