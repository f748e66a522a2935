// Package pool provides a bounded pool of reusable handles for outbound
// resources: proxy upstreams, LLM endpoints, the inference store. A
// weighted semaphore gates concurrent holders; idle handles are reused
// until they go stale.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Errors returned by pool operations.
var (
	// ErrTimeout is returned when acquisition exceeds the connection timeout.
	ErrTimeout = errors.New("connection pool acquire timed out")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("connection pool is closed")
)

// Config parameterizes a Pool.
type Config struct {
	// MaxConnections bounds concurrent holders. Defaults to 10.
	MaxConnections int

	// MinIdle is the number of idle handles maintenance keeps warm.
	MinIdle int

	// MaxIdleTime is how long an idle handle stays reusable. Defaults to 5m.
	MaxIdleTime time.Duration

	// ConnectTimeout bounds one acquisition wait. Defaults to 30s.
	ConnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = 5 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	return c
}

// Handle wraps a pooled resource with its usage timestamps.
type Handle[T any] struct {
	resource  T
	createdAt time.Time
	lastUsed  time.Time
}

// Get returns the underlying resource.
func (h *Handle[T]) Get() T {
	return h.resource
}

// Age returns how long ago the handle was created.
func (h *Handle[T]) Age() time.Duration {
	return time.Since(h.createdAt)
}

// stale reports whether the handle idled past the limit.
func (h *Handle[T]) stale(maxIdle time.Duration) bool {
	return time.Since(h.lastUsed) > maxIdle
}

// Metrics holds pool counters.
type Metrics struct {
	TotalCreated        uint64 `json:"totalCreated"`
	TotalAcquired       uint64 `json:"totalAcquired"`
	TotalReleased       uint64 `json:"totalReleased"`
	TotalClosed         uint64 `json:"totalClosed"`
	AcquireTimeouts     uint64 `json:"acquireTimeouts"`
	HealthCheckFailures uint64 `json:"healthCheckFailures"`
	ActiveConnections   int    `json:"activeConnections"`
	IdleConnections     int    `json:"idleConnections"`
}

// Factory creates a new resource when the pool has no idle handle.
type Factory[T any] func(ctx context.Context) (T, error)

// Pool is a bounded reusable-handle pool.
type Pool[T any] struct {
	cfg Config
	sem *semaphore.Weighted

	mu      sync.Mutex
	idle    []*Handle[T]
	metrics Metrics
	closed  bool
}

// New creates a Pool with the given configuration.
func New[T any](cfg Config) *Pool[T] {
	cfg = cfg.withDefaults()
	return &Pool[T]{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConnections)),
	}
}

// Acquire returns a handle, reusing an idle one when available and calling
// factory otherwise. It waits up to the connect timeout for a slot; the
// ctx deadline applies when it is earlier.
func (p *Pool[T]) Acquire(ctx context.Context, factory Factory[T]) (*Handle[T], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		p.mu.Lock()
		p.metrics.AcquireTimeouts++
		p.mu.Unlock()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to acquire pool slot: %w", err)
	}

	// Prefer a fresh idle handle; stale ones are dropped on the way.
	p.mu.Lock()
	for len(p.idle) > 0 {
		h := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if h.stale(p.cfg.MaxIdleTime) {
			p.metrics.TotalClosed++
			continue
		}
		h.lastUsed = time.Now()
		p.metrics.TotalAcquired++
		p.metrics.ActiveConnections++
		p.metrics.IdleConnections = len(p.idle)
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	resource, err := factory(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, fmt.Errorf("failed to create pooled resource: %w", err)
	}

	now := time.Now()
	p.mu.Lock()
	p.metrics.TotalCreated++
	p.metrics.TotalAcquired++
	p.metrics.ActiveConnections++
	p.mu.Unlock()

	return &Handle[T]{resource: resource, createdAt: now, lastUsed: now}, nil
}

// Release returns a handle to the pool. Stale handles are dropped when the
// pool already holds the minimum idle count.
func (p *Pool[T]) Release(h *Handle[T]) {
	p.mu.Lock()
	p.metrics.TotalReleased++
	p.metrics.ActiveConnections--

	if p.closed || (h.stale(p.cfg.MaxIdleTime) && len(p.idle) >= p.cfg.MinIdle) {
		p.metrics.TotalClosed++
	} else {
		h.lastUsed = time.Now()
		p.idle = append(p.idle, h)
	}
	p.metrics.IdleConnections = len(p.idle)
	p.mu.Unlock()

	p.sem.Release(1)
}

// HealthCheck evicts idle handles failing the predicate.
func (p *Pool[T]) HealthCheck(pred func(T) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := p.idle[:0]
	for _, h := range p.idle {
		if pred(h.resource) {
			healthy = append(healthy, h)
		} else {
			p.metrics.HealthCheckFailures++
			p.metrics.TotalClosed++
		}
	}
	p.idle = healthy
	p.metrics.IdleConnections = len(p.idle)
}

// MaintainIdle creates handles until MinIdle are warm. Creation failures
// stop the pass; the next pass retries.
func (p *Pool[T]) MaintainIdle(ctx context.Context, factory Factory[T]) error {
	for {
		p.mu.Lock()
		if p.closed || len(p.idle) >= p.cfg.MinIdle {
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		if !p.sem.TryAcquire(1) {
			return nil
		}
		resource, err := factory(ctx)
		if err != nil {
			p.sem.Release(1)
			return fmt.Errorf("failed to create idle resource: %w", err)
		}

		now := time.Now()
		p.mu.Lock()
		p.metrics.TotalCreated++
		p.idle = append(p.idle, &Handle[T]{resource: resource, createdAt: now, lastUsed: now})
		p.metrics.IdleConnections = len(p.idle)
		p.mu.Unlock()
		p.sem.Release(1)
	}
}

// Metrics returns a snapshot of the counters.
func (p *Pool[T]) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// IdleCount returns the number of idle handles.
func (p *Pool[T]) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Close marks the pool closed and drops idle handles. Outstanding handles
// drain on Release.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.metrics.TotalClosed += uint64(len(p.idle))
	p.idle = nil
	p.metrics.IdleConnections = 0
}
