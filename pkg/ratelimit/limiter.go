package ratelimit

import (
	"sync"
	"time"
)

// Default limiter housekeeping values.
const (
	DefaultCleanupInterval = 1 * time.Minute
	DefaultEntryTTL        = 5 * time.Minute
)

// Scope selects what a limiter key identifies.
type Scope string

const (
	// ScopeClient keys buckets by client address.
	ScopeClient Scope = "client"
	// ScopeEndpoint keys buckets by method+path.
	ScopeEndpoint Scope = "endpoint"
)

type keyedBucket struct {
	bucket   *Bucket
	lastSeen time.Time
}

// Limiter tracks one token bucket per key. Stale buckets are removed by an
// opportunistic sweep on the request path; no background goroutine is
// needed.
type Limiter struct {
	rpm       int
	scope     Scope
	mu        sync.Mutex
	buckets   map[string]*keyedBucket
	lastSweep time.Time
	sweepTick time.Duration
	entryTTL  time.Duration
}

// NewLimiter creates a per-key limiter with the given requests-per-minute
// budget per key.
func NewLimiter(rpm int, scope Scope) *Limiter {
	if scope == "" {
		scope = ScopeClient
	}
	return &Limiter{
		rpm:       rpm,
		scope:     scope,
		buckets:   make(map[string]*keyedBucket),
		lastSweep: time.Now(),
		sweepTick: DefaultCleanupInterval,
		entryTTL:  DefaultEntryTTL,
	}
}

// Scope returns what the limiter keys by.
func (l *Limiter) Scope() Scope {
	return l.scope
}

// Allow consumes one token for key. When denied, retryAfter is the duration
// the client should wait, suitable for a Retry-After header.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	if l == nil || l.rpm <= 0 {
		return true, 0
	}

	l.mu.Lock()
	now := time.Now()
	if now.Sub(l.lastSweep) > l.sweepTick {
		l.sweepLocked(now)
	}
	kb, exists := l.buckets[key]
	if !exists {
		kb = &keyedBucket{bucket: NewBucketRPM(l.rpm)}
		l.buckets[key] = kb
	}
	kb.lastSeen = now
	l.mu.Unlock()

	if kb.bucket.Allow() {
		return true, 0
	}
	return false, kb.bucket.RetryAfter()
}

// sweepLocked drops buckets idle past the entry TTL. Caller holds l.mu.
func (l *Limiter) sweepLocked(now time.Time) {
	for key, kb := range l.buckets {
		if now.Sub(kb.lastSeen) > l.entryTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
