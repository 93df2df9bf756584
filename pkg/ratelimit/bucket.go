// Package ratelimit implements the per-tenant token bucket described
// in spec.md §4.4: one bucket per tenant, created lazily on first
// consume, with a fixed rps/burst shape (no latency-driven
// adaptation).
//
// Grounded on the teacher's pkg/ratelimit/adaptive_limiter.go: the
// refill-then-consume arithmetic under a per-bucket mutex is kept
// nearly verbatim; the latency window, adaptation loop, and
// background goroutine that retunes rps/burst from observed latency
// are dropped, since spec.md's bucket is a fixed shape with no
// feedback loop.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Bucket is a single tenant's token bucket.
type Bucket struct {
	mu         sync.Mutex
	rps        float64
	burst      float64
	tokens     float64
	lastRefill time.Time
}

func newBucket(rps float64, burst int) *Bucket {
	return &Bucket{
		rps:        rps,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// Consume attempts to take n tokens, refilling first from elapsed
// time. It reports whether the tokens were available.
func (b *Bucket) Consume(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// RetryAfterSeconds returns how long a caller should wait before its
// next consume is likely to succeed, per spec.md §4.4:
// max(1, ceil((1 - tokens) / rps)).
func (b *Bucket) RetryAfterSeconds() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.rps <= 0 {
		return 1
	}
	wait := math.Ceil((1 - b.tokens) / b.rps)
	if wait < 1 {
		wait = 1
	}
	return int(wait)
}

func (b *Bucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens = math.Min(b.tokens+math.Floor(elapsed*b.rps), b.burst)
}

// Manager owns one Bucket per tenant, created on first use. A
// sync.Map gives read-mostly access without a registry-wide lock;
// LoadOrStore makes bucket creation first-writer-wins so a race
// between two goroutines discovering the same new tenant never
// produces two independent buckets.
type Manager struct {
	defaultRPS   float64
	defaultBurst int
	buckets      sync.Map // tenant string -> *Bucket
}

// NewManager builds a Manager using rps/burst as the shape of every
// tenant's bucket; there are no per-tenant overrides.
func NewManager(rps float64, burst int) *Manager {
	return &Manager{defaultRPS: rps, defaultBurst: burst}
}

// Consume consumes n tokens from tenant's bucket, creating it with
// the manager's default shape if this is the tenant's first request.
func (m *Manager) Consume(tenant string, n int) bool {
	return m.bucketFor(tenant).Consume(n)
}

// RetryAfterSeconds returns tenant's current retry-after hint.
func (m *Manager) RetryAfterSeconds(tenant string) int {
	return m.bucketFor(tenant).RetryAfterSeconds()
}

func (m *Manager) bucketFor(tenant string) *Bucket {
	if existing, ok := m.buckets.Load(tenant); ok {
		return existing.(*Bucket)
	}
	created, _ := m.buckets.LoadOrStore(tenant, newBucket(m.defaultRPS, m.defaultBurst))
	return created.(*Bucket)
}
