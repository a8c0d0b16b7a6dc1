// Package ratelimit implements the token-bucket rate limiter the spec
// calls for (spec §4.4), plus its adaptive variant. golang.org/x/time/rate
// does not expose the token-level introspection smart_acquire needs (wait
// time, remaining capacity), so this is hand-rolled in the teacher's
// mutex-and-atomic idiom (internal/scanner/scanner.go's stats struct),
// grounded on original_source/app/core/rate_limiting.py's RateLimiter and
// AdaptiveRateLimiter classes.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Limiter is satisfied by both Bucket and AdaptiveBucket.
type Limiter interface {
	Acquire(n float64) bool
	WaitTime(n float64) time.Duration
}

// Bucket is a plain token bucket: capacity tokens, refilled continuously
// at refillRate tokens/second.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

// NewBucket creates a Bucket that allows `capacity` operations per `period`,
// starting full.
func NewBucket(capacity float64, period time.Duration) *Bucket {
	return &Bucket{
		capacity:   capacity,
		refillRate: capacity / period.Seconds(),
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Acquire takes n tokens if available, returning false without blocking
// when the bucket is short.
func (b *Bucket) Acquire(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// WaitTime reports how long a caller would have to wait for n tokens to
// become available, without consuming any.
func (b *Bucket) WaitTime(n float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	if b.tokens >= n {
		return 0
	}
	if b.refillRate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	needed := n - b.tokens
	return time.Duration(needed / b.refillRate * float64(time.Second))
}

// Reconfigure adjusts capacity and refill rate in place, clamping current
// tokens down if capacity shrank. Used by AdaptiveBucket to retune a
// shared Bucket each time the load signal changes.
func (b *Bucket) Reconfigure(capacity float64, period time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	b.capacity = capacity
	b.refillRate = capacity / period.Seconds()
	if b.tokens > capacity {
		b.tokens = capacity
	}
}

// AdaptiveConfig parameterizes an AdaptiveBucket.
type AdaptiveConfig struct {
	BaseCapacity          float64
	BasePeriod            time.Duration
	LoadThresholdHigh     float64 // default 0.8
	LoadThresholdCritical float64 // default 0.95
}

// AdaptiveBucket shrinks effective capacity and stretches the refill
// period as system load rises, per spec §4.4's high/critical bands,
// mirroring original_source's AdaptiveRateLimiter.
type AdaptiveBucket struct {
	cfg    AdaptiveConfig
	bucket *Bucket
	loadFn func() float64
}

// NewAdaptiveBucket creates an AdaptiveBucket. loadFn returns the current
// [0,1] system load fraction (see internal/sysload.Sample.LoadFraction).
func NewAdaptiveBucket(cfg AdaptiveConfig, loadFn func() float64) *AdaptiveBucket {
	if cfg.LoadThresholdHigh == 0 {
		cfg.LoadThresholdHigh = 0.8
	}
	if cfg.LoadThresholdCritical == 0 {
		cfg.LoadThresholdCritical = 0.95
	}
	return &AdaptiveBucket{
		cfg:    cfg,
		bucket: NewBucket(cfg.BaseCapacity, cfg.BasePeriod),
		loadFn: loadFn,
	}
}

func (a *AdaptiveBucket) effective() (capacity float64, period time.Duration) {
	load := a.loadFn()
	switch {
	case load >= a.cfg.LoadThresholdCritical:
		return math.Max(1, a.cfg.BaseCapacity*0.1), time.Duration(float64(a.cfg.BasePeriod) * 2)
	case load >= a.cfg.LoadThresholdHigh:
		return math.Max(1, a.cfg.BaseCapacity*0.5), time.Duration(float64(a.cfg.BasePeriod) * 1.5)
	default:
		return a.cfg.BaseCapacity, a.cfg.BasePeriod
	}
}

// Acquire retunes the underlying bucket to the current load band, then
// attempts to take n tokens.
func (a *AdaptiveBucket) Acquire(n float64) bool {
	capacity, period := a.effective()
	a.bucket.Reconfigure(capacity, period)
	return a.bucket.Acquire(n)
}

// WaitTime retunes the underlying bucket to the current load band, then
// reports the wait for n tokens.
func (a *AdaptiveBucket) WaitTime(n float64) time.Duration {
	capacity, period := a.effective()
	a.bucket.Reconfigure(capacity, period)
	return a.bucket.WaitTime(n)
}
