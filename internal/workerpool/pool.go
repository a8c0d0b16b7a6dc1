// Package workerpool implements the Adaptive Worker Pool (spec §4.5):
// a concurrency-limiting semaphore whose capacity is retuned periodically
// against CPU, memory, and queue-depth signals, grounded on
// original_source/app/core/adaptive_worker_pool.py's AdaptiveWorkerPool,
// built on the teacher's chan-struct{} Semaphore idiom
// (internal/types/semaphore.go) rather than a resizable thread pool —
// Go has no ThreadPoolExecutor to resize, so capacity changes take effect
// by adding tokens immediately (scale up) or letting in-flight releases
// drop tokens until the new, lower capacity is reached (scale down).
package workerpool

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// Scaling thresholds, ported from AdaptiveWorkerPool's __init__ constants.
const (
	scaleUpCPUThreshold     = 40.0
	scaleUpQueueThreshold   = 20
	scaleDownCPUThreshold   = 80.0
	scaleDownQueueThreshold = 2
	memoryPressureThreshold = 85.0
	smoothingFactor         = 0.2
	baselineSampleCount     = 50
)

// Metrics mirrors WorkerPoolMetrics from the original.
type Metrics struct {
	CurrentWorkers        int
	MinWorkers            int
	MaxWorkers            int
	TotalAdjustments       int
	ScaleUps               int
	ScaleDowns             int
	AvgCPUPercent          float64
	AvgMemoryPercent       float64
	AvgQueueDepth          float64
	LastAdjustment         time.Time
	PerformanceGainPercent float64
}

// SystemMetrics is one snapshot fed into the scaling decision.
type SystemMetrics struct {
	CPUPercent         float64
	MemoryPercent      float64
	QueueDepth         int
	AvailableMemoryMiB float64
}

// Config seeds a Pool's sizing (spec §6 workers.*). Zero values fall back
// to the CPU-core-derived defaults (min=max(4,cores), max=min(100,cores*12)).
type Config struct {
	Min                 int
	Max                 int
	AdjustmentInterval  time.Duration
}

// LoadSampler is the subset of internal/sysload.Sampler the pool needs; a
// narrow interface so tests can supply canned readings.
type LoadSampler interface {
	Sample(ctx context.Context) (cpuPercent, memoryPercent, availableMiB float64, err error)
}

// Pool is a concurrency-limiting semaphore that rescales itself based on
// system load and the caller-reported queue depth.
type Pool struct {
	mu       sync.Mutex
	tokens   chan struct{}
	issued   int // tokens represented in existence (queued + checked out)
	capacity int
	min, max int

	interval       time.Duration
	lastAdjustment time.Time

	sampler    LoadSampler
	queueDepth func() int

	metrics Metrics

	recentTaskTimes     []time.Duration
	baselinePerformance time.Duration
	hasBaseline         bool
}

// New builds a Pool. queueDepth, if non-nil, is polled during Adjust to
// read the caller's current pending-task count; nil means "always 0".
func New(cfg Config, sampler LoadSampler, queueDepth func() int) *Pool {
	cores := runtime.NumCPU()
	min := cfg.Min
	if min <= 0 {
		min = maxInt(4, cores)
	}
	max := cfg.Max
	if max <= 0 {
		max = minInt(100, cores*12)
	}
	if max < min {
		max = min
	}
	interval := cfg.AdjustmentInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	p := &Pool{
		tokens:         make(chan struct{}, max),
		issued:         min,
		capacity:       min,
		min:            min,
		max:            max,
		interval:       interval,
		lastAdjustment: time.Now(),
		sampler:        sampler,
		queueDepth:     queueDepth,
		metrics:        Metrics{CurrentWorkers: min, MinWorkers: min, MaxWorkers: max},
	}
	for i := 0; i < min; i++ {
		p.tokens <- struct{}{}
	}
	return p
}

// Acquire blocks until a worker slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case <-p.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a worker slot. If the pool has been told to shrink and
// more tokens are in circulation than the current capacity allows, the
// token is dropped instead of recycled — capacity changes take effect as
// in-flight work completes, never by interrupting it.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.issued > p.capacity {
		p.issued--
		return
	}
	select {
	case p.tokens <- struct{}{}:
	default:
	}
}

// CurrentWorkers reports the pool's target capacity.
func (p *Pool) CurrentWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Metrics returns a copy of the pool's rolling metrics.
func (p *Pool) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// ShouldAdjust reports whether Adjust's interval has elapsed.
func (p *Pool) ShouldAdjust() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastAdjustment) >= p.interval
}

// Adjust samples system load and the queue depth callback, computes the
// new target capacity, and applies it. Returns whether capacity changed.
// Safe to call on a timer; it no-ops if the adjustment interval hasn't
// elapsed yet.
func (p *Pool) Adjust(ctx context.Context) bool {
	if !p.ShouldAdjust() {
		return false
	}

	sm := p.sampleSystemMetrics(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	optimal := p.calculateOptimalWorkers(sm)
	p.updateRollingMetrics(sm)
	p.lastAdjustment = time.Now()

	if optimal == p.capacity {
		return false
	}

	old := p.capacity
	p.resizeLocked(optimal)
	p.metrics.TotalAdjustments++
	p.metrics.LastAdjustment = p.lastAdjustment
	if optimal > old {
		p.metrics.ScaleUps++
	} else {
		p.metrics.ScaleDowns++
	}
	return true
}

func (p *Pool) sampleSystemMetrics(ctx context.Context) SystemMetrics {
	depth := 0
	if p.queueDepth != nil {
		depth = p.queueDepth()
	}
	if p.sampler == nil {
		return SystemMetrics{CPUPercent: 50, MemoryPercent: 50, QueueDepth: depth}
	}
	cpuPct, memPct, availMiB, err := p.sampler.Sample(ctx)
	if err != nil {
		return SystemMetrics{CPUPercent: 50, MemoryPercent: 50, QueueDepth: depth}
	}
	return SystemMetrics{CPUPercent: cpuPct, MemoryPercent: memPct, QueueDepth: depth, AvailableMemoryMiB: availMiB}
}

// calculateOptimalWorkers ports calculate_optimal_workers's branching
// exactly, evaluated against p.capacity (the caller must hold p.mu).
func (p *Pool) calculateOptimalWorkers(sm SystemMetrics) int {
	current := p.capacity

	if sm.MemoryPercent > memoryPressureThreshold {
		return maxInt(p.min, current-2)
	}
	if sm.CPUPercent > scaleDownCPUThreshold && sm.QueueDepth < scaleDownQueueThreshold {
		return maxInt(p.min, current-2)
	}
	if sm.CPUPercent < scaleUpCPUThreshold && sm.QueueDepth > scaleUpQueueThreshold {
		return minInt(p.max, current+4)
	}
	if sm.QueueDepth > scaleUpQueueThreshold {
		return minInt(p.max, current+2)
	}
	if sm.QueueDepth < scaleDownQueueThreshold && current > p.min {
		return maxInt(p.min, current-1)
	}
	return current
}

func (p *Pool) updateRollingMetrics(sm SystemMetrics) {
	a := smoothingFactor
	p.metrics.AvgCPUPercent = a*sm.CPUPercent + (1-a)*p.metrics.AvgCPUPercent
	p.metrics.AvgMemoryPercent = a*sm.MemoryPercent + (1-a)*p.metrics.AvgMemoryPercent
	p.metrics.AvgQueueDepth = a*float64(sm.QueueDepth) + (1-a)*p.metrics.AvgQueueDepth
}

// resizeLocked applies a new capacity (caller holds p.mu). Growing pushes
// fresh tokens in immediately; shrinking only updates the target — excess
// tokens drain out as Release observes issued > capacity.
func (p *Pool) resizeLocked(newCapacity int) {
	if newCapacity > p.issued {
		delta := newCapacity - p.issued
		for i := 0; i < delta; i++ {
			select {
			case p.tokens <- struct{}{}:
				p.issued++
			default:
			}
		}
	}
	p.capacity = newCapacity
	p.metrics.CurrentWorkers = newCapacity
}

// RecordTaskTime feeds a completed task's duration into the rolling
// performance-gain estimate, matching record_task_time's baseline-vs-
// recent-average comparison.
func (p *Pool) RecordTaskTime(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recentTaskTimes = append(p.recentTaskTimes, d)
	if len(p.recentTaskTimes) > 100 {
		p.recentTaskTimes = p.recentTaskTimes[len(p.recentTaskTimes)-100:]
	}
	if len(p.recentTaskTimes) < baselineSampleCount {
		return
	}

	var total time.Duration
	for _, t := range p.recentTaskTimes {
		total += t
	}
	avg := total / time.Duration(len(p.recentTaskTimes))

	if !p.hasBaseline {
		p.baselinePerformance = avg
		p.hasBaseline = true
		return
	}
	if p.baselinePerformance > 0 {
		gain := float64(p.baselinePerformance-avg) / float64(p.baselinePerformance) * 100
		p.metrics.PerformanceGainPercent = gain
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
