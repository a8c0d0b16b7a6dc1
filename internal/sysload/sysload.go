// Package sysload samples CPU percent, memory percent, and available
// memory for the Adaptive Worker Pool (C5) and the adaptive Rate Limiter
// (C4), via gopsutil — the pack's attested replacement for the Python
// original's psutil.virtual_memory()/cpu_percent() calls
// (original_source/app/core/adaptive_worker_pool.py).
package sysload

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample is one point-in-time reading of system load.
type Sample struct {
	CPUPercent       float64
	MemoryPercent    float64
	AvailableMemMiB  float64
	SampledAt        time.Time
}

// Sampler is a dependency-injected handle passed explicitly to collaborators
// that need load signals (spec §9: no global singleton telemetry collector).
type Sampler struct {
	interval float64 // seconds between cpu.Percent blocking calls
}

// New creates a Sampler. interval bounds how long Sample() blocks measuring
// CPU usage; 0.1s matches the original's psutil.cpu_percent(interval=0.1).
func New() *Sampler {
	return &Sampler{interval: 0.1}
}

// Sample blocks for roughly s.interval seconds measuring CPU utilization,
// then reads memory statistics. Returns a zero-value Sample plus the error
// on any collection failure; callers should treat that as "no load signal"
// rather than fail the caller's own operation.
func (s *Sampler) Sample(ctx context.Context) (Sample, error) {
	percents, err := cpu.PercentWithContext(ctx, durationFromSeconds(s.interval), false)
	if err != nil {
		return Sample{}, err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		CPUPercent:      cpuPct,
		MemoryPercent:   vm.UsedPercent,
		AvailableMemMiB: float64(vm.Available) / (1024 * 1024),
		SampledAt:       time.Now(),
	}, nil
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadFraction maps a Sample onto the [0,1] "load" signal the adaptive
// rate limiter uses by default: CPU percent / 100 (spec §4.4).
func (s Sample) LoadFraction() float64 {
	return s.CPUPercent / 100.0
}
