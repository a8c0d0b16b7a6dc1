package workerpool

import (
	"context"

	"github.com/xanadossd/avscan-core/internal/sysload"
)

// SysloadAdapter adapts internal/sysload.Sampler to the LoadSampler
// interface this package depends on, keeping Pool decoupled from gopsutil.
type SysloadAdapter struct {
	Sampler *sysload.Sampler
}

// Sample satisfies LoadSampler.
func (a SysloadAdapter) Sample(ctx context.Context) (cpuPercent, memoryPercent, availableMiB float64, err error) {
	s, err := a.Sampler.Sample(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	return s.CPUPercent, s.MemoryPercent, s.AvailableMemMiB, nil
}
