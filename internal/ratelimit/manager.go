package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/xanadossd/avscan-core/internal/config"
	"github.com/xanadossd/avscan-core/internal/types"
)

// Default class names (spec §4.4's "default classes").
const (
	ClassUserScan         = "user_scan"
	ClassBackgroundScan   = "background_scan"
	ClassSignatureUpdate  = "signature_update"
	ClassSystemCommand    = "system_command"
	ClassQuarantineAction = "quarantine_action"
)

// Manager owns one Limiter per rate-limit class and implements
// smart_acquire's operation/context -> class mapping.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
	loadFn   func() float64
}

// NewManager builds a Manager from the config's rate_limits table. loadFn
// feeds every adaptive class; pass a constant-zero func if load sampling
// is unavailable.
func NewManager(classes map[string]config.RateLimitClassConfig, loadFn func() float64) *Manager {
	if loadFn == nil {
		loadFn = func() float64 { return 0 }
	}
	m := &Manager{limiters: make(map[string]Limiter, len(classes)), loadFn: loadFn}
	for class, cfg := range classes {
		m.Configure(class, cfg)
	}
	return m
}

// Configure (re)builds the limiter backing one class, replacing whatever
// was there before. Safe to call while other goroutines are acquiring.
func (m *Manager) Configure(class string, cfg config.RateLimitClassConfig) {
	period := time.Duration(cfg.Period * float64(time.Second))
	if period <= 0 {
		period = time.Second
	}
	capacity := float64(cfg.Calls)
	if cfg.Burst > capacity {
		capacity = float64(cfg.Burst)
	}
	if capacity <= 0 {
		capacity = 1
	}

	var lim Limiter
	if cfg.Adaptive {
		lim = NewAdaptiveBucket(AdaptiveConfig{BaseCapacity: capacity, BasePeriod: period}, m.loadFn)
	} else {
		lim = NewBucket(capacity, period)
	}

	m.mu.Lock()
	m.limiters[class] = lim
	m.mu.Unlock()
}

func (m *Manager) limiter(class string) Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiters[class]
}

// Acquire takes n tokens from the named class's bucket. An unconfigured
// class is treated as unlimited, matching the original's behavior of
// skipping classes absent from its rate_limits table.
func (m *Manager) Acquire(class string, n int) bool {
	lim := m.limiter(class)
	if lim == nil {
		return true
	}
	return lim.Acquire(float64(n))
}

// WaitTime reports how long until Acquire(class, 1) would succeed for the
// named class (Acquire itself never blocks). Zero for an unconfigured class.
func (m *Manager) WaitTime(class string) time.Duration {
	lim := m.limiter(class)
	if lim == nil {
		return 0
	}
	return lim.WaitTime(1)
}

// classFor maps an operation name and acquire context onto a rate-limit
// class, per spec §4.4's smart_acquire table.
func classFor(operation string, ctx types.AcquireContext) string {
	switch operation {
	case "signature_update", "update_signatures":
		return ClassSignatureUpdate
	case "system_command":
		return ClassSystemCommand
	case "quarantine", "quarantine_action", "restore":
		return ClassQuarantineAction
	}
	if ctx == types.ContextBackground {
		return ClassBackgroundScan
	}
	return ClassUserScan
}

// SmartAcquire maps (operation, context) to a rate-limit class, attempts
// to acquire n tokens, and returns whether it succeeded along with a
// human-readable reason for logging or surfacing to a caller.
func (m *Manager) SmartAcquire(operation string, ctx types.AcquireContext, n int) (bool, string) {
	class := classFor(operation, ctx)
	if m.Acquire(class, n) {
		return true, fmt.Sprintf("%s acquired under %s", operation, class)
	}
	wait := m.WaitTime(class)
	return false, fmt.Sprintf("%s rate-limited under %s, retry in %s", operation, class, wait.Round(time.Millisecond))
}

// WaitTimeForOperation is SmartAcquire's class mapping exposed directly,
// for callers (e.g. the Scan Engine) that need the suggested wait
// duration to attach to a structured error rather than just the
// human-readable reason string.
func (m *Manager) WaitTimeForOperation(operation string, ctx types.AcquireContext) time.Duration {
	return m.WaitTime(classFor(operation, ctx))
}

// DefaultClasses lists the class names the config loader always seeds
// (spec §4.4, §6).
func DefaultClasses() []string {
	return []string{
		ClassUserScan,
		ClassBackgroundScan,
		ClassSignatureUpdate,
		ClassSystemCommand,
		ClassQuarantineAction,
	}
}
