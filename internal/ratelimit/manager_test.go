package ratelimit

import (
	"testing"

	"github.com/xanadossd/avscan-core/internal/config"
	"github.com/xanadossd/avscan-core/internal/types"
)

func testClasses() map[string]config.RateLimitClassConfig {
	return map[string]config.RateLimitClassConfig{
		ClassUserScan:         {Calls: 2, Period: 1, Burst: 2, Adaptive: false},
		ClassBackgroundScan:   {Calls: 1, Period: 1, Burst: 1, Adaptive: false},
		ClassSignatureUpdate:  {Calls: 1, Period: 3600, Burst: 1, Adaptive: false},
		ClassSystemCommand:    {Calls: 1, Period: 60, Burst: 1, Adaptive: false},
		ClassQuarantineAction: {Calls: 2, Period: 60, Burst: 2, Adaptive: false},
	}
}

func TestManagerSmartAcquireMapsOperationToClass(t *testing.T) {
	m := NewManager(testClasses(), nil)

	cases := []struct {
		operation string
		ctx       types.AcquireContext
		class     string
	}{
		{"scan_file", types.ContextUser, ClassUserScan},
		{"scan_file", types.ContextBackground, ClassBackgroundScan},
		{"signature_update", types.ContextUser, ClassSignatureUpdate},
		{"system_command", types.ContextUser, ClassSystemCommand},
		{"quarantine", types.ContextUser, ClassQuarantineAction},
	}

	for _, tc := range cases {
		if got := classFor(tc.operation, tc.ctx); got != tc.class {
			t.Errorf("classFor(%q, %q) = %q, want %q", tc.operation, tc.ctx, got, tc.class)
		}
	}
	_ = m
}

func TestManagerSmartAcquireExhaustsAndReports(t *testing.T) {
	m := NewManager(testClasses(), nil)

	ok, reason := m.SmartAcquire("system_command", types.ContextUser, 1)
	if !ok {
		t.Fatalf("expected first system_command acquire to succeed, reason: %s", reason)
	}

	ok, reason = m.SmartAcquire("system_command", types.ContextUser, 1)
	if ok {
		t.Fatal("expected second immediate system_command acquire to fail, burst is 1")
	}
	if reason == "" {
		t.Error("expected a non-empty reason on rate-limited acquire")
	}
}

func TestManagerUnconfiguredClassIsUnlimited(t *testing.T) {
	m := NewManager(map[string]config.RateLimitClassConfig{}, nil)
	for i := 0; i < 10; i++ {
		if !m.Acquire(ClassUserScan, 1) {
			t.Fatalf("expected unconfigured class to never rate-limit, failed at iteration %d", i)
		}
	}
}

func TestManagerConfigureReplacesLimiter(t *testing.T) {
	m := NewManager(testClasses(), nil)
	m.Configure(ClassUserScan, config.RateLimitClassConfig{Calls: 1, Period: 1, Burst: 1, Adaptive: false})

	if !m.Acquire(ClassUserScan, 1) {
		t.Fatal("expected first acquire after reconfigure to succeed")
	}
	if m.Acquire(ClassUserScan, 1) {
		t.Fatal("expected second acquire to fail, reconfigured burst is 1")
	}
}
