package ratelimit

import (
	"testing"
	"time"
)

func TestBucketAllowsBurstUpToCapacity(t *testing.T) {
	b := NewBucket(3, time.Second)

	for i := 0; i < 3; i++ {
		if !b.Acquire(1) {
			t.Fatalf("acquire %d: expected success, bucket started full", i)
		}
	}
	if b.Acquire(1) {
		t.Fatal("expected 4th immediate acquire to fail, bucket should be empty")
	}
}

func TestBucketRefillsOverTime(t *testing.T) {
	b := NewBucket(1, 10*time.Millisecond)
	if !b.Acquire(1) {
		t.Fatal("expected initial acquire to succeed")
	}
	if b.Acquire(1) {
		t.Fatal("expected immediate re-acquire to fail")
	}

	time.Sleep(15 * time.Millisecond)
	if !b.Acquire(1) {
		t.Fatal("expected acquire to succeed after refill period elapsed")
	}
}

func TestBucketWaitTimeZeroWhenAvailable(t *testing.T) {
	b := NewBucket(5, time.Second)
	if w := b.WaitTime(1); w != 0 {
		t.Errorf("expected zero wait with tokens available, got %s", w)
	}
}

func TestBucketWaitTimePositiveWhenExhausted(t *testing.T) {
	b := NewBucket(1, time.Second)
	b.Acquire(1)
	if w := b.WaitTime(1); w <= 0 {
		t.Errorf("expected positive wait after exhausting bucket, got %s", w)
	}
}

func TestBucketReconfigureClampsTokens(t *testing.T) {
	b := NewBucket(10, time.Second)
	b.Reconfigure(2, time.Second)
	if b.tokens != 2 {
		t.Errorf("expected tokens clamped to new capacity 2, got %v", b.tokens)
	}
}

func TestAdaptiveBucketShrinksUnderHighLoad(t *testing.T) {
	load := 0.0
	a := NewAdaptiveBucket(AdaptiveConfig{BaseCapacity: 10, BasePeriod: time.Second}, func() float64 { return load })

	cap1, _ := a.effective()
	if cap1 != 10 {
		t.Fatalf("expected full capacity at zero load, got %v", cap1)
	}

	load = 0.85
	cap2, _ := a.effective()
	if cap2 >= cap1 {
		t.Errorf("expected reduced capacity under high load, got %v (was %v)", cap2, cap1)
	}

	load = 0.99
	cap3, _ := a.effective()
	if cap3 >= cap2 {
		t.Errorf("expected further reduced capacity under critical load, got %v (was %v)", cap3, cap2)
	}
}

func TestAdaptiveBucketAcquireUsesCurrentLoad(t *testing.T) {
	load := 0.99
	a := NewAdaptiveBucket(AdaptiveConfig{BaseCapacity: 10, BasePeriod: time.Second}, func() float64 { return load })

	// under critical load capacity collapses to max(1, 10*0.1) == 1
	if !a.Acquire(1) {
		t.Fatal("expected first acquire to succeed even under critical load")
	}
	if a.Acquire(1) {
		t.Fatal("expected second immediate acquire to fail once critical-load capacity is exhausted")
	}
}
