package scanengine

import (
	"context"
	"sync"
	"time"

	"github.com/xanadossd/avscan-core/internal/types"
)

const progressEmitThrottle = 100 * time.Millisecond

// scanState holds one in-flight scan's mutable lifecycle state: progress
// snapshot, pause/resume gate, and result fan-out. The Engine owns this
// exclusively per spec §3 ("the Engine exclusively owns the Progress
// record"); readers only ever get copies.
type scanState struct {
	mu       sync.Mutex
	progress types.ScanProgress

	pauseMu sync.Mutex
	pauseCh chan struct{} // non-nil and open while paused

	cancel context.CancelFunc

	results    chan types.FileResult
	lastEmit   time.Time
	onProgress func(types.ScanProgress)
	onResult   func(types.FileResult)
}

func newScanState(id string, cancel context.CancelFunc, onProgress func(types.ScanProgress), onResult func(types.FileResult)) *scanState {
	return &scanState{
		progress: types.ScanProgress{
			ScanID:    id,
			Status:    types.StatusNotStarted,
			StartedAt: time.Now(),
		},
		cancel:     cancel,
		results:    make(chan types.FileResult, 256),
		onProgress: onProgress,
		onResult:   onResult,
	}
}

func (s *scanState) setStatus(status types.ScanStatus, reason string) {
	s.mu.Lock()
	s.progress.Status = status
	s.progress.Reason = reason
	snap := s.progress
	s.mu.Unlock()
	s.emitProgress(snap, true)
}

func (s *scanState) setTotal(n int64) {
	s.mu.Lock()
	s.progress.TotalFiles = n
	s.mu.Unlock()
}

// recordResult updates the progress counters monotonically (spec invariant
// 6) and fans the result out to the registered callback and the
// stream_results channel.
func (s *scanState) recordResult(r types.FileResult) {
	s.mu.Lock()
	s.progress.CompletedFiles++
	s.progress.BytesScanned += r.BytesRead
	if r.Verdict.IsInfected() {
		s.progress.InfectedFiles++
	}
	if r.Verdict.Err != nil {
		s.progress.ErrorFiles++
	}
	s.progress.CurrentFile = truncatePath(r.Path)
	snap := s.progress
	s.mu.Unlock()

	if s.onResult != nil {
		s.onResult(r)
	}
	select {
	case s.results <- r:
	default:
		// A slow or absent stream_results consumer never blocks the scan
		// (spec §6: "Callbacks must not block; the engine does not retry
		// them" — the same policy extends to the result stream).
	}
	s.emitProgress(snap, false)
}

// emitProgress invokes onProgress, throttled to at most once per 100ms
// during bursts (spec §4.6), unless force is set (lifecycle transitions
// always emit immediately).
func (s *scanState) emitProgress(snap types.ScanProgress, force bool) {
	if s.onProgress == nil {
		return
	}
	s.mu.Lock()
	due := force || time.Since(s.lastEmit) >= progressEmitThrottle
	if due {
		s.lastEmit = time.Now()
	}
	s.mu.Unlock()
	if due {
		s.onProgress(snap)
	}
}

func (s *scanState) snapshot() types.ScanProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// pause installs an open gate that waitIfPaused blocks on until resume
// closes it.
func (s *scanState) pause() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.pauseCh == nil {
		s.pauseCh = make(chan struct{})
	}
}

func (s *scanState) resume() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.pauseCh != nil {
		close(s.pauseCh)
		s.pauseCh = nil
	}
}

// waitIfPaused blocks until resume() is called or ctx is cancelled,
// implementing the Paused <-> Scanning cycle (spec §4.6).
func (s *scanState) waitIfPaused(ctx context.Context) error {
	s.pauseMu.Lock()
	ch := s.pauseCh
	s.pauseMu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncatePath(path string) string {
	const maxLen = 200
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}
