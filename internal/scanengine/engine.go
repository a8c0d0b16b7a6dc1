// Package scanengine implements the Scan Engine (C6): the orchestrator
// that enumerates files, dispatches per-file scans through the worker
// pool, and coordinates the cache, I/O manager, detection adapter,
// quarantine store, and rate limiter behind a single cooperative
// scheduler (spec §4.6, §5).
package scanengine

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/config"
	"github.com/xanadossd/avscan-core/internal/detection"
	"github.com/xanadossd/avscan-core/internal/ioengine"
	"github.com/xanadossd/avscan-core/internal/logging"
	"github.com/xanadossd/avscan-core/internal/quarantine"
	"github.com/xanadossd/avscan-core/internal/ratelimit"
	"github.com/xanadossd/avscan-core/internal/types"
	"github.com/xanadossd/avscan-core/internal/verdictcache"
	"github.com/xanadossd/avscan-core/internal/workerpool"
)

// Deps wires the Scan Engine to the components it orchestrates (spec §2's
// "Scan request → Engine enumerates files → ... " data flow).
type Deps struct {
	Cache       *verdictcache.Cache
	IO          *ioengine.Engine
	Detection   detection.Engine
	Quarantine  *quarantine.Store // nil disables auto-quarantine entirely
	RateLimiter *ratelimit.Manager
	Pool        *workerpool.Pool
	ScanConfig  config.ScanConfig
	Log         *logging.Logger // nil disables logging
}

// Engine is the Scan Engine. One Engine handles any number of concurrent
// scans, each tracked by its own scanState under its own scan_id.
type Engine struct {
	Cache       *verdictcache.Cache
	IO          *ioengine.Engine
	Detection   detection.Engine
	Quarantine  *quarantine.Store
	RateLimiter *ratelimit.Manager
	Pool        *workerpool.Pool
	cfg         config.ScanConfig
	log         *logging.Logger

	mu                sync.RWMutex
	currentSigVersion string
	scans             map[string]*scanState
}

// New constructs an Engine from its dependencies.
func New(d Deps) *Engine {
	return &Engine{
		Cache:       d.Cache,
		IO:          d.IO,
		Detection:   d.Detection,
		Quarantine:  d.Quarantine,
		RateLimiter: d.RateLimiter,
		Pool:        d.Pool,
		cfg:         d.ScanConfig,
		log:         d.Log,
		scans:       make(map[string]*scanState),
	}
}

// SetSignatureVersion propagates a new signature version to the cache
// (which clears itself per spec §4.1) and records it for Clean verdicts
// the pipeline issues directly (e.g. zero-byte triage).
func (e *Engine) SetSignatureVersion(v string) {
	e.mu.Lock()
	e.currentSigVersion = v
	e.mu.Unlock()
	e.Cache.SetSignatureVersion(v)
}

// Start begins a scan asynchronously and returns its scan_id immediately;
// the scan runs on its own goroutine until Completed, Cancelled, or Error.
func (e *Engine) Start(req *types.ScanRequest) (string, error) {
	if req.ID == "" {
		return "", cerrors.New(cerrors.KindPolicy, "scan request requires an id")
	}

	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if req.TimeoutSeconds > 0 {
		ctx, req.Cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
	} else if req.Cancel == nil {
		ctx, req.Cancel = context.WithCancel(ctx)
	}

	state := newScanState(req.ID, req.Cancel, req.OnProgress, req.OnResult)

	e.mu.Lock()
	if _, exists := e.scans[req.ID]; exists {
		e.mu.Unlock()
		return "", cerrors.New(cerrors.KindPolicy, "scan id already in use: "+req.ID)
	}
	e.scans[req.ID] = state
	e.mu.Unlock()

	go e.runScan(ctx, req, state)
	return req.ID, nil
}

// Cancel transitions a scan to Cancelled: it stops dequeuing new tasks,
// active tasks still release their resources, and pending tasks are
// dropped without invoking the detection engine (spec §5).
func (e *Engine) Cancel(scanID string) error {
	state, err := e.state(scanID)
	if err != nil {
		return err
	}
	state.cancel()
	return nil
}

// Pause suspends dispatch of new tasks; active tasks finish in place.
func (e *Engine) Pause(scanID string) error {
	state, err := e.state(scanID)
	if err != nil {
		return err
	}
	state.setStatus(types.StatusPaused, "")
	state.pause()
	return nil
}

// Resume un-suspends a paused scan.
func (e *Engine) Resume(scanID string) error {
	state, err := e.state(scanID)
	if err != nil {
		return err
	}
	state.resume()
	state.setStatus(types.StatusScanning, "")
	return nil
}

// Progress returns the current snapshot for an active or recently
// finished scan.
func (e *Engine) Progress(scanID string) (types.ScanProgress, error) {
	state, err := e.state(scanID)
	if err != nil {
		return types.ScanProgress{}, err
	}
	return state.snapshot(), nil
}

// StreamResults returns a channel delivering FileResults as they
// complete, in completion order (spec §5 ordering guarantee). The
// channel closes when the scan reaches a terminal state.
func (e *Engine) StreamResults(scanID string) (<-chan types.FileResult, error) {
	state, err := e.state(scanID)
	if err != nil {
		return nil, err
	}
	return state.results, nil
}

// ScanFile runs the per-file pipeline against a single path outside of
// any tracked scan, for direct single-shot callers (spec §4.6's
// scan_file contract).
func (e *Engine) ScanFile(ctx context.Context, path string) (types.Verdict, error) {
	req := &types.ScanRequest{
		ID:             "adhoc",
		RequestContext: types.ContextAPI,
		AutoQuarantine: false,
	}
	task := &types.FileTask{Path: path, EnqueuedAt: time.Now()}
	result := e.scanOneFile(ctx, req, task)
	if result.Verdict.Err != nil {
		return result.Verdict, result.Verdict.Err
	}
	return result.Verdict, nil
}

func (e *Engine) state(scanID string) (*scanState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.scans[scanID]
	if !ok {
		return nil, cerrors.New(cerrors.KindNotFound, "no such scan: "+scanID)
	}
	return s, nil
}

// runScan drives one scan through its full lifecycle: Initializing ->
// enumerate -> Scanning -> dispatch in batches -> terminal state.
func (e *Engine) runScan(ctx context.Context, req *types.ScanRequest, state *scanState) {
	state.setStatus(types.StatusInitializing, "")

	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	tasks, err := enumerate(ctx, req.Path, EnumerateConfig{
		Depth:          req.Depth,
		IncludeHidden:  req.IncludeHidden,
		Exclusions:     req.Exclusions,
		Filter:         req.Filter,
		MaxFiles:       e.cfg.MaxFiles,
		MemoryBudgetMB: e.cfg.MemoryMB,
	})
	if ctx.Err() != nil {
		state.setStatus(types.StatusCancelled, cancelReason(ctx))
		close(state.results)
		return
	}
	if err != nil {
		state.setStatus(types.StatusError, err.Error())
		close(state.results)
		return
	}

	state.setTotal(int64(len(tasks)))
	state.setStatus(types.StatusScanning, "")

	queue := newPriorityQueue()
	for _, t := range tasks {
		queue.push(t)
	}

	for start := 0; start < len(tasks); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		e.dispatchBatch(ctx, req, state, queue, end-start)
		debug.FreeOSMemory()
	}

	dropped := queue.drain()

	switch {
	case ctx.Err() != nil:
		if dropped > 0 && e.log != nil {
			e.log.Info("scan cancelled, dropping pending tasks",
				logging.String("scan_id", req.ID), logging.Int("dropped", dropped))
		}
		state.setStatus(types.StatusCancelled, cancelReason(ctx))
	default:
		state.setStatus(types.StatusCompleted, "")
	}
	close(state.results)
}

// dispatchBatch pops up to n tasks off the priority queue and runs each
// through the Worker Pool, waiting for the whole batch before returning
// (spec §4.6 "Batching": process in batches, releasing memory between).
func (e *Engine) dispatchBatch(ctx context.Context, req *types.ScanRequest, state *scanState, queue *priorityQueue, n int) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		task := queue.pop()
		if task == nil {
			return
		}

		if err := state.waitIfPaused(ctx); err != nil {
			return
		}
		if e.Pool != nil {
			if err := e.Pool.Acquire(ctx); err != nil {
				return
			}
		}

		wg.Add(1)
		go func(t *types.FileTask) {
			defer wg.Done()
			if e.Pool != nil {
				defer e.Pool.Release()
			}
			if ctx.Err() != nil {
				return
			}
			result := e.scanOneFile(ctx, req, t)
			state.recordResult(result)
		}(task)
	}
}

func cancelReason(ctx context.Context) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "timeout"
	}
	return "cancelled"
}
