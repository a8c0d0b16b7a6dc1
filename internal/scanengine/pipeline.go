package scanengine

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/logging"
	"github.com/xanadossd/avscan-core/internal/types"
)

// scanOneFile runs the nine-step per-file pipeline from spec §4.6:
// rate limit, cache lookup, pre-scan triage, read, detect, cache store,
// quarantine, record timing, return. Every recoverable failure becomes an
// Error() verdict on the FileResult rather than a returned error — only
// the caller emitting the result aborts a scan, per spec §7's
// propagation policy.
func (e *Engine) scanOneFile(ctx context.Context, req *types.ScanRequest, task *types.FileTask) types.FileResult {
	start := time.Now()
	path := task.Path

	// 1. Rate limiter.
	operation := "file_scan"
	if ok, _ := e.RateLimiter.SmartAcquire(operation, req.RequestContext, 1); !ok {
		wait := e.RateLimiter.WaitTimeForOperation(operation, req.RequestContext)
		return errResult(path, cerrors.RateLimited(wait), start)
	}

	info, statErr := os.Lstat(path)
	if statErr != nil {
		return errResult(path, cerrors.Wrap(cerrors.KindNotFound, "stat file", statErr), start)
	}
	mtime := info.ModTime()

	// 2. Cache lookup.
	if verdict, hit := e.Cache.Get(path, info.Size(), mtime); hit {
		return types.FileResult{
			Path:     path,
			Verdict:  verdict,
			CacheHit: true,
			Duration: time.Since(start),
		}
	}

	// 3. Pre-scan triage.
	if info.Size() == 0 {
		verdict := types.CleanVerdict("triage", e.sigVersion())
		e.Cache.Put(path, info.Size(), mtime, verdict)
		return types.FileResult{Path: path, Verdict: verdict, Duration: time.Since(start)}
	}
	if info.Mode()&os.ModeSymlink != 0 && !req.AllowSymlinks {
		return errResult(path, cerrors.New(cerrors.KindPolicy, "refusing to scan a symlink"), start)
	}
	// World-writable rejection is independent of the symlink policy: it
	// applies even when AllowSymlinks lets a symlink through.
	if info.Mode().Perm()&0o002 != 0 {
		return errResult(path, cerrors.New(cerrors.KindPolicy, "refusing to scan a world-writable file"), start)
	}

	// 4. Read bytes via the adaptive I/O strategy.
	data, strategy, err := e.IO.ReadWhole(ctx, path)
	if err != nil {
		return errResult(path, err, start)
	}

	// 5. Detection.
	verdict, err := e.Detection.ScanBytes(ctx, data, path)
	if err != nil {
		return errResult(path, err, start)
	}

	// 6. Cache store.
	e.Cache.Put(path, info.Size(), mtime, verdict)

	result := types.FileResult{
		Path:         path,
		Verdict:      verdict,
		StrategyUsed: string(strategy),
		BytesRead:    int64(len(data)),
		Duration:     time.Since(start),
	}

	// 7. Quarantine.
	if verdict.IsInfected() && req.AutoQuarantine && e.Quarantine != nil {
		id, qErr := e.Quarantine.Quarantine(ctx, path, verdict.ThreatName)
		if qErr == nil {
			result.QuarantineID = id
		} else if e.log != nil {
			e.log.Warn("auto-quarantine failed",
				logging.String("path", path), logging.Error(qErr))
		}
		// A quarantine failure surfaces nowhere but logs (spec §7: "do not
		// remove the infection finding"); the verdict itself still stands.
	}

	// 8. Record task duration for adaptive pool tuning.
	if e.Pool != nil {
		e.Pool.RecordTaskTime(result.Duration)
	}

	return result
}

func errResult(path string, err error, start time.Time) types.FileResult {
	var se *cerrors.ScanError
	if !errors.As(err, &se) {
		se = cerrors.Wrap(cerrors.KindIO, "scan pipeline", err)
	}
	return types.FileResult{
		Path:     path,
		Verdict:  types.ErrVerdict(se),
		Duration: time.Since(start),
	}
}

func (e *Engine) sigVersion() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentSigVersion
}
