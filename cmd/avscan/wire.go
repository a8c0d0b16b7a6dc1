package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xanadossd/avscan-core/internal/config"
	"github.com/xanadossd/avscan-core/internal/detection"
	"github.com/xanadossd/avscan-core/internal/ioengine"
	"github.com/xanadossd/avscan-core/internal/logging"
	"github.com/xanadossd/avscan-core/internal/quarantine"
	"github.com/xanadossd/avscan-core/internal/ratelimit"
	"github.com/xanadossd/avscan-core/internal/scanengine"
	"github.com/xanadossd/avscan-core/internal/sysload"
	"github.com/xanadossd/avscan-core/internal/verdictcache"
	"github.com/xanadossd/avscan-core/internal/workerpool"
)

// bundle holds every component wired together for one CLI invocation,
// following the teacher's dedupe.go pattern of constructing each pipeline
// stage up front and tearing it down with a single defer.
type bundle struct {
	cfg        *config.Config
	log        *logging.Logger
	cache      *verdictcache.Cache
	io         *ioengine.Engine
	detect     detection.Engine
	quarantine *quarantine.Store
	limiter    *ratelimit.Manager
	pool       *workerpool.Pool
	engine     *scanengine.Engine
}

// newBundle loads config and constructs every downstream component from
// it: cache -> I/O engine -> quarantine store -> rate limiter -> worker
// pool -> detection adapter -> scan engine (spec §2's data-flow order).
func newBundle() (*bundle, error) {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.DefaultConfig(cfg.Dirs.DataDir))
	if err != nil {
		return nil, fmt.Errorf("open logger: %w", err)
	}

	if err := os.MkdirAll(cfg.Dirs.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	cache, err := verdictcache.Open(verdictcache.Config{
		MaxEntries:  cfg.Cache.MaxEntries,
		TTLSeconds:  cfg.Cache.TTLSeconds,
		PersistPath: filepath.Join(cfg.Dirs.CacheDir, "verdicts.db"),
	})
	if err != nil {
		return nil, fmt.Errorf("open verdict cache: %w", err)
	}

	ioEng, err := ioengine.New(ioengine.Config{
		SmallThreshold:   cfg.IO.SmallThreshold,
		LargeThreshold:   cfg.IO.LargeThreshold,
		ChunkSize:        cfg.IO.ChunkSize,
		BufferSize:       cfg.IO.BufferSize,
		MaxConcurrentOps: cfg.IO.MaxConcurrentOps,
	})
	if err != nil {
		return nil, fmt.Errorf("build io engine: %w", err)
	}

	qstore, err := quarantine.Open(quarantine.Config{Dir: filepath.Join(cfg.Dirs.DataDir, "quarantine")}, ioEng)
	if err != nil {
		return nil, fmt.Errorf("open quarantine store: %w", err)
	}

	sampler := sysload.New()
	limiter := ratelimit.NewManager(cfg.RateLimits, func() float64 {
		s, err := sampler.Sample(context.Background())
		if err != nil {
			return 0
		}
		return s.LoadFraction()
	})

	pool := workerpool.New(workerpool.Config{
		Min:                cfg.Workers.Min,
		Max:                cfg.Workers.Max,
		AdjustmentInterval: time.Duration(cfg.Workers.Interval * float64(time.Second)),
	}, workerpool.SysloadAdapter{Sampler: sampler}, nil)

	sig := detection.NewSignatureEngine(detection.SignatureConfig{
		ScannerPath:   cfg.Signatures.ScannerPath,
		DaemonSocket:  cfg.Signatures.DaemonSocket,
		UpdateCommand: cfg.Signatures.UpdateCommand,
		HelperPath:    cfg.Signatures.HelperPath,
		ScanTimeout:   time.Duration(cfg.Signatures.ScanTimeoutSeconds) * time.Second,
		UpdateTimeout: time.Duration(cfg.Signatures.UpdateTimeoutSeconds) * time.Second,
	})
	// No concrete ML classifier ships with this repository; NewMLEngine
	// returns nil for a nil Classify func, and Combined runs signature-only.
	ml := detection.NewMLEngine(detection.MLConfig{})
	combined := detection.NewCombined(sig, ml)

	engine := scanengine.New(scanengine.Deps{
		Cache:       cache,
		IO:          ioEng,
		Detection:   combined,
		Quarantine:  qstore,
		RateLimiter: limiter,
		Pool:        pool,
		ScanConfig:  cfg.Scan,
		Log:         log,
	})

	return &bundle{
		cfg:        cfg,
		log:        log,
		cache:      cache,
		io:         ioEng,
		detect:     combined,
		quarantine: qstore,
		limiter:    limiter,
		pool:       pool,
		engine:     engine,
	}, nil
}

// Close persists the verdict cache and flushes the logger. Errors are
// joined so a caller's defer can report every failure, not just the first.
func (b *bundle) Close() error {
	var errs []error
	if err := b.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := b.log.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync log: %w", err))
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		msg := errs[0].Error()
		for _, e := range errs[1:] {
			msg += "; " + e.Error()
		}
		return fmt.Errorf("%s", msg)
	}
}

// closeBundle runs b.Close() and reports any failure to stderr, for use
// in a bare `defer closeBundle(b)` where the command's own result is
// already determined.
func closeBundle(b *bundle) {
	if err := b.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}
