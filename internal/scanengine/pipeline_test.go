package scanengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/config"
	"github.com/xanadossd/avscan-core/internal/detection"
	"github.com/xanadossd/avscan-core/internal/ioengine"
	"github.com/xanadossd/avscan-core/internal/ratelimit"
	"github.com/xanadossd/avscan-core/internal/types"
	"github.com/xanadossd/avscan-core/internal/verdictcache"
)

// fakeDetectionEngine is a minimal detection.Engine test double.
type fakeDetectionEngine struct {
	verdict types.Verdict
	err     error
	calls   int
}

func (f *fakeDetectionEngine) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeDetectionEngine) EngineVersion(ctx context.Context) (string, string, error) {
	return "fake", "v1", nil
}
func (f *fakeDetectionEngine) ScanBytes(ctx context.Context, data []byte, pathHint string) (types.Verdict, error) {
	f.calls++
	if f.err != nil {
		return types.Verdict{}, f.err
	}
	return f.verdict, nil
}
func (f *fakeDetectionEngine) UpdateSignatures(ctx context.Context) (bool, error) { return true, nil }

func testIOEngine(t *testing.T) *ioengine.Engine {
	t.Helper()
	io, err := ioengine.New(ioengine.Config{
		SmallThreshold:   4096,
		LargeThreshold:   1 << 20,
		ChunkSize:        4096,
		BufferSize:       8192,
		MaxConcurrentOps: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	return io
}

func testCache(t *testing.T) *verdictcache.Cache {
	t.Helper()
	c, err := verdictcache.Open(verdictcache.Config{MaxEntries: 1000, TTLSeconds: 3600})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newTestEngine(t *testing.T, detect detection.Engine) *Engine {
	t.Helper()
	rl := ratelimit.NewManager(map[string]config.RateLimitClassConfig{}, nil)
	return New(Deps{
		Cache:       testCache(t),
		IO:          testIOEngine(t),
		Detection:   detect,
		RateLimiter: rl,
		ScanConfig:  config.ScanConfig{},
	})
}

func writeScratchFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "target.bin")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanOneFileCleanVerdictIsCached(t *testing.T) {
	detect := &fakeDetectionEngine{verdict: types.CleanVerdict("fake", "v1")}
	e := newTestEngine(t, detect)
	path := writeScratchFile(t, "hello world")
	req := &types.ScanRequest{ID: "t1", RequestContext: types.ContextUser}
	task := &types.FileTask{Path: path}

	result := e.scanOneFile(context.Background(), req, task)
	if result.Verdict.Kind != types.Clean {
		t.Fatalf("verdict kind = %v, want Clean", result.Verdict.Kind)
	}
	if result.CacheHit {
		t.Fatal("first scan should not be a cache hit")
	}
	if detect.calls != 1 {
		t.Fatalf("detection called %d times, want 1", detect.calls)
	}

	result2 := e.scanOneFile(context.Background(), req, task)
	if !result2.CacheHit {
		t.Fatal("second scan of the same file should hit the cache")
	}
	if detect.calls != 1 {
		t.Fatalf("detection called again on a cache hit: %d calls", detect.calls)
	}
}

func TestScanOneFileZeroByteSkipsDetection(t *testing.T) {
	detect := &fakeDetectionEngine{verdict: types.InfectedVerdict("X", types.ThreatMalware, "fake", "v1")}
	e := newTestEngine(t, detect)
	path := writeScratchFile(t, "")
	req := &types.ScanRequest{ID: "t2", RequestContext: types.ContextUser}
	task := &types.FileTask{Path: path}

	result := e.scanOneFile(context.Background(), req, task)
	if result.Verdict.Kind != types.Clean {
		t.Fatalf("zero-byte file verdict = %v, want Clean", result.Verdict.Kind)
	}
	if detect.calls != 0 {
		t.Fatalf("detection should not run for a zero-byte file, got %d calls", detect.calls)
	}
}

func TestScanOneFileRejectsSymlinkByDefault(t *testing.T) {
	detect := &fakeDetectionEngine{verdict: types.CleanVerdict("fake", "v1")}
	e := newTestEngine(t, detect)
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	req := &types.ScanRequest{ID: "t3", RequestContext: types.ContextUser}
	task := &types.FileTask{Path: link}

	result := e.scanOneFile(context.Background(), req, task)
	if result.Verdict.Kind != types.VerdictErr {
		t.Fatalf("symlink scan verdict = %v, want VerdictErr", result.Verdict.Kind)
	}
	if !cerrors.Is(result.Verdict.Err, cerrors.KindPolicy) {
		t.Fatalf("expected a policy error, got %v", result.Verdict.Err)
	}
	if detect.calls != 0 {
		t.Fatal("detection should not run on a rejected symlink")
	}
}

func TestScanOneFileAllowsSymlinkWhenRequested(t *testing.T) {
	detect := &fakeDetectionEngine{verdict: types.CleanVerdict("fake", "v1")}
	e := newTestEngine(t, detect)
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	req := &types.ScanRequest{ID: "t4", RequestContext: types.ContextUser, AllowSymlinks: true}
	task := &types.FileTask{Path: link}

	result := e.scanOneFile(context.Background(), req, task)
	if result.Verdict.Kind != types.Clean {
		t.Fatalf("allowed symlink scan verdict = %v, want Clean", result.Verdict.Kind)
	}
}

func TestScanOneFileRejectsWorldWritableEvenWithSymlinksAllowed(t *testing.T) {
	detect := &fakeDetectionEngine{verdict: types.CleanVerdict("fake", "v1")}
	e := newTestEngine(t, detect)
	path := writeScratchFile(t, "data")
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}

	req := &types.ScanRequest{ID: "t-worldwritable", RequestContext: types.ContextUser, AllowSymlinks: true}
	task := &types.FileTask{Path: path}

	result := e.scanOneFile(context.Background(), req, task)
	if result.Verdict.Kind != types.VerdictErr {
		t.Fatalf("world-writable scan verdict = %v, want VerdictErr", result.Verdict.Kind)
	}
	if !cerrors.Is(result.Verdict.Err, cerrors.KindPolicy) {
		t.Fatalf("expected a policy error, got %v", result.Verdict.Err)
	}
	if detect.calls != 0 {
		t.Fatal("detection should not run on a rejected world-writable file")
	}
}

func TestScanOneFileRateLimitRejection(t *testing.T) {
	classes := map[string]config.RateLimitClassConfig{
		ratelimit.ClassUserScan: {Calls: 1, Period: 60},
	}
	rl := ratelimit.NewManager(classes, nil)
	detect := &fakeDetectionEngine{verdict: types.CleanVerdict("fake", "v1")}
	e := New(Deps{
		Cache:       testCache(t),
		IO:          testIOEngine(t),
		Detection:   detect,
		RateLimiter: rl,
	})
	path := writeScratchFile(t, "data")
	req := &types.ScanRequest{ID: "t5", RequestContext: types.ContextUser}
	task := &types.FileTask{Path: path}

	// The bucket starts full with exactly 1 token; exhaust it with a
	// direct acquire before the pipeline's own attempt so the scan sees
	// a rejection without racing a concurrent consumer.
	rl.Acquire(ratelimit.ClassUserScan, 1)

	result := e.scanOneFile(context.Background(), req, task)
	if result.Verdict.Kind != types.VerdictErr {
		t.Fatalf("rate-limited scan verdict = %v, want VerdictErr", result.Verdict.Kind)
	}
	if detect.calls != 0 {
		t.Fatal("detection should not run when rate-limited")
	}
}

func TestScanOneFileDetectionErrorYieldsErrVerdict(t *testing.T) {
	detect := &fakeDetectionEngine{err: context.DeadlineExceeded}
	e := newTestEngine(t, detect)
	path := writeScratchFile(t, "data")
	req := &types.ScanRequest{ID: "t6", RequestContext: types.ContextUser}
	task := &types.FileTask{Path: path}

	result := e.scanOneFile(context.Background(), req, task)
	if result.Verdict.Kind != types.VerdictErr {
		t.Fatalf("verdict kind = %v, want VerdictErr", result.Verdict.Kind)
	}
	if result.Verdict.Err == nil {
		t.Fatal("expected a populated ScanError on the verdict")
	}
}

func TestScanOneFileWithNilPoolDoesNotPanic(t *testing.T) {
	// Pool is nil in these fixtures; scanOneFile must not panic when
	// e.Pool is nil (the pool is an optional collaborator for timing).
	detect := &fakeDetectionEngine{verdict: types.CleanVerdict("fake", "v1")}
	e := newTestEngine(t, detect)
	path := writeScratchFile(t, "data")
	req := &types.ScanRequest{ID: "t7", RequestContext: types.ContextUser}
	task := &types.FileTask{Path: path}

	result := e.scanOneFile(context.Background(), req, task)
	if result.Duration < 0 {
		t.Fatalf("Duration = %v, want >= 0", result.Duration)
	}
}
