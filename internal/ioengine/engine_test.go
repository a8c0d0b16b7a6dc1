package ioengine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func testConfig() Config {
	return Config{
		SmallThreshold:   64,
		LargeThreshold:   1024,
		ChunkSize:        16,
		BufferSize:       32,
		MaxConcurrentOps: 4,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []Config{
		{SmallThreshold: 64, LargeThreshold: 1024, ChunkSize: 0, BufferSize: 32, MaxConcurrentOps: 1},
		{SmallThreshold: 1024, LargeThreshold: 64, ChunkSize: 16, BufferSize: 32, MaxConcurrentOps: 1},
		{SmallThreshold: 64, LargeThreshold: 1024, ChunkSize: 16, BufferSize: 8, MaxConcurrentOps: 1},
		{SmallThreshold: 64, LargeThreshold: 1024, ChunkSize: 16, BufferSize: 32, MaxConcurrentOps: 0},
	}
	for i, c := range cases {
		if _, err := New(c); err == nil {
			t.Errorf("case %d: expected validation error, got none", i)
		}
	}
}

func TestSelectStrategyBoundaries(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s := e.SelectStrategy(10); s != StrategyAsync {
		t.Errorf("expected async for small file, got %s", s)
	}
	if s := e.SelectStrategy(500); s != StrategyBuffered {
		t.Errorf("expected buffered for mid-size file, got %s", s)
	}
	if s := e.SelectStrategy(2000); s != StrategyMemoryMap {
		t.Errorf("expected mmap for large file, got %s", s)
	}
}

func writeTestFile(t *testing.T, dir string, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := bytes.Repeat([]byte{'x'}, size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestReadWholeEachStrategyRoundTrips(t *testing.T) {
	dir := t.TempDir()
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sizes := map[string]int{"small.bin": 10, "mid.bin": 200, "large.bin": 2048}
	wantStrategy := map[string]Strategy{"small.bin": StrategyAsync, "mid.bin": StrategyBuffered, "large.bin": StrategyMemoryMap}

	for name, size := range sizes {
		path := writeTestFile(t, dir, name, size)
		data, strategy, err := e.ReadWhole(context.Background(), path)
		if err != nil {
			t.Fatalf("%s: ReadWhole: %v", name, err)
		}
		if len(data) != size {
			t.Errorf("%s: expected %d bytes, got %d", name, size, len(data))
		}
		if strategy != wantStrategy[name] {
			t.Errorf("%s: expected strategy %s, got %s", name, wantStrategy[name], strategy)
		}
	}
}

func TestReadChunksReassemblesFullContent(t *testing.T) {
	dir := t.TempDir()
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := writeTestFile(t, dir, "mid.bin", 500)

	var got []byte
	strategy, err := e.ReadChunks(context.Background(), path, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	if strategy != StrategyBuffered {
		t.Errorf("expected buffered strategy, got %s", strategy)
	}
	if len(got) != 500 {
		t.Errorf("expected 500 reassembled bytes, got %d", len(got))
	}
}

func TestReadManyDeliversAllPaths(t *testing.T) {
	dir := t.TempDir()
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var paths []string
	for i := 0; i < 5; i++ {
		paths = append(paths, writeTestFile(t, dir, string(rune('a'+i))+".bin", 10))
	}

	seen := make(map[string]bool)
	err = e.ReadMany(context.Background(), paths, func(r ManyResult) {
		if r.Err != nil {
			t.Errorf("%s: unexpected error: %v", r.Path, r.Err)
		}
		seen[r.Path] = true
	})
	if err != nil {
		t.Fatalf("ReadMany: %v", err)
	}
	for _, p := range paths {
		if !seen[p] {
			t.Errorf("expected result for %s", p)
		}
	}
}

func TestReadWholeMissingFileReturnsIOError(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := e.ReadWhole(context.Background(), "/nonexistent/path/file"); err == nil {
		t.Fatal("expected error reading a missing file")
	}
}

func TestMetricsTrackReadsPerStrategy(t *testing.T) {
	dir := t.TempDir()
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path := writeTestFile(t, dir, "small.bin", 10)

	if _, _, err := e.ReadWhole(context.Background(), path); err != nil {
		t.Fatalf("ReadWhole: %v", err)
	}

	snap := e.Metrics()
	c, ok := snap[StrategyAsync]
	if !ok || c.Reads != 1 {
		t.Errorf("expected one async read recorded, got %+v", snap)
	}
}
