//go:build unix

package quarantine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xanadossd/avscan-core/internal/ioengine"
)

func testEngine(t *testing.T) *ioengine.Engine {
	t.Helper()
	e, err := ioengine.New(ioengine.Config{
		SmallThreshold:   1 << 20,
		LargeThreshold:   100 << 20,
		ChunkSize:        64 * 1024,
		BufferSize:       128 * 1024,
		MaxConcurrentOps: 4,
	})
	if err != nil {
		t.Fatalf("ioengine.New: %v", err)
	}
	return e
}

func TestQuarantineMovesFileAndRecordsIndex(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "evil.exe")
	if err := os.WriteFile(src, []byte("malicious payload"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	store, err := Open(Config{Dir: dir}, testEngine(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	id, err := store.Quarantine(context.Background(), src, "Trojan.Test")
	if err != nil {
		t.Fatalf("Quarantine: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("expected original file to be gone after quarantine")
	}

	records := store.List()
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("expected one record with id %s, got %+v", id, records)
	}
	if _, err := os.Stat(records[0].StoredPath); err != nil {
		t.Errorf("expected quarantined file to exist at %s: %v", records[0].StoredPath, err)
	}
	if records[0].OriginalPath != src {
		t.Errorf("expected original_path %s, got %s", src, records[0].OriginalPath)
	}
}

func TestQuarantineRejectsMissingOrNonRegularFile(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(Config{Dir: dir}, testEngine(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := store.Quarantine(context.Background(), filepath.Join(dir, "nope"), "x"); err == nil {
		t.Fatal("expected error quarantining a missing file")
	}

	subdir := filepath.Join(dir, "adir")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := store.Quarantine(context.Background(), subdir, "x"); err == nil {
		t.Fatal("expected error quarantining a directory")
	}
}

func TestRestoreMovesFileBackAndRemovesRecord(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "evil.exe")
	os.WriteFile(src, []byte("payload"), 0o644)

	store, _ := Open(Config{Dir: dir}, testEngine(t))
	id, err := store.Quarantine(context.Background(), src, "Virus.Test")
	if err != nil {
		t.Fatalf("Quarantine: %v", err)
	}

	if err := store.Restore(id, ""); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if _, err := os.Stat(src); err != nil {
		t.Errorf("expected file restored to original path: %v", err)
	}
	if len(store.List()) != 0 {
		t.Error("expected record removed after restore")
	}
}

func TestRestoreToExplicitTarget(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "evil.exe")
	os.WriteFile(src, []byte("payload"), 0o644)

	store, _ := Open(Config{Dir: dir}, testEngine(t))
	id, _ := store.Quarantine(context.Background(), src, "Virus.Test")

	target := filepath.Join(srcDir, "restored", "evil.exe")
	if err := store.Restore(id, target); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("expected file at explicit restore target: %v", err)
	}
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "evil.exe")
	os.WriteFile(src, []byte("payload"), 0o644)

	store, _ := Open(Config{Dir: dir}, testEngine(t))
	id, _ := store.Quarantine(context.Background(), src, "Worm.Test")

	rec, _ := store.idx.get(id)
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(rec.StoredPath); !os.IsNotExist(err) {
		t.Error("expected quarantined file removed after Delete")
	}
	if len(store.List()) != 0 {
		t.Error("expected record removed after Delete")
	}
}

func TestDeleteUnknownIDReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, _ := Open(Config{Dir: dir}, testEngine(t))
	if err := store.Delete("q_0_deadbeef00000000"); err == nil {
		t.Fatal("expected error deleting an unknown id")
	}
}

func TestCleanupOlderThanRemovesAgedRecords(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "evil.exe")
	os.WriteFile(src, []byte("payload"), 0o644)

	store, _ := Open(Config{Dir: dir}, testEngine(t))
	id, _ := store.Quarantine(context.Background(), src, "Rootkit.Test")

	rec, _ := store.idx.get(id)
	rec.QuarantinedAt = time.Now().Add(-40 * 24 * time.Hour)
	store.idx.put(rec)

	removed, err := store.CleanupOlderThan(30)
	if err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 record removed, got %d", removed)
	}
	if len(store.List()) != 0 {
		t.Error("expected no records left after cleanup")
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "evil.exe")
	os.WriteFile(src, []byte("payload"), 0o644)

	store, _ := Open(Config{Dir: dir}, testEngine(t))
	id, err := store.Quarantine(context.Background(), src, "Spyware.Test")
	if err != nil {
		t.Fatalf("Quarantine: %v", err)
	}

	reopened, err := Open(Config{Dir: dir}, testEngine(t))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	records := reopened.List()
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("expected index to survive reopen, got %+v", records)
	}
}

func TestReconcileReportsOrphanedFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(Config{Dir: dir}, testEngine(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	orphanPath := filepath.Join(dir, "files", "q_1_orphan0000000")
	if err := os.WriteFile(orphanPath, []byte("mystery"), 0o644); err != nil {
		t.Fatalf("write orphan file: %v", err)
	}

	orphans, err := store.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != orphanPath {
		t.Errorf("expected orphan %s reported, got %v", orphanPath, orphans)
	}
}
