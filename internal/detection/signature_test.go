//go:build unix

package detection

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xanadossd/avscan-core/internal/types"
)

// writeFakeScanner drops an executable shell script standing in for a
// signature scanner binary, returning the exit code and stdout the
// real ScanBytes codepath would parse.
func writeFakeScanner(t *testing.T, dir, name, exitCode, stdout string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n"
	if stdout != "" {
		script += "echo '" + stdout + "'\n"
	}
	script += "exit " + exitCode + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake scanner: %v", err)
	}
	return path
}

func TestSignatureEngineScanBytesClean(t *testing.T) {
	dir := t.TempDir()
	scanner := writeFakeScanner(t, dir, "scanner.sh", "0", "")

	e := NewSignatureEngine(SignatureConfig{ScannerPath: scanner})
	v, err := e.ScanBytes(context.Background(), []byte("hello"), "hello.txt")
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if v.Kind != types.Clean {
		t.Errorf("expected Clean, got %v", v.Kind)
	}
}

func TestSignatureEngineScanBytesInfected(t *testing.T) {
	dir := t.TempDir()
	scanner := writeFakeScanner(t, dir, "scanner.sh", "1", "stdin: Win32.Trojan.Agent FOUND")

	e := NewSignatureEngine(SignatureConfig{ScannerPath: scanner})
	v, err := e.ScanBytes(context.Background(), []byte("bad"), "bad.exe")
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if v.Kind != types.Infected {
		t.Fatalf("expected Infected, got %v", v.Kind)
	}
	if v.ThreatName != "Win32.Trojan.Agent" {
		t.Errorf("expected parsed threat name, got %q", v.ThreatName)
	}
	if v.ThreatType != types.ThreatTrojan {
		t.Errorf("expected Trojan family, got %v", v.ThreatType)
	}
}

func TestSignatureEngineScanBytesBackendError(t *testing.T) {
	dir := t.TempDir()
	scanner := writeFakeScanner(t, dir, "scanner.sh", "2", "fatal error: corrupt database")

	e := NewSignatureEngine(SignatureConfig{ScannerPath: scanner})
	v, err := e.ScanBytes(context.Background(), []byte("x"), "x")
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if v.Kind != types.VerdictErr {
		t.Errorf("expected VerdictErr, got %v", v.Kind)
	}
}

func TestSignatureEngineScanBytesTimeout(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\nsleep 2\nexit 0\n"
	scanner := filepath.Join(dir, "slow.sh")
	os.WriteFile(scanner, []byte(script), 0o755)

	e := NewSignatureEngine(SignatureConfig{ScannerPath: scanner, ScanTimeout: 50 * time.Millisecond})
	v, err := e.ScanBytes(context.Background(), []byte("x"), "x")
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if v.Kind != types.VerdictTimeout {
		t.Errorf("expected VerdictTimeout, got %v", v.Kind)
	}
}

func TestSignatureEngineIsAvailableFalseWhenScannerMissing(t *testing.T) {
	e := NewSignatureEngine(SignatureConfig{ScannerPath: "/nonexistent/scanner-binary"})
	if e.IsAvailable(context.Background()) {
		t.Error("expected IsAvailable to be false for a missing binary")
	}
}

func TestUpdateSignaturesSucceedsWithoutEscalation(t *testing.T) {
	dir := t.TempDir()
	update := writeFakeScanner(t, dir, "freshclam.sh", "0", "")

	e := NewSignatureEngine(SignatureConfig{UpdateCommand: update})
	ok, err := e.UpdateSignatures(context.Background())
	if err != nil || !ok {
		t.Fatalf("UpdateSignatures: ok=%v err=%v", ok, err)
	}
}

func TestUpdateSignaturesTreatsAlreadyUpToDateAsSuccess(t *testing.T) {
	dir := t.TempDir()
	update := writeFakeScanner(t, dir, "freshclam.sh", "1", "main.cvd is already up to date")

	e := NewSignatureEngine(SignatureConfig{UpdateCommand: update})
	ok, err := e.UpdateSignatures(context.Background())
	if err != nil || !ok {
		t.Fatalf("UpdateSignatures: ok=%v err=%v", ok, err)
	}
}

func TestUpdateSignaturesEscalatesOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	update := writeFakeScanner(t, dir, "freshclam.sh", "1", "permission denied")
	helper := writeFakeScanner(t, dir, "helper.sh", "0", "")

	e := NewSignatureEngine(SignatureConfig{UpdateCommand: update, HelperPath: helper})
	ok, err := e.UpdateSignatures(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected escalated update to succeed, ok=%v err=%v", ok, err)
	}
}

func TestUpdateSignaturesFailsWithoutHelperConfigured(t *testing.T) {
	dir := t.TempDir()
	update := writeFakeScanner(t, dir, "freshclam.sh", "1", "permission denied")

	e := NewSignatureEngine(SignatureConfig{UpdateCommand: update})
	ok, err := e.UpdateSignatures(context.Background())
	if ok || err == nil {
		t.Fatalf("expected failure without a configured helper, ok=%v err=%v", ok, err)
	}
}
