package detection

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/types"
)

// SignatureConfig configures the signature engine's external backend.
// Grounded on original_source/app/core/clamav_wrapper.py, which drives
// clamd (daemon) when reachable and falls back to a one-shot clamscan
// invocation otherwise.
type SignatureConfig struct {
	ScannerPath   string        // e.g. "clamscan", invoked for one-shot scans
	DaemonSocket  string        // e.g. "/run/clamav/clamd.ctl"; empty disables daemon mode
	UpdateCommand string        // e.g. "freshclam"
	HelperPath    string        // privileged helper, e.g. "pkexec"; empty disables escalation
	ScanTimeout   time.Duration
	UpdateTimeout time.Duration
}

// SignatureEngine wraps an external signature-matching scanner via
// os/exec, with an optional daemon-socket fast path.
type SignatureEngine struct {
	cfg SignatureConfig
}

// NewSignatureEngine returns an Engine backed by an external scanner
// binary per spec §6 ("Detection-engine backend invocation").
func NewSignatureEngine(cfg SignatureConfig) *SignatureEngine {
	return &SignatureEngine{cfg: cfg}
}

// IsAvailable probes the daemon socket first (clamdscan-style), then
// falls back to checking the one-shot binary is on PATH, matching the
// original's clamdscan-then-clamscan fallback order.
func (e *SignatureEngine) IsAvailable(ctx context.Context) bool {
	if e.cfg.DaemonSocket != "" {
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "unix", e.cfg.DaemonSocket)
		if err == nil {
			conn.Close()
			return true
		}
	}
	if e.cfg.ScannerPath == "" {
		return false
	}
	_, err := exec.LookPath(e.cfg.ScannerPath)
	return err == nil
}

// EngineVersion runs the scanner's --version flag and reports it
// verbatim as both the engine and signature version string; scanners
// that report them separately can be wrapped with a richer parser later.
func (e *SignatureEngine) EngineVersion(ctx context.Context) (string, string, error) {
	cmd := exec.CommandContext(ctx, e.cfg.ScannerPath, "--version")
	out, err := cmd.Output()
	if err != nil {
		return "", "", cerrors.Wrap(cerrors.KindBackend, "query scanner version", err)
	}
	v := strings.TrimSpace(string(out))
	return v, v, nil
}

// ScanBytes submits data to the scanner in byte-stream mode
// (`<scanner> [options] -`, bytes on stdin), per spec §6.
func (e *SignatureEngine) ScanBytes(ctx context.Context, data []byte, pathHint string) (types.Verdict, error) {
	scanCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.ScanTimeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, e.cfg.ScanTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(scanCtx, e.cfg.ScannerPath, "--stdout", "-")
	cmd.Stdin = bytes.NewReader(data)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	runErr := cmd.Run()
	if scanCtx.Err() != nil {
		return types.TimeoutVerdict(), nil
	}

	code := exitCode(runErr)
	switch code {
	case 0:
		return types.CleanVerdict(e.cfg.ScannerPath, ""), nil
	case 1:
		name := parseInfectionName(stdout.String(), pathHint)
		return types.InfectedVerdict(name, classifyThreat(name), e.cfg.ScannerPath, ""), nil
	default:
		msg := strings.TrimSpace(stdout.String())
		if msg == "" && runErr != nil {
			msg = runErr.Error()
		}
		return types.ErrVerdict(cerrors.Wrap(cerrors.KindBackend, "scanner reported an error: "+msg, runErr)), nil
	}
}

// UpdateSignatures attempts an unprivileged update first; on a
// permission failure it escalates through the configured privileged
// helper, invoked as `<helper> <scanner> --verbose` per spec §6. An
// "already up to date" response from the backend counts as success,
// mirroring update_virus_definitions in the Python original.
func (e *SignatureEngine) UpdateSignatures(ctx context.Context) (bool, error) {
	updateCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.UpdateTimeout > 0 {
		updateCtx, cancel = context.WithTimeout(ctx, e.cfg.UpdateTimeout)
		defer cancel()
	}

	ok, out, err := e.runUpdate(updateCtx, e.cfg.UpdateCommand, nil)
	if ok {
		return true, nil
	}
	if !isPermissionFailure(err, out) {
		return false, cerrors.Wrap(cerrors.KindBackend, "update signatures", err)
	}
	if e.cfg.HelperPath == "" {
		return false, cerrors.Wrap(cerrors.KindBackend, "update requires elevated privileges and no helper is configured", err)
	}

	ok, out, err = e.runUpdate(updateCtx, e.cfg.HelperPath, []string{e.cfg.UpdateCommand, "--verbose"})
	if ok {
		return true, nil
	}
	return false, cerrors.Wrap(cerrors.KindBackend, "elevated signature update failed: "+out, err)
}

func (e *SignatureEngine) runUpdate(ctx context.Context, name string, args []string) (ok bool, output string, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, runErr := cmd.CombinedOutput()
	output = string(out)
	if runErr == nil {
		return true, output, nil
	}
	if alreadyUpToDate(output) {
		return true, output, nil
	}
	return false, output, runErr
}

func alreadyUpToDate(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "already up to date") || strings.Contains(lower, "up-to-date") || strings.Contains(lower, "up to date")
}

func isPermissionFailure(err error, output string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return false
	}
	lower := strings.ToLower(output)
	return strings.Contains(lower, "permission denied") || strings.Contains(lower, "must be run as root") || strings.Contains(lower, "operation not permitted")
}

// parseInfectionName pulls the threat name out of a "<path>: <name>
// FOUND" line per spec §6; returns "Unknown" if no line ends in FOUND
// (defensive against scanner output variance). pathHint is not used.
func parseInfectionName(stdout, pathHint string) string {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasSuffix(line, "FOUND") {
			continue
		}
		rest := strings.TrimSuffix(line, "FOUND")
		rest = strings.TrimSpace(rest)
		if idx := strings.Index(rest, ": "); idx >= 0 {
			return strings.TrimSpace(rest[idx+2:])
		}
		return rest
	}
	return "Unknown"
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 2
}
