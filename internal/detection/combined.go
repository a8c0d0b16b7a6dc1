package detection

import (
	"context"
	"os"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/types"
)

// Combined ORs a required signature engine with an optional ML engine:
// an Infected result from either triggers quarantine, per spec §4.7.
type Combined struct {
	Signature Engine
	ML        Engine // nil when no ML backend is configured
}

// NewCombined wires a signature engine with an optional ML engine. Pass
// a nil ml (e.g. the result of NewMLEngine with no Classify func) to run
// signature-only.
func NewCombined(signature Engine, ml Engine) *Combined {
	return &Combined{Signature: signature, ML: ml}
}

func (c *Combined) IsAvailable(ctx context.Context) bool {
	return c.Signature.IsAvailable(ctx)
}

func (c *Combined) EngineVersion(ctx context.Context) (string, string, error) {
	return c.Signature.EngineVersion(ctx)
}

// ScanBytes runs the signature engine first; an infected or errored
// verdict short-circuits (no need to also ask the ML engine). A clean
// signature verdict is then checked against the ML engine, if present.
func (c *Combined) ScanBytes(ctx context.Context, data []byte, pathHint string) (types.Verdict, error) {
	sv, err := c.Signature.ScanBytes(ctx, data, pathHint)
	if err != nil {
		return types.Verdict{}, err
	}
	if sv.Kind != types.Clean {
		return sv, nil
	}
	if c.ML == nil {
		return sv, nil
	}

	mv, err := c.ML.ScanBytes(ctx, data, pathHint)
	if err != nil {
		return types.Verdict{}, err
	}
	if mv.Kind == types.Infected {
		return mv, nil
	}
	return sv, nil
}

// UpdateSignatures updates the signature engine only; the ML engine's
// UpdateSignatures is a model-training concern this adapter does not
// perform (spec non-goal).
func (c *Combined) UpdateSignatures(ctx context.Context) (bool, error) {
	return c.Signature.UpdateSignatures(ctx)
}

// PreScanValidate applies spec §4.7's pre-scan policy shared by every
// backend: reject symlinks and world-writable files before bytes are
// ever submitted to a matcher. The Scan Engine also applies its own
// pre-scan triage (zero-byte skip, symlink policy) ahead of the I/O
// read; this is the detection-layer's defense in depth for any caller
// that invokes ScanBytes directly.
func PreScanValidate(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return cerrors.Wrap(cerrors.KindIO, "stat file for detection", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return cerrors.New(cerrors.KindPolicy, "refusing to scan a symlink: "+path)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return cerrors.New(cerrors.KindPolicy, "refusing to scan a world-writable file: "+path)
	}
	return nil
}
