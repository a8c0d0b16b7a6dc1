// Package detection provides the abstract interface over a malware-matching
// backend (spec §4.7): a required signature engine, an optional
// machine-learning engine, and a combined adapter that ORs their verdicts.
package detection

import (
	"context"

	"github.com/xanadossd/avscan-core/internal/types"
)

// Engine is the contract every detection backend implements.
type Engine interface {
	// IsAvailable reports whether the backend can be reached right now.
	IsAvailable(ctx context.Context) bool

	// EngineVersion returns the backend's own version string and the
	// signature/model version it is currently running with.
	EngineVersion(ctx context.Context) (engine, version string, err error)

	// ScanBytes submits data to the backend. pathHint is advisory only
	// (used for logging and for engines that key off extension); it is
	// never used to re-read the file.
	ScanBytes(ctx context.Context, data []byte, pathHint string) (types.Verdict, error)

	// UpdateSignatures refreshes the backend's detection database,
	// escalating through a privileged helper if required (spec §4.7, §6).
	UpdateSignatures(ctx context.Context) (bool, error)
}
