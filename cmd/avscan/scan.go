package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xanadossd/avscan-core/internal/progress"
	"github.com/xanadossd/avscan-core/internal/types"
)

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	exclude        []string
	filter         string
	depth          int
	includeHidden  bool
	allowSymlinks  bool
	autoQuarantine bool
	background     bool
	timeoutSeconds int
	noProgress     bool
}

// newScanCmd creates the scan subcommand.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{filter: "all"}

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan one or more paths for malware",
		Long: `Enumerates files under each path, runs them through the detection
engine, and quarantines infected files when --auto-quarantine is set.

Each path runs as its own scan, in order. Use --background to mark the
request as a low-priority background scan for rate-limiting purposes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.exclude, "exclude", "e", nil, "Glob patterns to exclude")
	cmd.Flags().StringVar(&opts.filter, "filter", opts.filter, "File kind filter: all, executables, documents, archives")
	cmd.Flags().IntVar(&opts.depth, "depth", 0, "Maximum directory depth (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.includeHidden, "include-hidden", false, "Include dotfiles and dot-directories")
	cmd.Flags().BoolVar(&opts.allowSymlinks, "allow-symlinks", false, "Scan symlinked files instead of rejecting them")
	cmd.Flags().BoolVar(&opts.autoQuarantine, "auto-quarantine", false, "Quarantine infected files automatically")
	cmd.Flags().BoolVar(&opts.background, "background", false, "Mark this as a background scan for rate limiting")
	cmd.Flags().IntVar(&opts.timeoutSeconds, "timeout", 0, "Abort the scan after this many seconds (0 = no timeout)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

func runScan(paths []string, opts *scanOptions) error {
	if err := validateGlobPatterns(opts.exclude); err != nil {
		return fmt.Errorf("invalid --exclude: %w", err)
	}

	b, err := newBundle()
	if err != nil {
		return err
	}
	defer closeBundle(b)

	var infected int
	for _, path := range paths {
		final, err := scanOnePath(b, path, opts)
		if err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}
		infected += int(final.InfectedFiles)
	}
	if infected > 0 {
		return fmt.Errorf("%d infected file(s) found", infected)
	}
	return nil
}

// scanOnePath runs a single scan to completion, reporting progress and
// printing infected files as they're found.
func scanOnePath(b *bundle, path string, opts *scanOptions) (types.ScanProgress, error) {
	id := uuid.NewString()
	reporter := progress.NewReporter(!opts.noProgress)

	reqCtx := types.ContextUser
	if opts.background {
		reqCtx = types.ContextBackground
	}

	req := &types.ScanRequest{
		ID:             id,
		Path:           path,
		Exclusions:     opts.exclude,
		Filter:         types.FileKindFilter(opts.filter),
		Depth:          opts.depth,
		IncludeHidden:  opts.includeHidden,
		AllowSymlinks:  opts.allowSymlinks,
		AutoQuarantine: opts.autoQuarantine || b.cfg.Quarantine.AutoQuarantine,
		TimeoutSeconds: opts.timeoutSeconds,
		RequestContext: reqCtx,
		OnProgress:     reporter.Update,
		OnResult: func(r types.FileResult) {
			if r.Verdict.IsInfected() {
				msg := fmt.Sprintf("INFECTED: %s (%s)", r.Path, r.Verdict.ThreatName)
				if r.QuarantineID != "" {
					msg += fmt.Sprintf(" -> quarantined as %s", r.QuarantineID)
				}
				fmt.Fprintln(os.Stderr, msg)
			}
		},
	}

	if _, err := b.engine.Start(req); err != nil {
		return types.ScanProgress{}, err
	}

	var final types.ScanProgress
	for {
		p, err := b.engine.Progress(id)
		if err != nil {
			return types.ScanProgress{}, err
		}
		if isTerminal(p.Status) {
			final = p
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	reporter.Done(final)

	fmt.Printf("%s: %s — %d/%d files, %d infected, %d errors, %s scanned\n",
		path, final.Status, final.CompletedFiles, final.TotalFiles,
		final.InfectedFiles, final.ErrorFiles, formatBytes(final.BytesScanned))

	if final.Status == types.StatusError {
		return final, fmt.Errorf("%s", final.Reason)
	}
	return final, nil
}

func isTerminal(s types.ScanStatus) bool {
	switch s {
	case types.StatusCompleted, types.StatusCancelled, types.StatusError:
		return true
	default:
		return false
	}
}
