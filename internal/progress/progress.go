// Package progress renders a running scan's progress to a terminal,
// adapted from the teacher's generic progressbar/v3 wrapper into a
// renderer that understands a types.ScanProgress snapshot directly.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/xanadossd/avscan-core/internal/types"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps progressbar with enabled/disabled handling.
// All methods are no-ops when disabled.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New creates a progress bar.
// If enabled=false, returns a Bar where all methods are no-ops.
// Use total=-1 for spinner mode, or total>0 for determinate progress.
func New(enabled bool, total int64) *Bar {
	if !enabled {
		return &Bar{}
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
	}

	if total < 0 {
		// Spinner mode
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetElapsedTime(false),
		)
		return &Bar{bar: progressbar.NewOptions(-1, opts...)}
	}

	// Progress bar mode
	opts = append(opts, progressbar.OptionSetWidth(40))
	return &Bar{bar: progressbar.NewOptions64(total, opts...)}
}

// Set sets the progress bar to a specific value.
func (b *Bar) Set(n uint64) {
	if b.bar != nil {
		_ = b.bar.Set64(int64(n))
	}
}

// Describe updates the progress bar description.
func (b *Bar) Describe(s fmt.Stringer) {
	if b.bar != nil {
		b.bar.Describe(s.String())
	}
}

// Finish completes the progress bar and prints a final message.
func (b *Bar) Finish(s fmt.Stringer) {
	if b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "✔ "+s.String())
	}
}

// scanSummary formats a ScanProgress snapshot as the bar's description,
// implementing fmt.Stringer for Bar.Describe/Bar.Finish.
type scanSummary struct {
	p types.ScanProgress
}

func (s scanSummary) String() string {
	msg := s.p.CurrentFile
	if s.p.InfectedFiles > 0 {
		msg = fmt.Sprintf("%s (%d infected)", msg, s.p.InfectedFiles)
	}
	if s.p.ErrorFiles > 0 {
		msg = fmt.Sprintf("%s (%d errors)", msg, s.p.ErrorFiles)
	}
	return msg
}

// Reporter drives a Bar from a stream of ScanProgress snapshots, the
// shape Engine.Start's on_progress callback hands it (spec §4.6).
// Disabled (enabled=false) Reporters are safe no-ops, matching Bar.
type Reporter struct {
	bar     *Bar
	enabled bool
	started bool
}

// NewReporter builds a Reporter; the bar's total is set lazily from the
// first snapshot that reports one, since TotalFiles is unknown until
// enumeration completes.
func NewReporter(enabled bool) *Reporter {
	return &Reporter{bar: New(enabled, -1), enabled: enabled}
}

// Update renders one ScanProgress snapshot. Safe to call from the
// on_progress callback directly; Bar's own throttling absorbs bursts.
func (r *Reporter) Update(p types.ScanProgress) {
	if r.enabled && !r.started && p.TotalFiles > 0 {
		r.bar = New(true, p.TotalFiles)
		r.started = true
	}
	r.bar.Set(uint64(p.CompletedFiles))
	r.bar.Describe(scanSummary{p})
}

// Done finalizes the bar with a terminal-state summary.
func (r *Reporter) Done(p types.ScanProgress) {
	r.bar.Finish(scanSummary{p})
}
