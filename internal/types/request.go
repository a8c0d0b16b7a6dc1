package types

import (
	"context"
	"time"
)

// ScanProfile is the category of scan a caller requested. It is carried on
// the request and in ScanRequestSummary; the engine applies the same
// defaults, exclusions and filters to every profile.
type ScanProfile string

const (
	ProfileQuick  ScanProfile = "quick"
	ProfileFull   ScanProfile = "full"
	ProfileCustom ScanProfile = "custom"
)

// AcquireContext tells the rate limiter's smart_acquire who is asking,
// so it can map the request onto a generous or conservative bucket.
type AcquireContext string

const (
	ContextUser       AcquireContext = "user"
	ContextBackground AcquireContext = "background"
	ContextAPI        AcquireContext = "api"
	ContextAuto       AcquireContext = "auto"
)

// ScanRequest describes one call to Engine.Start.
type ScanRequest struct {
	ID             string
	Path           string
	Profile        ScanProfile
	Exclusions     []string
	Priority       Priority
	Filter         FileKindFilter
	Depth          int // 0 = unlimited
	IncludeHidden  bool
	AllowSymlinks  bool
	AutoQuarantine bool
	PersistReport  bool
	TimeoutSeconds int
	RequestContext AcquireContext

	// Ctx carries the caller's cancellation token (spec's "cancellation
	// token" field); Cancel() is the scheduler's own convenience wrapper.
	Ctx    context.Context
	Cancel context.CancelFunc

	OnProgress func(ScanProgress)
	OnResult   func(FileResult)
}

// ScanStatus is the Scan Progress lifecycle state (spec §4.6).
type ScanStatus string

const (
	StatusNotStarted  ScanStatus = "not_started"
	StatusInitializing ScanStatus = "initializing"
	StatusScanning    ScanStatus = "scanning"
	StatusPaused      ScanStatus = "paused"
	StatusCompleted   ScanStatus = "completed"
	StatusCancelled   ScanStatus = "cancelled"
	StatusError       ScanStatus = "error"
)

// ScanProgress is a point-in-time snapshot of a running or finished scan.
// The engine owns the live copy; callers only ever see copies returned by
// value so they cannot race with the engine's mutations.
type ScanProgress struct {
	ScanID         string
	TotalFiles     int64
	CompletedFiles int64
	InfectedFiles  int64
	ErrorFiles     int64
	BytesScanned   int64
	CurrentFile    string
	StartedAt      time.Time
	Status         ScanStatus
	Reason         string // e.g. "timeout", set when Status is Cancelled/Error
}

// PercentComplete returns 0-100, or 0 if TotalFiles is unknown.
func (p ScanProgress) PercentComplete() float64 {
	if p.TotalFiles <= 0 {
		return 0
	}
	return float64(p.CompletedFiles) / float64(p.TotalFiles) * 100
}

// FileResult is emitted once per file as it completes (spec §5 ordering:
// completion order, not enumeration order).
type FileResult struct {
	Path          string
	Verdict       Verdict
	QuarantineID  string
	StrategyUsed  string
	BytesRead     int64
	Duration      time.Duration
	CacheHit      bool
}

// ScanReport is a serializable form of a completed scan (supplemental
// type recovered from the original source's app/utils/scan_reports.py;
// see SPEC_FULL.md §3). The engine does not build or write reports, and
// ScanRequest.PersistReport is not read anywhere.
type ScanReport struct {
	ScanID    string         `json:"scan_id"`
	Request   ScanRequestSummary `json:"request"`
	Progress  ScanProgress   `json:"progress"`
	Results   []FileResult   `json:"results"`
	CreatedAt time.Time      `json:"created_at"`
}

// ScanRequestSummary is the portion of a ScanRequest worth persisting
// (callbacks and contexts are not serializable).
type ScanRequestSummary struct {
	Path           string      `json:"path"`
	Profile        ScanProfile `json:"profile"`
	Exclusions     []string    `json:"exclusions"`
	AutoQuarantine bool        `json:"auto_quarantine"`
}
