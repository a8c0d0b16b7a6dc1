// Package cerrors defines the typed error kinds shared across the scanning
// engine. A ScanError always carries a Kind so callers can route recoverable
// per-file failures separately from structural or systemic ones without
// string matching.
package cerrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a ScanError for propagation-policy decisions.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindPolicy             Kind = "policy"
	KindIO                 Kind = "io"
	KindTimeout            Kind = "timeout"
	KindRateLimited        Kind = "rate_limited"
	KindBackend            Kind = "backend"
	KindCacheCorrupt       Kind = "cache_corrupt"
	KindQuarantineConflict Kind = "quarantine_conflict"
	KindCancelled          Kind = "cancelled"
)

// ScanError is the error type surfaced by every component in the pipeline.
type ScanError struct {
	Kind    Kind
	Message string
	Wait    time.Duration // populated for KindRateLimited
	Cause   error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *ScanError) Unwrap() error { return e.Cause }

// New creates a ScanError with no wrapped cause.
func New(kind Kind, message string) *ScanError {
	return &ScanError{Kind: kind, Message: message}
}

// Wrap creates a ScanError that carries an underlying cause.
func Wrap(kind Kind, message string, cause error) *ScanError {
	return &ScanError{Kind: kind, Message: message, Cause: cause}
}

// RateLimited builds the RateLimited(wait) variant from §7.
func RateLimited(wait time.Duration) *ScanError {
	return &ScanError{
		Kind:    KindRateLimited,
		Message: fmt.Sprintf("rate limited, retry in %s", wait),
		Wait:    wait,
	}
}

// Is reports whether err is a *ScanError of the given kind.
func Is(err error, kind Kind) bool {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// Recoverable reports whether a ScanError kind is attachable to a single
// FileResult without aborting the whole scan (§7 propagation policy).
func Recoverable(kind Kind) bool {
	switch kind {
	case KindNotFound, KindPolicy, KindIO, KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}
