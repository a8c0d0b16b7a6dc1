package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// validateGlobPatterns checks that all patterns are valid filepath.Match
// patterns before they reach the scan engine's exclusion filter.
func validateGlobPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// formatBytes renders a byte count the way a human reads it, for the CLI's
// final scan summary line.
func formatBytes(n int64) string {
	return humanize.Bytes(uint64(n))
}
