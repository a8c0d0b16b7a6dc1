// Package quarantine implements the Quarantine Store (spec §4.3):
// relocates infected files into a managed directory, keeps a durable
// index of what moved and from where, and supports restore/delete/
// cleanup. Grounded on the teacher's internal/deduper package for the
// atomic link-then-rename idiom (internal/deduper/links.go) and its
// EXDEV cross-device fallback (internal/deduper/deduper.go), generalized
// from hardlink/symlink creation to move-or-copy relocation of infected
// files.
package quarantine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Record is one quarantined file's durable metadata (spec §3's
// "Quarantine Record").
type Record struct {
	ID            string    `json:"id"`
	OriginalPath  string    `json:"original_path"`
	StoredPath    string    `json:"stored_path"`
	ThreatName    string    `json:"threat_name"`
	FileSize      int64     `json:"file_size"`
	SHA256        string    `json:"sha256"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}

// makeID builds quarantine_id = "q_" + unix_seconds + "_" + first 16 hex
// chars of SHA256(original_path), exactly as spec §3 defines it.
func makeID(originalPath string, now time.Time) string {
	sum := sha256.Sum256([]byte(originalPath))
	return fmt.Sprintf("q_%d_%s", now.Unix(), hex.EncodeToString(sum[:])[:16])
}
