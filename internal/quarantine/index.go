package quarantine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/xanadossd/avscan-core/internal/cerrors"
)

// index is the in-memory, mutex-guarded set of quarantine records,
// persisted as a single JSON file via temp-write-then-rename — the same
// atomic-replace pattern the teacher's cache package uses when it swaps
// its BoltDB file in Close (internal/cache/cache.go).
type index struct {
	mu      sync.RWMutex
	records map[string]Record
	path    string
}

func newIndex(path string) *index {
	return &index{records: make(map[string]Record), path: path}
}

func (ix *index) load() error {
	if ix.path == "" {
		return nil
	}
	data, err := os.ReadFile(ix.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return cerrors.Wrap(cerrors.KindIO, "read quarantine index", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return cerrors.Wrap(cerrors.KindCacheCorrupt, "parse quarantine index", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, r := range records {
		ix.records[r.ID] = r
	}
	return nil
}

// persist writes the full record set to a temp file in the same
// directory, then renames it over the index path, so a crash mid-write
// never leaves a truncated index behind.
func (ix *index) persist() error {
	if ix.path == "" {
		return nil
	}
	ix.mu.RLock()
	records := make([]Record, 0, len(ix.records))
	for _, r := range ix.records {
		records = append(records, r)
	}
	ix.mu.RUnlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return cerrors.Wrap(cerrors.KindIO, "marshal quarantine index", err)
	}

	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return cerrors.Wrap(cerrors.KindIO, "create quarantine dir", err)
	}

	tmp := ix.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return cerrors.Wrap(cerrors.KindIO, "write quarantine index temp file", err)
	}
	if err := os.Rename(tmp, ix.path); err != nil {
		_ = os.Remove(tmp)
		return cerrors.Wrap(cerrors.KindIO, "rename quarantine index into place", err)
	}
	return nil
}

func (ix *index) put(r Record) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.records[r.ID] = r
}

func (ix *index) get(id string) (Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	r, ok := ix.records[id]
	return r, ok
}

func (ix *index) delete(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.records, id)
}

func (ix *index) all() []Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Record, 0, len(ix.records))
	for _, r := range ix.records {
		out = append(out, r)
	}
	return out
}

// knownStoredPaths returns the set of stored_path values currently
// indexed, for reconciliation against the files directory.
func (ix *index) knownStoredPaths() map[string]bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]bool, len(ix.records))
	for _, r := range ix.records {
		out[r.StoredPath] = true
	}
	return out
}
