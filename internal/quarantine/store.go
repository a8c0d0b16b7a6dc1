package quarantine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/ioengine"
)

// Config seeds a Store (spec §6 quarantine.*).
type Config struct {
	Dir string // root directory; files live under Dir/files, index at Dir/index.json
}

// Store implements the Quarantine Store's contract: quarantine/list/
// restore/delete/cleanup_older_than, backed by a durable JSON index and
// the files directory under Dir.
type Store struct {
	dir      string
	filesDir string
	idx      *index
	io       *ioengine.Engine
}

// Open loads the index (if present) and returns a Store. io is used to
// chunk-hash files during Quarantine, per spec §4.3 step 2.
func Open(cfg Config, io *ioengine.Engine) (*Store, error) {
	filesDir := filepath.Join(cfg.Dir, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, cerrors.Wrap(cerrors.KindIO, "create quarantine files dir", err)
	}
	idx := newIndex(filepath.Join(cfg.Dir, "index.json"))
	if err := idx.load(); err != nil {
		return nil, err
	}
	return &Store{dir: cfg.Dir, filesDir: filesDir, idx: idx, io: io}, nil
}

// Quarantine moves path into the store, recording threatName, and
// returns the new quarantine_id. Follows spec §4.3's six-step procedure:
// validate, hash, generate id, move, persist index, return.
func (s *Store) Quarantine(ctx context.Context, path, threatName string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", cerrors.Wrap(cerrors.KindIO, "stat file to quarantine", err)
	}
	if !info.Mode().IsRegular() {
		return "", cerrors.New(cerrors.KindPolicy, "quarantine target is not a regular file: "+path)
	}

	sum, err := s.hashFile(ctx, path)
	if err != nil {
		return "", err
	}

	now := time.Now()
	id := makeID(path, now)
	storedPath := filepath.Join(s.filesDir, id)

	if err := moveFile(path, storedPath); err != nil {
		return "", err
	}

	rec := Record{
		ID:            id,
		OriginalPath:  path,
		StoredPath:    storedPath,
		ThreatName:    threatName,
		FileSize:      info.Size(),
		SHA256:        sum,
		QuarantinedAt: now,
	}
	s.idx.put(rec)
	if err := s.idx.persist(); err != nil {
		// The file already moved (step 4 succeeded) but the index on disk
		// does not list it. Reconcile reports such a file as an orphan;
		// Open does not run Reconcile. Surface the error but the record is
		// still in memory for this process's lifetime.
		return id, err
	}
	return id, nil
}

func (s *Store) hashFile(ctx context.Context, path string) (string, error) {
	h := sha256.New()
	_, err := s.io.ReadChunks(ctx, path, func(chunk []byte) error {
		_, err := h.Write(chunk)
		return err
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// List returns every currently quarantined record.
func (s *Store) List() []Record {
	return s.idx.all()
}

// Restore moves a quarantined file back to target (or its original path
// if target is empty), then removes the record.
func (s *Store) Restore(id, target string) error {
	rec, ok := s.idx.get(id)
	if !ok {
		return cerrors.New(cerrors.KindNotFound, "no quarantine record for id "+id)
	}
	dest := target
	if dest == "" {
		dest = rec.OriginalPath
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return cerrors.Wrap(cerrors.KindIO, "create restore target dir", err)
	}
	if err := moveFile(rec.StoredPath, dest); err != nil {
		return err
	}
	s.idx.delete(id)
	return s.idx.persist()
}

// Delete permanently removes a quarantined file and its record.
func (s *Store) Delete(id string) error {
	rec, ok := s.idx.get(id)
	if !ok {
		return cerrors.New(cerrors.KindNotFound, "no quarantine record for id "+id)
	}
	if err := os.Remove(rec.StoredPath); err != nil && !os.IsNotExist(err) {
		return cerrors.Wrap(cerrors.KindIO, "remove quarantined file", err)
	}
	s.idx.delete(id)
	return s.idx.persist()
}

// CleanupOlderThan deletes every record (and its file) quarantined more
// than the given number of days ago, returning the count removed.
func (s *Store) CleanupOlderThan(days int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	var removed int
	for _, rec := range s.idx.all() {
		if rec.QuarantinedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(rec.StoredPath); err != nil && !os.IsNotExist(err) {
			return removed, cerrors.Wrap(cerrors.KindIO, "remove expired quarantined file", err)
		}
		s.idx.delete(rec.ID)
		removed++
	}
	if removed > 0 {
		if err := s.idx.persist(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Reconcile compares the files directory against the index, reporting
// any file present on disk that the index does not reference — the
// orphan window spec §4.3 calls out between a successful move and a
// failed index persist. It never deletes anything; callers decide what
// to do with reported paths.
func (s *Store) Reconcile() ([]string, error) {
	entries, err := os.ReadDir(s.filesDir)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindIO, "read quarantine files dir", err)
	}
	known := s.idx.knownStoredPaths()

	var orphans []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(s.filesDir, e.Name())
		if !known[full] {
			orphans = append(orphans, full)
		}
	}
	return orphans, nil
}
