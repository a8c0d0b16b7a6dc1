package verdictcache

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key               TEXT PRIMARY KEY,
	file_path         TEXT NOT NULL,
	verdict_kind      TEXT NOT NULL,
	threat_name       TEXT NOT NULL,
	threat_type       TEXT NOT NULL,
	engine_name       TEXT NOT NULL,
	signature_version TEXT NOT NULL,
	confidence        REAL NOT NULL,
	file_size         INTEGER NOT NULL,
	file_mtime_unix   INTEGER NOT NULL,
	stored_at_unix    INTEGER NOT NULL,
	hits              INTEGER NOT NULL
);
`

// store wraps the SQLite-backed persistence of cache_entries, the single
// table the spec calls for. It is opened fresh each process start and
// fully reloaded into the in-memory LRU (load), then rewritten wholesale
// on persist — there is no incremental write path, matching the
// original's save_to_disk/load_from_disk round trip.
type store struct {
	db   *sql.DB
	path string
}

func openStore(path string) (*store, error) {
	if path == "" {
		return &store{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cerrors.Wrap(cerrors.KindIO, "create cache dir", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindCacheCorrupt, "open cache database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, cerrors.Wrap(cerrors.KindCacheCorrupt, "create cache_entries table", err)
	}
	return &store{db: db, path: path}, nil
}

func (s *store) close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *store) loadAll() ([]*Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT key, file_path, verdict_kind, threat_name, threat_type,
		engine_name, signature_version, confidence, file_size, file_mtime_unix, stored_at_unix, hits
		FROM cache_entries`)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindCacheCorrupt, "query cache_entries", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e                                     Entry
			kind, threatName, threatType, engine  string
			sigVersion                            string
			fileMTimeUnix, storedAtUnix, fileSize int64
		)
		if err := rows.Scan(&e.Key, &e.FilePath, &kind, &threatName, &threatType,
			&engine, &sigVersion, &e.Verdict.Confidence, &fileSize, &fileMTimeUnix, &storedAtUnix, &e.Hits); err != nil {
			return nil, cerrors.Wrap(cerrors.KindCacheCorrupt, "scan cache_entries row", err)
		}
		e.Verdict.Kind = parseVerdictKind(kind)
		e.Verdict.ThreatName = threatName
		e.Verdict.ThreatType = types.ThreatType(threatType)
		e.Verdict.EngineName = engine
		e.Verdict.SignatureVersion = sigVersion
		e.SignatureVersion = sigVersion
		e.FileSize = fileSize
		e.FileModTime = time.Unix(fileMTimeUnix, 0)
		e.StoredAt = time.Unix(storedAtUnix, 0)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// persistAll replaces the table contents with entries, inside one
// transaction, matching the original's wholesale save_to_disk behavior.
func (s *store) persistAll(entries []*Entry) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return cerrors.Wrap(cerrors.KindCacheCorrupt, "begin cache persist transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cache_entries`); err != nil {
		return cerrors.Wrap(cerrors.KindCacheCorrupt, "clear cache_entries", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO cache_entries
		(key, file_path, verdict_kind, threat_name, threat_type, engine_name,
		 signature_version, confidence, file_size, file_mtime_unix, stored_at_unix, hits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cerrors.Wrap(cerrors.KindCacheCorrupt, "prepare cache insert", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Key, e.FilePath, e.Verdict.Kind.String(), e.Verdict.ThreatName,
			string(e.Verdict.ThreatType), e.Verdict.EngineName, e.SignatureVersion, e.Verdict.Confidence,
			e.FileSize, e.FileModTime.Unix(), e.StoredAt.Unix(), e.Hits); err != nil {
			return cerrors.Wrap(cerrors.KindCacheCorrupt, "insert cache entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.Wrap(cerrors.KindCacheCorrupt, "commit cache persist transaction", err)
	}
	return nil
}

func parseVerdictKind(s string) types.VerdictKind {
	switch s {
	case "clean":
		return types.Clean
	case "infected":
		return types.Infected
	case "timeout":
		return types.VerdictTimeout
	default:
		return types.VerdictErr
	}
}
