// Package verdictcache implements the Verdict Cache (spec §4.1): an
// in-memory TTL+LRU cache of scan verdicts keyed by path+mtime fingerprint,
// persisted to a single SQLite table across runs. Grounded on
// original_source/app/core/intelligent_cache.py's IntelligentCache
// (CacheEntry, CacheStatistics, TTL+LRU hybrid, SQLite persistence), with
// the on-disk backend swapped from the original's raw sqlite3 calls to
// modernc.org/sqlite — attested elsewhere in the pack for pure-Go SQLite
// access — and the LRU list hand-rolled (see lru.go) since no cachetools
// equivalent appears anywhere in the example corpus.
package verdictcache

import (
	"sync"
	"time"

	"github.com/xanadossd/avscan-core/internal/types"
)

// Entry is one cached verdict plus the bookkeeping needed to invalidate
// and evict it (original's CacheEntry dataclass).
type Entry struct {
	Key              string
	FilePath         string
	Verdict          types.Verdict
	FileSize         int64
	FileModTime      time.Time
	SignatureVersion string
	StoredAt         time.Time
	Hits             int64
}

func (e *Entry) expired(ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(e.StoredAt) > ttl
}

// Stats is a thread-safe running tally of cache activity (original's
// CacheStatistics).
type Stats struct {
	mu          sync.Mutex
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

func (s *Stats) recordHit()        { s.mu.Lock(); s.hits++; s.mu.Unlock() }
func (s *Stats) recordMiss()       { s.mu.Lock(); s.misses++; s.mu.Unlock() }
func (s *Stats) recordEviction()   { s.mu.Lock(); s.evictions++; s.mu.Unlock() }
func (s *Stats) recordExpiration() { s.mu.Lock(); s.expirations++; s.mu.Unlock() }

// Snapshot is an immutable copy of Stats for callers (original's get_stats).
type Snapshot struct {
	Hits           int64
	Misses         int64
	Evictions      int64
	Expirations    int64
	HitRatePercent float64
}

// Snapshot returns a point-in-time copy of the running statistics.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.hits + s.misses
	var rate float64
	if total > 0 {
		rate = float64(s.hits) / float64(total) * 100
	}
	return Snapshot{
		Hits:           s.hits,
		Misses:         s.misses,
		Evictions:      s.evictions,
		Expirations:    s.expirations,
		HitRatePercent: rate,
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits, s.misses, s.evictions, s.expirations = 0, 0, 0, 0
}
