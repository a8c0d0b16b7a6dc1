package verdictcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/xanadossd/avscan-core/internal/types"
)

// Config seeds a Cache (spec §4.1, §6 cache.*).
type Config struct {
	MaxEntries       int
	TTLSeconds       int
	SignatureVersion string
	PersistPath      string // empty disables persistence entirely
}

// Cache is the in-memory TTL+LRU verdict cache, optionally backed by a
// SQLite file loaded at Open and rewritten at Close/Persist.
type Cache struct {
	mu         sync.Mutex
	lru        *lruList
	stats      Stats
	maxEntries int
	ttl        time.Duration
	sigVersion string
	store      *store
}

// Open constructs a Cache and, if cfg.PersistPath is set, loads whatever
// entries survived from the previous run.
func Open(cfg Config) (*Cache, error) {
	st, err := openStore(cfg.PersistPath)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		lru:        newLRUList(),
		maxEntries: cfg.MaxEntries,
		ttl:        time.Duration(cfg.TTLSeconds) * time.Second,
		sigVersion: cfg.SignatureVersion,
		store:      st,
	}
	if _, err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// fingerprint is SHA256(path NUL mtimeUnixNano), the cache key (original's
// _compute_cache_key, ported from path+mtime string concatenation to
// explicit byte separation so a path containing a colon can't collide).
func fingerprint(path string, mtime time.Time) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(mtime.UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up a verdict for the file at path with the given size and
// modification time. A stale signature version or expired TTL counts as a
// miss and evicts the stale entry, exactly as the original's get() does.
func (c *Cache) Get(path string, size int64, mtime time.Time) (types.Verdict, bool) {
	key := fingerprint(path, mtime)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.get(key)
	if !ok {
		c.stats.recordMiss()
		return types.Verdict{}, false
	}
	if entry.expired(c.ttl) {
		c.lru.delete(key)
		c.stats.recordExpiration()
		c.stats.recordMiss()
		return types.Verdict{}, false
	}
	if entry.SignatureVersion != c.sigVersion {
		c.lru.delete(key)
		c.stats.recordExpiration()
		c.stats.recordMiss()
		return types.Verdict{}, false
	}

	entry.Hits++
	c.stats.recordHit()
	return entry.Verdict, true
}

// Put records a verdict, evicting the least-recently-used entry first if
// the cache is at MaxEntries capacity (0 means unbounded).
func (c *Cache) Put(path string, size int64, mtime time.Time, verdict types.Verdict) {
	key := fingerprint(path, mtime)
	entry := &Entry{
		Key:              key,
		FilePath:         path,
		Verdict:          verdict,
		FileSize:         size,
		FileModTime:      mtime,
		SignatureVersion: c.sigVersion,
		StoredAt:         time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.lru.index[key]; !exists && c.maxEntries > 0 && c.lru.len() >= c.maxEntries {
		if c.lru.evictLRU() != nil {
			c.stats.recordEviction()
		}
	}
	c.lru.put(key, entry)
}

// Delete removes any cached verdict for path at the given mtime.
func (c *Cache) Delete(path string, mtime time.Time) {
	key := fingerprint(path, mtime)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.delete(key)
}

// Clear empties the cache and resets statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.clear()
	c.stats.Reset()
}

// SetSignatureVersion updates the version new Puts are stamped with. Per
// spec §4.1, a genuine version change clears every existing entry outright
// (all prior verdicts are invalid) rather than leaving them to expire lazily
// one Get at a time.
func (c *Cache) SetSignatureVersion(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == c.sigVersion {
		return
	}
	c.sigVersion = v
	c.lru.clear()
}

// Len reports the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.len()
}

// Statistics returns a snapshot of hit/miss/eviction/expiration counters.
func (c *Cache) Statistics() Snapshot {
	return c.stats.Snapshot()
}

// LoadStats reports how many persisted entries were restored versus
// discarded as stale when Load ran.
type LoadStats struct {
	Loaded  int
	Skipped int
}

// Load replaces in-memory state with whatever is in the persistence
// store, used at Open and available for manual reload. Entries whose TTL
// has already elapsed or whose signature version no longer matches the
// cache's current one are discarded rather than loaded (spec §4.1: a
// verdict computed under an old signature set must never be served as
// current), the same check Get applies lazily, but enforced up front so
// stale entries never even enter the LRU.
func (c *Cache) Load() (LoadStats, error) {
	entries, err := c.store.loadAll()
	if err != nil {
		return LoadStats{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats LoadStats
	for _, e := range entries {
		if e.expired(c.ttl) || e.SignatureVersion != c.sigVersion {
			stats.Skipped++
			continue
		}
		c.lru.put(e.Key, e)
		stats.Loaded++
	}
	return stats, nil
}

// Persist writes the full in-memory cache to the persistence store.
func (c *Cache) Persist() error {
	c.mu.Lock()
	entries := c.lru.all()
	c.mu.Unlock()
	return c.store.persistAll(entries)
}

// Close persists the cache and releases the underlying database handle.
func (c *Cache) Close() error {
	if err := c.Persist(); err != nil {
		return err
	}
	return c.store.close()
}
