// Package cache provides the index cache of tinkergraph.
//
// The index cache sits in front of lookups that cannot be answered directly by
// an authoritative index (composite, range and unindexed property scans). It
// may lag the graph briefly; the graph invalidates entries on every mutation
// that could change a cached result.
//
// Features:
// - FIFO eviction by insertion sequence for bounded memory
// - Max-age expiration, purged lazily on access and eagerly on reconfiguration
// - Key, index-type and element invalidation
// - Hit/miss/eviction statistics with tuning recommendations
//
// Usage:
//
//	c, err := cache.NewIndexCache[structure.Element](cfg.IndexCache)
//
//	params := map[string]any{"name": "marko", "age": 29}
//	if result, ok := c.Get("vertex:composite", "name,age", params); ok {
//		return result // Cache hit
//	}
//
//	result := scan()
//	c.Put("vertex:composite", "name,age", params, result)
package cache

import (
	"container/list"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/tinkergraph/pkg/config"
	"github.com/orneryd/tinkergraph/pkg/convert"
	"github.com/orneryd/tinkergraph/pkg/pool"
)

// IndexCache is a thread-safe FIFO cache of lookup result sets.
//
// The cache uses:
// - Hash map for O(1) lookups
// - Doubly-linked list ordered by insertion sequence
// - Max age checked against an injectable clock
//
// A re-put of an existing key stores the new result with a fresh sequence
// and timestamp, moving it to the young end of the eviction order.
type IndexCache[E any] struct {
	mu sync.Mutex

	// Configuration
	maxSize int
	maxAge  time.Duration
	enabled bool
	now     func() time.Time
	log     logrus.FieldLogger

	// FIFO list (front is oldest) and map
	list  *list.List
	items map[string]*list.Element
	seq   uint64

	// Statistics
	hits          uint64
	misses        uint64
	evictions     uint64
	invalidations uint64
}

// cacheEntry holds a cached result set with metadata.
type cacheEntry[E any] struct {
	key      string
	result   []E
	seq      uint64
	storedAt time.Time
}

type options struct {
	now func() time.Time
	log logrus.FieldLogger
}

// Option configures an IndexCache.
type Option func(*options)

// WithClock replaces time.Now, mainly so tests can move past expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for eviction and invalidation events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// NewIndexCache creates a cache bounded by cfg.
//
// A non-positive MaxSize or MaxAge is rejected with a *config.ConfigurationError.
// A disabled cache misses on every Get and ignores Put.
func NewIndexCache[E any](cfg config.IndexCacheConfig, opts ...Option) (*IndexCache[E], error) {
	if err := config.PositiveInt("index_cache.max_size", cfg.MaxSize); err != nil {
		return nil, err
	}
	if err := config.PositiveDuration("index_cache.max_age", cfg.MaxAge); err != nil {
		return nil, err
	}

	o := options{now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	return &IndexCache[E]{
		maxSize: cfg.MaxSize,
		maxAge:  cfg.MaxAge,
		enabled: cfg.Enabled,
		now:     o.now,
		log:     o.log,
		list:    list.New(),
		items:   make(map[string]*list.Element),
	}, nil
}

// Key builds the cache key "indexType|key|p1=v1,p2=v2". Parameters are sorted
// by name and values rendered as canonical value keys, so numerically equal
// parameters share an entry.
func Key(indexType, key string, params map[string]any) string {
	b := pool.GetStringBuilder()
	defer pool.PutStringBuilder(b)

	b.WriteString(indexType)
	b.WriteByte('|')
	b.WriteString(key)
	b.WriteByte('|')

	names := pool.GetStringSlice()
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(convert.ValueKey(params[name]))
	}
	pool.PutStringSlice(names)

	return b.String()
}

// Get returns a copy of the cached result, or a miss when the entry is absent
// or older than the max age. Expired entries are removed.
func (c *IndexCache[E]) Get(indexType, key string, params map[string]any) ([]E, bool) {
	k := Key(indexType, key, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		c.misses++
		return nil, false
	}

	elem, ok := c.items[k]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry[E])
	if c.expired(entry) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	c.hits++
	return append([]E(nil), entry.result...), true
}

// Put stores a snapshot of result. When the cache grows past max size the
// entries with the lowest insertion sequence are evicted.
func (c *IndexCache[E]) Put(indexType, key string, params map[string]any, result []E) {
	k := Key(indexType, key, params)
	snapshot := append(make([]E, 0, len(result)), result...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}

	c.seq++
	if elem, ok := c.items[k]; ok {
		entry := elem.Value.(*cacheEntry[E])
		entry.result = snapshot
		entry.seq = c.seq
		entry.storedAt = c.now()
		c.list.MoveToBack(elem)
		return
	}

	c.items[k] = c.list.PushBack(&cacheEntry[E]{
		key:      k,
		result:   snapshot,
		seq:      c.seq,
		storedAt: c.now(),
	})
	c.trim()
}

// InvalidateKey removes every entry whose cache key contains key.
func (c *IndexCache[E]) InvalidateKey(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidate("key", key, func(k string) bool { return strings.Contains(k, key) })
}

// InvalidateIndexType removes every entry whose cache key starts with indexType.
func (c *IndexCache[E]) InvalidateIndexType(indexType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidate("index_type", indexType, func(k string) bool { return strings.HasPrefix(k, indexType) })
}

// InvalidateElement removes the entries that may contain element. Any entry
// could, so the whole cache is cleared; statistics are kept.
// TODO: track element membership per entry so only affected entries go.
func (c *IndexCache[E]) InvalidateElement(element E) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidate("element", "*", func(string) bool { return true })
}

// CleanupExpired removes every entry older than the max age.
func (c *IndexCache[E]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupExpired()
}

// SetMaxSize changes the bound and evicts down to it immediately.
func (c *IndexCache[E]) SetMaxSize(n int) error {
	if err := config.PositiveInt("index_cache.max_size", n); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = n
	c.trim()
	return nil
}

// SetMaxAge changes the max age and sweeps entries that are now expired.
func (c *IndexCache[E]) SetMaxAge(d time.Duration) error {
	if err := config.PositiveDuration("index_cache.max_age", d); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAge = d
	c.cleanupExpired()
	return nil
}

// SetEnabled enables or disables the cache. Disabling drops every entry.
func (c *IndexCache[E]) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.list.Init()
		c.items = make(map[string]*list.Element)
	}
}

// Enabled reports whether the cache stores results.
func (c *IndexCache[E]) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Len returns the number of cached entries, expired ones included.
func (c *IndexCache[E]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// Clear removes every entry and resets statistics.
func (c *IndexCache[E]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.items = make(map[string]*list.Element)
	c.resetStatistics()
}

// ResetStatistics zeroes the counters and keeps the entries.
func (c *IndexCache[E]) ResetStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetStatistics()
}

// Stats holds index cache statistics.
type Stats struct {
	Size          int           // Current number of entries
	MaxSize       int           // Maximum capacity
	MaxAge        time.Duration // Entry lifetime
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
	HitRatio      float64 // Hits over lookups (0-1)
}

func (s Stats) String() string {
	return fmt.Sprintf("size=%d/%d hits=%d misses=%d evictions=%d invalidations=%d hit_ratio=%.1f%%",
		s.Size, s.MaxSize, s.Hits, s.Misses, s.Evictions, s.Invalidations, s.HitRatio*100)
}

// Stats returns cache statistics.
func (c *IndexCache[E]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ratio float64
	if total := c.hits + c.misses; total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:          c.list.Len(),
		MaxSize:       c.maxSize,
		MaxAge:        c.maxAge,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Invalidations: c.invalidations,
		HitRatio:      ratio,
	}
}

// Recommendations returns tuning hints derived from the statistics.
func (c *IndexCache[E]) Recommendations() []string {
	s := c.Stats()
	var recs []string
	if s.Hits+s.Misses > 0 && s.HitRatio < 0.5 {
		recs = append(recs, fmt.Sprintf(
			"low hit ratio (%.1f%%): consider indexing the queried keys or raising the max age", s.HitRatio*100))
	}
	if s.Size*10 >= s.MaxSize*9 {
		recs = append(recs, fmt.Sprintf(
			"cache near capacity (%d/%d): consider raising the max size", s.Size, s.MaxSize))
	}
	if s.Evictions > s.Hits {
		recs = append(recs, fmt.Sprintf(
			"evictions (%d) exceed hits (%d): the cache is thrashing, raise the max size", s.Evictions, s.Hits))
	}
	return recs
}

// expired reports whether entry outlived the max age.
// Caller must hold the lock.
func (c *IndexCache[E]) expired(entry *cacheEntry[E]) bool {
	return c.now().Sub(entry.storedAt) > c.maxAge
}

// trim evicts the oldest entries until the cache fits.
// Caller must hold the lock.
func (c *IndexCache[E]) trim() {
	evicted := 0
	for c.list.Len() > c.maxSize {
		c.removeElement(c.list.Front())
		evicted++
	}
	if evicted > 0 {
		c.evictions += uint64(evicted)
		c.log.WithFields(logrus.Fields{
			"evicted":  evicted,
			"max_size": c.maxSize,
		}).Debug("index cache evicted entries")
	}
}

// cleanupExpired removes expired entries.
// Caller must hold the lock.
func (c *IndexCache[E]) cleanupExpired() int {
	removed := 0
	for elem := c.list.Front(); elem != nil; {
		next := elem.Next()
		if c.expired(elem.Value.(*cacheEntry[E])) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// invalidate removes entries whose key satisfies match.
// Caller must hold the lock.
func (c *IndexCache[E]) invalidate(reason, target string, match func(string) bool) int {
	removed := 0
	for elem := c.list.Front(); elem != nil; {
		next := elem.Next()
		if match(elem.Value.(*cacheEntry[E]).key) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		c.invalidations += uint64(removed)
		c.log.WithFields(logrus.Fields{
			"reason":  reason,
			"target":  target,
			"removed": removed,
		}).Debug("index cache invalidated entries")
	}
	return removed
}

// removeElement removes an element from the cache.
// Caller must hold the lock.
func (c *IndexCache[E]) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry[E]).key)
}

func (c *IndexCache[E]) resetStatistics() {
	c.hits, c.misses, c.evictions, c.invalidations = 0, 0, 0, 0
}
