package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tinkergraph/pkg/config"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, maxSize int, maxAge time.Duration) (*IndexCache[string], *fakeClock, *test.Hook) {
	t.Helper()
	clock := newFakeClock()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c, err := NewIndexCache[string](
		config.IndexCacheConfig{Enabled: true, MaxSize: maxSize, MaxAge: maxAge},
		WithClock(clock.Now), WithLogger(logger))
	require.NoError(t, err)
	return c, clock, hook
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewIndexCache(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewIndexCache[int](config.Default().IndexCache)
		require.NoError(t, err)
		s := c.Stats()
		assert.Equal(t, 1000, s.MaxSize)
		assert.Equal(t, 300_000*time.Millisecond, s.MaxAge)
		assert.True(t, c.Enabled())
	})

	t.Run("non-positive bounds rejected", func(t *testing.T) {
		_, err := NewIndexCache[int](config.IndexCacheConfig{MaxSize: 0, MaxAge: time.Second})
		assert.True(t, errors.Is(err, config.ErrInvalidConfig))

		_, err = NewIndexCache[int](config.IndexCacheConfig{MaxSize: 1, MaxAge: -time.Second})
		var cerr *config.ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "index_cache.max_age", cerr.Field)
	})
}

// =============================================================================
// Key Tests
// =============================================================================

func TestKey(t *testing.T) {
	t.Run("params sorted by name", func(t *testing.T) {
		k := Key("vertex:composite", "name,age", map[string]any{"name": "marko", "age": 29})
		assert.Equal(t, "vertex:composite|name,age|age=n:29,name=s:marko", k)
	})

	t.Run("numeric kinds share a key", func(t *testing.T) {
		assert.Equal(t,
			Key("vertex:scan", "age", map[string]any{"value": 30}),
			Key("vertex:scan", "age", map[string]any{"value": 30.0}))
	})

	t.Run("no params", func(t *testing.T) {
		assert.Equal(t, "edge:scan|weight|", Key("edge:scan", "weight", nil))
	})
}

// =============================================================================
// Get/Put Tests
// =============================================================================

func TestIndexCache_GetPut(t *testing.T) {
	c, _, _ := newTestCache(t, 10, time.Minute)
	params := map[string]any{"value": 29}

	_, ok := c.Get("vertex:scan", "age", params)
	assert.False(t, ok)

	result := []string{"v1", "v4"}
	c.Put("vertex:scan", "age", params, result)

	got, ok := c.Get("vertex:scan", "age", params)
	require.True(t, ok)
	assert.Equal(t, result, got)

	t.Run("put stores a snapshot", func(t *testing.T) {
		result[0] = "mutated"
		got, _ := c.Get("vertex:scan", "age", params)
		assert.Equal(t, "v1", got[0])
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got, _ := c.Get("vertex:scan", "age", params)
		got[0] = "mutated"
		again, _ := c.Get("vertex:scan", "age", params)
		assert.Equal(t, "v1", again[0])
	})

	t.Run("empty results are cached", func(t *testing.T) {
		c.Put("vertex:scan", "age", map[string]any{"value": 99}, nil)
		got, ok := c.Get("vertex:scan", "age", map[string]any{"value": 99})
		assert.True(t, ok)
		assert.Empty(t, got)
	})
}

// =============================================================================
// Expiry Tests
// =============================================================================

func TestIndexCache_Expiry(t *testing.T) {
	c, clock, _ := newTestCache(t, 10, time.Minute)
	c.Put("vertex:range", "age", nil, []string{"v1"})

	clock.Advance(time.Minute)
	_, ok := c.Get("vertex:range", "age", nil)
	assert.True(t, ok, "an entry exactly max age old is still fresh")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("vertex:range", "age", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry purged on access")

	t.Run("re-put refreshes timestamp", func(t *testing.T) {
		c.Put("k", "a", nil, []string{"x"})
		clock.Advance(50 * time.Second)
		c.Put("k", "a", nil, []string{"y"})
		clock.Advance(50 * time.Second)
		got, ok := c.Get("k", "a", nil)
		require.True(t, ok)
		assert.Equal(t, []string{"y"}, got)
	})
}

func TestIndexCache_SetMaxAge(t *testing.T) {
	c, clock, _ := newTestCache(t, 10, time.Hour)
	c.Put("t", "old", nil, nil)
	clock.Advance(10 * time.Minute)
	c.Put("t", "new", nil, nil)

	require.NoError(t, c.SetMaxAge(5*time.Minute))
	assert.Equal(t, 1, c.Len(), "shortening max age sweeps eagerly")
	_, ok := c.Get("t", "new", nil)
	assert.True(t, ok)

	assert.True(t, errors.Is(c.SetMaxAge(0), config.ErrInvalidConfig))
	assert.Equal(t, 5*time.Minute, c.Stats().MaxAge)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, c.CleanupExpired())
}

// =============================================================================
// Eviction Tests
// =============================================================================

func TestIndexCache_FIFOEviction(t *testing.T) {
	c, _, hook := newTestCache(t, 1000, time.Hour)

	for i := 0; i < 1001; i++ {
		c.Put("vertex:scan", fmt.Sprintf("key%d", i), nil, []string{"v"})
		require.LessOrEqual(t, c.Len(), 1000)
	}

	assert.Equal(t, 1000, c.Len())
	_, ok := c.Get("vertex:scan", "key0", nil)
	assert.False(t, ok, "first inserted key evicted")
	_, ok = c.Get("vertex:scan", "key1", nil)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.Equal(t, "index cache evicted entries", hook.LastEntry().Message)
}

func TestIndexCache_EvictsLowestSequence(t *testing.T) {
	c, _, _ := newTestCache(t, 3, time.Hour)
	c.Put("t", "a", nil, nil)
	c.Put("t", "b", nil, nil)
	c.Put("t", "c", nil, nil)

	// Reads do not reorder; re-puts do.
	_, _ = c.Get("t", "a", nil)
	c.Put("t", "b", nil, []string{"b2"})
	c.Put("t", "d", nil, nil)

	_, ok := c.Get("t", "a", nil)
	assert.False(t, ok)
	for _, k := range []string{"b", "c", "d"} {
		_, ok := c.Get("t", k, nil)
		assert.True(t, ok, k)
	}

	var seqs []uint64
	for e := c.list.Front(); e != nil; e = e.Next() {
		seqs = append(seqs, e.Value.(*cacheEntry[string]).seq)
	}
	assert.IsIncreasing(t, seqs)
}

func TestIndexCache_SetMaxSize(t *testing.T) {
	c, _, _ := newTestCache(t, 10, time.Hour)
	for i := 0; i < 10; i++ {
		c.Put("t", fmt.Sprint(i), nil, nil)
	}
	require.NoError(t, c.SetMaxSize(4))
	assert.Equal(t, 4, c.Len())
	_, ok := c.Get("t", "5", nil)
	assert.False(t, ok)
	_, ok = c.Get("t", "6", nil)
	assert.True(t, ok)

	assert.Error(t, c.SetMaxSize(-1))
	assert.Equal(t, 4, c.Stats().MaxSize)
}

// =============================================================================
// Invalidation Tests
// =============================================================================

func TestIndexCache_InvalidateKey(t *testing.T) {
	c, _, _ := newTestCache(t, 10, time.Hour)
	c.Put("vertex:scan", "age", map[string]any{"value": 29}, nil)
	c.Put("vertex:composite", "name,age", map[string]any{"name": "marko", "age": 29}, nil)
	c.Put("vertex:scan", "name", map[string]any{"value": "marko"}, nil)
	c.Put("edge:scan", "weight", map[string]any{"value": 0.5}, nil)

	assert.Equal(t, 2, c.InvalidateKey("age"))
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("vertex:scan", "name", map[string]any{"value": "marko"})
	assert.True(t, ok)
	_, ok = c.Get("edge:scan", "weight", map[string]any{"value": 0.5})
	assert.True(t, ok)
	assert.Equal(t, uint64(2), c.Stats().Invalidations)
}

func TestIndexCache_InvalidateIndexType(t *testing.T) {
	c, _, hook := newTestCache(t, 10, time.Hour)
	c.Put("vertex:scan", "age", nil, nil)
	c.Put("vertex:range", "age", nil, nil)
	c.Put("edge:scan", "age", nil, nil)

	assert.Equal(t, 2, c.InvalidateIndexType("vertex:"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "index_type", hook.LastEntry().Data["reason"])
	assert.Equal(t, 0, c.InvalidateIndexType("vertex:"))
}

func TestIndexCache_InvalidateElement(t *testing.T) {
	c, _, _ := newTestCache(t, 10, time.Hour)
	c.Put("vertex:scan", "age", nil, []string{"v1"})
	c.Put("vertex:scan", "name", nil, []string{"v2"})
	_, _ = c.Get("vertex:scan", "age", nil)

	assert.Equal(t, 2, c.InvalidateElement("v1"))
	assert.Equal(t, 0, c.Len())
	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits, "statistics survive invalidation")
	assert.Equal(t, uint64(2), s.Invalidations)
}

// =============================================================================
// Statistics Tests
// =============================================================================

func TestIndexCache_Stats(t *testing.T) {
	c, _, _ := newTestCache(t, 10, time.Hour)
	c.Put("t", "a", nil, nil)
	_, _ = c.Get("t", "a", nil)
	_, _ = c.Get("t", "a", nil)
	_, _ = c.Get("t", "a", nil)
	_, _ = c.Get("t", "b", nil)

	s := c.Stats()
	assert.Equal(t, uint64(3), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 0.75, s.HitRatio, 1e-9)
	assert.Contains(t, s.String(), "hit_ratio=75.0%")

	c.ResetStatistics()
	assert.Equal(t, uint64(0), c.Stats().Hits)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, Stats{MaxSize: 10, MaxAge: time.Hour}, c.Stats())
}

func TestIndexCache_Recommendations(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c, _, _ := newTestCache(t, 10, time.Hour)
		c.Put("t", "a", nil, nil)
		_, _ = c.Get("t", "a", nil)
		assert.Empty(t, c.Recommendations())
	})

	t.Run("low hit ratio", func(t *testing.T) {
		c, _, _ := newTestCache(t, 10, time.Hour)
		_, _ = c.Get("t", "a", nil)
		recs := c.Recommendations()
		require.Len(t, recs, 1)
		assert.Contains(t, recs[0], "low hit ratio")
	})

	t.Run("near capacity and thrashing", func(t *testing.T) {
		c, _, _ := newTestCache(t, 10, time.Hour)
		for i := 0; i < 15; i++ {
			c.Put("t", fmt.Sprint(i), nil, nil)
		}
		recs := c.Recommendations()
		require.Len(t, recs, 2)
		assert.Contains(t, recs[0], "near capacity")
		assert.Contains(t, recs[1], "thrashing")
	})
}

func TestIndexCache_SetEnabled(t *testing.T) {
	c, _, _ := newTestCache(t, 10, time.Hour)
	c.Put("t", "a", nil, nil)

	c.SetEnabled(false)
	assert.False(t, c.Enabled())
	assert.Equal(t, 0, c.Len())
	c.Put("t", "a", nil, nil)
	_, ok := c.Get("t", "a", nil)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)

	c.SetEnabled(true)
	c.Put("t", "a", nil, nil)
	_, ok = c.Get("t", "a", nil)
	assert.True(t, ok)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestIndexCache_ConcurrentAccess(t *testing.T) {
	c, _, _ := newTestCache(t, 50, time.Hour)

	const goroutines = 20
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				key := fmt.Sprintf("k%d", (id*iterations+i)%80)
				if _, ok := c.Get("t", key, nil); !ok {
					c.Put("t", key, nil, []string{key})
				}
				if i%50 == 0 {
					c.InvalidateKey(key)
				}
			}
		}(g)
	}
	wg.Wait()

	s := c.Stats()
	assert.LessOrEqual(t, s.Size, 50)
	assert.Equal(t, uint64(goroutines*iterations), s.Hits+s.Misses)
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkKey(b *testing.B) {
	params := map[string]any{"name": "marko", "age": 29}
	for i := 0; i < b.N; i++ {
		_ = Key("vertex:composite", "name,age", params)
	}
}

func BenchmarkIndexCache_GetHit(b *testing.B) {
	c, _ := NewIndexCache[int](config.Default().IndexCache)
	c.Put("t", "k", nil, []int{1, 2, 3})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("t", "k", nil)
	}
}
