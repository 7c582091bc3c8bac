package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tinkergraph/pkg/config"
)

func newTestTracker(t *testing.T, mutate func(*config.MemoryConfig)) (*Tracker, *test.Hook) {
	t.Helper()
	cfg := config.Default().Memory
	if mutate != nil {
		mutate(&cfg)
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewTracker(cfg, WithTrackerLogger(logger)), hook
}

func TestTracker_Accounting(t *testing.T) {
	tr, _ := newTestTracker(t, nil)

	tr.TrackAllocation(100, false)
	tr.TrackAllocation(100, true)
	tr.TrackAllocation(100, true)
	tr.TrackDeallocation(100, true)

	s := tr.Statistics()
	assert.Equal(t, int64(300), s.TotalAllocatedBytes)
	assert.Equal(t, int64(100), s.TotalFreedBytes)
	assert.Equal(t, int64(3), s.Allocations)
	assert.Equal(t, int64(1), s.Deallocations)
	assert.Equal(t, int64(2), s.Active)
	assert.Equal(t, int64(3), s.Peak)
	assert.Equal(t, int64(2), s.PoolHits)
	assert.Equal(t, int64(1), s.PoolReturns)
	assert.InDelta(t, 1.0/3.0, s.Efficiency, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.PoolHitRatio(), 1e-9)
	assert.False(t, s.MemoryPressure)
	assert.Contains(t, s.String(), "active=2")
}

func TestTracker_EmptyStatistics(t *testing.T) {
	tr, _ := newTestTracker(t, nil)
	s := tr.Statistics()
	assert.Equal(t, 1.0, s.Efficiency)
	assert.Equal(t, 0.0, s.PoolHitRatio())
	assert.Equal(t, time.Duration(0), s.AverageLatency)
	assert.False(t, tr.IsUnderPressure())
}

func TestTracker_Pressure(t *testing.T) {
	t.Run("high water mark", func(t *testing.T) {
		tr, hook := newTestTracker(t, func(c *config.MemoryConfig) { c.HighWaterMark = 3 })
		for i := 0; i < 3; i++ {
			tr.TrackAllocation(10, false)
		}
		assert.False(t, tr.IsUnderPressure())

		tr.TrackAllocation(10, false)
		assert.True(t, tr.IsUnderPressure())
		assert.True(t, tr.Statistics().MemoryPressure)

		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		assert.Equal(t, "memory pressure detected", hook.LastEntry().Message)

		tr.TrackDeallocation(10, false)
		assert.False(t, tr.IsUnderPressure())
		assert.Equal(t, "memory pressure cleared", hook.LastEntry().Message)
	})

	t.Run("efficiency waits for samples", func(t *testing.T) {
		tr, _ := newTestTracker(t, func(c *config.MemoryConfig) { c.MinSamples = 10 })
		for i := 0; i < 9; i++ {
			tr.TrackAllocation(10, false)
		}
		assert.False(t, tr.IsUnderPressure(), "efficiency 0 ignored below min samples")

		tr.TrackAllocation(10, false)
		assert.True(t, tr.IsUnderPressure())

		for i := 0; i < 5; i++ {
			tr.TrackDeallocation(10, true)
		}
		assert.False(t, tr.IsUnderPressure(), "efficiency 0.5 is not below the minimum")
	})

	t.Run("latency", func(t *testing.T) {
		tr, _ := newTestTracker(t, nil)
		tr.ObserveAllocationLatency(500 * time.Microsecond)
		assert.False(t, tr.IsUnderPressure())
		tr.ObserveAllocationLatency(3 * time.Millisecond)
		assert.Equal(t, 1750*time.Microsecond, tr.Statistics().AverageLatency)
		assert.True(t, tr.IsUnderPressure())
	})
}

type fakeCompactor struct{ idle int }

func (f *fakeCompactor) Kind() Kind { return KindVertex }
func (f *fakeCompactor) Compact() int {
	n := f.idle
	f.idle = 0
	return n
}

func TestTracker_ForceCleanup(t *testing.T) {
	tr, hook := newTestTracker(t, nil)
	c := &fakeCompactor{idle: 4}
	tr.Register(c)

	tr.TrackAllocation(64, false)
	tr.TrackDeallocation(64, true)

	assert.Equal(t, 4, tr.ForceCleanup())
	assert.Equal(t, 0, tr.ForceCleanup())

	s := tr.Statistics()
	assert.Equal(t, int64(2), s.OptimizationLevel)
	assert.Equal(t, int64(64), s.TotalAllocatedBytes, "cleanup keeps cumulative counters")
	assert.Equal(t, int64(1), s.Deallocations)
	assert.Equal(t, "forced memory cleanup", hook.LastEntry().Message)
}

func TestTracker_ResetStatistics(t *testing.T) {
	tr, _ := newTestTracker(t, nil)
	tr.TrackAllocation(10, true)
	tr.ObserveAllocationLatency(time.Millisecond)
	tr.ForceCleanup()

	tr.ResetStatistics()
	assert.Equal(t, Statistics{Efficiency: 1}, tr.Statistics())
}

func TestTracker_Concurrent(t *testing.T) {
	tr, _ := newTestTracker(t, nil)

	const goroutines = 20
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				tr.TrackAllocation(8, j%2 == 0)
				tr.TrackDeallocation(8, true)
			}
		}()
	}
	wg.Wait()

	s := tr.Statistics()
	assert.Equal(t, int64(goroutines*iterations), s.Allocations)
	assert.Equal(t, int64(0), s.Active)
	assert.Equal(t, 1.0, s.Efficiency)
	assert.LessOrEqual(t, s.Peak, int64(goroutines))
}
