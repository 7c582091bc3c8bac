package pool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/orneryd/tinkergraph/pkg/config"
)

// Compactor is a pool that can drop its idle objects on demand.
type Compactor interface {
	// Kind names the objects the pool holds.
	Kind() Kind
	// Compact releases idle objects and returns how many were dropped.
	Compact() int
}

// Tracker accounts allocations and releases of pooled objects.
//
// All counters are cumulative and only ResetStatistics clears them; a steadily
// growing gap between allocated and freed bytes is the leak signal. Tracker is
// safe for concurrent use.
type Tracker struct {
	thresholds config.MemoryConfig
	log        logrus.FieldLogger

	allocatedBytes atomic.Int64
	freedBytes     atomic.Int64
	allocations    atomic.Int64
	deallocations  atomic.Int64
	active         atomic.Int64
	peak           atomic.Int64
	poolHits       atomic.Int64
	poolReturns    atomic.Int64
	latencyTotal   atomic.Int64
	latencySamples atomic.Int64
	optimization   atomic.Int64
	pressured      atomic.Bool

	mu    sync.Mutex
	pools []Compactor
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger used for pressure and cleanup events.
func WithTrackerLogger(log logrus.FieldLogger) TrackerOption {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// NewTracker creates a tracker using the given pressure thresholds.
func NewTracker(thresholds config.MemoryConfig, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		thresholds: thresholds,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Statistics is a snapshot of a Tracker.
type Statistics struct {
	TotalAllocatedBytes int64
	TotalFreedBytes     int64
	Allocations         int64
	Deallocations       int64
	Active              int64
	Peak                int64
	PoolHits            int64
	PoolReturns         int64
	AverageLatency      time.Duration
	// Efficiency is freed bytes over allocated bytes, 1 when nothing was allocated.
	Efficiency        float64
	OptimizationLevel int64
	MemoryPressure    bool
}

// PoolHitRatio returns the share of allocations served from a pool.
func (s Statistics) PoolHitRatio() float64 {
	if s.Allocations == 0 {
		return 0
	}
	return float64(s.PoolHits) / float64(s.Allocations)
}

func (s Statistics) String() string {
	return fmt.Sprintf(
		"allocated=%s freed=%s active=%s peak=%s pool_hits=%s pool_returns=%s latency=%s efficiency=%.2f level=%d pressure=%v",
		humanize.IBytes(uint64(max(s.TotalAllocatedBytes, 0))),
		humanize.IBytes(uint64(max(s.TotalFreedBytes, 0))),
		humanize.Comma(s.Active), humanize.Comma(s.Peak),
		humanize.Comma(s.PoolHits), humanize.Comma(s.PoolReturns),
		s.AverageLatency, s.Efficiency, s.OptimizationLevel, s.MemoryPressure,
	)
}

// Register adds a pool to be compacted by ForceCleanup.
func (t *Tracker) Register(c Compactor) {
	t.mu.Lock()
	t.pools = append(t.pools, c)
	t.mu.Unlock()
}

// TrackAllocation records an allocation of size bytes.
func (t *Tracker) TrackAllocation(size int64, fromPool bool) {
	t.allocatedBytes.Add(size)
	t.allocations.Add(1)
	if fromPool {
		t.poolHits.Add(1)
	}
	active := t.active.Add(1)
	for {
		peak := t.peak.Load()
		if active <= peak || t.peak.CompareAndSwap(peak, active) {
			break
		}
	}
	t.notePressure()
}

// TrackDeallocation records a release of size bytes.
func (t *Tracker) TrackDeallocation(size int64, toPool bool) {
	t.freedBytes.Add(size)
	t.deallocations.Add(1)
	if toPool {
		t.poolReturns.Add(1)
	}
	t.active.Add(-1)
	t.notePressure()
}

// ObserveAllocationLatency records how long one allocation took.
func (t *Tracker) ObserveAllocationLatency(d time.Duration) {
	t.latencyTotal.Add(int64(d))
	t.latencySamples.Add(1)
}

// Statistics returns a snapshot of the counters.
func (t *Tracker) Statistics() Statistics {
	s := Statistics{
		TotalAllocatedBytes: t.allocatedBytes.Load(),
		TotalFreedBytes:     t.freedBytes.Load(),
		Allocations:         t.allocations.Load(),
		Deallocations:       t.deallocations.Load(),
		Active:              t.active.Load(),
		Peak:                t.peak.Load(),
		PoolHits:            t.poolHits.Load(),
		PoolReturns:         t.poolReturns.Load(),
		AverageLatency:      t.averageLatency(),
		Efficiency:          t.efficiency(),
		OptimizationLevel:   t.optimization.Load(),
	}
	s.MemoryPressure = t.pressure(s.Active, s.Efficiency, s.Allocations, s.AverageLatency)
	return s
}

// IsUnderPressure reports whether any pressure rule currently trips.
func (t *Tracker) IsUnderPressure() bool {
	return t.pressure(t.active.Load(), t.efficiency(), t.allocations.Load(), t.averageLatency())
}

// ForceCleanup runs a garbage collection and compacts every registered pool.
// Counters are left untouched. It returns the number of idle objects dropped.
func (t *Tracker) ForceCleanup() int {
	runtime.GC()

	t.mu.Lock()
	pools := append([]Compactor(nil), t.pools...)
	t.mu.Unlock()

	dropped := 0
	for _, p := range pools {
		dropped += p.Compact()
	}
	level := t.optimization.Add(1)

	t.log.WithFields(logrus.Fields{
		"pools":              len(pools),
		"dropped":            dropped,
		"optimization_level": level,
	}).Info("forced memory cleanup")
	return dropped
}

// ResetStatistics zeroes every counter. Intended for test isolation.
func (t *Tracker) ResetStatistics() {
	t.allocatedBytes.Store(0)
	t.freedBytes.Store(0)
	t.allocations.Store(0)
	t.deallocations.Store(0)
	t.active.Store(0)
	t.peak.Store(0)
	t.poolHits.Store(0)
	t.poolReturns.Store(0)
	t.latencyTotal.Store(0)
	t.latencySamples.Store(0)
	t.optimization.Store(0)
	t.pressured.Store(false)
}

func (t *Tracker) averageLatency() time.Duration {
	n := t.latencySamples.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(t.latencyTotal.Load() / n)
}

func (t *Tracker) efficiency() float64 {
	allocated := t.allocatedBytes.Load()
	if allocated <= 0 {
		return 1
	}
	return float64(t.freedBytes.Load()) / float64(allocated)
}

func (t *Tracker) pressure(active int64, efficiency float64, allocations int64, latency time.Duration) bool {
	th := t.thresholds
	if th.HighWaterMark > 0 && active > th.HighWaterMark {
		return true
	}
	if allocations >= th.MinSamples && efficiency < th.MinEfficiency {
		return true
	}
	return th.MaxAllocationLatency > 0 && latency > th.MaxAllocationLatency
}

// notePressure logs transitions into and out of memory pressure.
func (t *Tracker) notePressure() {
	now := t.IsUnderPressure()
	if t.pressured.Swap(now) == now {
		return
	}
	fields := logrus.Fields{
		"active":     t.active.Load(),
		"efficiency": t.efficiency(),
	}
	if now {
		t.log.WithFields(fields).Warn("memory pressure detected")
	} else {
		t.log.WithFields(fields).Debug("memory pressure cleared")
	}
}
