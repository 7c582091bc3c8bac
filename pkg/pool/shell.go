package pool

import (
	"sync"
	"time"

	"github.com/DmitriyVTitov/size"

	"github.com/orneryd/tinkergraph/pkg/config"
)

// Kind names a family of pooled element shells.
type Kind string

// Shell kinds.
const (
	KindVertex         Kind = "vertex"
	KindEdge           Kind = "edge"
	KindVertexProperty Kind = "vertex_property"
	KindProperty       Kind = "property"
)

// ShellPool recycles element shells of one kind.
//
// Unlike sync.Pool the idle list is explicit, so hits and returns are exact
// and ForceCleanup can drop it. Every Get and Put is reported to the tracker
// whether or not the pool served it.
type ShellPool[T any] struct {
	kind    Kind
	enabled bool
	maxIdle int
	tracker *Tracker
	newFn   func() *T
	reset   func(*T)
	size    int64

	mu   sync.Mutex
	idle []*T
}

// NewShellPool creates a pool for kind and registers it with tracker.
// newFn builds a fresh shell; reset clears a released one.
func NewShellPool[T any](kind Kind, cfg config.PoolConfig, tracker *Tracker, newFn func() *T, reset func(*T)) *ShellPool[T] {
	if tracker == nil {
		tracker = NewTracker(config.Default().Memory)
	}
	p := &ShellPool[T]{
		kind:    kind,
		enabled: cfg.Enabled,
		maxIdle: cfg.MaxIdle,
		tracker: tracker,
		newFn:   newFn,
		reset:   reset,
		size:    int64(size.Of(newFn())),
	}
	tracker.Register(p)
	return p
}

// Kind returns the shell kind.
func (p *ShellPool[T]) Kind() Kind {
	return p.kind
}

// ShellSize returns the measured byte size of an empty shell.
func (p *ShellPool[T]) ShellSize() int64 {
	return p.size
}

// Get returns an idle shell or a new one.
func (p *ShellPool[T]) Get() *T {
	start := time.Now()

	var shell *T
	if p.enabled {
		p.mu.Lock()
		if n := len(p.idle); n > 0 {
			shell = p.idle[n-1]
			p.idle[n-1] = nil
			p.idle = p.idle[:n-1]
		}
		p.mu.Unlock()
	}

	fromPool := shell != nil
	if !fromPool {
		shell = p.newFn()
	}
	p.tracker.TrackAllocation(p.size, fromPool)
	p.tracker.ObserveAllocationLatency(time.Since(start))
	return shell
}

// Put resets shell and keeps it for reuse while the idle list has room.
// The caller must not touch shell afterwards.
func (p *ShellPool[T]) Put(shell *T) {
	if shell == nil {
		return
	}
	p.reset(shell)

	toPool := false
	if p.enabled {
		p.mu.Lock()
		if len(p.idle) < p.maxIdle {
			p.idle = append(p.idle, shell)
			toPool = true
		}
		p.mu.Unlock()
	}
	p.tracker.TrackDeallocation(p.size, toPool)
}

// Idle returns the number of shells waiting for reuse.
func (p *ShellPool[T]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Compact drops every idle shell.
func (p *ShellPool[T]) Compact() int {
	p.mu.Lock()
	n := len(p.idle)
	clear(p.idle)
	p.idle = nil
	p.mu.Unlock()
	return n
}
