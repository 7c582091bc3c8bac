// Package pool provides element shell pooling and memory accounting for
// tinkergraph.
//
// Three pieces live here:
//   - Tracker records every allocation and release, derives efficiency and a
//     memory-pressure flag, and compacts registered pools on ForceCleanup.
//   - ShellPool hands out reusable element shells keyed by kind (vertex,
//     edge, vertex_property, property) and reports to a Tracker.
//   - Scratch pools (string builders, string slices, handle slices) amortize
//     the temporaries built on lookup paths.
//
// Usage:
//
//	tracker := pool.NewTracker(cfg.Memory)
//	vertices := pool.NewShellPool(pool.KindVertex, cfg.Pool, tracker,
//		func() *Vertex { return &Vertex{} },
//		func(v *Vertex) { *v = Vertex{} })
//
//	v := vertices.Get()
//	defer vertices.Put(v)
package pool

import (
	"sync"
)

// ScratchConfig configures the scratch pools.
type ScratchConfig struct {
	// Enabled controls whether scratch objects are reused.
	Enabled bool

	// MaxCap is the largest slice capacity kept for reuse.
	MaxCap int
}

var scratchConfig = ScratchConfig{
	Enabled: true,
	MaxCap:  1000,
}

// ConfigureScratch sets the scratch pool configuration.
// Should be called early during initialization.
func ConfigureScratch(cfg ScratchConfig) {
	scratchConfig = cfg
}

// ScratchEnabled returns whether scratch pooling is enabled.
func ScratchEnabled() bool {
	return scratchConfig.Enabled
}

// =============================================================================
// String Builder Pool (cache keys)
// =============================================================================

var stringBuilderPool = sync.Pool{
	New: func() any {
		return &PooledStringBuilder{buf: make([]byte, 0, 128)}
	},
}

// PooledStringBuilder is a poolable string builder.
type PooledStringBuilder struct {
	buf []byte
}

// WriteString appends a string to the builder.
func (b *PooledStringBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteByte appends a byte to the builder.
func (b *PooledStringBuilder) WriteByte(c byte) {
	b.buf = append(b.buf, c)
}

// String returns the built string.
func (b *PooledStringBuilder) String() string {
	return string(b.buf)
}

// Len returns current length.
func (b *PooledStringBuilder) Len() int {
	return len(b.buf)
}

// Reset clears the builder for reuse.
func (b *PooledStringBuilder) Reset() {
	b.buf = b.buf[:0]
}

// GetStringBuilder returns a string builder from the pool.
func GetStringBuilder() *PooledStringBuilder {
	if !scratchConfig.Enabled {
		return &PooledStringBuilder{buf: make([]byte, 0, 128)}
	}
	b := stringBuilderPool.Get().(*PooledStringBuilder)
	b.Reset()
	return b
}

// PutStringBuilder returns a string builder to the pool.
func PutStringBuilder(b *PooledStringBuilder) {
	if !scratchConfig.Enabled || b == nil {
		return
	}
	if cap(b.buf) > 64*1024 {
		return
	}
	b.Reset()
	stringBuilderPool.Put(b)
}

// =============================================================================
// String Slice Pool (sorted parameter names)
// =============================================================================

var stringSlicePool = sync.Pool{
	New: func() any {
		return make([]string, 0, 8)
	},
}

// GetStringSlice returns an empty string slice from the pool.
func GetStringSlice() []string {
	if !scratchConfig.Enabled {
		return make([]string, 0, 8)
	}
	return stringSlicePool.Get().([]string)[:0]
}

// PutStringSlice returns a string slice to the pool.
func PutStringSlice(s []string) {
	if !scratchConfig.Enabled || s == nil {
		return
	}
	if cap(s) > scratchConfig.MaxCap {
		return
	}
	clear(s)
	stringSlicePool.Put(s[:0])
}

// =============================================================================
// Handle Slice Pool (adjacency walks)
// =============================================================================

var handleSlicePool = sync.Pool{
	New: func() any {
		return make([]uint64, 0, 16)
	},
}

// GetHandleSlice returns an empty handle slice from the pool.
func GetHandleSlice() []uint64 {
	if !scratchConfig.Enabled {
		return make([]uint64, 0, 16)
	}
	return handleSlicePool.Get().([]uint64)[:0]
}

// PutHandleSlice returns a handle slice to the pool.
func PutHandleSlice(s []uint64) {
	if !scratchConfig.Enabled || s == nil {
		return
	}
	if cap(s) > scratchConfig.MaxCap {
		return
	}
	handleSlicePool.Put(s[:0])
}
