package index

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/btree"

	"github.com/orneryd/tinkergraph/pkg/convert"
)

// Bounds describes a numeric interval. A nil end is unbounded.
type Bounds struct {
	Min, Max               *float64
	IncludeMin, IncludeMax bool
}

// Contains reports whether f lies inside the interval.
func (b Bounds) Contains(f float64) bool {
	if math.IsNaN(f) {
		return false
	}
	if b.Min != nil {
		if f < *b.Min || (f == *b.Min && !b.IncludeMin) {
			return false
		}
	}
	if b.Max != nil {
		if f > *b.Max || (f == *b.Max && !b.IncludeMax) {
			return false
		}
	}
	return true
}

// rangeEntry is one (value, element) pair in the tree.
type rangeEntry struct {
	value  float64
	handle uint64
}

func lessEntry(a, b rangeEntry) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	return a.handle < b.handle
}

// RangeIndex keeps the numeric values of one key ordered for range scans.
// Non-numeric and NaN values are not indexed.
type RangeIndex struct {
	Key string

	tree     *btree.BTreeG[rangeEntry]
	byHandle map[uint64][]float64
}

// NewRangeIndex creates an empty range index on key.
func NewRangeIndex(key string) *RangeIndex {
	return &RangeIndex{
		Key:      key,
		tree:     btree.NewG(32, lessEntry),
		byHandle: make(map[uint64][]float64),
	}
}

// Index replaces whatever handle had indexed with the numeric members of values.
func (idx *RangeIndex) Index(handle uint64, values []any) {
	idx.Remove(handle)

	var indexed []float64
	for _, v := range values {
		f, ok := convert.Number(v)
		if !ok || math.IsNaN(f) {
			continue
		}
		if _, existed := idx.tree.ReplaceOrInsert(rangeEntry{value: f, handle: handle}); !existed {
			indexed = append(indexed, f)
		}
	}
	if len(indexed) > 0 {
		idx.byHandle[handle] = indexed
	}
}

// Remove drops every entry of handle.
func (idx *RangeIndex) Remove(handle uint64) {
	for _, f := range idx.byHandle[handle] {
		idx.tree.Delete(rangeEntry{value: f, handle: handle})
	}
	delete(idx.byHandle, handle)
}

// Range returns the handles with at least one value inside b.
func (idx *RangeIndex) Range(b Bounds) *roaring64.Bitmap {
	out := roaring64.New()
	visit := func(e rangeEntry) bool {
		if b.Max != nil && (e.value > *b.Max || (e.value == *b.Max && !b.IncludeMax)) {
			return false
		}
		if b.Contains(e.value) {
			out.Add(e.handle)
		}
		return true
	}
	if b.Min == nil {
		idx.tree.Ascend(visit)
	} else {
		idx.tree.AscendGreaterOrEqual(rangeEntry{value: *b.Min}, visit)
	}
	return out
}

// Len returns the number of indexed (value, element) pairs.
func (idx *RangeIndex) Len() int {
	return idx.tree.Len()
}
