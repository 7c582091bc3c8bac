package index

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/orneryd/tinkergraph/pkg/convert"
)

// PropertyIndex maps the values of one key to the elements holding them.
//
// Values are bucketed by their canonical value key, so 30, int64(30) and 30.0
// land in the same bucket.
type PropertyIndex struct {
	Key string

	entries  map[string]*roaring64.Bitmap
	byHandle map[uint64][]string
}

// NewPropertyIndex creates an empty index on key.
func NewPropertyIndex(key string) *PropertyIndex {
	return &PropertyIndex{
		Key:      key,
		entries:  make(map[string]*roaring64.Bitmap),
		byHandle: make(map[uint64][]string),
	}
}

// Index replaces whatever handle had indexed with values.
func (idx *PropertyIndex) Index(handle uint64, values []any) {
	idx.Remove(handle)
	if len(values) == 0 {
		return
	}

	buckets := make([]string, 0, len(values))
	for _, v := range values {
		vk := convert.ValueKey(v)
		bm, ok := idx.entries[vk]
		if !ok {
			bm = roaring64.New()
			idx.entries[vk] = bm
		}
		if bm.CheckedAdd(handle) {
			buckets = append(buckets, vk)
		}
	}
	idx.byHandle[handle] = buckets
}

// Remove drops handle from every bucket.
func (idx *PropertyIndex) Remove(handle uint64) {
	buckets, ok := idx.byHandle[handle]
	if !ok {
		return
	}
	for _, vk := range buckets {
		if bm, ok := idx.entries[vk]; ok {
			bm.Remove(handle)
			if bm.IsEmpty() {
				delete(idx.entries, vk)
			}
		}
	}
	delete(idx.byHandle, handle)
}

// Lookup returns a copy of the handles holding value.
func (idx *PropertyIndex) Lookup(value any) *roaring64.Bitmap {
	if bm, ok := idx.entries[convert.ValueKey(value)]; ok {
		return bm.Clone()
	}
	return roaring64.New()
}

// Len returns the number of distinct values.
func (idx *PropertyIndex) Len() int {
	return len(idx.entries)
}

// Elements returns the number of indexed elements.
func (idx *PropertyIndex) Elements() int {
	return len(idx.byHandle)
}
