package index

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/orneryd/tinkergraph/pkg/convert"
)

// compositeSep separates tuple members in a composite key.
const compositeSep = "\x1f"

// CompositeIndex maps a tuple of key values to elements. Keys are kept
// sorted, so two indexes over the same key set are the same index.
//
// An element participates only when it has a value for every key. Elements
// holding several values for a key are indexed under every combination, so a
// lookup matches when each requested value is among the element's values.
// The entries for one element therefore grow with the product of its value
// counts: three keys holding ten values each cost a thousand entries.
type CompositeIndex struct {
	Keys []string

	entries  map[string]*roaring64.Bitmap
	byHandle map[uint64][]string
}

// NewCompositeIndex creates an empty index on keys.
func NewCompositeIndex(keys ...string) *CompositeIndex {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &CompositeIndex{
		Keys:     sorted,
		entries:  make(map[string]*roaring64.Bitmap),
		byHandle: make(map[uint64][]string),
	}
}

// Name returns the comma-joined sorted key list.
func (idx *CompositeIndex) Name() string {
	return compositeName(idx.Keys)
}

func compositeName(keys []string) string {
	if sort.StringsAreSorted(keys) {
		return strings.Join(keys, ",")
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Covers reports whether key is part of the tuple.
func (idx *CompositeIndex) Covers(key string) bool {
	for _, k := range idx.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Matches reports whether the index keys are exactly the keys of values.
func (idx *CompositeIndex) Matches(values map[string]any) bool {
	if len(values) != len(idx.Keys) {
		return false
	}
	for _, k := range idx.Keys {
		if _, ok := values[k]; !ok {
			return false
		}
	}
	return true
}

// Index re-indexes handle; values returns every current value of a key.
func (idx *CompositeIndex) Index(handle uint64, values func(key string) []any) {
	idx.Remove(handle)

	tuples := []string{""}
	for i, k := range idx.Keys {
		vs := values(k)
		if len(vs) == 0 {
			return
		}
		next := make([]string, 0, len(tuples)*len(vs))
		seen := make(map[string]struct{}, len(vs))
		for _, v := range vs {
			vk := convert.ValueKey(v)
			if _, dup := seen[vk]; dup {
				continue
			}
			seen[vk] = struct{}{}
			for _, prefix := range tuples {
				if i > 0 {
					prefix += compositeSep
				}
				next = append(next, prefix+vk)
			}
		}
		tuples = next
	}

	for _, tk := range tuples {
		bm, ok := idx.entries[tk]
		if !ok {
			bm = roaring64.New()
			idx.entries[tk] = bm
		}
		bm.Add(handle)
	}
	idx.byHandle[handle] = tuples
}

// Remove drops handle from the index.
func (idx *CompositeIndex) Remove(handle uint64) {
	tuples, ok := idx.byHandle[handle]
	if !ok {
		return
	}
	for _, tk := range tuples {
		if bm, ok := idx.entries[tk]; ok {
			bm.Remove(handle)
			if bm.IsEmpty() {
				delete(idx.entries, tk)
			}
		}
	}
	delete(idx.byHandle, handle)
}

// Lookup returns a copy of the handles whose tuple equals values.
// values must name every key of the index.
func (idx *CompositeIndex) Lookup(values map[string]any) (*roaring64.Bitmap, bool) {
	if !idx.Matches(values) {
		return nil, false
	}
	parts := make([]string, len(idx.Keys))
	for i, k := range idx.Keys {
		parts[i] = convert.ValueKey(values[k])
	}
	if bm, ok := idx.entries[strings.Join(parts, compositeSep)]; ok {
		return bm.Clone(), true
	}
	return roaring64.New(), true
}

// Len returns the number of distinct tuples.
func (idx *CompositeIndex) Len() int {
	return len(idx.entries)
}
