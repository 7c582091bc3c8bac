package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/pkg/errors"

	"github.com/orneryd/tinkergraph/pkg/convert"
	"github.com/orneryd/tinkergraph/pkg/index"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

// Index types under which lookup results are cached.
const (
	cacheScan      = "scan"
	cacheComposite = "composite"
	cacheRange     = "range"
)

// RangeQuery selects numeric property values. A nil bound is unbounded.
type RangeQuery struct {
	Min, Max               any
	IncludeMin, IncludeMax bool
}

func (q RangeQuery) bounds() (index.Bounds, error) {
	b := index.Bounds{IncludeMin: q.IncludeMin, IncludeMax: q.IncludeMax}
	if q.Min != nil {
		f, ok := convert.Number(q.Min)
		if !ok {
			return b, newValidationError("min", fmt.Sprintf("range bound %v (%T) is not numeric", q.Min, q.Min))
		}
		b.Min = &f
	}
	if q.Max != nil {
		f, ok := convert.Number(q.Max)
		if !ok {
			return b, newValidationError("max", fmt.Sprintf("range bound %v (%T) is not numeric", q.Max, q.Max))
		}
		b.Max = &f
	}
	return b, nil
}

func (q RangeQuery) params() map[string]any {
	p := map[string]any{"includeMin": q.IncludeMin, "includeMax": q.IncludeMax}
	if q.Min != nil {
		p["min"] = q.Min
	}
	if q.Max != nil {
		p["max"] = q.Max
	}
	return p
}

// =============================================================================
// Index management
// =============================================================================

// CreateIndex builds an index of type t over keys for kind from the current
// elements. Creating an existing index is a no-op. Cached results of that
// kind are dropped.
func (g *Graph) CreateIndex(kind ElementKind, t index.Type, keys ...string) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	m, err := g.indexManager(kind)
	if err != nil {
		return err
	}
	if err := m.Create(t, keys...); err != nil {
		return &ValidationError{Field: "index", Reason: err.Error(), Err: err}
	}
	g.cache.InvalidateIndexType(string(kind) + ":")
	return nil
}

// DropIndex removes an index and reports whether it existed.
func (g *Graph) DropIndex(kind ElementKind, t index.Type, keys ...string) (bool, error) {
	if err := g.checkOpen(); err != nil {
		return false, err
	}
	m, err := g.indexManager(kind)
	if err != nil {
		return false, err
	}
	dropped := m.Drop(t, keys...)
	if dropped {
		g.cache.InvalidateIndexType(string(kind) + ":")
	}
	return dropped, nil
}

// IndexedKeys returns the sorted keys indexed for kind with type t.
func (g *Graph) IndexedKeys(kind ElementKind, t index.Type) ([]string, error) {
	m, err := g.indexManager(kind)
	if err != nil {
		return nil, err
	}
	return m.IndexedKeys(t), nil
}

func (g *Graph) indexManager(kind ElementKind) (*index.Manager, error) {
	switch kind {
	case VertexKind:
		return g.vertexIndex, nil
	case EdgeKind:
		return g.edgeIndex, nil
	}
	return nil, newValidationError("kind", fmt.Sprintf("unknown element kind %q", kind))
}

// =============================================================================
// Lookups
// =============================================================================

// VerticesByProperty returns the vertices holding value under key, in
// creation order. A single index on key answers directly; otherwise the
// vertices are scanned and the result cached.
func (g *Graph) VerticesByProperty(key string, value any) ([]*Vertex, error) {
	if err := g.checkLookup(key, value); err != nil {
		return nil, err
	}
	if bm, ok := g.vertexIndex.LookupProperty(key, value); ok {
		return g.verticesOf(bm), nil
	}
	params := map[string]any{key: value}
	return cachedLookup(g, VertexKind, cacheScan, key, params, g.verticesOf, func() *roaring64.Bitmap {
		return g.scanVertices(func(v *Vertex) bool { return v.hasValue(key, value) })
	}), nil
}

// EdgesByProperty returns the edges holding value under key, like
// VerticesByProperty.
func (g *Graph) EdgesByProperty(key string, value any) ([]*Edge, error) {
	if err := g.checkLookup(key, value); err != nil {
		return nil, err
	}
	if bm, ok := g.edgeIndex.LookupProperty(key, value); ok {
		return g.edgesOf(bm), nil
	}
	params := map[string]any{key: value}
	return cachedLookup(g, EdgeKind, cacheScan, key, params, g.edgesOf, func() *roaring64.Bitmap {
		return g.scanEdges(func(e *Edge) bool { return edgeHas(e, key, value) })
	}), nil
}

// VerticesByComposite returns the vertices holding an equal value for every
// entry of values.
//
// Example:
//
//	found, err := g.VerticesByComposite(map[string]any{"name": "marko", "age": 29})
func (g *Graph) VerticesByComposite(values map[string]any) ([]*Vertex, error) {
	key, err := g.checkComposite(values)
	if err != nil {
		return nil, err
	}
	return cachedLookup(g, VertexKind, cacheComposite, key, values, g.verticesOf, func() *roaring64.Bitmap {
		if bm, ok := g.vertexIndex.LookupComposite(values); ok {
			return bm
		}
		return g.scanVertices(func(v *Vertex) bool {
			for k, want := range values {
				if !v.hasValue(k, want) {
					return false
				}
			}
			return true
		})
	}), nil
}

// EdgesByComposite returns the edges holding an equal value for every entry
// of values.
func (g *Graph) EdgesByComposite(values map[string]any) ([]*Edge, error) {
	key, err := g.checkComposite(values)
	if err != nil {
		return nil, err
	}
	return cachedLookup(g, EdgeKind, cacheComposite, key, values, g.edgesOf, func() *roaring64.Bitmap {
		if bm, ok := g.edgeIndex.LookupComposite(values); ok {
			return bm
		}
		return g.scanEdges(func(e *Edge) bool {
			for k, want := range values {
				if !edgeHas(e, k, want) {
					return false
				}
			}
			return true
		})
	}), nil
}

// VerticesInRange returns the vertices with a numeric value of key inside q.
func (g *Graph) VerticesInRange(key string, q RangeQuery) ([]*Vertex, error) {
	b, err := g.checkRange(key, q)
	if err != nil {
		return nil, err
	}
	return cachedLookup(g, VertexKind, cacheRange, key, q.params(), g.verticesOf, func() *roaring64.Bitmap {
		if bm, ok := g.vertexIndex.LookupRange(key, b); ok {
			return bm
		}
		return g.scanVertices(func(v *Vertex) bool { return anyInRange(v.Values(key), b) })
	}), nil
}

// EdgesInRange returns the edges with a numeric value of key inside q.
func (g *Graph) EdgesInRange(key string, q RangeQuery) ([]*Edge, error) {
	b, err := g.checkRange(key, q)
	if err != nil {
		return nil, err
	}
	return cachedLookup(g, EdgeKind, cacheRange, key, q.params(), g.edgesOf, func() *roaring64.Bitmap {
		if bm, ok := g.edgeIndex.LookupRange(key, b); ok {
			return bm
		}
		return g.scanEdges(func(e *Edge) bool {
			value, ok := e.PropertyValue(key)
			return ok && anyInRange([]any{value}, b)
		})
	}), nil
}

// VerticesByLabel returns the vertices carrying label in creation order.
func (g *Graph) VerticesByLabel(label string) ([]*Vertex, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	return g.verticesOf(g.vertexIndex.LookupLabel(label)), nil
}

// EdgesByLabel returns the edges carrying label in creation order.
func (g *Graph) EdgesByLabel(label string) ([]*Edge, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	return g.edgesOf(g.edgeIndex.LookupLabel(label)), nil
}

// cachedLookup serves a result from the index cache or computes, caches and
// returns it. Cached elements removed since are filtered out.
func cachedLookup[T structure.Element](g *Graph, kind ElementKind, op, key string, params map[string]any,
	resolve func(*roaring64.Bitmap) []T, compute func() *roaring64.Bitmap) []T {
	indexType := string(kind) + ":" + op
	if cached, ok := g.cache.Get(indexType, key, params); ok {
		out := make([]T, 0, len(cached))
		for _, el := range cached {
			if t, ok := el.(T); ok && g.isLive(el) {
				out = append(out, t)
			}
		}
		return out
	}
	result := resolve(compute())
	snapshot := make([]structure.Element, len(result))
	for i, el := range result {
		snapshot[i] = el
	}
	g.cache.Put(indexType, key, params, snapshot)
	return result
}

func (g *Graph) isLive(el structure.Element) bool {
	switch e := el.(type) {
	case *Vertex:
		return !e.removed && e.graph == g
	case *Edge:
		return !e.removed && e.graph == g
	}
	return false
}

func (g *Graph) scanVertices(match func(*Vertex) bool) *roaring64.Bitmap {
	out := roaring64.New()
	it := g.liveVertices.Iterator()
	for it.HasNext() {
		h := it.Next()
		if v, ok := g.vertices[h]; ok && match(v) {
			out.Add(h)
		}
	}
	return out
}

func (g *Graph) scanEdges(match func(*Edge) bool) *roaring64.Bitmap {
	out := roaring64.New()
	it := g.liveEdges.Iterator()
	for it.HasNext() {
		h := it.Next()
		if e, ok := g.edges[h]; ok && match(e) {
			out.Add(h)
		}
	}
	return out
}

func edgeHas(e *Edge, key string, value any) bool {
	got, ok := e.PropertyValue(key)
	return ok && convert.ValuesEqual(got, value)
}

func anyInRange(values []any, b index.Bounds) bool {
	for _, value := range values {
		if f, ok := convert.Number(value); ok && b.Contains(f) {
			return true
		}
	}
	return false
}

func (g *Graph) checkLookup(key string, value any) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	return validateProperty(key, value)
}

// checkComposite validates values and returns the composite cache key, the
// sorted keys joined by commas.
func (g *Graph) checkComposite(values map[string]any) (string, error) {
	if err := g.checkOpen(); err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", newValidationError("values", "composite lookup needs at least one key")
	}
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if err := validateProperty(k, v); err != nil {
			return "", err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ","), nil
}

func (g *Graph) checkRange(key string, q RangeQuery) (index.Bounds, error) {
	if err := g.checkOpen(); err != nil {
		return index.Bounds{}, err
	}
	if err := validateKey(key); err != nil {
		return index.Bounds{}, err
	}
	b, err := q.bounds()
	if err != nil {
		return b, errors.Wrapf(err, "range on %q", key)
	}
	return b, nil
}
