package storage

import (
	"fmt"
	"sort"

	"github.com/orneryd/tinkergraph/pkg/convert"
	"github.com/orneryd/tinkergraph/pkg/pool"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

// Vertex is a graph vertex.
//
// Properties are kept per key as an ordered list of vertex properties; how a
// new value combines with the list depends on its cardinality. Incident edges
// are kept per label as ordered edge handles.
type Vertex struct {
	graph      *Graph
	handle     uint64
	id         any
	label      string
	properties map[string][]*VertexProperty
	keys       []string
	out        map[string][]uint64
	in         map[string][]uint64
	removed    bool
}

var _ structure.Vertex = (*Vertex)(nil)

// AddVertex creates a vertex. An empty label becomes "vertex". keyValues is an
// alternating key/value list added with the default cardinality; a KeyID entry
// supplies an explicit id.
//
// Returns:
//   - *ValidationError for a malformed list, an invalid key or value, or an id
//     the vertex id manager cannot convert
//   - *DuplicateValueError if the default cardinality is set and a pair repeats
//   - ErrAlreadyExists if the explicit id is in use
//   - ErrGraphClosed after Close
//
// Example:
//
//	v, err := g.AddVertex("person", storage.KeyID, 1, "name", "marko", "age", 29)
func (g *Graph) AddVertex(label string, keyValues ...any) (*Vertex, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	explicit, hasID, pairs, err := parseKeyValues(keyValues)
	if err != nil {
		return nil, err
	}
	if g.defaultCardinality == structure.Set {
		if dup := duplicatePair(pairs); dup != nil {
			return nil, dup
		}
	}
	id, err := elementID(g.vertexIDManager, explicit, hasID, g.vertexIDTaken, "vertex")
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = structure.DefaultVertexLabel
	}

	v := g.vertexPool.Get()
	v.graph = g
	v.handle = g.newHandle()
	v.id = id
	v.label = label
	v.removed = false

	g.vertices[v.handle] = v
	g.vertexByID[convert.ValueKey(id)] = v.handle
	g.liveVertices.Add(v.handle)

	for _, kv := range pairs {
		v.appendProperty(g.defaultCardinality, kv.key, kv.value, nil, nil)
	}
	g.vertexIndex.Add(v.handle, label)
	for _, kv := range pairs {
		g.cache.InvalidateKey(kv.key)
	}
	return v, nil
}

// RemoveVertex removes v, every edge incident to it and its properties.
// v must be a live vertex of this graph.
func (g *Graph) RemoveVertex(v structure.Vertex) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	native, err := g.ownVertex(v, "vertex")
	if err != nil {
		return err
	}
	g.removeVertex(native)
	return nil
}

func (g *Graph) removeVertex(v *Vertex) {
	handles := pool.GetHandleSlice()
	for _, hs := range v.out {
		handles = append(handles, hs...)
	}
	for _, hs := range v.in {
		handles = append(handles, hs...)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	removed := 0
	for _, h := range handles {
		// Self-loops appear twice; the second lookup misses.
		if e, ok := g.edges[h]; ok {
			g.removeEdge(e)
			removed++
		}
	}
	pool.PutHandleSlice(handles)

	g.releaseVertexProperties(v)
	g.vertexIndex.Remove(v.handle)
	delete(g.vertices, v.handle)
	delete(g.vertexByID, convert.ValueKey(v.id))
	g.liveVertices.Remove(v.handle)
	g.cache.InvalidateElement(v)

	g.log.WithField("id", v.id).WithField("edges", removed).Debug("vertex removed")
	g.vertexPool.Put(v)
}

func (g *Graph) releaseVertexProperties(v *Vertex) {
	for _, key := range v.keys {
		for _, vp := range v.properties[key] {
			g.releaseVertexProperty(vp)
		}
	}
}

// ownVertex narrows obj and checks it is a live vertex of g.
func (g *Graph) ownVertex(obj any, field string) (*Vertex, error) {
	v, ok := g.TryNarrowVertex(obj)
	if !ok {
		return nil, newValidationError(field, fmt.Sprintf("%T is not a vertex of this graph", obj))
	}
	if v.graph != g || v.removed {
		return nil, newValidationError(field, fmt.Sprintf("vertex %v was removed or belongs to another graph", v.id))
	}
	return v, nil
}

// ID returns the vertex id.
func (v *Vertex) ID() any { return v.id }

// Label returns the vertex label.
func (v *Vertex) Label() string { return v.label }

// Graph returns the owning graph.
func (v *Vertex) Graph() *Graph { return v.graph }

// Removed reports whether the vertex was removed from its graph.
func (v *Vertex) Removed() bool { return v.removed }

// Keys returns the property keys in insertion order.
func (v *Vertex) Keys() []string {
	return append([]string(nil), v.keys...)
}

// PropertyValue returns the most recent value of key.
func (v *Vertex) PropertyValue(key string) (any, bool) {
	vps := v.properties[key]
	if len(vps) == 0 {
		return nil, false
	}
	return vps[len(vps)-1].value, true
}

// Value returns the most recent value of key or a *PropertyNotFoundError.
func (v *Vertex) Value(key string) (any, error) {
	if value, ok := v.PropertyValue(key); ok {
		return value, nil
	}
	return nil, &PropertyNotFoundError{Key: key, Element: v.String()}
}

// Values returns every value of key in insertion order.
func (v *Vertex) Values(key string) []any {
	vps := v.properties[key]
	if len(vps) == 0 {
		return nil
	}
	out := make([]any, len(vps))
	for i, vp := range vps {
		out[i] = vp.value
	}
	return out
}

// Property returns the most recent vertex property of key.
func (v *Vertex) Property(key string) (*VertexProperty, error) {
	vps := v.properties[key]
	if len(vps) == 0 {
		return nil, &PropertyNotFoundError{Key: key, Element: v.String()}
	}
	return vps[len(vps)-1], nil
}

// Properties returns the vertex properties of keys, or all of them, ordered
// by key insertion and then by value insertion.
func (v *Vertex) Properties(keys ...string) []*VertexProperty {
	wanted := keySet(keys)
	var out []*VertexProperty
	for _, k := range v.keys {
		if wanted != nil {
			if _, ok := wanted[k]; !ok {
				continue
			}
		}
		out = append(out, v.properties[k]...)
	}
	return out
}

// VertexProperties implements structure.Vertex.
func (v *Vertex) VertexProperties(keys ...string) []structure.VertexProperty {
	vps := v.Properties(keys...)
	out := make([]structure.VertexProperty, len(vps))
	for i, vp := range vps {
		out[i] = vp
	}
	return out
}

// SetProperty adds a value under key with the graph's default cardinality.
func (v *Vertex) SetProperty(key string, value any) (*VertexProperty, error) {
	if err := v.checkLive(); err != nil {
		return nil, err
	}
	return v.SetPropertyWithCardinality(v.graph.defaultCardinality, key, value)
}

// SetPropertyWithCardinality adds a value under key.
//
//   - Single replaces every existing value of key.
//   - List appends; duplicates are kept in insertion order.
//   - Set appends unless an equal value exists, in which case a
//     *DuplicateValueError is returned and nothing changes.
//
// metaKeyValues is an alternating key/value list of meta-properties; a KeyID
// entry supplies the vertex property id.
func (v *Vertex) SetPropertyWithCardinality(card structure.Cardinality, key string, value any, metaKeyValues ...any) (*VertexProperty, error) {
	if err := v.checkLive(); err != nil {
		return nil, err
	}
	if err := validateProperty(key, value); err != nil {
		return nil, err
	}
	switch card {
	case structure.Single, structure.List, structure.Set:
	default:
		return nil, newValidationError("cardinality", fmt.Sprintf("unknown cardinality %d", int(card)))
	}
	explicit, hasID, meta, err := parseKeyValues(metaKeyValues)
	if err != nil {
		return nil, err
	}
	var vpID any
	if hasID {
		taken := v.graph.vertexPropertyIDTaken
		if card == structure.Single {
			taken = v.replaceableID(key)
		}
		if vpID, err = elementID(v.graph.vertexPropertyIDManager, explicit, true, taken, "vertex property"); err != nil {
			return nil, err
		}
	}
	if card == structure.Set && v.hasValue(key, value) {
		return nil, &DuplicateValueError{Key: key, Value: value}
	}

	vp := v.appendProperty(card, key, value, meta, vpID)
	v.graph.vertexIndex.Touch(v.handle, key)
	v.graph.cache.InvalidateKey(key)
	return vp, nil
}

// RemoveProperty removes every value of key and returns how many were removed.
func (v *Vertex) RemoveProperty(key string) (int, error) {
	if err := v.checkLive(); err != nil {
		return 0, err
	}
	if key == "" {
		return 0, newValidationError("key", "property key cannot be empty")
	}
	vps := v.properties[key]
	if len(vps) == 0 {
		return 0, nil
	}
	for _, vp := range vps {
		v.graph.releaseVertexProperty(vp)
	}
	delete(v.properties, key)
	v.keys = removeKey(v.keys, key)
	v.propertyChanged(key)
	return len(vps), nil
}

// RemovePropertyValue removes the values of key equal to value and returns
// how many were removed. The key disappears with its last value.
func (v *Vertex) RemovePropertyValue(key string, value any) (int, error) {
	if err := v.checkLive(); err != nil {
		return 0, err
	}
	if err := validateProperty(key, value); err != nil {
		return 0, err
	}
	kept := v.properties[key][:0]
	removed := 0
	for _, vp := range v.properties[key] {
		if convert.ValuesEqual(vp.value, value) {
			v.graph.releaseVertexProperty(vp)
			removed++
			continue
		}
		kept = append(kept, vp)
	}
	if removed == 0 {
		return 0, nil
	}
	v.setValues(key, kept)
	v.propertyChanged(key)
	return removed, nil
}

// AddEdge creates an edge labeled label from v to in. in may be any
// structure.Vertex but must narrow to a live vertex of the same graph.
//
// Example:
//
//	e, err := marko.AddEdge("knows", vadas, "weight", 0.5)
func (v *Vertex) AddEdge(label string, in structure.Vertex, keyValues ...any) (*Edge, error) {
	if err := v.checkLive(); err != nil {
		return nil, err
	}
	return v.graph.addEdge(label, v, in, keyValues)
}

// Edges returns the incident edges in direction, restricted to labels when
// given. Each direction is in creation order; for Both the outgoing edges
// come first and a self-loop appears twice.
func (v *Vertex) Edges(direction structure.Direction, labels ...string) []*Edge {
	if v.removed {
		return nil
	}
	var out []*Edge
	if direction == structure.Out || direction == structure.Both {
		out = v.graph.appendEdges(out, v.out, labels)
	}
	if direction == structure.In || direction == structure.Both {
		out = v.graph.appendEdges(out, v.in, labels)
	}
	return out
}

// EdgesOf implements structure.Vertex.
func (v *Vertex) EdgesOf(direction structure.Direction, labels ...string) []structure.Edge {
	edges := v.Edges(direction, labels...)
	out := make([]structure.Edge, len(edges))
	for i, e := range edges {
		out[i] = e
	}
	return out
}

// Vertices returns the vertices adjacent through the edges selected like Edges.
func (v *Vertex) Vertices(direction structure.Direction, labels ...string) []*Vertex {
	var out []*Vertex
	if direction == structure.Out || direction == structure.Both {
		for _, e := range v.Edges(structure.Out, labels...) {
			out = append(out, e.In())
		}
	}
	if direction == structure.In || direction == structure.Both {
		for _, e := range v.Edges(structure.In, labels...) {
			out = append(out, e.Out())
		}
	}
	return out
}

// Remove removes the vertex and its incident edges from the graph.
func (v *Vertex) Remove() error {
	if err := v.checkLive(); err != nil {
		return err
	}
	v.graph.removeVertex(v)
	return nil
}

func (v *Vertex) String() string {
	return fmt.Sprintf("v[%v]", v.id)
}

func (v *Vertex) checkLive() error {
	if v.removed || v.graph == nil {
		return newValidationError("vertex", fmt.Sprintf("vertex %v was removed", v.id))
	}
	return v.graph.checkOpen()
}

func (v *Vertex) hasValue(key string, value any) bool {
	for _, vp := range v.properties[key] {
		if convert.ValuesEqual(vp.value, value) {
			return true
		}
	}
	return false
}

// appendProperty adds an already validated value.
func (v *Vertex) appendProperty(card structure.Cardinality, key string, value any, meta []keyValue, id any) *VertexProperty {
	g := v.graph
	existing, known := v.properties[key]
	var replaced []*VertexProperty
	if card == structure.Single {
		replaced, existing = existing, nil
	}

	if id == nil {
		id = g.vertexPropertyIDManager.NextID(g.vertexPropertyIDTaken)
	}
	vp := g.vertexPropPool.Get()
	vp.graph = g
	vp.handle = g.newHandle()
	vp.vertex = v.handle
	vp.id = id
	vp.key = key
	vp.value = value
	vp.cardinality = card
	vp.removed = false
	for _, kv := range meta {
		vp.putMeta(kv.key, kv.value)
	}
	g.vertexProps[vp.handle] = vp
	g.vpByID[convert.ValueKey(id)] = vp.handle

	if !known {
		v.keys = append(v.keys, key)
	}
	v.properties[key] = append(existing, vp)
	// Replaced values go back only after the new one holds its own shell.
	for _, old := range replaced {
		g.releaseVertexProperty(old)
	}
	return vp
}

// replaceableID reports ids in use, ignoring those held by the values of key
// that a Single set is about to replace.
func (v *Vertex) replaceableID(key string) func(any) bool {
	return func(id any) bool {
		h, ok := v.graph.vpByID[convert.ValueKey(id)]
		if !ok {
			return false
		}
		vp := v.graph.vertexProps[h]
		return vp == nil || vp.vertex != v.handle || vp.key != key
	}
}

// setValues stores vps under key, dropping the key when vps is empty.
func (v *Vertex) setValues(key string, vps []*VertexProperty) {
	if len(vps) == 0 {
		delete(v.properties, key)
		v.keys = removeKey(v.keys, key)
		return
	}
	v.properties[key] = vps
}

// detachProperty drops one vertex property from the vertex.
func (v *Vertex) detachProperty(vp *VertexProperty) {
	vps := v.properties[vp.key]
	for i, cur := range vps {
		if cur == vp {
			v.setValues(vp.key, append(vps[:i], vps[i+1:]...))
			break
		}
	}
	v.propertyChanged(vp.key)
}

func (v *Vertex) propertyChanged(key string) {
	v.graph.vertexIndex.Touch(v.handle, key)
	v.graph.cache.InvalidateKey(key)
}

// appendEdges appends the live edges of adjacency, restricted to labels, in
// handle order.
func (g *Graph) appendEdges(out []*Edge, adjacency map[string][]uint64, labels []string) []*Edge {
	handles := pool.GetHandleSlice()
	if len(labels) == 0 {
		for _, hs := range adjacency {
			handles = append(handles, hs...)
		}
	} else {
		for _, l := range uniqueLabels(labels) {
			handles = append(handles, adjacency[l]...)
		}
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		if e, ok := g.edges[h]; ok {
			out = append(out, e)
		}
	}
	pool.PutHandleSlice(handles)
	return out
}

func uniqueLabels(labels []string) []string {
	if len(labels) < 2 {
		return labels
	}
	seen := make(map[string]struct{}, len(labels))
	out := labels[:0:0]
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
