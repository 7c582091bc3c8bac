package storage

import (
	"fmt"

	"github.com/orneryd/tinkergraph/pkg/convert"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

// Edge is a directed, labeled edge between two vertices of the same graph.
// Each key holds a single value.
type Edge struct {
	graph      *Graph
	handle     uint64
	id         any
	label      string
	properties map[string]*Property
	keys       []string
	outV       uint64
	inV        uint64
	removed    bool
}

var _ structure.Edge = (*Edge)(nil)

// AddEdge creates an edge labeled label from out to in. Both vertices must
// narrow to live vertices of g. keyValues follows AddVertex.
func (g *Graph) AddEdge(label string, out, in structure.Vertex, keyValues ...any) (*Edge, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	tail, err := g.ownVertex(out, "outVertex")
	if err != nil {
		return nil, err
	}
	return g.addEdge(label, tail, in, keyValues)
}

func (g *Graph) addEdge(label string, out *Vertex, in structure.Vertex, keyValues []any) (*Edge, error) {
	if label == "" {
		return nil, newValidationError("label", "edge label cannot be empty")
	}
	head, err := g.ownVertex(in, "inVertex")
	if err != nil {
		return nil, err
	}
	explicit, hasID, pairs, err := parseKeyValues(keyValues)
	if err != nil {
		return nil, err
	}
	id, err := elementID(g.edgeIDManager, explicit, hasID, g.edgeIDTaken, "edge")
	if err != nil {
		return nil, err
	}

	e := g.edgePool.Get()
	e.graph = g
	e.handle = g.newHandle()
	e.id = id
	e.label = label
	e.outV = out.handle
	e.inV = head.handle
	e.removed = false
	for _, kv := range pairs {
		e.putProperty(kv.key, kv.value)
	}

	g.edges[e.handle] = e
	g.edgeByID[convert.ValueKey(id)] = e.handle
	g.liveEdges.Add(e.handle)
	out.out[label] = append(out.out[label], e.handle)
	head.in[label] = append(head.in[label], e.handle)

	g.edgeIndex.Add(e.handle, label)
	for _, kv := range pairs {
		g.cache.InvalidateKey(kv.key)
	}
	return e, nil
}

// RemoveEdge removes e and its properties. e must be a live edge of g.
func (g *Graph) RemoveEdge(e structure.Edge) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	native, err := g.ownEdge(e, "edge")
	if err != nil {
		return err
	}
	g.removeEdge(native)
	return nil
}

func (g *Graph) removeEdge(e *Edge) {
	if out, ok := g.vertices[e.outV]; ok {
		detachEdge(out.out, e.label, e.handle)
	}
	if in, ok := g.vertices[e.inV]; ok {
		detachEdge(in.in, e.label, e.handle)
	}
	g.releaseEdgeProperties(e)
	g.edgeIndex.Remove(e.handle)
	delete(g.edges, e.handle)
	delete(g.edgeByID, convert.ValueKey(e.id))
	g.liveEdges.Remove(e.handle)
	g.cache.InvalidateElement(e)

	g.log.WithField("id", e.id).Debug("edge removed")
	g.edgePool.Put(e)
}

// detachEdge drops handle from the label list, and the list once empty.
func detachEdge(adjacency map[string][]uint64, label string, handle uint64) {
	hs := adjacency[label]
	for i, h := range hs {
		if h == handle {
			hs = append(hs[:i], hs[i+1:]...)
			break
		}
	}
	if len(hs) == 0 {
		delete(adjacency, label)
		return
	}
	adjacency[label] = hs
}

func (g *Graph) releaseEdgeProperties(e *Edge) {
	for _, p := range e.properties {
		g.propertyPool.Put(p)
	}
}

// ownEdge narrows obj and checks it is a live edge of g.
func (g *Graph) ownEdge(obj any, field string) (*Edge, error) {
	e, ok := g.TryNarrowEdge(obj)
	if !ok {
		return nil, newValidationError(field, fmt.Sprintf("%T is not an edge of this graph", obj))
	}
	if e.graph != g || e.removed {
		return nil, newValidationError(field, fmt.Sprintf("edge %v was removed or belongs to another graph", e.id))
	}
	return e, nil
}

// ID returns the edge id.
func (e *Edge) ID() any { return e.id }

// Label returns the edge label.
func (e *Edge) Label() string { return e.label }

// Graph returns the owning graph.
func (e *Edge) Graph() *Graph { return e.graph }

// Removed reports whether the edge was removed from its graph.
func (e *Edge) Removed() bool { return e.removed }

// Keys returns the property keys in insertion order.
func (e *Edge) Keys() []string {
	return append([]string(nil), e.keys...)
}

// PropertyValue returns the value of key.
func (e *Edge) PropertyValue(key string) (any, bool) {
	if p, ok := e.properties[key]; ok {
		return p.value, true
	}
	return nil, false
}

// Value returns the value of key or a *PropertyNotFoundError.
func (e *Edge) Value(key string) (any, error) {
	if p, ok := e.properties[key]; ok {
		return p.value, nil
	}
	return nil, &PropertyNotFoundError{Key: key, Element: e.String()}
}

// Property returns the property of key.
func (e *Edge) Property(key string) (*Property, bool) {
	p, ok := e.properties[key]
	return p, ok
}

// Properties returns the properties of keys, or all of them, in insertion order.
func (e *Edge) Properties(keys ...string) []*Property {
	return propertyList(e.properties, e.keys, keys)
}

// SetProperty sets key to value, replacing any previous value.
func (e *Edge) SetProperty(key string, value any) (*Property, error) {
	if err := e.checkLive(); err != nil {
		return nil, err
	}
	if err := validateProperty(key, value); err != nil {
		return nil, err
	}
	p := e.putProperty(key, value)
	e.graph.edgeIndex.Touch(e.handle, key)
	e.graph.cache.InvalidateKey(key)
	return p, nil
}

// RemoveProperty removes key and reports whether it was present.
func (e *Edge) RemoveProperty(key string) (bool, error) {
	if err := e.checkLive(); err != nil {
		return false, err
	}
	p, ok := e.properties[key]
	if !ok {
		return false, nil
	}
	delete(e.properties, key)
	e.keys = removeKey(e.keys, key)
	e.graph.propertyPool.Put(p)
	e.graph.edgeIndex.Touch(e.handle, key)
	e.graph.cache.InvalidateKey(key)
	return true, nil
}

// Out returns the tail vertex.
func (e *Edge) Out() *Vertex {
	if e.removed {
		return nil
	}
	return e.graph.vertices[e.outV]
}

// In returns the head vertex.
func (e *Edge) In() *Vertex {
	if e.removed {
		return nil
	}
	return e.graph.vertices[e.inV]
}

// OutVertex implements structure.Edge.
func (e *Edge) OutVertex() structure.Vertex {
	if v := e.Out(); v != nil {
		return v
	}
	return nil
}

// InVertex implements structure.Edge.
func (e *Edge) InVertex() structure.Vertex {
	if v := e.In(); v != nil {
		return v
	}
	return nil
}

// OtherVertex returns the endpoint opposite v. For a self-loop it is v.
func (e *Edge) OtherVertex(v structure.Vertex) (*Vertex, error) {
	id, err := elementIDOf(v)
	if err != nil {
		return nil, err
	}
	switch out, in := e.Out(), e.In(); {
	case out != nil && convert.ValuesEqual(out.id, id):
		return in, nil
	case in != nil && convert.ValuesEqual(in.id, id):
		return out, nil
	}
	return nil, newValidationError("vertex", fmt.Sprintf("%v is not an endpoint of %s", id, e))
}

// Vertices returns the endpoints in direction: the tail for Out, the head for
// In and both, tail first, for Both.
func (e *Edge) Vertices(direction structure.Direction) []*Vertex {
	var out []*Vertex
	if direction != structure.In {
		if v := e.Out(); v != nil {
			out = append(out, v)
		}
	}
	if direction != structure.Out {
		if v := e.In(); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// Remove removes the edge from the graph.
func (e *Edge) Remove() error {
	if err := e.checkLive(); err != nil {
		return err
	}
	e.graph.removeEdge(e)
	return nil
}

func (e *Edge) String() string {
	var outID, inID any
	if v := e.Out(); v != nil {
		outID = v.id
	}
	if v := e.In(); v != nil {
		inID = v.id
	}
	return fmt.Sprintf("e[%v][%v-%s->%v]", e.id, outID, e.label, inID)
}

func (e *Edge) checkLive() error {
	if e.removed || e.graph == nil {
		return newValidationError("edge", fmt.Sprintf("edge %v was removed", e.id))
	}
	return e.graph.checkOpen()
}

// putProperty stores an already validated value.
func (e *Edge) putProperty(key string, value any) *Property {
	if old, ok := e.properties[key]; ok {
		old.value = value
		return old
	}
	p := e.graph.newProperty(ownerEdge, e.handle, key, value)
	e.properties[key] = p
	e.keys = append(e.keys, key)
	return p
}
