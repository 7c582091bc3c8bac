package storage

import (
	"fmt"

	"github.com/orneryd/tinkergraph/pkg/convert"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

// VertexProperty is one value of a vertex property key. It is an element in
// its own right: it has an id, and may carry single-valued meta-properties.
type VertexProperty struct {
	graph       *Graph
	handle      uint64
	vertex      uint64
	id          any
	key         string
	value       any
	cardinality structure.Cardinality
	meta        map[string]*Property
	metaKeys    []string
	removed     bool
}

var _ structure.VertexProperty = (*VertexProperty)(nil)

// ID returns the vertex property id.
func (vp *VertexProperty) ID() any { return vp.id }

// Label returns the property key.
func (vp *VertexProperty) Label() string { return vp.key }

// Key returns the property key.
func (vp *VertexProperty) Key() string { return vp.key }

// Value returns the property value.
func (vp *VertexProperty) Value() any { return vp.value }

// Cardinality returns the cardinality the value was added with.
func (vp *VertexProperty) Cardinality() structure.Cardinality { return vp.cardinality }

// IsPresent reports whether the value is still attached to its vertex.
func (vp *VertexProperty) IsPresent() bool { return !vp.removed }

// Keys returns the meta-property keys in insertion order.
func (vp *VertexProperty) Keys() []string {
	return append([]string(nil), vp.metaKeys...)
}

// PropertyValue returns the value of meta-property key.
func (vp *VertexProperty) PropertyValue(key string) (any, bool) {
	if p, ok := vp.meta[key]; ok {
		return p.value, true
	}
	return nil, false
}

// Vertex returns the owning vertex, or nil once removed.
func (vp *VertexProperty) Vertex() *Vertex {
	if vp.removed || vp.graph == nil {
		return nil
	}
	return vp.graph.vertices[vp.vertex]
}

// OwnerVertex implements structure.VertexProperty.
func (vp *VertexProperty) OwnerVertex() structure.Vertex {
	if v := vp.Vertex(); v != nil {
		return v
	}
	return nil
}

// Property returns meta-property key.
func (vp *VertexProperty) Property(key string) (*Property, bool) {
	p, ok := vp.meta[key]
	return p, ok
}

// Properties returns the meta-properties of keys, or all of them.
func (vp *VertexProperty) Properties(keys ...string) []*Property {
	return propertyList(vp.meta, vp.metaKeys, keys)
}

// SetProperty sets meta-property key to value.
func (vp *VertexProperty) SetProperty(key string, value any) (*Property, error) {
	if err := vp.checkLive(); err != nil {
		return nil, err
	}
	if err := validateProperty(key, value); err != nil {
		return nil, err
	}
	return vp.putMeta(key, value), nil
}

// RemoveProperty removes meta-property key and reports whether it was present.
func (vp *VertexProperty) RemoveProperty(key string) (bool, error) {
	if err := vp.checkLive(); err != nil {
		return false, err
	}
	p, ok := vp.meta[key]
	if !ok {
		return false, nil
	}
	delete(vp.meta, key)
	vp.metaKeys = removeKey(vp.metaKeys, key)
	vp.graph.propertyPool.Put(p)
	return true, nil
}

// Remove detaches this value from its vertex. Other values of the same key
// stay.
func (vp *VertexProperty) Remove() error {
	if err := vp.checkLive(); err != nil {
		return err
	}
	g := vp.graph
	if v := vp.Vertex(); v != nil {
		v.detachProperty(vp)
	}
	g.releaseVertexProperty(vp)
	return nil
}

func (vp *VertexProperty) String() string {
	if vp.removed {
		return "vp[empty]"
	}
	return fmt.Sprintf("vp[%s->%v]", vp.key, vp.value)
}

func (vp *VertexProperty) checkLive() error {
	if vp.removed || vp.graph == nil {
		return newValidationError("vertexProperty", fmt.Sprintf("vertex property %v was removed", vp.id))
	}
	return vp.graph.checkOpen()
}

func (vp *VertexProperty) putMeta(key string, value any) *Property {
	if old, ok := vp.meta[key]; ok {
		old.value = value
		return old
	}
	p := vp.graph.newProperty(ownerVertexProperty, vp.handle, key, value)
	vp.meta[key] = p
	vp.metaKeys = append(vp.metaKeys, key)
	return p
}

// releaseVertexProperty unregisters vp and returns it and its meta-properties
// to the pools. The owning vertex is not touched.
func (g *Graph) releaseVertexProperty(vp *VertexProperty) {
	for _, p := range vp.meta {
		g.propertyPool.Put(p)
	}
	delete(g.vertexProps, vp.handle)
	if k := convert.ValueKey(vp.id); g.vpByID[k] == vp.handle {
		delete(g.vpByID, k)
	}
	g.vertexPropPool.Put(vp)
}
