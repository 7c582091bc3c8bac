// Package structure defines the abstract capability set of a property graph.
//
// The engine's concrete elements (see package storage) satisfy these
// interfaces, and so may elements produced by any other implementation.
// Code that receives elements from outside the engine accepts these
// interfaces and narrows them to the engine's concrete types before touching
// engine-internal state (see package narrow).
//
// Example:
//
//	func describe(v structure.Vertex) string {
//		return fmt.Sprintf("%v[%s] keys=%v", v.ID(), v.Label(), v.Keys())
//	}
package structure

import "fmt"

// DefaultVertexLabel is assigned to vertices created without a label.
const DefaultVertexLabel = "vertex"

// Element is the capability shared by vertices, edges and vertex properties.
type Element interface {
	// ID returns the element identifier.
	ID() any
	// Label returns the element label. For a vertex property it is the key.
	Label() string
	// Keys returns the property keys of the element in insertion order.
	Keys() []string
	// PropertyValue returns the most recent value stored under key.
	PropertyValue(key string) (any, bool)
}

// Vertex is the abstract vertex capability.
type Vertex interface {
	Element
	// VertexProperties returns the vertex properties for keys, or all of them.
	VertexProperties(keys ...string) []VertexProperty
	// EdgesOf returns the incident edges in the given direction.
	EdgesOf(direction Direction, labels ...string) []Edge
}

// Edge is the abstract edge capability.
type Edge interface {
	Element
	// OutVertex returns the tail (source) vertex.
	OutVertex() Vertex
	// InVertex returns the head (target) vertex.
	InVertex() Vertex
}

// Property is a single key/value pair attached to an edge or a vertex property.
type Property interface {
	Key() string
	Value() any
	// Owner returns the element holding the property, or nil once removed.
	Owner() Element
}

// VertexProperty is a property of a vertex that is itself an element and may
// carry meta-properties.
type VertexProperty interface {
	Element
	Key() string
	Value() any
	Cardinality() Cardinality
	// OwnerVertex returns the vertex holding the property, or nil once removed.
	OwnerVertex() Vertex
}

// Direction selects incident edges relative to a vertex.
type Direction int

const (
	// Out selects edges whose tail is the vertex.
	Out Direction = iota
	// In selects edges whose head is the vertex.
	In
	// Both selects edges in either direction.
	Both
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "OUT"
	case In:
		return "IN"
	case Both:
		return "BOTH"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Opposite returns the reverse direction. Both is its own opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case Out:
		return In
	case In:
		return Out
	default:
		return d
	}
}
