package storage

import (
	"github.com/orneryd/tinkergraph/pkg/narrow"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

// TryNarrowVertex returns obj as a native vertex. It never panics; a failure
// is only visible in CastingStatistics.
func (g *Graph) TryNarrowVertex(obj any) (*Vertex, bool) {
	v, outcome := narrow.To[*Vertex, structure.Vertex](g.narrower, narrow.KindVertex, obj)
	return v, outcome == narrow.DirectMatch
}

// TryNarrowEdge returns obj as a native edge.
func (g *Graph) TryNarrowEdge(obj any) (*Edge, bool) {
	e, outcome := narrow.To[*Edge, structure.Edge](g.narrower, narrow.KindEdge, obj)
	return e, outcome == narrow.DirectMatch
}

// NarrowVertices narrows every member of objs, dropping the ones that fail.
func (g *Graph) NarrowVertices(objs []any) []*Vertex {
	return narrow.All[*Vertex, structure.Vertex](g.narrower, narrow.KindVertex, objs)
}

// NarrowEdges narrows every member of objs, dropping the ones that fail.
func (g *Graph) NarrowEdges(objs []any) []*Edge {
	return narrow.All[*Edge, structure.Edge](g.narrower, narrow.KindEdge, objs)
}

// DiagnoseObjectType reports how obj looks through the structure interfaces.
// It does not count as a narrowing attempt.
func (g *Graph) DiagnoseObjectType(obj any) narrow.Report {
	r := narrow.Diagnose(obj)
	if !r.Nil {
		switch obj.(type) {
		case *Vertex, *Edge, *VertexProperty, *Property:
			r.Native = true
		}
	}
	return r
}

// CastingStatistics returns the narrowing counts of this graph's narrower.
func (g *Graph) CastingStatistics() narrow.Statistics {
	return g.narrower.Statistics()
}

// ClearCastingStatistics zeroes the narrowing counts.
func (g *Graph) ClearCastingStatistics() {
	g.narrower.Clear()
}
