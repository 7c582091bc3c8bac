package storage

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tinkergraph/pkg/narrow"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

// foreignVertex satisfies structure.Vertex without being engine-native.
type foreignVertex struct{ id any }

func (f foreignVertex) ID() any                          { return f.id }
func (f foreignVertex) Label() string                    { return "foreign" }
func (f foreignVertex) Keys() []string                   { return nil }
func (f foreignVertex) PropertyValue(string) (any, bool) { return nil, false }

func (f foreignVertex) VertexProperties(...string) []structure.VertexProperty {
	return nil
}

func (f foreignVertex) EdgesOf(structure.Direction, ...string) []structure.Edge {
	return nil
}

func TestTryNarrowVertex(t *testing.T) {
	g := newTestGraph(t)
	v := mustVertex(t, g, "person", "name", "marko")

	t.Run("plain object", func(t *testing.T) {
		got, ok := g.TryNarrowVertex(struct{ Name string }{"marko"})
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.Equal(t, int64(1), g.CastingStatistics().Count(narrow.KindVertex, narrow.TypeMismatch))
	})

	t.Run("native", func(t *testing.T) {
		got, ok := g.TryNarrowVertex(v)
		assert.True(t, ok)
		assert.Same(t, v, got)

		var abstract structure.Vertex = v
		got, ok = g.TryNarrowVertex(abstract)
		assert.True(t, ok)
		assert.Same(t, v, got)
	})

	t.Run("nil inputs", func(t *testing.T) {
		var typed *Vertex
		_, ok := g.TryNarrowVertex(typed)
		assert.False(t, ok)
		_, ok = g.TryNarrowVertex(nil)
		assert.False(t, ok)
		assert.Equal(t, int64(2), g.CastingStatistics().Count(narrow.KindVertex, narrow.NullInput))
	})

	t.Run("foreign", func(t *testing.T) {
		_, ok := g.TryNarrowVertex(foreignVertex{id: 1})
		assert.False(t, ok)
		assert.Equal(t, int64(1), g.CastingStatistics().Count(narrow.KindVertex, narrow.ForeignUnsupported))
	})

	t.Run("edges narrow separately", func(t *testing.T) {
		_, ok := g.TryNarrowEdge(v)
		assert.False(t, ok)
		e := mustEdge(t, v, "self", v)
		got, ok := g.TryNarrowEdge(e)
		assert.True(t, ok)
		assert.Same(t, e, got)

		stats := g.CastingStatistics()
		assert.Equal(t, int64(1), stats.Count(narrow.KindEdge, narrow.TypeMismatch))
		assert.Equal(t, int64(1), stats.Count(narrow.KindEdge, narrow.DirectMatch))
		assert.InDelta(t, 0.5, stats.SuccessRate(narrow.KindEdge), 1e-9)
	})
}

func TestForeignElementsAreRejected(t *testing.T) {
	g := newTestGraph(t)
	v := mustVertex(t, g, "person")

	_, err := v.AddEdge("knows", foreignVertex{id: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	err = g.RemoveVertex(foreignVertex{id: v.ID()})
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, 1, g.VertexCount())

	assert.Equal(t, int64(2), g.CastingStatistics().Count(narrow.KindVertex, narrow.ForeignUnsupported))
}

func TestNarrowVertices(t *testing.T) {
	g := newTestGraph(t)
	a := mustVertex(t, g, "person")
	b := mustVertex(t, g, "person")
	e := mustEdge(t, a, "knows", b)
	g.ClearCastingStatistics()

	got := g.NarrowVertices([]any{a, nil, foreignVertex{}, "a", b})
	assert.Equal(t, []*Vertex{a, b}, got)
	assert.Equal(t, []*Edge{e}, g.NarrowEdges([]any{a, e}))

	stats := g.CastingStatistics()
	assert.Equal(t, int64(5), stats.Attempts(narrow.KindVertex))
	assert.Equal(t, int64(2), stats.Attempts(narrow.KindEdge))
}

func TestCastingStatisticsArePerGraph(t *testing.T) {
	g1 := newTestGraph(t)
	g2 := newTestGraph(t)

	g1.TryNarrowVertex(42)
	assert.Equal(t, int64(1), g1.CastingStatistics().Attempts(narrow.KindVertex))
	assert.Empty(t, g2.CastingStatistics())

	g1.ClearCastingStatistics()
	assert.Empty(t, g1.CastingStatistics())

	t.Run("shared when injected", func(t *testing.T) {
		n := narrow.New()
		a, err := NewGraph(nil, WithNarrower(n), WithLogger(g1.log))
		require.NoError(t, err)
		b, err := NewGraph(nil, WithNarrower(n), WithLogger(g1.log))
		require.NoError(t, err)

		a.TryNarrowVertex(1)
		b.TryNarrowEdge(1)
		assert.Equal(t, int64(1), n.Statistics().Attempts(narrow.KindVertex))
		assert.Equal(t, int64(1), n.Statistics().Attempts(narrow.KindEdge))
	})
}

func TestDiagnoseObjectType(t *testing.T) {
	g := newTestGraph(t)
	v := mustVertex(t, g, "person", "name", "marko")

	r := g.DiagnoseObjectType(v)
	assert.True(t, r.Native)
	assert.True(t, r.Vertex)
	assert.False(t, r.Edge)
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "person", r.Label)
	assert.Equal(t, []string{"name"}, r.Keys)
	assert.Contains(t, r.String(), "*storage.Vertex")

	r = g.DiagnoseObjectType(foreignVertex{id: "x"})
	assert.False(t, r.Native)
	assert.True(t, r.Vertex)
	assert.Equal(t, "x", r.ID)

	r = g.DiagnoseObjectType(nil)
	assert.True(t, r.Nil)
	assert.False(t, r.Native)

	assert.Empty(t, g.CastingStatistics())
}
