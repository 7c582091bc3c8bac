// Package storage provides the in-memory property graph of tinkergraph.
//
// A Graph owns every vertex, edge and vertex property, the indexes kept over
// them, an index cache, memory accounting with element shell pools, and a
// narrower for elements handed in from outside. Elements refer to each other
// through stable internal handles resolved via the Graph's tables, so removing
// an endpoint never leaves an owning pointer behind.
//
// Design Principles:
//   - Single writer: the Graph is not locked; embedders serialize mutations
//   - Validation before mutation: a rejected call changes nothing
//   - Explicit state: statistics live on the Graph or on injected collaborators
//
// Example Usage:
//
//	g, err := storage.NewGraph(config.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer g.Close()
//
//	marko, _ := g.AddVertex("person", "name", "marko", "age", 29)
//	lop, _ := g.AddVertex("software", "name", "lop", "lang", "java")
//	marko.AddEdge("created", lop, "weight", 0.4)
//
//	_ = g.CreateIndex(storage.VertexKind, index.TypeSingle, "name")
//	found, _ := g.VerticesByProperty("name", "marko")
//	fmt.Println(found[0].Value("age")) // 29 <nil>
//
// Removed elements are recycled when pooling is enabled; references to them
// must not be used after removal.
package storage

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/orneryd/tinkergraph/pkg/cache"
	"github.com/orneryd/tinkergraph/pkg/config"
	"github.com/orneryd/tinkergraph/pkg/convert"
	"github.com/orneryd/tinkergraph/pkg/index"
	"github.com/orneryd/tinkergraph/pkg/narrow"
	"github.com/orneryd/tinkergraph/pkg/pool"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

// KeyID is the reserved key that supplies an explicit element id in a
// key/value list.
const KeyID = "~id"

// ElementKind selects vertices or edges for index management.
type ElementKind string

// Element kinds.
const (
	VertexKind ElementKind = "vertex"
	EdgeKind   ElementKind = "edge"
)

// Graph is an in-memory property graph.
//
// Performance Characteristics:
//   - Element lookup by id: O(1)
//   - Lookup through a single or composite index: O(result)
//   - Lookup without an index: O(elements), then served from the index cache
//   - Incident edges: O(degree)
//
// Thread Safety:
//
//	Graph is not locked. Concurrent reads are safe while nothing mutates the
//	graph; the index cache, tracker and narrower guard themselves.
type Graph struct {
	cfg                config.Config
	log                logrus.FieldLogger
	defaultCardinality structure.Cardinality

	vertexIDManager         IDManager
	edgeIDManager           IDManager
	vertexPropertyIDManager IDManager

	nextHandle   uint64
	vertices     map[uint64]*Vertex
	edges        map[uint64]*Edge
	vertexProps  map[uint64]*VertexProperty
	vertexByID   map[string]uint64
	edgeByID     map[string]uint64
	vpByID       map[string]uint64
	liveVertices *roaring64.Bitmap
	liveEdges    *roaring64.Bitmap

	vertexIndex *index.Manager
	edgeIndex   *index.Manager
	cache       *cache.IndexCache[structure.Element]

	tracker        *pool.Tracker
	vertexPool     *pool.ShellPool[Vertex]
	edgePool       *pool.ShellPool[Edge]
	vertexPropPool *pool.ShellPool[VertexProperty]
	propertyPool   *pool.ShellPool[Property]

	narrower  *narrow.Narrower
	variables *Variables
	closed    bool
}

type graphOptions struct {
	log      logrus.FieldLogger
	now      func() time.Time
	tracker  *pool.Tracker
	narrower *narrow.Narrower
}

// Option configures a Graph.
type Option func(*graphOptions)

// WithLogger sets the logger. By default one is built from the logging config.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *graphOptions) { o.log = log }
}

// WithClock sets the clock the index cache uses for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *graphOptions) { o.now = now }
}

// WithTracker shares a memory tracker, for example between graphs that should
// be accounted together.
func WithTracker(t *pool.Tracker) Option {
	return func(o *graphOptions) { o.tracker = t }
}

// WithNarrower shares a narrower and its statistics.
func WithNarrower(n *narrow.Narrower) Option {
	return func(o *graphOptions) { o.narrower = n }
}

// NewGraph creates an empty graph. A nil cfg means config.Default().
//
// Returns:
//   - *Graph ready for use
//   - an error matching config.ErrInvalidConfig if cfg does not validate
//
// Example:
//
//	cfg := config.Default()
//	cfg.Graph.VertexIDManager = "uuid"
//	g, err := storage.NewGraph(cfg, storage.WithLogger(logger))
func NewGraph(cfg *config.Config, opts ...Option) (*Graph, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o graphOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = cfg.Logging.NewLogger()
	}

	card, err := structure.ParseCardinality(cfg.Graph.DefaultCardinality)
	if err != nil {
		return nil, errors.Wrap(err, "default cardinality")
	}

	g := &Graph{
		cfg:                *cfg,
		log:                o.log,
		defaultCardinality: card,
		variables:          newVariables(),
	}
	if err := g.resetIDManagers(); err != nil {
		return nil, err
	}
	g.resetTables()

	g.tracker = o.tracker
	if g.tracker == nil {
		g.tracker = pool.NewTracker(cfg.Memory, pool.WithTrackerLogger(o.log))
	}
	g.vertexPool = pool.NewShellPool(pool.KindVertex, cfg.Pool, g.tracker, newVertexShell, resetVertex)
	g.edgePool = pool.NewShellPool(pool.KindEdge, cfg.Pool, g.tracker, newEdgeShell, resetEdge)
	g.vertexPropPool = pool.NewShellPool(pool.KindVertexProperty, cfg.Pool, g.tracker, newVertexPropertyShell, resetVertexProperty)
	g.propertyPool = pool.NewShellPool(pool.KindProperty, cfg.Pool, g.tracker, newPropertyShell, resetProperty)

	cacheOpts := []cache.Option{cache.WithLogger(o.log)}
	if o.now != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.now))
	}
	if g.cache, err = cache.NewIndexCache[structure.Element](cfg.IndexCache, cacheOpts...); err != nil {
		return nil, err
	}

	g.narrower = o.narrower
	if g.narrower == nil {
		g.narrower = narrow.New(narrow.WithLogger(o.log))
	}

	g.vertexIndex = index.NewManager(string(VertexKind), vertexSource{g}, index.WithLogger(o.log))
	g.edgeIndex = index.NewManager(string(EdgeKind), edgeSource{g}, index.WithLogger(o.log))

	o.log.WithField("config", cfg.String()).Debug("graph created")
	return g, nil
}

// Config returns a copy of the configuration the graph was built with.
func (g *Graph) Config() config.Config {
	return g.cfg
}

// Variables returns the graph-level variables.
func (g *Graph) Variables() *Variables {
	return g.variables
}

// IndexCache returns the cache in front of composite, range and scan lookups.
func (g *Graph) IndexCache() *cache.IndexCache[structure.Element] {
	return g.cache
}

// CacheStatistics returns the index cache statistics.
func (g *Graph) CacheStatistics() cache.Stats {
	return g.cache.Stats()
}

// VertexCount returns the number of vertices.
func (g *Graph) VertexCount() int {
	return len(g.vertices)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Closed reports whether Close was called.
func (g *Graph) Closed() bool {
	return g.closed
}

func (g *Graph) String() string {
	return fmt.Sprintf("tinkergraph[vertices:%d edges:%d]", len(g.vertices), len(g.edges))
}

// Clear removes every element and variable. Index definitions survive and
// id generation restarts.
func (g *Graph) Clear() {
	for _, e := range g.edges {
		g.releaseEdgeProperties(e)
		g.edgePool.Put(e)
	}
	for _, v := range g.vertices {
		g.releaseVertexProperties(v)
		g.vertexPool.Put(v)
	}
	g.resetTables()
	g.vertexIndex.Reset()
	g.edgeIndex.Reset()
	g.cache.InvalidateElement(nil)
	g.variables.clear()
	// Names were validated at construction.
	_ = g.resetIDManagers()

	g.log.Debug("graph cleared")
}

// Close clears the graph and rejects further mutations with ErrGraphClosed.
func (g *Graph) Close() error {
	if g.closed {
		return nil
	}
	g.Clear()
	g.closed = true
	g.log.Debug("graph closed")
	return nil
}

func (g *Graph) checkOpen() error {
	if g.closed {
		return ErrGraphClosed
	}
	return nil
}

func (g *Graph) resetTables() {
	g.vertices = make(map[uint64]*Vertex)
	g.edges = make(map[uint64]*Edge)
	g.vertexProps = make(map[uint64]*VertexProperty)
	g.vertexByID = make(map[string]uint64)
	g.edgeByID = make(map[string]uint64)
	g.vpByID = make(map[string]uint64)
	g.liveVertices = roaring64.New()
	g.liveEdges = roaring64.New()
}

func (g *Graph) resetIDManagers() error {
	var err error
	if g.vertexIDManager, err = NewIDManager(g.cfg.Graph.VertexIDManager); err != nil {
		return err
	}
	if g.edgeIDManager, err = NewIDManager(g.cfg.Graph.EdgeIDManager); err != nil {
		return err
	}
	g.vertexPropertyIDManager, err = NewIDManager(g.cfg.Graph.VertexPropertyIDManager)
	return err
}

func (g *Graph) newHandle() uint64 {
	g.nextHandle++
	return g.nextHandle
}

func (g *Graph) vertexIDTaken(id any) bool {
	_, ok := g.vertexByID[convert.ValueKey(id)]
	return ok
}

func (g *Graph) edgeIDTaken(id any) bool {
	_, ok := g.edgeByID[convert.ValueKey(id)]
	return ok
}

func (g *Graph) vertexPropertyIDTaken(id any) bool {
	_, ok := g.vpByID[convert.ValueKey(id)]
	return ok
}

// elementID resolves the id of a new element from an explicit value or the
// manager's generator.
func elementID(m IDManager, explicit any, hasExplicit bool, taken func(any) bool, kind string) (any, error) {
	if !hasExplicit {
		return m.NextID(taken), nil
	}
	id, err := m.Convert(explicit)
	if err != nil {
		return nil, err
	}
	if taken(id) {
		return nil, errors.Wrapf(ErrAlreadyExists, "%s with id %v", kind, id)
	}
	return id, nil
}

// =============================================================================
// Element lookup and iteration
// =============================================================================

// Vertex returns the vertex with id.
//
// Returns:
//   - ErrNotFound if no vertex has the id
//   - *ValidationError if id cannot be converted by the vertex id manager
func (g *Graph) Vertex(id any) (*Vertex, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	id, err := elementIDOf(id)
	if err != nil {
		return nil, err
	}
	id, err = g.vertexIDManager.Convert(id)
	if err != nil {
		return nil, err
	}
	h, ok := g.vertexByID[convert.ValueKey(id)]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "vertex %v", id)
	}
	return g.vertices[h], nil
}

// Edge returns the edge with id.
func (g *Graph) Edge(id any) (*Edge, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	id, err := elementIDOf(id)
	if err != nil {
		return nil, err
	}
	id, err = g.edgeIDManager.Convert(id)
	if err != nil {
		return nil, err
	}
	h, ok := g.edgeByID[convert.ValueKey(id)]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "edge %v", id)
	}
	return g.edges[h], nil
}

// Vertices returns the vertices with the given ids, or every vertex when no
// id is given, in creation order. Unknown ids are skipped. Elements may be
// passed in place of ids.
func (g *Graph) Vertices(ids ...any) ([]*Vertex, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return g.verticesOf(g.liveVertices), nil
	}
	handles := roaring64.New()
	for _, raw := range ids {
		id, err := elementIDOf(raw)
		if err != nil {
			return nil, err
		}
		id, err = g.vertexIDManager.Convert(id)
		if err != nil {
			return nil, err
		}
		if h, ok := g.vertexByID[convert.ValueKey(id)]; ok {
			handles.Add(h)
		}
	}
	return g.verticesOf(handles), nil
}

// Edges returns the edges with the given ids, or every edge when no id is
// given, in creation order. Unknown ids are skipped.
func (g *Graph) Edges(ids ...any) ([]*Edge, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return g.edgesOf(g.liveEdges), nil
	}
	handles := roaring64.New()
	for _, raw := range ids {
		id, err := elementIDOf(raw)
		if err != nil {
			return nil, err
		}
		id, err = g.edgeIDManager.Convert(id)
		if err != nil {
			return nil, err
		}
		if h, ok := g.edgeByID[convert.ValueKey(id)]; ok {
			handles.Add(h)
		}
	}
	return g.edgesOf(handles), nil
}

// ForEachVertex calls fn for every vertex in creation order. Returning
// ErrIterationStopped ends the walk without error; any other error is
// returned. fn may remove elements.
func (g *Graph) ForEachVertex(fn func(*Vertex) error) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	it := g.liveVertices.Clone().Iterator()
	for it.HasNext() {
		v, ok := g.vertices[it.Next()]
		if !ok {
			continue
		}
		if err := fn(v); err != nil {
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}

// ForEachEdge calls fn for every edge in creation order, like ForEachVertex.
func (g *Graph) ForEachEdge(fn func(*Edge) error) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	it := g.liveEdges.Clone().Iterator()
	for it.HasNext() {
		e, ok := g.edges[it.Next()]
		if !ok {
			continue
		}
		if err := fn(e); err != nil {
			if errors.Is(err, ErrIterationStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (g *Graph) verticesOf(handles *roaring64.Bitmap) []*Vertex {
	out := make([]*Vertex, 0, handles.GetCardinality())
	it := handles.Iterator()
	for it.HasNext() {
		if v, ok := g.vertices[it.Next()]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (g *Graph) edgesOf(handles *roaring64.Bitmap) []*Edge {
	out := make([]*Edge, 0, handles.GetCardinality())
	it := handles.Iterator()
	for it.HasNext() {
		if e, ok := g.edges[it.Next()]; ok {
			out = append(out, e)
		}
	}
	return out
}

// elementIDOf unwraps an element passed where an id is expected. A nil
// element, typed or not, is rejected.
func elementIDOf(id any) (any, error) {
	el, ok := id.(structure.Element)
	if !ok {
		return id, nil
	}
	if narrow.IsNil(el) {
		return nil, newValidationError("id", fmt.Sprintf("nil element %T", id))
	}
	return el.ID(), nil
}

// =============================================================================
// Index sources
// =============================================================================

type vertexSource struct{ g *Graph }

func (s vertexSource) ForEachHandle(fn func(uint64) bool) {
	it := s.g.liveVertices.Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			return
		}
	}
}

func (s vertexSource) Values(handle uint64, key string) []any {
	if v, ok := s.g.vertices[handle]; ok {
		return v.Values(key)
	}
	return nil
}

type edgeSource struct{ g *Graph }

func (s edgeSource) ForEachHandle(fn func(uint64) bool) {
	it := s.g.liveEdges.Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			return
		}
	}
}

func (s edgeSource) Values(handle uint64, key string) []any {
	if e, ok := s.g.edges[handle]; ok {
		if p, ok := e.properties[key]; ok {
			return []any{p.value}
		}
	}
	return nil
}
