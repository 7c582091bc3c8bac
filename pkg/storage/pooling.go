package storage

// Shell constructors and resets for the element pools. A reset keeps the
// allocated maps and slices and marks the shell removed, so a stale reference
// reads as removed until the shell is handed out again.

func newVertexShell() *Vertex {
	return &Vertex{
		properties: make(map[string][]*VertexProperty),
		out:        make(map[string][]uint64),
		in:         make(map[string][]uint64),
	}
}

func resetVertex(v *Vertex) {
	props, out, in, keys := v.properties, v.out, v.in, v.keys
	clear(props)
	clear(out)
	clear(in)
	*v = Vertex{properties: props, out: out, in: in, keys: keys[:0], removed: true}
}

func newEdgeShell() *Edge {
	return &Edge{properties: make(map[string]*Property)}
}

func resetEdge(e *Edge) {
	props, keys := e.properties, e.keys
	clear(props)
	*e = Edge{properties: props, keys: keys[:0], removed: true}
}

func newVertexPropertyShell() *VertexProperty {
	return &VertexProperty{meta: make(map[string]*Property)}
}

func resetVertexProperty(vp *VertexProperty) {
	meta, keys := vp.meta, vp.metaKeys
	clear(meta)
	*vp = VertexProperty{meta: meta, metaKeys: keys[:0], removed: true}
}

func newPropertyShell() *Property {
	return &Property{}
}

func resetProperty(p *Property) {
	*p = Property{removed: true}
}
