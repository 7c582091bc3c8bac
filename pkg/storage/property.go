package storage

import (
	"fmt"
	"strings"

	"github.com/orneryd/tinkergraph/pkg/convert"
	"github.com/orneryd/tinkergraph/pkg/structure"
)

type ownerKind uint8

const (
	ownerEdge ownerKind = iota + 1
	ownerVertexProperty
)

// Property is a single-valued key/value pair on an edge or a vertex property
// (a meta-property). The owner is referenced by handle.
type Property struct {
	graph     *Graph
	ownerKind ownerKind
	owner     uint64
	key       string
	value     any
	removed   bool
}

var _ structure.Property = (*Property)(nil)

// Key returns the property key.
func (p *Property) Key() string { return p.key }

// Value returns the property value.
func (p *Property) Value() any { return p.value }

// IsPresent reports whether the property is still attached to its owner.
func (p *Property) IsPresent() bool { return !p.removed }

// Owner returns the edge or vertex property holding p, or nil once removed.
func (p *Property) Owner() structure.Element {
	if p.removed || p.graph == nil {
		return nil
	}
	switch p.ownerKind {
	case ownerEdge:
		if e, ok := p.graph.edges[p.owner]; ok {
			return e
		}
	case ownerVertexProperty:
		if vp, ok := p.graph.vertexProps[p.owner]; ok {
			return vp
		}
	}
	return nil
}

// Remove detaches p from its owner. Removing twice is a no-op.
func (p *Property) Remove() error {
	switch owner := p.Owner().(type) {
	case *Edge:
		_, err := owner.RemoveProperty(p.key)
		return err
	case *VertexProperty:
		_, err := owner.RemoveProperty(p.key)
		return err
	}
	return nil
}

func (p *Property) String() string {
	if p.removed {
		return "p[empty]"
	}
	return fmt.Sprintf("p[%s->%v]", p.key, p.value)
}

// =============================================================================
// Key/value validation
// =============================================================================

type keyValue struct {
	key   string
	value any
}

// validateProperty rejects empty or reserved keys and nil values.
func validateProperty(key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if value == nil {
		return newValidationError("value", fmt.Sprintf("property value cannot be nil for key %q", key))
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return newValidationError("key", "property key cannot be empty")
	}
	if strings.HasPrefix(key, "~") {
		return newValidationError("key", fmt.Sprintf("property key %q uses the reserved prefix ~", key))
	}
	return nil
}

// parseKeyValues validates an alternating key/value list. A KeyID entry is
// returned separately as the explicit id.
func parseKeyValues(keyValues []any) (id any, hasID bool, pairs []keyValue, err error) {
	if len(keyValues)%2 != 0 {
		return nil, false, nil, newValidationError("keyValues", "must be alternating key and value pairs")
	}
	pairs = make([]keyValue, 0, len(keyValues)/2)
	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			return nil, false, nil, newValidationError("keyValues",
				fmt.Sprintf("key at position %d must be a string, got %T", i, keyValues[i]))
		}
		value := keyValues[i+1]
		if key == KeyID {
			if value == nil {
				return nil, false, nil, newValidationError("id", "explicit id cannot be nil")
			}
			id, hasID = value, true
			continue
		}
		if err := validateProperty(key, value); err != nil {
			return nil, false, nil, err
		}
		pairs = append(pairs, keyValue{key: key, value: value})
	}
	return id, hasID, pairs, nil
}

// duplicatePair returns the first pair repeating an earlier key and value.
func duplicatePair(pairs []keyValue) *DuplicateValueError {
	seen := make(map[string]struct{}, len(pairs))
	for _, kv := range pairs {
		k := kv.key + "\x00" + convert.ValueKey(kv.value)
		if _, dup := seen[k]; dup {
			return &DuplicateValueError{Key: kv.key, Value: kv.value}
		}
		seen[k] = struct{}{}
	}
	return nil
}

// newProperty takes a shell from the pool and fills it.
func (g *Graph) newProperty(kind ownerKind, owner uint64, key string, value any) *Property {
	p := g.propertyPool.Get()
	p.graph = g
	p.ownerKind = kind
	p.owner = owner
	p.key = key
	p.value = value
	p.removed = false
	return p
}

// propertyList returns the properties of m for keys, or all of them, in key
// insertion order.
func propertyList(m map[string]*Property, order []string, keys []string) []*Property {
	wanted := keySet(keys)
	out := make([]*Property, 0, len(order))
	for _, k := range order {
		if wanted != nil {
			if _, ok := wanted[k]; !ok {
				continue
			}
		}
		if p, ok := m[k]; ok {
			out = append(out, p)
		}
	}
	return out
}

func keySet(keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func removeKey(order []string, key string) []string {
	for i, k := range order {
		if k == key {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
