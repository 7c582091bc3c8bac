package index

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/sirupsen/logrus"
)

// Source exposes the elements of one kind to a Manager.
type Source interface {
	// ForEachHandle calls fn for every live element until fn returns false.
	ForEachHandle(fn func(handle uint64) bool)
	// Values returns every current value of key on the element, oldest first.
	Values(handle uint64, key string) []any
}

// Manager owns every index of one element kind (vertex or edge).
//
// Manager is not safe for concurrent mutation; the graph serializes writers.
type Manager struct {
	kind string
	src  Source
	log  logrus.FieldLogger

	labels    *PropertyIndex
	single    map[string]*PropertyIndex
	composite map[string]*CompositeIndex
	ranges    map[string]*RangeIndex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for index lifecycle events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a manager for kind reading element values from src.
func NewManager(kind string, src Source, opts ...Option) *Manager {
	m := &Manager{
		kind:      kind,
		src:       src,
		log:       logrus.StandardLogger(),
		labels:    NewPropertyIndex(LabelKey),
		single:    make(map[string]*PropertyIndex),
		composite: make(map[string]*CompositeIndex),
		ranges:    make(map[string]*RangeIndex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kind returns the element kind this manager indexes.
func (m *Manager) Kind() string {
	return m.kind
}

// Create builds an index of type t over keys from the current elements.
// Creating an index that already exists is a no-op.
func (m *Manager) Create(t Type, keys ...string) error {
	if err := validateKeys(t, keys); err != nil {
		return err
	}
	if m.Has(t, keys...) {
		return nil
	}

	switch t {
	case TypeSingle:
		idx := NewPropertyIndex(keys[0])
		m.src.ForEachHandle(func(h uint64) bool {
			idx.Index(h, m.src.Values(h, idx.Key))
			return true
		})
		m.single[idx.Key] = idx
	case TypeRange:
		idx := NewRangeIndex(keys[0])
		m.src.ForEachHandle(func(h uint64) bool {
			idx.Index(h, m.src.Values(h, idx.Key))
			return true
		})
		m.ranges[idx.Key] = idx
	case TypeComposite:
		idx := NewCompositeIndex(keys...)
		m.src.ForEachHandle(func(h uint64) bool {
			idx.Index(h, m.values(h))
			return true
		})
		m.composite[idx.Name()] = idx
	}

	m.log.WithFields(logrus.Fields{
		"kind":       m.kind,
		"index_type": t,
		"keys":       keys,
	}).Debug("index created")
	return nil
}

// Drop removes an index. It reports whether the index existed. Composite key
// order is ignored.
func (m *Manager) Drop(t Type, keys ...string) bool {
	name := indexName(t, keys)
	dropped := false
	switch t {
	case TypeSingle:
		if _, dropped = m.single[name]; dropped {
			delete(m.single, name)
		}
	case TypeRange:
		if _, dropped = m.ranges[name]; dropped {
			delete(m.ranges, name)
		}
	case TypeComposite:
		if _, dropped = m.composite[name]; dropped {
			delete(m.composite, name)
		}
	}
	if dropped {
		m.log.WithFields(logrus.Fields{
			"kind":       m.kind,
			"index_type": t,
			"keys":       keys,
		}).Debug("index dropped")
	}
	return dropped
}

func indexName(t Type, keys []string) string {
	if t == TypeComposite {
		return compositeName(keys)
	}
	return strings.Join(keys, ",")
}

// Has reports whether an index of type t over keys exists. Composite key
// order is ignored.
func (m *Manager) Has(t Type, keys ...string) bool {
	name := indexName(t, keys)
	switch t {
	case TypeSingle:
		_, ok := m.single[name]
		return ok
	case TypeRange:
		_, ok := m.ranges[name]
		return ok
	case TypeComposite:
		_, ok := m.composite[name]
		return ok
	}
	return false
}

// IndexedKeys returns the sorted keys indexed with type t. Composite indexes
// are reported as their comma-joined key list.
func (m *Manager) IndexedKeys(t Type) []string {
	var keys []string
	switch t {
	case TypeSingle:
		for k := range m.single {
			keys = append(keys, k)
		}
	case TypeRange:
		for k := range m.ranges {
			keys = append(keys, k)
		}
	case TypeComposite:
		for k := range m.composite {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Covers reports whether any index reads key.
func (m *Manager) Covers(key string) bool {
	if _, ok := m.single[key]; ok {
		return true
	}
	if _, ok := m.ranges[key]; ok {
		return true
	}
	for _, idx := range m.composite {
		if idx.Covers(key) {
			return true
		}
	}
	return false
}

// Add indexes a newly registered element.
func (m *Manager) Add(handle uint64, label string) {
	m.labels.Index(handle, []any{label})
	for key, idx := range m.single {
		idx.Index(handle, m.src.Values(handle, key))
	}
	for key, idx := range m.ranges {
		idx.Index(handle, m.src.Values(handle, key))
	}
	for _, idx := range m.composite {
		idx.Index(handle, m.values(handle))
	}
}

// Touch re-indexes handle after the values of key changed.
func (m *Manager) Touch(handle uint64, key string) {
	if idx, ok := m.single[key]; ok {
		idx.Index(handle, m.src.Values(handle, key))
	}
	if idx, ok := m.ranges[key]; ok {
		idx.Index(handle, m.src.Values(handle, key))
	}
	for _, idx := range m.composite {
		if idx.Covers(key) {
			idx.Index(handle, m.values(handle))
		}
	}
}

// Remove drops handle from every index.
func (m *Manager) Remove(handle uint64) {
	m.labels.Remove(handle)
	for _, idx := range m.single {
		idx.Remove(handle)
	}
	for _, idx := range m.ranges {
		idx.Remove(handle)
	}
	for _, idx := range m.composite {
		idx.Remove(handle)
	}
}

// Reset empties every index but keeps the definitions.
func (m *Manager) Reset() {
	m.labels = NewPropertyIndex(LabelKey)
	for key := range m.single {
		m.single[key] = NewPropertyIndex(key)
	}
	for key := range m.ranges {
		m.ranges[key] = NewRangeIndex(key)
	}
	for name, idx := range m.composite {
		m.composite[name] = NewCompositeIndex(idx.Keys...)
	}
}

// LookupLabel returns the handles carrying label.
func (m *Manager) LookupLabel(label string) *roaring64.Bitmap {
	return m.labels.Lookup(label)
}

// LookupProperty returns the handles holding value under key when key has a
// single index.
func (m *Manager) LookupProperty(key string, value any) (*roaring64.Bitmap, bool) {
	idx, ok := m.single[key]
	if !ok {
		return nil, false
	}
	return idx.Lookup(value), true
}

// LookupComposite resolves an exact match on every entry of values. It uses a
// composite index over exactly those keys when one exists, otherwise the
// intersection of single indexes when every key has one.
func (m *Manager) LookupComposite(values map[string]any) (*roaring64.Bitmap, bool) {
	if len(values) == 0 {
		return nil, false
	}
	for _, idx := range m.composite {
		if bm, ok := idx.Lookup(values); ok {
			return bm, true
		}
	}

	var result *roaring64.Bitmap
	for key, value := range values {
		idx, ok := m.single[key]
		if !ok {
			return nil, false
		}
		bm := idx.Lookup(value)
		if result == nil {
			result = bm
		} else {
			result.And(bm)
		}
	}
	return result, true
}

// LookupRange returns the handles with a value of key inside b when key has a
// range index.
func (m *Manager) LookupRange(key string, b Bounds) (*roaring64.Bitmap, bool) {
	idx, ok := m.ranges[key]
	if !ok {
		return nil, false
	}
	return idx.Range(b), true
}

// values binds the value source to handle.
func (m *Manager) values(handle uint64) func(string) []any {
	return func(key string) []any {
		return m.src.Values(handle, key)
	}
}
