// Package index provides the authoritative secondary indexes of tinkergraph.
//
// Indexes map property values to sets of element handles and are updated
// synchronously with every mutation, so a lookup through them always reflects
// the current graph. Three index types exist:
//   - single: one key, exact value match (multi-valued keys index every value)
//   - composite: an ordered key tuple, exact match on every key
//   - range: one numeric key, ordered for range scans
//
// Element sets are roaring bitmaps of element handles, so results come back
// in handle (creation) order and intersect cheaply.
//
// Example Usage:
//
//	mgr := index.NewManager("vertex", source)
//	if err := mgr.Create(index.TypeComposite, "name", "age"); err != nil {
//		return err
//	}
//	handles, ok := mgr.LookupComposite(map[string]any{"name": "marko", "age": 29})
package index

import (
	"strings"

	"github.com/pkg/errors"
)

// Type identifies an index kind.
type Type string

// Index types.
const (
	TypeSingle    Type = "single"
	TypeComposite Type = "composite"
	TypeRange     Type = "range"
)

// LabelKey is the key of the always-present label index.
const LabelKey = "~label"

// Errors returned by index management.
var (
	ErrInvalidIndex = errors.New("invalid index definition")
	ErrUnknownType  = errors.New("unknown index type")
)

// ParseType parses "single", "composite" or "range".
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeSingle, TypeComposite, TypeRange:
		return t, nil
	default:
		return "", errors.Wrapf(ErrUnknownType, "%q", s)
	}
}

// validateKeys checks the key list of a new index of type t.
func validateKeys(t Type, keys []string) error {
	switch t {
	case TypeSingle, TypeRange:
		if len(keys) != 1 {
			return errors.Wrapf(ErrInvalidIndex, "%s index takes exactly one key, got %d", t, len(keys))
		}
	case TypeComposite:
		if len(keys) < 2 {
			return errors.Wrapf(ErrInvalidIndex, "composite index needs at least two keys, got %d", len(keys))
		}
	default:
		return errors.Wrapf(ErrUnknownType, "%q", string(t))
	}

	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" || strings.HasPrefix(k, "~") {
			return errors.Wrapf(ErrInvalidIndex, "key %q cannot be indexed", k)
		}
		if _, dup := seen[k]; dup {
			return errors.Wrapf(ErrInvalidIndex, "key %q repeated", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
