package structure

import (
	"fmt"
	"strings"
)

// Cardinality governs how many values a vertex may hold per property key.
type Cardinality int

const (
	// Single keeps at most one value per key; adding replaces.
	Single Cardinality = iota
	// List appends values, duplicates allowed, insertion order preserved.
	List
	// Set appends values but rejects a value equal to an existing one.
	Set
)

func (c Cardinality) String() string {
	switch c {
	case Single:
		return "single"
	case List:
		return "list"
	case Set:
		return "set"
	default:
		return fmt.Sprintf("cardinality(%d)", int(c))
	}
}

// ParseCardinality parses "single", "list" or "set" (case-insensitive).
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return Single, nil
	case "list":
		return List, nil
	case "set":
		return Set, nil
	default:
		return Single, fmt.Errorf("unknown cardinality %q (want single, list or set)", s)
	}
}
