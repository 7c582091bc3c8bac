package storage

import (
	"fmt"
	"sort"
	"strings"
)

// Variables holds graph-level key/value pairs. Keys follow property key rules
// and values may not be nil.
type Variables struct {
	values map[string]any
}

func newVariables() *Variables {
	return &Variables{values: make(map[string]any)}
}

// Set stores value under key.
func (vs *Variables) Set(key string, value any) error {
	if err := validateProperty(key, value); err != nil {
		return err
	}
	vs.values[key] = value
	return nil
}

// Get returns the value of key.
func (vs *Variables) Get(key string) (any, bool) {
	v, ok := vs.values[key]
	return v, ok
}

// Remove deletes key and reports whether it existed.
func (vs *Variables) Remove(key string) bool {
	if _, ok := vs.values[key]; !ok {
		return false
	}
	delete(vs.values, key)
	return true
}

// Keys returns the variable names, sorted.
func (vs *Variables) Keys() []string {
	keys := make([]string, 0, len(vs.values))
	for k := range vs.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AsMap returns a copy of the variables.
func (vs *Variables) AsMap() map[string]any {
	out := make(map[string]any, len(vs.values))
	for k, v := range vs.values {
		out[k] = v
	}
	return out
}

// Len returns the number of variables.
func (vs *Variables) Len() int {
	return len(vs.values)
}

func (vs *Variables) clear() {
	clear(vs.values)
}

func (vs *Variables) String() string {
	var b strings.Builder
	b.WriteString("variables[")
	for i, k := range vs.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, vs.values[k])
	}
	b.WriteString("]")
	return b.String()
}
