// Package convert provides value conversion utilities for the graph engine.
//
// It consolidates numeric coercion and canonical value keys so that the
// cardinality checks, the authoritative indexes, the index cache and the id
// managers all agree on when two property values are "the same".
//
// Key Functions:
//   - ToFloat64 / ToInt64 / ToInt32: lenient numeric coercion (strings parsed)
//   - Number: strict numeric coercion (Go numeric kinds only)
//   - ValueKey: canonical, type-aware string form of a property value
//   - ValuesEqual: value equality via ValueKey
//
// All conversion functions return a success boolean to allow callers to handle
// conversion failures gracefully.
//
// Example:
//
//	if f, ok := convert.Number(v); ok {
//		// v is a Go number, f its float64 form
//	}
//
//	convert.ValuesEqual(30, int64(30)) // true
//	convert.ValuesEqual(30, "30")      // false
package convert

import (
	"math"
	"strconv"
)

// ToFloat64 converts numeric types, and strings holding a number, to float64.
// Returns (value, true) on success, (0, false) on failure.
//
// String parsing uses strconv.ParseFloat, so "3.14", "1.5e-3", "NaN" and
// "Inf" are accepted.
func ToFloat64(v any) (float64, bool) {
	if f, ok := Number(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Number converts Go numeric kinds to float64. Unlike ToFloat64 it never
// parses strings, which is what ordered indexes want.
func Number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

// ToInt64 converts integer kinds, integral floats and decimal strings to int64.
// Fractional floats and out-of-range values fail.
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		return integral(val)
	case float32:
		return integral(float64(val))
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// ToInt32 is ToInt64 restricted to the int32 range.
func ToInt32(v any) (int32, bool) {
	i, ok := ToInt64(v)
	if !ok || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
