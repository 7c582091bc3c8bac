package convert

import (
	"fmt"
	"strconv"
)

// ValueKey returns the canonical string form of a property value.
//
// Integer kinds and integral floats share one form ("n:30" for 30, int64(30)
// and 30.0), other floats use the shortest float form ("n:30.5"), strings and
// booleans are tagged by kind, and everything else falls back to "%T:%v".
// Two values are equal for cardinality and index purposes exactly when their
// keys are equal.
func ValueKey(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	case []byte:
		return "x:" + string(val)
	}
	if i, ok := intKey(v); ok {
		return "n:" + strconv.FormatInt(i, 10)
	}
	if f, ok := Number(v); ok {
		if i, ok := integral(f); ok {
			return "n:" + strconv.FormatInt(i, 10)
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	if s, ok := v.(fmt.Stringer); ok {
		return fmt.Sprintf("%T:%s", v, s.String())
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// ValuesEqual reports whether a and b have the same canonical value key.
func ValuesEqual(a, b any) bool {
	return ValueKey(a) == ValueKey(b)
}

// IsNumeric reports whether v is a Go numeric kind.
func IsNumeric(v any) bool {
	_, ok := Number(v)
	return ok
}

// intKey avoids the float64 round trip for integers beyond 2^53.
func intKey(v any) (int64, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint, uint64:
		return ToInt64(v)
	}
	return 0, false
}
