// Package narrow recovers engine-native elements from values known only to
// satisfy the abstract structure interfaces.
//
// Every attempt is classified into exactly one Outcome and counted on the
// Narrower that made it. Narrowing never panics and never returns an error:
// a failed attempt yields the zero value and is visible only in Statistics.
//
// Example:
//
//	n := narrow.New()
//	v, outcome := narrow.To[*storage.Vertex, structure.Vertex](n, narrow.KindVertex, obj)
//	if outcome != narrow.DirectMatch {
//		return nil, false
//	}
package narrow

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Kind names the element kind a narrowing targets.
type Kind string

// Element kinds.
const (
	KindVertex Kind = "vertex"
	KindEdge   Kind = "edge"
)

// Outcome classifies a narrowing attempt.
type Outcome string

// Outcomes. Only DirectMatch succeeds.
const (
	// NullInput: the value was nil or a typed nil.
	NullInput Outcome = "null_input"
	// DirectMatch: the value already is the native type.
	DirectMatch Outcome = "direct_match"
	// ForeignUnsupported: the value satisfies the abstract interface but was
	// produced by another implementation.
	ForeignUnsupported Outcome = "foreign_unsupported"
	// TypeMismatch: the value does not satisfy the abstract interface.
	TypeMismatch Outcome = "type_mismatch"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{NullInput, DirectMatch, ForeignUnsupported, TypeMismatch}

type statKey struct {
	kind    Kind
	outcome Outcome
}

// Narrower performs narrowing and owns its statistics. It is safe for
// concurrent use.
type Narrower struct {
	log      logrus.FieldLogger
	counters sync.Map // statKey -> *atomic.Int64
}

// Option configures a Narrower.
type Option func(*Narrower)

// WithLogger sets the logger for failed narrowings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(n *Narrower) {
		if log != nil {
			n.log = log
		}
	}
}

// New creates a Narrower with empty statistics.
func New(opts ...Option) *Narrower {
	n := &Narrower{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// To narrows obj to the native type C. A is the abstract interface that
// separates foreign elements from unrelated values.
func To[C any, A any](n *Narrower, kind Kind, obj any) (C, Outcome) {
	var zero C
	outcome := classify[C, A](obj)
	n.record(kind, outcome)

	switch outcome {
	case DirectMatch:
		return obj.(C), outcome
	case ForeignUnsupported, TypeMismatch:
		n.log.WithFields(logrus.Fields{
			"kind":    kind,
			"outcome": outcome,
			"type":    fmt.Sprintf("%T", obj),
		}).Debug("element narrowing failed")
	}
	return zero, outcome
}

// All narrows every member of objs and drops the ones that fail.
func All[C any, A any](n *Narrower, kind Kind, objs []any) []C {
	out := make([]C, 0, len(objs))
	for _, obj := range objs {
		if c, outcome := To[C, A](n, kind, obj); outcome == DirectMatch {
			out = append(out, c)
		}
	}
	return out
}

func classify[C any, A any](obj any) Outcome {
	if IsNil(obj) {
		return NullInput
	}
	if _, ok := obj.(C); ok {
		return DirectMatch
	}
	if _, ok := obj.(A); ok {
		return ForeignUnsupported
	}
	return TypeMismatch
}

// IsNil reports nil interfaces and interfaces holding a nil pointer, map,
// slice, func, chan or interface.
func IsNil(obj any) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (n *Narrower) record(kind Kind, outcome Outcome) {
	c, ok := n.counters.Load(statKey{kind, outcome})
	if !ok {
		c, _ = n.counters.LoadOrStore(statKey{kind, outcome}, new(atomic.Int64))
	}
	c.(*atomic.Int64).Add(1)
}

// Statistics is a snapshot of narrowing counts per kind and outcome.
type Statistics map[Kind]map[Outcome]int64

// Count returns the number of attempts for kind that ended in outcome.
func (s Statistics) Count(kind Kind, outcome Outcome) int64 {
	return s[kind][outcome]
}

// Attempts returns the number of attempts for kind.
func (s Statistics) Attempts(kind Kind) int64 {
	var total int64
	for _, c := range s[kind] {
		total += c
	}
	return total
}

// SuccessRate returns the share of attempts for kind that matched directly.
func (s Statistics) SuccessRate(kind Kind) float64 {
	attempts := s.Attempts(kind)
	if attempts == 0 {
		return 0
	}
	return float64(s.Count(kind, DirectMatch)) / float64(attempts)
}

// Kinds returns the kinds with at least one attempt, sorted.
func (s Statistics) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Statistics returns a snapshot of the counters.
func (n *Narrower) Statistics() Statistics {
	stats := make(Statistics)
	n.counters.Range(func(k, v any) bool {
		key := k.(statKey)
		count := v.(*atomic.Int64).Load()
		if count == 0 {
			return true
		}
		if stats[key.kind] == nil {
			stats[key.kind] = make(map[Outcome]int64, len(Outcomes))
		}
		stats[key.kind][key.outcome] = count
		return true
	})
	return stats
}

// Clear zeroes every counter.
func (n *Narrower) Clear() {
	n.counters.Range(func(_, v any) bool {
		v.(*atomic.Int64).Store(0)
		return true
	})
}
