package narrow

import (
	"fmt"
	"strings"

	"github.com/orneryd/tinkergraph/pkg/structure"
)

// Report describes what a value looks like through the structure interfaces.
// It is meant for humans debugging a failed narrowing.
type Report struct {
	Type string
	Nil  bool

	Element        bool
	Vertex         bool
	Edge           bool
	VertexProperty bool
	Property       bool

	// Native is set by the caller when the value is an engine-native element.
	Native bool

	ID       any
	IDErr    string
	Label    string
	LabelErr string
	Keys     []string
	KeysErr  string
}

// Diagnose inspects obj. Each accessor is called on its own and a panic in
// one is recorded in the report instead of propagating.
func Diagnose(obj any) Report {
	r := Report{Type: fmt.Sprintf("%T", obj), Nil: IsNil(obj)}
	if r.Nil {
		return r
	}

	_, r.Vertex = obj.(structure.Vertex)
	_, r.Edge = obj.(structure.Edge)
	_, r.VertexProperty = obj.(structure.VertexProperty)
	_, r.Property = obj.(structure.Property)

	el, ok := obj.(structure.Element)
	r.Element = ok
	if !ok {
		return r
	}

	r.IDErr = guard(func() { r.ID = el.ID() })
	r.LabelErr = guard(func() { r.Label = el.Label() })
	r.KeysErr = guard(func() { r.Keys = el.Keys() })
	return r
}

// guard runs fn and returns the text of any panic it raised.
func guard(fn func()) (msg string) {
	defer func() {
		if p := recover(); p != nil {
			msg = fmt.Sprint(p)
		}
	}()
	fn()
	return ""
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "type: %s\n", r.Type)
	if r.Nil {
		b.WriteString("  nil value\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  native: %v\n", r.Native)
	fmt.Fprintf(&b, "  element: %v vertex: %v edge: %v vertex_property: %v property: %v\n",
		r.Element, r.Vertex, r.Edge, r.VertexProperty, r.Property)
	if !r.Element {
		return b.String()
	}
	writeField(&b, "id", r.ID, r.IDErr)
	writeField(&b, "label", r.Label, r.LabelErr)
	writeField(&b, "keys", r.Keys, r.KeysErr)
	return b.String()
}

func writeField(b *strings.Builder, name string, value any, errMsg string) {
	if errMsg != "" {
		fmt.Fprintf(b, "  %s: <panic: %s>\n", name, errMsg)
		return
	}
	fmt.Fprintf(b, "  %s: %v\n", name, value)
}
