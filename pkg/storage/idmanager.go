package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/orneryd/tinkergraph/pkg/convert"
)

// IDManager generates element ids and converts user-supplied ones to the
// canonical id type of an element kind.
type IDManager interface {
	// Name is the configuration name of the manager.
	Name() string
	// NextID returns a fresh id for which taken reports false.
	NextID(taken func(id any) bool) any
	// Convert returns the canonical form of id or a *ValidationError.
	Convert(id any) (any, error)
}

// NewIDManager returns the manager registered under name:
//   - long: int64 ids (default)
//   - integer: int32 ids
//   - uuid: uuid.UUID ids
//   - any: ids used as given, generated ones are int64
func NewIDManager(name string) (IDManager, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "long":
		return &longManager{}, nil
	case "integer":
		return &integerManager{}, nil
	case "uuid":
		return uuidManager{}, nil
	case "any":
		return &anyManager{}, nil
	default:
		return nil, newValidationError("id_manager", fmt.Sprintf("unknown id manager %q", name))
	}
}

func conversionError(target string, id any) error {
	return newValidationError("id", fmt.Sprintf(
		"Expected an id that is convertible to %s but received %T - %v", target, id, id))
}

type longManager struct {
	last int64
}

func (m *longManager) Name() string { return "long" }

func (m *longManager) NextID(taken func(any) bool) any {
	for {
		m.last++
		if !taken(m.last) {
			return m.last
		}
	}
}

func (m *longManager) Convert(id any) (any, error) {
	n, ok := convert.ToInt64(id)
	if !ok {
		return nil, conversionError("Long", id)
	}
	return n, nil
}

type integerManager struct {
	last int32
}

func (m *integerManager) Name() string { return "integer" }

func (m *integerManager) NextID(taken func(any) bool) any {
	for {
		m.last++
		if !taken(m.last) {
			return m.last
		}
	}
}

func (m *integerManager) Convert(id any) (any, error) {
	n, ok := convert.ToInt32(id)
	if !ok {
		return nil, conversionError("Integer", id)
	}
	return n, nil
}

type uuidManager struct{}

func (uuidManager) Name() string { return "uuid" }

func (uuidManager) NextID(taken func(any) bool) any {
	for {
		if id := uuid.New(); !taken(id) {
			return id
		}
	}
}

func (uuidManager) Convert(id any) (any, error) {
	switch v := id.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return nil, conversionError("UUID", id)
		}
		return parsed, nil
	case []byte:
		parsed, err := uuid.FromBytes(v)
		if err != nil {
			return nil, conversionError("UUID", id)
		}
		return parsed, nil
	default:
		return nil, conversionError("UUID", id)
	}
}

type anyManager struct {
	last int64
}

func (m *anyManager) Name() string { return "any" }

func (m *anyManager) NextID(taken func(any) bool) any {
	for {
		m.last++
		if !taken(m.last) {
			return m.last
		}
	}
}

func (m *anyManager) Convert(id any) (any, error) {
	if id == nil {
		return nil, conversionError("a non-nil value", id)
	}
	return id, nil
}
