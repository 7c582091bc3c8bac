package storage

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrGraphClosed      = errors.New("graph closed")
	ErrIterationStopped = errors.New("iteration stopped") // Sentinel to stop ForEach early

	ErrValidation       = errors.New("validation failed")
	ErrDuplicateValue   = errors.New("duplicate value")
	ErrPropertyNotFound = errors.New("property not found")
)

// ValidationError rejects an argument before any state changes.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DuplicateValueError rejects adding a value already present under a
// set-cardinality key.
type DuplicateValueError struct {
	Key   string
	Value any
}

func (e *DuplicateValueError) Error() string {
	return fmt.Sprintf("duplicate value for set property %q: %v", e.Key, e.Value)
}

// Is matches ErrDuplicateValue.
func (e *DuplicateValueError) Is(target error) bool {
	return target == ErrDuplicateValue
}

// PropertyNotFoundError reports a read of an absent property.
type PropertyNotFoundError struct {
	Key     string
	Element string
}

func (e *PropertyNotFoundError) Error() string {
	return fmt.Sprintf("property %q not found on %s", e.Key, e.Element)
}

// Is matches ErrPropertyNotFound.
func (e *PropertyNotFoundError) Is(target error) bool {
	return target == ErrPropertyNotFound
}
