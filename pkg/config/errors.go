package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidConfig matches every *ConfigurationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigurationError reports a rejected configuration value.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(field string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidConfig) match.
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

// PositiveInt returns a ConfigurationError unless v > 0.
func PositiveInt(field string, v int) error {
	if v <= 0 {
		return NewConfigurationError(field, v, "must be positive")
	}
	return nil
}

// PositiveDuration returns a ConfigurationError unless d > 0.
func PositiveDuration(field string, d time.Duration) error {
	if d <= 0 {
		return NewConfigurationError(field, d, "must be positive")
	}
	return nil
}
