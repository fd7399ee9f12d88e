package messages

import (
	"errors"
	"fmt"
	"math"
)

// ErrValidation is the sentinel wrapped by every ValidationError so callers
// can match with errors.Is without caring about the field.
var ErrValidation = errors.New("message validation failed")

// ValidationError reports a single field outside its documented bound.
type ValidationError struct {
	Message string // message type, e.g. "Detection"
	Field   string
	Value   interface{}
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s.%s=%v: %s", e.Message, e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(msg, field string, value interface{}, reason string) error {
	return &ValidationError{Message: msg, Field: field, Value: value, Reason: reason}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// checkUnit validates a [0,1] ratio or confidence.
func checkUnit(msg, field string, v float64) error {
	if !isFinite(v) || v < 0 || v > 1 {
		return invalid(msg, field, v, "must be within [0, 1]")
	}
	return nil
}

func checkNonNegative(msg, field string, v float64) error {
	if !isFinite(v) || v < 0 {
		return invalid(msg, field, v, "must be finite and >= 0")
	}
	return nil
}

func checkFinite(msg, field string, v float64) error {
	if !isFinite(v) {
		return invalid(msg, field, v, "must be finite")
	}
	return nil
}
