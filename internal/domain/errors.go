package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCategory         = errors.New("invalid attack mode")
	ErrUnknownCategoricalValue = errors.New("unknown categorical value")
	ErrMalformedRow            = errors.New("malformed feature row")
	ErrLoadFailure             = errors.New("load failure")
)

type InvalidCategoryError struct {
	Input string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid attack mode: %q", NormalizeCategory(e.Input))
}

func (e *InvalidCategoryError) Unwrap() error { return ErrInvalidCategory }

// UnknownCategoricalValueError is returned when an encoder has never seen a value.
type UnknownCategoricalValueError struct {
	Field string
	Value string
}

func (e *UnknownCategoricalValueError) Error() string {
	return fmt.Sprintf("%s: y contains previously unseen label %q", e.Field, e.Value)
}

func (e *UnknownCategoricalValueError) Unwrap() error { return ErrUnknownCategoricalValue }

type MalformedRowError struct {
	Missing []string
	Field   string
	Reason  string
}

func (e *MalformedRowError) Error() string {
	if len(e.Missing) > 0 {
		return "missing features: " + strings.Join(e.Missing, ", ")
	}
	if e.Field != "" {
		return fmt.Sprintf("feature %s: %s", e.Field, e.Reason)
	}
	return "malformed row: " + e.Reason
}

func (e *MalformedRowError) Unwrap() error { return ErrMalformedRow }

// LoadError describes a startup artifact or dataset that could not be loaded.
type LoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s from %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailure, e.Err} }

// ErrorKind maps an inference error to a short label used in metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownCategoricalValue):
		return "unknown_categorical_value"
	case errors.Is(err, ErrMalformedRow):
		return "malformed_row"
	case errors.Is(err, ErrInvalidCategory):
		return "invalid_category"
	case errors.Is(err, ErrLoadFailure):
		return "load_failure"
	default:
		return "internal"
	}
}
