package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation is the sentinel behind every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConfirmationRequired is returned when a task would enter Completed
	// without the caller confirming it.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrNotAuthenticated is returned by session operations that need a
	// logged-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ValidationError carries per-field messages keyed by json field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// collect returns nil when fields is empty.
func collect(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
