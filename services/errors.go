package services

import (
	"fmt"
	"strings"
)

// ValidationError carries every problem found in a request, not just the first.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// NotFoundError reports a missing entity by its identifying key.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// ReferenceError lists every id that points at a non-existent entity.
type ReferenceError struct {
	Entity string
	IDs    []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("Invalid %s(s): %s", e.Entity, strings.Join(e.IDs, ", "))
}

// validationErrors accumulates messages and turns into a *ValidationError when non-empty
type validationErrors []string

func (v *validationErrors) add(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v validationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Messages: v}
}
