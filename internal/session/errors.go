package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrConflict matches any *ConflictError through errors.Is.
var ErrConflict = errors.New("session: overlaps a joined session")

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error. The first message per field wins.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// Merge copies entries from another validation error into the receiver.
func (v *ValidationError) Merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.Add(field, msg)
	}
}

// ConflictError reports the joined session that blocks a transition.
type ConflictError struct {
	Conflicting Session
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	title := strings.TrimSpace(e.Conflicting.Title)
	if title == "" {
		return fmt.Sprintf("overlaps joined session %s", e.Conflicting.ID)
	}
	return fmt.Sprintf("overlaps joined session %q (%s)", title, e.Conflicting.ID)
}

// Is makes errors.Is(err, ErrConflict) succeed for conflict errors.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
