// Package pointers helps with the optional fields of entities, which are
// pointers so that they map to NULL columns.
package pointers

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// To returns a pointer to v
func To[T any](v T) *T {
	return &v
}

// Value returns the value from ptr or the zero value if the pointer is nil
func Value[T any](ptr *T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	return zero
}

// SafeString returns the value from ptr or "" if the pointer is nil
func SafeString(ptr *string) string {
	return Value(ptr)
}

// NonEmpty returns nil for nil pointers and for strings which are empty after
// trimming, otherwise a pointer to the trimmed string
func NonEmpty(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	s := strings.TrimSpace(*ptr)
	if s == "" {
		return nil
	}
	return &s
}

// Day returns a pointer to t truncated to its UTC date, or nil
func Day(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// UUIDOrNil returns the uuid from ptr or uuid.Nil
func UUIDOrNil(ptr *uuid.UUID) uuid.UUID {
	return Value(ptr)
}
