package handler

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError collects messages per request field.
type ValidationError url.Values

// NewValidationError creates an empty ValidationError.
func NewValidationError() ValidationError {
	return make(ValidationError)
}

func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e))
	for field, msgs := range e {
		if len(msgs) > 0 {
			fields = append(fields, fmt.Sprintf("%s: %s", field, msgs[0]))
		}
	}
	slices.Sort(fields)
	return "validation error: " + strings.Join(fields, ", ")
}

// Add records a message for field.
func (e ValidationError) Add(field, message string) {
	url.Values(e).Add(field, message)
}

// Has reports whether field has any message.
func (e ValidationError) Has(field string) bool {
	return len(e[field]) > 0
}

// IsEmpty reports whether no messages were recorded.
func (e ValidationError) IsEmpty() bool {
	return len(e) == 0
}

// Err returns e as an error, or nil when empty.
func (e ValidationError) Err() error {
	if e.IsEmpty() {
		return nil
	}
	return e
}
