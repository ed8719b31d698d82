package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("too many requests")
)

// ValidationError carries per-field messages suitable for re-rendering a form.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

func (v *ValidationError) Has(field string) bool {
	return v != nil && len(v.Fields[field]) > 0
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

// Err returns v as an error, or nil when nothing was recorded.
func (v *ValidationError) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

// ConflictError reports a booking range that is already taken.
type ConflictError struct {
	Reason string
}

func (c *ConflictError) Error() string {
	return c.Reason
}

const overlapReason = "The requested dates overlap an existing booking."

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
