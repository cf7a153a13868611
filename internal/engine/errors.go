package engine

import (
	"errors"

	"github.com/example/tempvoice/internal/platform"
)

// ValidationError accumulates user-facing problems with a command. Handlers
// collect every message instead of short-circuiting on the first, then
// surface them together.
type ValidationError struct {
	Messages []string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.Messages) == 0 {
		return "validation failed"
	}
	return "validation failed: " + v.Messages[0]
}

// HasErrors reports whether any messages were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Messages) > 0
}

// add records a user-facing message.
func (v *ValidationError) add(message string) {
	v.Messages = append(v.Messages, message)
}

// ErrorKind maps errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, platform.ErrNotFound):
		return "not_found"
	case errors.Is(err, platform.ErrPermission):
		return "permission"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	return "unexpected"
}
