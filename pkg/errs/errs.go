// Package errs defines the error taxonomy shared by every subledger package.
//
// Errors are built with cockroachdb/errors and tagged with one of the sentinel
// marks below. Callers classify with errors.Is, never by message.
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinel marks. Anything not marked with one of these is fatal.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable")
	ErrValidation    = errors.New("validation failed")
)

// Builder marks an existing error fluently:
//
//	errs.From(err).WithHint("request body must be valid JSON").Mark(errs.ErrValidation)
type Builder struct {
	err error
}

// From wraps an existing error
func From(err error) *Builder {
	return &Builder{err: err}
}

// WithHint attaches a user-facing hint
func (b *Builder) WithHint(hint string) *Builder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

// Mark tags the error with a sentinel and returns it
func (b *Builder) Mark(mark error) error {
	return errors.Mark(b.err, mark)
}

// NotFoundf is shorthand for a NotFound error
func NotFoundf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrNotFound)
}

// Conflictf is shorthand for a Conflict error
func Conflictf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrConflict)
}

// Unprocessablef is shorthand for an Unprocessable error
func Unprocessablef(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrUnprocessable)
}

// Validationf is shorthand for a Validation error
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrValidation)
}

// IsNotFound reports whether err is marked NotFound
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is marked Conflict
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnprocessable reports whether err is marked Unprocessable
func IsUnprocessable(err error) bool { return errors.Is(err, ErrUnprocessable) }

// IsValidation reports whether err is marked Validation
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsExpected reports whether err is one of the non-fatal outcomes.
// Expected outcomes are not logged at error level.
func IsExpected(err error) bool {
	return IsNotFound(err) || IsConflict(err) || IsUnprocessable(err) || IsValidation(err)
}

// HTTPStatus maps an error to its HTTP status code
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsUnprocessable(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to API clients.
// Fatal errors never leak their cause.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if !IsExpected(err) {
		return "internal server error"
	}
	msg := err.Error()
	if hints := errors.FlattenHints(err); hints != "" {
		msg = fmt.Sprintf("%s (%s)", msg, strings.ReplaceAll(hints, "\n--\n", "; "))
	}
	return msg
}
