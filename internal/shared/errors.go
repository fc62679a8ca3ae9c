package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the caller is not authorized for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when the CSRF token is absent.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ConflictError reports a uniqueness violation on a single field so forms
// can surface it next to the offending input.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already taken", e.Field)
}

// Is makes errors.Is(err, ErrConflict) hold for any ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Conflict builds a ConflictError for the given form field.
func Conflict(field string) error {
	return &ConflictError{Field: field}
}

// ConflictField extracts the field name from a conflict error, if any.
func ConflictField(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// ValidationError carries per-field validation messages. Nothing has been
// mutated when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// UserSafeMessage returns a message suitable for end users, hiding storage
// internals behind a generic phrase.
func UserSafeMessage(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrConflict):
		if f := ConflictField(err); f != "" {
			return "The " + f + " is already taken"
		}
		return "A record with those details already exists"
	case errors.As(err, &ve):
		return "Some fields are invalid, please review them"
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to perform this action"
	default:
		return "Something went wrong, please try again"
	}
}
