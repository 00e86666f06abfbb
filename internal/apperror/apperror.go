// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values wrapping one of the sentinels below.
// The HTTP layer is the only place that knows how a sentinel maps to a
// status code (see handler/response.go).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream error")
)

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error        // sentinel, matched with errors.Is
	Message string       // human-readable message
	Field   string       // optional: single field causing the error
	Fields  []FieldError // optional: every invalid field
	Cause   error        // optional: underlying failure (upstream errors)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is works
// against either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// ValidationErrors bundles several field failures into one error.
// The message of the first field becomes the top-level message.
func ValidationErrors(fields ...FieldError) *AppError {
	msg := "validation failed"
	field := ""
	if len(fields) == 1 {
		msg = fields[0].Message
		field = fields[0].Field
	}
	return &AppError{
		Err:     ErrValidation,
		Message: msg,
		Field:   field,
		Fields:  fields,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is used for missing or bad credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Upstream wraps a failure of an external provider (Google).
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}
