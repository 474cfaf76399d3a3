package core

import (
	"time"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a requested object does not exist (or is not visible to the caller).
type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{msg: msg}
}

func (err NotFoundError) Error() string { return err.msg }

// PermissionError is returned when the caller is not allowed to perform an operation.
type PermissionError struct {
	msg string
}

func NewPermissionError(msg string) *PermissionError {
	return &PermissionError{msg: msg}
}

func (err PermissionError) Error() string { return err.msg }

// ConflictError is returned when an operation clashes with the current state of an object,
// eg. enrolling into a full course.
type ConflictError struct {
	msg string
}

func NewConflictError(msg string) *ConflictError {
	return &ConflictError{msg: msg}
}

func (err ConflictError) Error() string { return err.msg }

// RateLimitError is returned when a caller exceeded its quota.
type RateLimitError struct {
	RetryAfter time.Duration
}

func NewRateLimitError(retryAfter time.Duration) error {
	return &RateLimitError{RetryAfter: retryAfter}
}

func (err RateLimitError) Error() string {
	return "too many requests, please try again in " + err.RetryAfter.Round(time.Second).String()
}

// UnavailableError is returned when an upstream provider failed. Msg is safe to show to users.
type UnavailableError struct {
	Msg string
	Err error
}

func NewUnavailableError(msg string, err error) error {
	return &UnavailableError{Msg: msg, Err: err}
}

func (err UnavailableError) Error() string {
	if err.Err == nil {
		return err.Msg
	}
	return err.Msg + ": " + err.Err.Error()
}

func (err UnavailableError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// IsNotFound reports whether the cause of err is a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}
