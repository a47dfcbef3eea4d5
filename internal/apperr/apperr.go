// Package apperr defines the error taxonomy shared by the bot flows.
// Errors expose Code() so handler summary logging can derive err_code.
package apperr

import (
	"errors"
	"fmt"
)

const (
	// CodePermissionDenied marks attempts to use a privileged flow.
	CodePermissionDenied = "PERMISSION_DENIED"
	// CodeValidationFailed marks user input rejected by a guard.
	CodeValidationFailed = "VALIDATION_FAILED"
	// CodeNotFound marks lookups that matched nothing.
	CodeNotFound = "NOT_FOUND"
	// CodeConflict marks writes rejected by a uniqueness or state invariant.
	CodeConflict = "CONFLICT"
	// CodeTransportFailure marks outbound delivery problems.
	CodeTransportFailure = "TRANSPORT_FAILURE"
)

// Error carries a stable code alongside the message and optional cause.
type Error struct {
	code string
	msg  string
	err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Code returns the stable taxonomy code.
func (e *Error) Code() string { return e.code }

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// PermissionDenied builds a PERMISSION_DENIED error.
func PermissionDenied(msg string) *Error {
	return &Error{code: CodePermissionDenied, msg: msg}
}

// Validation builds a VALIDATION_FAILED error.
func Validation(msg string) *Error {
	return &Error{code: CodeValidationFailed, msg: msg}
}

// NotFound builds a NOT_FOUND error.
func NotFound(msg string) *Error {
	return &Error{code: CodeNotFound, msg: msg}
}

// Conflict builds a CONFLICT error wrapping an optional cause.
func Conflict(msg string, cause error) *Error {
	return &Error{code: CodeConflict, msg: msg, err: cause}
}

// Transport builds a TRANSPORT_FAILURE error wrapping the delivery error.
func Transport(msg string, cause error) *Error {
	return &Error{code: CodeTransportFailure, msg: msg, err: cause}
}

// CodeOf returns the taxonomy code of err, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// IsPermissionDenied reports whether err carries CodePermissionDenied.
func IsPermissionDenied(err error) bool { return CodeOf(err) == CodePermissionDenied }

// IsValidation reports whether err carries CodeValidationFailed.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidationFailed }

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict reports whether err carries CodeConflict.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }
