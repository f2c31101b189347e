package models

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one of the closed set of failure reasons surfaced to
// callers. Codes classify errors for user-facing rendering and monitoring.
type ErrorCode string

const (
	// CodeRateLimited indicates the principal exceeded its quota window.
	CodeRateLimited ErrorCode = "RATE_LIMITED"

	// CodeModelExecution indicates the model-invocation collaborator failed.
	CodeModelExecution ErrorCode = "MODEL_EXECUTION_FAILED"

	// CodePermissionDenied indicates a dispatch-layer authorization failure.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// CodeDuplicateTool indicates a catalog add collided without overwrite.
	CodeDuplicateTool ErrorCode = "DUPLICATE_TOOL"
)

// Error is the typed error carried across component boundaries. It pairs a
// code from the closed taxonomy with a human-readable message and an
// optional underlying cause.
type Error struct {
	// Code categorizes the failure for rendering and handling.
	Code ErrorCode

	// Message is the human-readable description shown to end users.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause so errors.Is and errors.As work.
func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the text suitable for showing to the end user,
// without internal detail from the wrapped cause.
func (e *Error) UserMessage() string {
	return e.Message
}

// NewError creates a typed error with the given code and message.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrRateLimited creates a RATE_LIMITED error.
func ErrRateLimited(message string) *Error {
	return NewError(CodeRateLimited, message, nil)
}

// ErrModelExecution creates a MODEL_EXECUTION_FAILED error wrapping the
// collaborator's failure.
func ErrModelExecution(message string, err error) *Error {
	return NewError(CodeModelExecution, message, err)
}

// ErrPermissionDenied creates a PERMISSION_DENIED error.
func ErrPermissionDenied(message string) *Error {
	return NewError(CodePermissionDenied, message, nil)
}

// ErrDuplicateTool creates a DUPLICATE_TOOL error for the named tool.
func ErrDuplicateTool(name string) *Error {
	return NewError(CodeDuplicateTool, fmt.Sprintf("tool already registered: %s", name), nil)
}

// AsError extracts a typed *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err, or the empty string when err is
// not a typed error.
func CodeOf(err error) ErrorCode {
	if typed, ok := AsError(err); ok {
		return typed.Code
	}
	return ""
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
