package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents internal error codes for collection operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Client errors (4xx equivalent)
	ErrCodeInvalidEvent    ErrorCode = 1000
	ErrCodePageNotFound    ErrorCode = 1001
	ErrCodeInvalidArgument ErrorCode = 1002

	// Server errors (5xx equivalent)
	ErrCodeInternal            ErrorCode = 2000
	ErrCodeSnapshotNotFound    ErrorCode = 2001
	ErrCodeSnapshotCorrupted   ErrorCode = 2002
	ErrCodeSnapshotUnavailable ErrorCode = 2003
	ErrCodeStreamFailed        ErrorCode = 2004
)

// CollectionError represents a structured error with code and context
type CollectionError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CollectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *CollectionError) Unwrap() error {
	return e.Cause
}

// New creates a CollectionError with the given code and message
func New(code ErrorCode, message string) *CollectionError {
	return &CollectionError{Code: code, Message: message}
}

// Wrap creates a CollectionError wrapping an underlying cause
func Wrap(code ErrorCode, message string, cause error) *CollectionError {
	return &CollectionError{Code: code, Message: message, Cause: cause}
}

// HTTPStatus maps an error code to an HTTP status for the report surface
func HTTPStatus(code ErrorCode) int {
	switch {
	case code == ErrCodeOK:
		return http.StatusOK
	case code == ErrCodePageNotFound:
		return http.StatusNotFound
	case code >= 1000 && code < 2000:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the error code from an error, if it carries one
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var ce *CollectionError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}
