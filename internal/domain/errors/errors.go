// Package errors provides the classified error taxonomy for document sync.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrSourceNotFound      = errors.New("source not found")
	ErrDestinationNotFound = errors.New("destination not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTransient           = errors.New("transient transport failure")
	ErrPartialWrite        = errors.New("partial write")
	ErrMappingNotFound     = errors.New("mapping not found")
	ErrPendingNotFound     = errors.New("pending write not found")
	ErrInvalidRecord       = errors.New("mapping record has no identifier")
	ErrUnknownDirection    = errors.New("unknown sync direction")
	ErrCreateUnsupported   = errors.New("destination does not support document creation")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeSourceNotFound      ErrorCode = "SOURCE_NOT_FOUND"
	CodeDestinationNotFound ErrorCode = "DESTINATION_NOT_FOUND"
	CodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	CodeTransient           ErrorCode = "TRANSIENT"
	CodePartialWrite        ErrorCode = "PARTIAL_WRITE"
	CodeUnsupportedBlock    ErrorCode = "UNSUPPORTED_BLOCK_KIND"
	CodeValidation          ErrorCode = "VALIDATION"
	CodeStore               ErrorCode = "STORE"
)

// ReauthorizeHint is appended to unauthorized errors.
const ReauthorizeHint = "check the access token for this service and re-authorize"

// SyncError wraps errors with a classification and context for reporting.
type SyncError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel that corresponds to the error code, so callers can
// test classification without unwrapping.
func (e *SyncError) Is(target error) bool {
	switch e.Code {
	case CodeSourceNotFound:
		return target == ErrSourceNotFound
	case CodeDestinationNotFound:
		return target == ErrDestinationNotFound
	case CodeUnauthorized:
		return target == ErrUnauthorized
	case CodeTransient:
		return target == ErrTransient
	case CodePartialWrite:
		return target == ErrPartialWrite
	}
	return false
}

// Retryable reports whether re-running the operation may succeed without
// user intervention.
func (e *SyncError) Retryable() bool {
	return e.Code == CodeTransient
}

// NewError creates a new SyncError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *SyncError {
	return &SyncError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error's context and returns the error.
func WithContext(err *SyncError, key string, value interface{}) *SyncError {
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context[key] = value
	return err
}

// Unauthorized builds an UNAUTHORIZED error carrying re-authorization guidance.
func Unauthorized(service string, cause error) *SyncError {
	return NewError(CodeUnauthorized, fmt.Sprintf("%s denied access; %s", service, ReauthorizeHint), cause)
}

// PartialWrite builds a PARTIAL_WRITE error recording how many blocks were
// committed before the failing window.
func PartialWrite(committed, total int, cause error) *SyncError {
	err := NewError(CodePartialWrite,
		fmt.Sprintf("wrote %d of %d blocks before failure", committed, total), cause)
	WithContext(err, "committed", committed)
	WithContext(err, "total", total)
	return err
}

// AsSourceError reclassifies a fetch failure: a not-found from a client is a
// missing source. Other classified errors pass through unchanged.
func AsSourceError(err error) *SyncError {
	return reclassify(err, CodeSourceNotFound, "source")
}

// AsDestinationError reclassifies a write failure: a not-found from a client is
// a missing destination.
func AsDestinationError(err error) *SyncError {
	return reclassify(err, CodeDestinationNotFound, "destination")
}

func reclassify(err error, notFound ErrorCode, role string) *SyncError {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		if se.Code == CodeSourceNotFound || se.Code == CodeDestinationNotFound {
			return NewError(notFound, role+" not found", se)
		}
		return se
	}
	return NewError(CodeTransient, role+" request failed", err)
}

// CodeOf extracts the error code from err, or "" if err is not classified.
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err matches target using errors.Is semantics.
// This is a convenience wrapper around the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target and sets target to that error value.
// This is a convenience wrapper around the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
