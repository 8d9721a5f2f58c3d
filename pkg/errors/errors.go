// Package errors provides structured error types for oreflow.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a loose naming convention:
//   - INVALID_*, EMPTY_*, NON_*, UNKNOWN_*: map and configuration validation failures
//   - *_NOT_FOUND: missing files
//   - NOT_OPTIMAL, SOLVER_FAILURE, TIMEOUT: outcomes at the solver boundary
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNonRectangular, "row %d has %d cells, want %d", y, n, w)
//	if errors.Is(err, errors.ErrCodeNonRectangular) {
//	    // Handle load error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFileNotFound, origErr, "open map %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidMap     Code = "INVALID_MAP"
	ErrCodeEmptyMap       Code = "EMPTY_MAP"
	ErrCodeNonRectangular Code = "NON_RECTANGULAR"
	ErrCodeUnknownSymbol  Code = "UNKNOWN_SYMBOL"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Solver boundary
	ErrCodeNotOptimal    Code = "NOT_OPTIMAL"
	ErrCodeSolverFailure Code = "SOLVER_FAILURE"
	ErrCodeTimeout       Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any *Error in err's chain carries code, so a load
// failure keeps its code after the pipeline wraps it with context.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsLoadError reports whether err rejects a map before any model is built.
func IsLoadError(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidMap, ErrCodeEmptyMap, ErrCodeNonRectangular, ErrCodeUnknownSymbol, ErrCodeFileNotFound:
		return true
	}
	return false
}

// PositionError locates a problem inside a map file.
type PositionError struct {
	Row    int  // 1-based line number
	Column int  // 1-based column
	Symbol rune // offending character
}

// Error implements the error interface.
func (e *PositionError) Error() string {
	return fmt.Sprintf("line %d, column %d: unexpected %q", e.Row, e.Column, e.Symbol)
}

// Code returns the error code for this error type.
func (e *PositionError) Code() Code {
	return ErrCodeUnknownSymbol
}
