// Package errors provides structured error types for cbzkit.
//
// Every failure the engine reports carries a machine-readable [Code] so the
// CLI can pick an exit message without string matching, and so callers can
// tell fatal run errors from the non-fatal discovery warning.
//
// # Error Codes
//
//   - EMPTY_INPUT: nothing to process after discovery
//   - CORRUPT_PAGE: a page's bytes could not be decoded as an image
//   - WRITE_FAILED: the destination could not be written
//   - PARTIAL_DISCOVERY: some inputs were skipped, enough pages remain
//   - INVALID_INPUT, UNSUPPORTED, ARCHIVE_TOO_LARGE, DRM_PROTECTED, INTERNAL
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "unknown format: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	var corrupt *errors.CorruptPageError
//	if stderrors.As(err, &corrupt) {
//	    fmt.Println("bad page:", corrupt.PageID)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeEmptyInput       Code = "EMPTY_INPUT"
	ErrCodePartialDiscovery Code = "PARTIAL_DISCOVERY"
	ErrCodeUnsupported      Code = "UNSUPPORTED"
	ErrCodeDRMProtected     Code = "DRM_PROTECTED"

	// Page errors
	ErrCodeCorruptPage Code = "CORRUPT_PAGE"

	// Output errors
	ErrCodeWrite            Code = "WRITE_FAILED"
	ErrCodeArchiveTooLarge  Code = "ARCHIVE_TOO_LARGE"
	ErrCodeMetadataTooLarge Code = "METADATA_TOO_LARGE"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// coder is implemented by every error type in this package.
type coder interface {
	ErrorCode() Code
}

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

// ErrorCode returns the error code.
func (e *Error) ErrorCode() Code { return e.Code }

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

// Is reports whether err carries the given error code.
// It walks the error chain and checks the outermost typed error found.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// =============================================================================
// Engine Error Types
// =============================================================================

// EmptyInputError reports that discovery produced no pages to process.
type EmptyInputError struct {
	Input  string // glob, path, or description of what was searched
	Reason string // optional detail ("no matches", "all inputs skipped")
}

func (e *EmptyInputError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no pages to process in %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("no pages to process in %q", e.Input)
}

// ErrorCode returns ErrCodeEmptyInput.
func (e *EmptyInputError) ErrorCode() Code { return ErrCodeEmptyInput }

// CorruptPageError reports a page whose bytes could not be decoded.
type CorruptPageError struct {
	PageID string
	Err    error
}

func (e *CorruptPageError) Error() string {
	return fmt.Sprintf("corrupt page %q: %v", e.PageID, e.Err)
}

func (e *CorruptPageError) Unwrap() error { return e.Err }

// ErrorCode returns ErrCodeCorruptPage.
func (e *CorruptPageError) ErrorCode() Code { return ErrCodeCorruptPage }

// WriteError reports a failure while creating or serializing the output
// archive. The partial destination has already been removed when it is
// returned.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrorCode returns the code of the cause when it has one (for example
// ARCHIVE_TOO_LARGE), otherwise ErrCodeWrite.
func (e *WriteError) ErrorCode() Code {
	if c := GetCode(e.Err); c != "" {
		return c
	}
	return ErrCodeWrite
}

// Skipped describes one input that discovery could not use.
type Skipped struct {
	Input string
	Err   error
}

// PartialDiscoveryWarning lists inputs that were skipped while enough pages
// remained to continue. It is returned alongside a successful result, never
// as the run error.
type PartialDiscoveryWarning struct {
	Skipped []Skipped
}

func (w *PartialDiscoveryWarning) Error() string {
	names := make([]string, 0, len(w.Skipped))
	for _, s := range w.Skipped {
		names = append(names, s.Input)
	}
	return fmt.Sprintf("skipped %d input(s): %s", len(w.Skipped), strings.Join(names, ", "))
}

// ErrorCode returns ErrCodePartialDiscovery.
func (w *PartialDiscoveryWarning) ErrorCode() Code { return ErrCodePartialDiscovery }

// Add records a skipped input.
func (w *PartialDiscoveryWarning) Add(input string, err error) {
	w.Skipped = append(w.Skipped, Skipped{Input: input, Err: err})
}

// Empty reports whether nothing was skipped.
func (w *PartialDiscoveryWarning) Empty() bool {
	return w == nil || len(w.Skipped) == 0
}

// Merge appends the skipped inputs of other.
func (w *PartialDiscoveryWarning) Merge(other *PartialDiscoveryWarning) {
	if other == nil {
		return
	}
	w.Skipped = append(w.Skipped, other.Skipped...)
}
