// Package scanerrors provides structured error handling for packscan with
// error categorization, key-value context and stack traces.
//
// # Overview
//
// Every fatal condition of a scan surfaces as an *Error whose Type tells the
// caller what went wrong:
//   - ErrorTypeColumnNotFound: a logical column is absent from a catalog
//   - ErrorTypeUnsupportedType: a column type has no decode or cost strategy
//   - ErrorTypeSegmentOpen: the segment opener failed
//   - ErrorTypeSegmentClose: a handle failed to close (logged, never returned)
//
// # Basic Usage
//
//	err := scanerrors.New(scanerrors.ErrorTypeColumnNotFound, "column not found").
//	    WithDetail("column", name).
//	    WithDetail("segment", segmentID)
//
//	if scanerrors.IsType(err, scanerrors.ErrorTypeColumnNotFound) {
//	    // abort the scan
//	}
//
// # Thread Safety
//
// Error instances are not safe for concurrent modification. Finish adding
// details before sharing an error across goroutines.
package scanerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	// ErrorTypeInternal represents programming errors and broken invariants
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments or setup input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeColumnNotFound represents a logical column missing from a catalog
	ErrorTypeColumnNotFound ErrorType = "column_not_found"
	// ErrorTypeUnsupportedType represents a data type without a decode or cost strategy
	ErrorTypeUnsupportedType ErrorType = "unsupported_type"
	// ErrorTypeSegmentOpen represents an I/O failure while opening a segment
	ErrorTypeSegmentOpen ErrorType = "segment_open"
	// ErrorTypeSegmentClose represents an I/O failure while closing a segment
	ErrorTypeSegmentClose ErrorType = "segment_close"
	// ErrorTypeData represents malformed or inconsistent pack data
	ErrorTypeData ErrorType = "data"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file and blob operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error is a structured error carrying a category, a message, an optional
// cause, free-form details and the call stack at creation.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame of the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type and captures the call stack.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps err with a type and message. If err already is an *Error its
// stack is kept. Returns nil if err is nil.
//
// Example:
//
//	seg, err := opener.Open(ctx, id)
//	if err != nil {
//	    return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeSegmentOpen, "failed to open segment").
//	        WithDetail("segment", id)
//	}
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether the outermost *Error in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// HasType reports whether any *Error in err's chain has the given type.
// Unlike IsType it looks through wrapping layers of other types.
func HasType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsFatal reports whether err must abort a scan. Every categorized error
// except a segment close failure is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsType(err, ErrorTypeSegmentClose)
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
