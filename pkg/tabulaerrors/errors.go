// Package tabulaerrors provides the typed error taxonomy shared by the training
// and inference pipelines.
//
// # Overview
//
// Every failure a pipeline can hit is fatal to the current run: there is no
// retryable class because all I/O is local and synchronous. Errors carry a Type
// used by the CLI to report the cause, an optional wrapped Cause, free-form
// Details and the call stack at the point of creation.
//
// # Basic Usage
//
//	if rows == 0 {
//	    return tabulaerrors.New(tabulaerrors.ErrorTypeEmptyDataset, "no rows to train on").
//	        WithDetail("path", path)
//	}
//
//	if err := os.Rename(tmp, path); err != nil {
//	    return tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeArtifactWriteFailed, "failed to commit schema")
//	}
//
// # Thread Safety
//
// Error instances are not safe for concurrent modification. Finish adding
// details before sharing an error across goroutines.
package tabulaerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeEmptyDataset is returned when a training stream yields no rows
	ErrorTypeEmptyDataset ErrorType = "empty_dataset"
	// ErrorTypeSchemaMismatch is returned when a row's field set diverges from the established feature order
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeMissingFeature is returned when a feature order name is absent at vectorization time
	ErrorTypeMissingFeature ErrorType = "missing_feature"
	// ErrorTypeArtifactMissing is returned when a schema or model artifact does not exist
	ErrorTypeArtifactMissing ErrorType = "artifact_missing"
	// ErrorTypeArtifactCorrupt is returned when an artifact exists but cannot be decoded
	ErrorTypeArtifactCorrupt ErrorType = "artifact_corrupt"
	// ErrorTypeArtifactWriteFailed is returned when artifacts could not be persisted
	ErrorTypeArtifactWriteFailed ErrorType = "artifact_write_failed"
	// ErrorTypeInvalidValue is returned for cells that cannot be coerced to a number
	ErrorTypeInvalidValue ErrorType = "invalid_value"
	// ErrorTypeSource is returned for I/O failures while streaming a dataset
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeOutput is returned when the prediction table cannot be written
	ErrorTypeOutput ErrorType = "output"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCanceled is returned when a run is interrupted between rows
	ErrorTypeCanceled ErrorType = "canceled"
	// ErrorTypeInternal represents internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
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

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with a type and message. If err is already a
// structured Error its stack is preserved. Returns nil if err is nil.
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

// IsType reports whether any error in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
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

// TypeOf returns the type of the outermost structured error in err's chain,
// or ErrorTypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsFatal reports whether err must abort the current run. Every error class
// is fatal; the function exists so callers state the policy explicitly.
func IsFatal(err error) bool {
	return err != nil
}

// captureStack captures the call stack, skipping the given number of frames.
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
