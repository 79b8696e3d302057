// Package errors provides error types and handling for the comparison
// engine.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// InvalidInput represents bad engine input: wrong snapshot count,
	// empty snapshot, malformed record. Fatal; no report is produced.
	InvalidInput
	// UnsupportedBody represents a payload that could not be
	// shape-extracted. Non-fatal; the record degrades to opaque.
	UnsupportedBody
	// Ingest represents log-file reading and parsing failures.
	Ingest
	// Storage represents report persistence failures.
	Storage
	// Config represents configuration loading or validation failures.
	Config
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case InvalidInput:
		return "invalid_input"
	case UnsupportedBody:
		return "unsupported_body"
	case Ingest:
		return "ingest"
	case Storage:
		return "storage"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

// IsFatal returns whether errors of this type abort a comparison run.
func (t ErrorType) IsFatal() bool {
	return t != UnsupportedBody
}

// CompareError represents a categorized engine error.
type CompareError struct {
	Type      ErrorType
	Operation string
	Subject   string // file path, snapshot label or endpoint key
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *CompareError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.Subject, e.Message, e.Cause)
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s error during %s on %s: %s",
			e.Type.String(), e.Operation, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s error during %s: %s",
		e.Type.String(), e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *CompareError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target.
func (e *CompareError) Is(target error) bool {
	t, ok := target.(*CompareError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new CompareError.
func New(errType ErrorType, operation, subject, message string, cause error) *CompareError {
	return &CompareError{
		Type:      errType,
		Operation: operation,
		Subject:   subject,
		Message:   message,
		Cause:     cause,
	}
}

// NewInvalidInputError creates a fatal input validation error.
func NewInvalidInputError(operation, message string) *CompareError {
	return New(InvalidInput, operation, "", message, nil)
}

// NewUnsupportedBodyError creates a non-fatal body extraction error.
func NewUnsupportedBodyError(subject string, cause error) *CompareError {
	return New(UnsupportedBody, "shape_extraction", subject, "body cannot be shape-extracted", cause)
}

// NewIngestError creates an ingest error.
func NewIngestError(path, message string, cause error) *CompareError {
	return New(Ingest, "ingest", path, message, cause)
}

// NewStorageError creates a storage error.
func NewStorageError(operation string, cause error) *CompareError {
	return New(Storage, operation, "", "report store operation failed", cause)
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *CompareError {
	return New(Config, "configuration", "", message, cause)
}

// IsFatal checks if an error should abort the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *CompareError
	if errors.As(err, &ce) {
		return ce.Type.IsFatal()
	}
	return true
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var ce *CompareError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return Unknown
}
