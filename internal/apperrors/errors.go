// Package apperrors provides structured application errors for the
// extraction workflow, classified via sentinel errors.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	// ErrValidation marks a bad job description or configuration value.
	ErrValidation = errors.New("validation error")
	// ErrTransport marks a request that never produced an HTTP response.
	ErrTransport = errors.New("transport error")
	// ErrSubmission marks a rejected job creation. Fatal to the run.
	ErrSubmission = errors.New("submission failed")
	// ErrAcceptance marks a rejected quote acceptance. Recoverable: the job
	// stays quoted server-side and acceptance can be retried on a later run.
	ErrAcceptance = errors.New("acceptance failed")
	// ErrUnknownStatus marks a job payload that could not be classified.
	// Callers must halt rather than poll forever.
	ErrUnknownStatus = errors.New("unclassifiable job status")
	// ErrManifest marks a missing or malformed result manifest. Fatal to the
	// download phase, since without a URL list there is nothing to retrieve.
	ErrManifest = errors.New("manifest error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel   error  // Wrapped sentinel for errors.Is() classification
	Message    string // Human-readable message
	Field      string // For validation errors (e.g., "title", "rules")
	Op         string // Operation that failed (e.g., "client.get")
	StatusCode int    // Remote HTTP status, when one was received
	Cause      error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Transport creates a transport error wrapping an underlying cause.
func Transport(op string, cause error) error {
	return &Error{
		Sentinel: ErrTransport,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Submission creates a fatal submission error from a non-2xx response.
func Submission(statusCode int, body string) error {
	return &Error{
		Sentinel:   ErrSubmission,
		Message:    fmt.Sprintf("job submission returned HTTP %d: %s", statusCode, body),
		Op:         "manager.submit",
		StatusCode: statusCode,
	}
}

// Acceptance creates a recoverable acceptance error from a non-2xx response.
func Acceptance(statusCode int) error {
	return &Error{
		Sentinel:   ErrAcceptance,
		Message:    fmt.Sprintf("quote acceptance returned HTTP %d", statusCode),
		Op:         "manager.accept",
		StatusCode: statusCode,
	}
}

// UnknownStatus creates an error for a payload that defies classification.
func UnknownStatus(title string) error {
	return &Error{
		Sentinel: ErrUnknownStatus,
		Message:  fmt.Sprintf("cannot classify status for job %q", title),
	}
}

// Manifest creates a hard download-phase error.
func Manifest(op string, cause error) error {
	return &Error{
		Sentinel: ErrManifest,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// IsFatal reports whether an error should abort the whole run.
// Acceptance failures are the one recoverable category: the workflow parks
// at quoted and the caller may retry later.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrAcceptance)
}
