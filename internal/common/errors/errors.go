// internal/common/errors/errors.go

// Package errors provides standardized error handling for the form and
// workflow-action engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Local errors: resolved inside one form session, never surfaced as
	// a toast to the host view.
	ErrCodeSchemaViolation     ErrorCode = "SCHEMA_VIOLATION"
	ErrCodeCoercionAmbiguity   ErrorCode = "COERCION_AMBIGUITY"
	ErrCodeSchemaMisconfigured ErrorCode = "SCHEMA_MISCONFIGURED"

	// Remote errors: the external collaborator declined or was unreachable.
	ErrCodeTransitionRejected   ErrorCode = "TRANSITION_REJECTED"
	ErrCodeCatalogUnavailable   ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeDirectoryUnavailable ErrorCode = "DIRECTORY_UNAVAILABLE"
	ErrCodeAuditWriteFailed     ErrorCode = "AUDIT_WRITE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the ErrorCode from any error, or "" for plain errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsRetryable reports whether an error is marked as transient.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSchemaViolationError creates a non-retryable validation error. The
// per-field messages live in the session's error map; this error only
// signals that submission is blocked.
func NewSchemaViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaViolation,
		Message:   "Form validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCoercionAmbiguityError creates a non-retryable coercion error for a
// value that cannot be converted to the field's declared type.
func NewCoercionAmbiguityError(fieldName string, raw interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeCoercionAmbiguity,
		Message:   "Value cannot be coerced to the declared field type",
		Details:   fmt.Sprintf("field: %s, value: %v", fieldName, raw),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaMisconfiguredError creates a non-retryable error for a schema
// that cannot produce a valid form (duplicate names, select without options).
func NewSchemaMisconfiguredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaMisconfigured,
		Message:   "Field schema is misconfigured",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransitionRejectedError creates a non-retryable rejection from the
// workflow authority. Message carries the authority's own wording verbatim
// when it provided one, so the host can surface it unchanged.
func NewTransitionRejectedError(message string, statusCode int) *StandardError {
	if message == "" {
		message = "Transition was rejected by the workflow authority"
	}
	return &StandardError{
		Code:      ErrCodeTransitionRejected,
		Message:   message,
		Details:   fmt.Sprintf("status: %d", statusCode),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogUnavailableError creates a retryable action catalog fetch error.
func NewCatalogUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogUnavailable,
		Message:   "Workflow action catalog is unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDirectoryUnavailableError creates a retryable service directory error.
func NewDirectoryUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDirectoryUnavailable,
		Message:   "Service directory is unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditWriteFailedError creates a retryable audit persistence error.
func NewAuditWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Transition audit record could not be written",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
