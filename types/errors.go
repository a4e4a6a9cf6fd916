package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so controllers and callers can decide
// whether an operation is retryable.
type ErrorKind string

const (
	// ErrKindValidation marks bad input. Never retried.
	ErrKindValidation ErrorKind = "validation_error"
	// ErrKindStateConflict marks a precondition failure or a lost race. The
	// other party already produced the correct outcome, so never retried.
	ErrKindStateConflict ErrorKind = "state_conflict"
	// ErrKindGateway marks a payment processor failure. Safe to retry with
	// backoff; the reconciliation job converges state if retries are abandoned.
	ErrKindGateway ErrorKind = "gateway_error"
	// ErrKindDispatchExhausted marks a booking nobody can serve. Non-fatal,
	// surfaced for manual follow-up.
	ErrKindDispatchExhausted ErrorKind = "dispatch_exhausted"
	// ErrKindNotFound marks a missing record.
	ErrKindNotFound ErrorKind = "not_found"
)

// DomainError is the error type returned by all booking core services.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewValidationError reports invalid input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Kind: ErrKindValidation, Message: message}
}

// NewStateConflict reports an unmet precondition or a lost race.
func NewStateConflict(message string) *DomainError {
	return &DomainError{Kind: ErrKindStateConflict, Message: message}
}

// NewGatewayError wraps a payment processor failure.
func NewGatewayError(message string, err error) *DomainError {
	return &DomainError{Kind: ErrKindGateway, Message: message, Err: err}
}

// NewDispatchExhausted reports that no worker can take the job. The reason is
// machine-readable: "no_coverage" or "all_declined".
func NewDispatchExhausted(reason string) *DomainError {
	return &DomainError{Kind: ErrKindDispatchExhausted, Message: reason}
}

// NewNotFound reports a missing record.
func NewNotFound(message string) *DomainError {
	return &DomainError{Kind: ErrKindNotFound, Message: message}
}

// KindOf extracts the ErrorKind from an error chain. Unclassified errors
// return the empty kind and are treated as internal errors by the API layer.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// HTTPStatusFor maps an error kind to the HTTP status the API responds with.
func HTTPStatusFor(kind ErrorKind) int {
	switch kind {
	case ErrKindValidation:
		return 400
	case ErrKindStateConflict:
		return 409
	case ErrKindGateway:
		return 502
	case ErrKindDispatchExhausted:
		return 422
	case ErrKindNotFound:
		return 404
	default:
		return 500
	}
}
