// Package domain contains the core business entities and interfaces for the
// enrollment payment service.
package domain

import "errors"

// Domain errors represent business rule violations.
// These are used to communicate specific error conditions from the domain layer.
var (
	// ErrCourseNotFound is returned when a course cannot be resolved in the LMS core.
	ErrCourseNotFound = errors.New("course not found")

	// ErrStudentNotFound is returned when a student cannot be resolved in the LMS core.
	ErrStudentNotFound = errors.New("student not found")

	// ErrOrderNotFound is returned when an order does not exist in the ledger.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentNotFound is returned when no payment matches a transaction
	// identifier. A forged or stale callback surfaces as this error.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrGateway is returned when the payment gateway rejects a call or is
	// unreachable. The adapter never retries; redelivery is the gateway's job.
	ErrGateway = errors.New("payment gateway error")

	// ErrStateConflict is returned when a callback outcome contradicts a
	// payment that already reached a different terminal state. It is reported,
	// never auto-resolved.
	ErrStateConflict = errors.New("payment state conflict")

	// ErrValidation is returned for malformed identifiers or amounts.
	ErrValidation = errors.New("invalid input")

	// ErrDuplicateTransaction is returned by the ledger when a transaction
	// identifier is already in use.
	ErrDuplicateTransaction = errors.New("duplicate transaction identifier")

	// ErrDuplicateRequest is returned when an identical enrollment request is
	// still in flight (double click, resubmission).
	ErrDuplicateRequest = errors.New("duplicate enrollment request")

	// ErrCoreAPI is returned when the LMS core cannot be reached.
	ErrCoreAPI = errors.New("error communicating with LMS core")
)

// EnrollmentError wraps a domain error with a human-readable message and a
// stable machine code for API responses.
type EnrollmentError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface.
func (e *EnrollmentError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with EnrollmentError.
func (e *EnrollmentError) Unwrap() error {
	return e.Err
}

// NewEnrollmentError creates a new EnrollmentError with the given error and message.
func NewEnrollmentError(err error, message, code string) *EnrollmentError {
	return &EnrollmentError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
