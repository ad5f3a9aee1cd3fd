// Package domain contains the core business entities and interfaces for the
// enrollment payment service.
package domain

import "context"

// CourseCatalog is the narrow interface this service consumes from course
// management. This is a "port" in hexagonal architecture - the domain defines
// what it needs, and infrastructure provides the implementation.
type CourseCatalog interface {
	// GetCourse resolves a course by id.
	// Returns ErrCourseNotFound if the course doesn't exist.
	GetCourse(ctx context.Context, courseID string) (*Course, error)

	// IncrementEnrolledCount adds one to the course's enrolled counter.
	// An error means the increment was not confirmed and may be retried.
	IncrementEnrolledCount(ctx context.Context, courseID string) error
}

// StudentDirectory resolves student identities to contact fields.
type StudentDirectory interface {
	// GetStudent resolves a student by id.
	// Returns ErrStudentNotFound if the student doesn't exist.
	GetStudent(ctx context.Context, studentID string) (*Student, error)
}

// OrderRepository owns Order records.
type OrderRepository interface {
	// GetByID returns the order or ErrOrderNotFound.
	GetByID(ctx context.Context, orderID string) (*Order, error)

	// SetStatusIf atomically moves the order from one status to another.
	// Returns false without error when the current status did not match.
	SetStatusIf(ctx context.Context, orderID string, from, to OrderStatus) (bool, error)
}

// PaymentRepository owns Payment records and enforces transaction identifier
// uniqueness.
type PaymentRepository interface {
	// GetByTransactionID returns the payment or ErrPaymentNotFound.
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// GetByOrderID returns the single payment linked to an order, or
	// ErrPaymentNotFound.
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)

	// SetStatusIf atomically moves the payment from one status to another.
	// This single conditional write is what keeps reconciliation idempotent
	// under duplicated or concurrent callbacks: exactly one caller observes
	// true for a given transition.
	SetStatusIf(ctx context.Context, transactionID string, from, to PaymentStatus) (bool, error)

	// AttachGatewayPayload stores the raw gateway validation response
	// verbatim against the payment for audit. It does not change status.
	AttachGatewayPayload(ctx context.Context, transactionID string, payload []byte) error
}

// LedgerWriter creates the order/payment pair in one logical operation.
type LedgerWriter interface {
	// CreatePair persists a new PENDING order together with its UNPAID
	// payment. Returns ErrDuplicateTransaction if the transaction identifier
	// is already taken.
	CreatePair(ctx context.Context, order *Order, payment *Payment) error
}

// PaymentGateway abstracts the external payment provider.
type PaymentGateway interface {
	// InitSession opens a payment session and returns the URL the browser
	// should be redirected to. Any transport failure or provider rejection
	// surfaces as ErrGateway; the adapter never retries.
	InitSession(ctx context.Context, payer PayerInfo, amount float64, transactionID string) (string, error)

	// Validate fetches the gateway's authoritative record for a transaction
	// by its gateway-assigned validation id. The raw payload is returned
	// verbatim for audit; it drives no state transitions.
	Validate(ctx context.Context, validationID string) ([]byte, error)
}

// IdempotencyStore guards against duplicate in-flight requests.
type IdempotencyStore interface {
	// TryLock acquires a short-lived lock for scope:key. Returns false when
	// the lock is already held.
	TryLock(ctx context.Context, scope, key string) (bool, error)

	// Remember records a value for scope:key so later duplicates can short-circuit.
	Remember(ctx context.Context, scope, key, value string) error

	// Recall returns the remembered value for scope:key, if any.
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}
