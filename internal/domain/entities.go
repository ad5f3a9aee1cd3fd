// Package domain contains the core business entities and interfaces for the
// enrollment payment service. This is the innermost layer of the Clean
// Architecture - it has no dependencies on external frameworks or infrastructure.
package domain

import "time"

// OrderStatus is the lifecycle state of an Order.
// PENDING is the only non-terminal state; terminal states never revert.
type OrderStatus string

const (
	OrderPending       OrderStatus = "PENDING"
	OrderEnrolled      OrderStatus = "ENROLLED"
	OrderPaymentFailed OrderStatus = "PAYMENT_FAILED"
	OrderCancelled     OrderStatus = "CANCELLED"
)

// PaymentStatus is the lifecycle state of a Payment.
// UNPAID is the only non-terminal state.
type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "UNPAID"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Terminal reports whether the status is a terminal state.
func (s PaymentStatus) Terminal() bool { return s != PaymentUnpaid }

// Outcome is the result reported by the payment gateway for a transaction.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFail    Outcome = "FAIL"
	OutcomeCancel  Outcome = "CANCEL"
)

// PaymentStatus returns the terminal payment status implied by the outcome.
func (o Outcome) PaymentStatus() PaymentStatus {
	switch o {
	case OutcomeSuccess:
		return PaymentPaid
	case OutcomeFail:
		return PaymentFailed
	default:
		return PaymentCancelled
	}
}

// OrderStatus returns the terminal order status implied by the outcome.
// The mapping between payment and order statuses is 1:1.
func (o Outcome) OrderStatus() OrderStatus {
	switch o {
	case OutcomeSuccess:
		return OrderEnrolled
	case OutcomeFail:
		return OrderPaymentFailed
	default:
		return OrderCancelled
	}
}

// Order represents a student's claim on a course, gated by payment status.
// CourseID and StudentID are immutable after creation.
type Order struct {
	ID        string      `json:"id"`
	CourseID  string      `json:"course_id"`
	StudentID string      `json:"student_id"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Payment represents one attempt to collect funds for an Order.
// TransactionID is globally unique and acts as the idempotency key for all
// gateway callbacks. Amount is the course price copied at order creation,
// so later price changes cannot drift an in-flight payment.
type Payment struct {
	ID             string        `json:"id"`
	OrderID        string        `json:"order_id"`
	TransactionID  string        `json:"transaction_id"`
	Amount         float64       `json:"amount"`
	Status         PaymentStatus `json:"status"`
	GatewayPayload []byte        `json:"-"` // raw validation blob, audit only
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Course is the narrow view of a course exposed by the LMS core.
type Course struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	EnrolledCount int     `json:"enrolled_count"`
}

// Student is the narrow view of a user exposed by the LMS core.
type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// PayerInfo carries the customer fields sent to the gateway when a
// payment session is initiated.
type PayerInfo struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Enrollment is the result of a successful enroll call: the redirect target
// for the browser plus the freshly created order/payment pair.
type Enrollment struct {
	RedirectURL string   `json:"redirect_url"`
	Order       *Order   `json:"order"`
	Payment     *Payment `json:"payment"`
}

// ReconcileResult reports the outcome of applying a gateway callback.
// Success tells the caller which frontend URL to redirect the browser to.
type ReconcileResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Order   *Order   `json:"order,omitempty"`
	Payment *Payment `json:"payment,omitempty"`
}
