package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnhub/learnhub-payments/internal/domain"
	"github.com/learnhub/learnhub-payments/internal/logging"
)

const (
	counterAttempts = 3
	counterBackoff  = 100 * time.Millisecond
)

// Reconciler applies gateway-reported outcomes to the payment and order
// ledgers. All three gateway callback routes funnel into Reconcile, so the
// idempotency and conflict rules live in exactly one place.
type Reconciler struct {
	payments domain.PaymentRepository
	orders   domain.OrderRepository
	catalog  domain.CourseCatalog
	gateway  domain.PaymentGateway
	log      *slog.Logger
}

// NewReconciler creates a new callback reconciler.
func NewReconciler(
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	catalog domain.CourseCatalog,
	gateway domain.PaymentGateway,
) *Reconciler {
	return &Reconciler{
		payments: payments,
		orders:   orders,
		catalog:  catalog,
		gateway:  gateway,
		log:      logging.New("reconciler"),
	}
}

// Reconcile applies the outcome reported for a transaction identifier.
//
// The payment status transition is a single conditional write: exactly one
// caller wins UNPAID -> terminal for a given payment, and only the winner
// touches the order and the course counter. Redelivered callbacks for a
// state the payment already holds are a no-op success; a callback that
// contradicts a different terminal state is a conflict and is reported,
// never overwritten.
func (r *Reconciler) Reconcile(ctx context.Context, transactionID string, outcome domain.Outcome) (*domain.ReconcileResult, error) {
	if transactionID == "" {
		return nil, domain.NewEnrollmentError(domain.ErrValidation,
			"transactionId is required", "VALIDATION_ERROR")
	}

	payment, err := r.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, domain.NewEnrollmentError(err,
				fmt.Sprintf("no payment for transaction '%s'", transactionID),
				"PAYMENT_NOT_FOUND")
		}
		return nil, fmt.Errorf("load payment: %w", err)
	}

	target := outcome.PaymentStatus()

	// Redelivery of an already-applied outcome: succeed with no side effects.
	if payment.Status == target {
		return r.result(ctx, payment, outcome), nil
	}
	if payment.Status.Terminal() {
		return nil, domain.NewEnrollmentError(domain.ErrStateConflict,
			fmt.Sprintf("transaction '%s' is already %s, cannot apply %s",
				transactionID, payment.Status, outcome),
			"STATE_CONFLICT")
	}

	changed, err := r.payments.SetStatusIf(ctx, transactionID, domain.PaymentUnpaid, target)
	if err != nil {
		return nil, fmt.Errorf("payment status transition: %w", err)
	}
	if !changed {
		// Lost the race to a concurrent callback. Re-read to tell a
		// duplicate of the same outcome apart from a genuine conflict.
		current, err := r.payments.GetByTransactionID(ctx, transactionID)
		if err != nil {
			return nil, fmt.Errorf("reload payment: %w", err)
		}
		if current.Status == target {
			return r.result(ctx, current, outcome), nil
		}
		return nil, domain.NewEnrollmentError(domain.ErrStateConflict,
			fmt.Sprintf("transaction '%s' is already %s, cannot apply %s",
				transactionID, current.Status, outcome),
			"STATE_CONFLICT")
	}

	// This caller won the transition; it alone moves the order.
	if _, err := r.orders.SetStatusIf(ctx, payment.OrderID, domain.OrderPending, outcome.OrderStatus()); err != nil {
		return nil, fmt.Errorf("order status transition: %w", err)
	}

	// The counter increment is keyed strictly off winning the payment
	// transition, never off a re-read, so replayed callbacks cannot double
	// count.
	if outcome == domain.OutcomeSuccess {
		order, err := r.orders.GetByID(ctx, payment.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load order: %w", err)
		}
		r.incrementEnrolled(ctx, order.CourseID, transactionID)
	}

	r.log.Info("reconciled",
		"transaction_id", transactionID, "outcome", string(outcome),
		"payment_status", string(target))
	return r.result(ctx, payment, outcome), nil
}

// incrementEnrolled retries only the counter tail: the payment and order are
// already committed, so re-running the whole reconciliation would be wrong.
// On exhaustion the discrepancy is logged for operator catch-up.
func (r *Reconciler) incrementEnrolled(ctx context.Context, courseID, transactionID string) {
	var err error
	for attempt := 1; attempt <= counterAttempts; attempt++ {
		if err = r.catalog.IncrementEnrolledCount(ctx, courseID); err == nil {
			return
		}
		r.log.Warn("enrolled count increment failed",
			"course_id", courseID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = counterAttempts
		case <-time.After(time.Duration(attempt) * counterBackoff):
		}
	}
	r.log.Error("enrolled count increment unconfirmed, manual catch-up required",
		"course_id", courseID, "transaction_id", transactionID, "error", err)
}

// RecordValidation fetches the gateway's authoritative record for a
// transaction and stores it verbatim against the payment for audit.
// It does not change payment or order status.
func (r *Reconciler) RecordValidation(ctx context.Context, transactionID, validationID string) error {
	if transactionID == "" || validationID == "" {
		return domain.NewEnrollmentError(domain.ErrValidation,
			"tran_id and val_id are required", "VALIDATION_ERROR")
	}

	payload, err := r.gateway.Validate(ctx, validationID)
	if err != nil {
		return domain.NewEnrollmentError(domain.ErrGateway,
			"payment validation error", "GATEWAY_ERROR")
	}

	if err := r.payments.AttachGatewayPayload(ctx, transactionID, payload); err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return domain.NewEnrollmentError(err,
				fmt.Sprintf("no payment for transaction '%s'", transactionID),
				"PAYMENT_NOT_FOUND")
		}
		return fmt.Errorf("attach gateway payload: %w", err)
	}

	r.log.Info("validation payload recorded", "transaction_id", transactionID)
	return nil
}

// result builds the caller-facing outcome with refreshed ledger state.
func (r *Reconciler) result(ctx context.Context, payment *domain.Payment, outcome domain.Outcome) *domain.ReconcileResult {
	res := &domain.ReconcileResult{}
	switch outcome {
	case domain.OutcomeSuccess:
		res.Success = true
		res.Message = "Payment completed successfully, course enrolled"
	case domain.OutcomeFail:
		res.Message = "Payment failed"
	default:
		res.Message = "Payment cancelled"
	}

	if p, err := r.payments.GetByTransactionID(ctx, payment.TransactionID); err == nil {
		res.Payment = p
	}
	if o, err := r.orders.GetByID(ctx, payment.OrderID); err == nil {
		res.Order = o
	}
	return res
}
