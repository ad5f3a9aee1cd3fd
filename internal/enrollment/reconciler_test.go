package enrollment

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/learnhub-payments/internal/domain"
	"github.com/learnhub/learnhub-payments/internal/storage/memory"
)

type reconcilerFixture struct {
	rec     *Reconciler
	ledger  *memory.Ledger
	catalog *fakeCatalog
	gateway *fakeGateway
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	ledger := memory.NewLedger()
	catalog := newFakeCatalog(&domain.Course{ID: "go-101", Title: "Intro to Go", Price: 500})
	gateway := &fakeGateway{}
	rec := NewReconciler(ledger.Payments(), ledger, catalog, gateway)
	return &reconcilerFixture{rec: rec, ledger: ledger, catalog: catalog, gateway: gateway}
}

// seedPair persists a fresh PENDING/UNPAID pair and returns the transaction id.
func (f *reconcilerFixture) seedPair(t *testing.T, courseID string, amount float64) (orderID, txID string) {
	t.Helper()

	now := time.Now().UTC()
	order := &domain.Order{
		ID: uuid.NewString(), CourseID: courseID, StudentID: "stu-1",
		Status: domain.OrderPending, CreatedAt: now, UpdatedAt: now,
	}
	payment := &domain.Payment{
		ID: uuid.NewString(), OrderID: order.ID, TransactionID: NewTransactionID(),
		Amount: amount, Status: domain.PaymentUnpaid, CreatedAt: now, UpdatedAt: now,
	}
	if err := f.ledger.CreatePair(context.Background(), order, payment); err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	return order.ID, payment.TransactionID
}

func (f *reconcilerFixture) assertState(t *testing.T, orderID, txID string, wantOrder domain.OrderStatus, wantPayment domain.PaymentStatus) {
	t.Helper()

	order, err := f.ledger.GetByID(context.Background(), orderID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if order.Status != wantOrder {
		t.Errorf("order status = %s, want %s", order.Status, wantOrder)
	}
	payment, err := f.ledger.Payments().GetByTransactionID(context.Background(), txID)
	if err != nil {
		t.Fatalf("GetByTransactionID: %v", err)
	}
	if payment.Status != wantPayment {
		t.Errorf("payment status = %s, want %s", payment.Status, wantPayment)
	}
}

func TestReconcileSuccess(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID, txID := f.seedPair(t, "go-101", 500)

	res, err := f.rec.Reconcile(context.Background(), txID, domain.OutcomeSuccess)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Success {
		t.Error("result.Success = false, want true")
	}
	f.assertState(t, orderID, txID, domain.OrderEnrolled, domain.PaymentPaid)
	if got := f.catalog.incrementsFor("go-101"); got != 1 {
		t.Errorf("enrolled count increments = %d, want 1", got)
	}
}

func TestReconcileIdempotentReplay(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID, txID := f.seedPair(t, "go-101", 500)

	for i := 0; i < 2; i++ {
		res, err := f.rec.Reconcile(context.Background(), txID, domain.OutcomeSuccess)
		if err != nil {
			t.Fatalf("Reconcile call %d: %v", i+1, err)
		}
		if !res.Success {
			t.Errorf("call %d: Success = false, want true", i+1)
		}
	}

	f.assertState(t, orderID, txID, domain.OrderEnrolled, domain.PaymentPaid)
	if got := f.catalog.incrementsFor("go-101"); got != 1 {
		t.Errorf("enrolled count increments = %d, want exactly 1 after replay", got)
	}
}

func TestReconcileConflict(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID, txID := f.seedPair(t, "go-101", 500)

	if _, err := f.rec.Reconcile(context.Background(), txID, domain.OutcomeSuccess); err != nil {
		t.Fatalf("Reconcile SUCCESS: %v", err)
	}
	_, err := f.rec.Reconcile(context.Background(), txID, domain.OutcomeFail)
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("Reconcile FAIL after SUCCESS error = %v, want ErrStateConflict", err)
	}

	// Conflict is reported, never overwritten.
	f.assertState(t, orderID, txID, domain.OrderEnrolled, domain.PaymentPaid)
}

func TestReconcileUnknownTransaction(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.rec.Reconcile(context.Background(), "nonexistent", domain.OutcomeSuccess)
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("Reconcile unknown tx error = %v, want ErrPaymentNotFound", err)
	}
	if got := f.catalog.incrementsFor("go-101"); got != 0 {
		t.Errorf("enrolled count increments = %d, want 0 (no side effects)", got)
	}
}

func TestReconcileTerminalOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		outcome     domain.Outcome
		wantOrder   domain.OrderStatus
		wantPayment domain.PaymentStatus
		wantMessage string
	}{
		{"fail", domain.OutcomeFail, domain.OrderPaymentFailed, domain.PaymentFailed, "Payment failed"},
		{"cancel", domain.OutcomeCancel, domain.OrderCancelled, domain.PaymentCancelled, "Payment cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcilerFixture(t)
			orderID, txID := f.seedPair(t, "go-101", 500)

			res, err := f.rec.Reconcile(context.Background(), txID, tt.outcome)
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if res.Success {
				t.Error("result.Success = true, want false")
			}
			if res.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMessage)
			}
			f.assertState(t, orderID, txID, tt.wantOrder, tt.wantPayment)
			if got := f.catalog.incrementsFor("go-101"); got != 0 {
				t.Errorf("enrolled count increments = %d, want 0", got)
			}
		})
	}
}

func TestReconcileConcurrentDuplicates(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID, txID := f.seedPair(t, "go-101", 500)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.rec.Reconcile(context.Background(), txID, domain.OutcomeSuccess)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	f.assertState(t, orderID, txID, domain.OrderEnrolled, domain.PaymentPaid)
	if got := f.catalog.incrementsFor("go-101"); got != 1 {
		t.Errorf("enrolled count increments = %d, want exactly 1 under concurrency", got)
	}
}

func TestReconcileCounterRetry(t *testing.T) {
	f := newReconcilerFixture(t)
	_, txID := f.seedPair(t, "go-101", 500)

	// First two increment attempts fail; the retry tail must catch up
	// without re-running the reconciliation.
	f.catalog.failTimes = 2
	f.catalog.incErr = errors.New("core unavailable")

	res, err := f.rec.Reconcile(context.Background(), txID, domain.OutcomeSuccess)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Success {
		t.Error("result.Success = false, want true")
	}
	if got := f.catalog.incrementsFor("go-101"); got != 1 {
		t.Errorf("enrolled count increments = %d, want 1 after retries", got)
	}
}

func TestRecordValidation(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID, txID := f.seedPair(t, "go-101", 500)

	payload := []byte(`{"status":"VALID","tran_id":"` + txID + `"}`)
	f.gateway.validateRes = payload

	if err := f.rec.RecordValidation(context.Background(), txID, "val-123"); err != nil {
		t.Fatalf("RecordValidation: %v", err)
	}

	payment, err := f.ledger.Payments().GetByTransactionID(context.Background(), txID)
	if err != nil {
		t.Fatalf("GetByTransactionID: %v", err)
	}
	if !bytes.Equal(payment.GatewayPayload, payload) {
		t.Errorf("gateway payload = %q, want stored verbatim", payment.GatewayPayload)
	}
	// Validation is audit-only: no state transitions.
	f.assertState(t, orderID, txID, domain.OrderPending, domain.PaymentUnpaid)
}

func TestRecordValidationUnknownTransaction(t *testing.T) {
	f := newReconcilerFixture(t)
	f.gateway.validateRes = []byte(`{}`)

	err := f.rec.RecordValidation(context.Background(), "nonexistent", "val-123")
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("error = %v, want ErrPaymentNotFound", err)
	}
}
