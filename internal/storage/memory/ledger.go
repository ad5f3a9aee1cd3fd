// Package memory provides in-process implementations of the ledger and
// idempotency ports. It backs the storage "memory" driver for local runs
// and is the workhorse for unit tests; the conditional-update semantics
// match the MySQL ledger exactly.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/learnhub/learnhub-payments/internal/domain"
)

// Ledger holds orders and payments behind one mutex. Status transitions are
// compare-and-set under the lock, so at most one caller wins a given
// transition - the same guarantee the MySQL conditional UPDATE gives.
type Ledger struct {
	mu           sync.Mutex
	orders       map[string]*domain.Order
	paymentsByTx map[string]*domain.Payment
	txByOrder    map[string]string
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		orders:       make(map[string]*domain.Order),
		paymentsByTx: make(map[string]*domain.Payment),
		txByOrder:    make(map[string]string),
	}
}

// CreatePair persists a new order together with its payment, enforcing
// transaction identifier uniqueness and one payment per order.
func (l *Ledger) CreatePair(ctx context.Context, order *domain.Order, payment *domain.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.paymentsByTx[payment.TransactionID]; exists {
		return domain.ErrDuplicateTransaction
	}
	if _, exists := l.txByOrder[payment.OrderID]; exists {
		return domain.ErrDuplicateTransaction
	}

	o := *order
	p := *payment
	l.orders[o.ID] = &o
	l.paymentsByTx[p.TransactionID] = &p
	l.txByOrder[p.OrderID] = p.TransactionID
	return nil
}

// GetByID returns a copy of the order or ErrOrderNotFound.
func (l *Ledger) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// SetStatusIf moves the order from one status to another atomically.
func (l *Ledger) SetStatusIf(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

// Payments returns the payment-side view of the ledger.
func (l *Ledger) Payments() *PaymentView { return &PaymentView{l: l} }

// PaymentView implements domain.PaymentRepository over the shared ledger.
type PaymentView struct {
	l *Ledger
}

// GetByTransactionID returns a copy of the payment or ErrPaymentNotFound.
func (v *PaymentView) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	p, ok := v.l.paymentsByTx[transactionID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

// GetByOrderID returns the single payment linked to an order.
func (v *PaymentView) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	tx, ok := v.l.txByOrder[orderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *v.l.paymentsByTx[tx]
	return &cp, nil
}

// SetStatusIf moves the payment from one status to another atomically.
// Exactly one concurrent caller observes true for a given transition.
func (v *PaymentView) SetStatusIf(ctx context.Context, transactionID string, from, to domain.PaymentStatus) (bool, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	p, ok := v.l.paymentsByTx[transactionID]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

// AttachGatewayPayload stores the raw validation blob against the payment.
func (v *PaymentView) AttachGatewayPayload(ctx context.Context, transactionID string, payload []byte) error {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()

	p, ok := v.l.paymentsByTx[transactionID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	p.GatewayPayload = append([]byte(nil), payload...)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

var (
	_ domain.LedgerWriter      = (*Ledger)(nil)
	_ domain.OrderRepository   = (*Ledger)(nil)
	_ domain.PaymentRepository = (*PaymentView)(nil)
)
