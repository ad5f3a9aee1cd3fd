// Package mysql persists the order and payment ledgers in MySQL.
// Uniqueness of transaction identifiers and the one-payment-per-order link
// are unique indexes (see schema.sql); status transitions are single
// conditional UPDATEs so the at-most-once rules hold under concurrent and
// replayed callbacks.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/learnhub/learnhub-payments/internal/domain"
)

const mysqlErrDuplicateEntry = 1062

// Ledger implements domain.LedgerWriter and domain.OrderRepository.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a ledger over an open connection pool.
func NewLedger(db *sql.DB) *Ledger { return &Ledger{db: db} }

// CreatePair inserts the order and its payment in one transaction. A unique
// index violation on transaction_id or order_id maps to
// ErrDuplicateTransaction.
func (l *Ledger) CreatePair(ctx context.Context, order *domain.Order, payment *domain.Payment) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO orders (id, course_id, student_id, status, created_at, updated_at)
VALUES (?,?,?,?,?,?)`,
		order.ID, order.CourseID, order.StudentID, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO payments (id, order_id, transaction_id, amount, status, created_at, updated_at)
VALUES (?,?,?,?,?,?,?)`,
		payment.ID, payment.OrderID, payment.TransactionID, payment.Amount,
		payment.Status, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
			return domain.ErrDuplicateTransaction
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return tx.Commit()
}

// GetByID loads an order by id.
func (l *Ledger) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT id, course_id, student_id, status, created_at, updated_at
FROM orders WHERE id = ?`, orderID)

	var o domain.Order
	if err := row.Scan(&o.ID, &o.CourseID, &o.StudentID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

// SetStatusIf moves the order status with a conditional UPDATE.
// rows == 0 means the current status did not match (or the order is gone).
func (l *Ledger) SetStatusIf(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
UPDATE orders SET status = ?, updated_at = NOW()
WHERE id = ? AND status = ?`,
		to, orderID, from,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Payments returns the payment-side view of the ledger.
func (l *Ledger) Payments() *PaymentRepo { return &PaymentRepo{db: l.db} }

// PaymentRepo implements domain.PaymentRepository.
type PaymentRepo struct {
	db *sql.DB
}

// GetByTransactionID loads a payment by its transaction identifier.
func (r *PaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return r.get(ctx, `
SELECT id, order_id, transaction_id, amount, status, gateway_payload, created_at, updated_at
FROM payments WHERE transaction_id = ?`, transactionID)
}

// GetByOrderID loads the single payment linked to an order.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.get(ctx, `
SELECT id, order_id, transaction_id, amount, status, gateway_payload, created_at, updated_at
FROM payments WHERE order_id = ?`, orderID)
}

func (r *PaymentRepo) get(ctx context.Context, query, arg string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, query, arg)

	var p domain.Payment
	var payload sql.Null[[]byte]
	if err := row.Scan(&p.ID, &p.OrderID, &p.TransactionID, &p.Amount, &p.Status,
		&payload, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	if payload.Valid {
		p.GatewayPayload = payload.V
	}
	return &p, nil
}

// SetStatusIf moves the payment status with a conditional UPDATE. This is
// the atomic write the reconciler's at-most-once guarantee rests on.
func (r *PaymentRepo) SetStatusIf(ctx context.Context, transactionID string, from, to domain.PaymentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE payments SET status = ?, updated_at = NOW()
WHERE transaction_id = ? AND status = ?`,
		to, transactionID, from,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// AttachGatewayPayload stores the raw validation blob against the payment.
func (r *PaymentRepo) AttachGatewayPayload(ctx context.Context, transactionID string, payload []byte) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE payments SET gateway_payload = ?, updated_at = NOW()
WHERE transaction_id = ?`,
		payload, transactionID,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

var (
	_ domain.LedgerWriter      = (*Ledger)(nil)
	_ domain.OrderRepository   = (*Ledger)(nil)
	_ domain.PaymentRepository = (*PaymentRepo)(nil)
)
