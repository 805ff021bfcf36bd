package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/payments"
)

type PaymentRepository struct {
	pool *db.Pool
}

func NewPaymentRepository(pool *db.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) GetByOrder(ctx context.Context, orderID string) (payments.Payment, bool, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT id::text, order_id, customer_id, amount::text, status,
		       COALESCE(transaction_id, ''), COALESCE(refund_id, ''), COALESCE(failure_reason, ''),
		       version, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return payments.Payment{}, false, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if db.IsNoRows(err) {
		return payments.Payment{}, false, nil
	}
	if err != nil {
		return payments.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentRepository) Insert(ctx context.Context, p payments.Payment) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO payments (id, order_id, customer_id, amount, status, failure_reason, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, NULLIF($6, ''), $7, $8, $9)
	`, p.ID, p.OrderID, p.CustomerID, p.Amount.String(), string(p.Status), p.FailureReason, p.Version, p.CreatedAt, p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("payment for order %s exists", p.OrderID)
	}
	return err
}

func (r *PaymentRepository) Update(ctx context.Context, p payments.Payment, expectedVersion int64) error {
	tag, err := r.pool.Querier(ctx).Exec(ctx, `
		UPDATE payments
		SET status = $2,
			transaction_id = NULLIF($3, ''),
			refund_id = NULLIF($4, ''),
			failure_reason = NULLIF($5, ''),
			version = $6,
			updated_at = $7
		WHERE order_id = $1 AND version = $8
	`, p.OrderID, string(p.Status), p.TransactionID, p.RefundID, p.FailureReason, p.Version, p.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return payments.ErrVersionConflict
	}
	return nil
}

func scanPayment(row pgx.CollectableRow) (payments.Payment, error) {
	var (
		p      payments.Payment
		amount string
		status string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.CustomerID, &amount, &status,
		&p.TransactionID, &p.RefundID, &p.FailureReason, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return payments.Payment{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return payments.Payment{}, err
	}
	p.Amount = d
	p.Status = payments.Status(status)
	return p, nil
}

var _ payments.Repository = (*PaymentRepository)(nil)
