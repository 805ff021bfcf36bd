package storage

import (
	"context"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/payments"
)

// MemoryPaymentRepository keys payments by order id, like the unique index on
// the Postgres table.
type MemoryPaymentRepository struct {
	rows *memstore.Table[payments.Payment]
}

func NewMemoryPaymentRepository(store *memstore.Store) *MemoryPaymentRepository {
	return &MemoryPaymentRepository{rows: memstore.NewTable[payments.Payment](store)}
}

func (r *MemoryPaymentRepository) GetByOrder(ctx context.Context, orderID string) (payments.Payment, bool, error) {
	p, ok := r.rows.Get(ctx, orderID)
	return p, ok, nil
}

func (r *MemoryPaymentRepository) Insert(ctx context.Context, p payments.Payment) error {
	if !r.rows.Insert(ctx, p.OrderID, p) {
		return apperr.Conflict("payment for order %s exists", p.OrderID)
	}
	return nil
}

func (r *MemoryPaymentRepository) Update(ctx context.Context, p payments.Payment, expectedVersion int64) error {
	cur, ok := r.rows.Get(ctx, p.OrderID)
	if !ok {
		return payments.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return payments.ErrVersionConflict
	}
	r.rows.Put(ctx, p.OrderID, p)
	return nil
}

var _ payments.Repository = (*MemoryPaymentRepository)(nil)
