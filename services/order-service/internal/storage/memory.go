package storage

import (
	"context"
	"slices"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
)

// MemoryOrderRepository keeps orders in a memstore table. It is used by
// tests and by the in-process saga simulator.
type MemoryOrderRepository struct {
	rows *memstore.Table[orders.Order]
}

func NewMemoryOrderRepository(store *memstore.Store) *MemoryOrderRepository {
	return &MemoryOrderRepository{rows: memstore.NewTable[orders.Order](store)}
}

func (r *MemoryOrderRepository) Insert(ctx context.Context, o orders.Order) error {
	if !r.rows.Insert(ctx, o.ID, o) {
		return apperr.Conflict("order %s exists", o.ID)
	}
	return nil
}

func (r *MemoryOrderRepository) Get(ctx context.Context, id string) (orders.Order, error) {
	o, ok := r.rows.Get(ctx, id)
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (r *MemoryOrderRepository) Update(ctx context.Context, o orders.Order, expectedVersion int64) error {
	cur, ok := r.rows.Get(ctx, o.ID)
	if !ok {
		return orders.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return orders.ErrVersionConflict
	}
	r.rows.Put(ctx, o.ID, o)
	return nil
}

func (r *MemoryOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]orders.Order, error) {
	var out []orders.Order
	r.rows.Scan(ctx, func(_ string, o orders.Order) bool {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
		return true
	})
	slices.Reverse(out)
	return out, nil
}

func (r *MemoryOrderRepository) List(ctx context.Context, limit int) ([]orders.Order, error) {
	var out []orders.Order
	r.rows.Scan(ctx, func(_ string, o orders.Order) bool {
		out = append(out, o)
		return true
	})
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ orders.Repository = (*MemoryOrderRepository)(nil)
