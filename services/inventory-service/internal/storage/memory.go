package storage

import (
	"context"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/services/inventory-service/internal/inventory"
)

type MemoryInventoryRepository struct {
	items        *memstore.Table[inventory.Item]
	reservations *memstore.Table[inventory.Reservation]
}

func NewMemoryInventoryRepository(store *memstore.Store) *MemoryInventoryRepository {
	return &MemoryInventoryRepository{
		items:        memstore.NewTable[inventory.Item](store),
		reservations: memstore.NewTable[inventory.Reservation](store),
	}
}

func (r *MemoryInventoryRepository) GetItem(ctx context.Context, productID string) (inventory.Item, error) {
	it, ok := r.items.Get(ctx, productID)
	if !ok {
		return inventory.Item{}, inventory.ErrNotFound
	}
	return it, nil
}

func (r *MemoryInventoryRepository) InsertItem(ctx context.Context, it inventory.Item) error {
	if !r.items.Insert(ctx, it.ProductID, it) {
		return apperr.Conflict("product %s exists", it.ProductID)
	}
	return nil
}

func (r *MemoryInventoryRepository) UpdateItem(ctx context.Context, it inventory.Item, expectedVersion int64) error {
	cur, ok := r.items.Get(ctx, it.ProductID)
	if !ok {
		return inventory.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return inventory.ErrVersionConflict
	}
	r.items.Put(ctx, it.ProductID, it)
	return nil
}

func (r *MemoryInventoryRepository) GetReservation(ctx context.Context, orderID string) (inventory.Reservation, bool, error) {
	res, ok := r.reservations.Get(ctx, orderID)
	return res, ok, nil
}

func (r *MemoryInventoryRepository) SaveReservation(ctx context.Context, res inventory.Reservation) error {
	r.reservations.Put(ctx, res.OrderID, res)
	return nil
}

var _ inventory.Repository = (*MemoryInventoryRepository)(nil)
