package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/services/inventory-service/internal/inventory"
)

type InventoryRepository struct {
	pool *db.Pool
}

func NewInventoryRepository(pool *db.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) GetItem(ctx context.Context, productID string) (inventory.Item, error) {
	var it inventory.Item
	err := r.pool.Querier(ctx).QueryRow(ctx, `
		SELECT product_id, quantity, version, updated_at
		FROM inventory
		WHERE product_id = $1
	`, productID).Scan(&it.ProductID, &it.Quantity, &it.Version, &it.UpdatedAt)
	if db.IsNoRows(err) {
		return inventory.Item{}, inventory.ErrNotFound
	}
	return it, err
}

func (r *InventoryRepository) InsertItem(ctx context.Context, it inventory.Item) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO inventory (product_id, quantity, version, updated_at)
		VALUES ($1, $2, $3, $4)
	`, it.ProductID, it.Quantity, it.Version, it.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("product %s exists", it.ProductID)
	}
	return err
}

func (r *InventoryRepository) UpdateItem(ctx context.Context, it inventory.Item, expectedVersion int64) error {
	tag, err := r.pool.Querier(ctx).Exec(ctx, `
		UPDATE inventory
		SET quantity = $2, version = $3, updated_at = $4
		WHERE product_id = $1 AND version = $5
	`, it.ProductID, it.Quantity, it.Version, it.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrVersionConflict
	}
	return nil
}

func (r *InventoryRepository) GetReservation(ctx context.Context, orderID string) (inventory.Reservation, bool, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT order_id, product_id, quantity, status, COALESCE(reason, ''), created_at, updated_at
		FROM reservations
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return inventory.Reservation{}, false, err
	}
	res, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (inventory.Reservation, error) {
		var (
			res    inventory.Reservation
			status string
		)
		err := row.Scan(&res.OrderID, &res.ProductID, &res.Quantity, &status, &res.Reason, &res.CreatedAt, &res.UpdatedAt)
		res.Status = inventory.ReservationStatus(status)
		return res, err
	})
	if db.IsNoRows(err) {
		return inventory.Reservation{}, false, nil
	}
	if err != nil {
		return inventory.Reservation{}, false, err
	}
	return res, true, nil
}

func (r *InventoryRepository) SaveReservation(ctx context.Context, res inventory.Reservation) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO reservations (order_id, product_id, quantity, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (order_id) DO UPDATE
		SET status = EXCLUDED.status, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at
	`, res.OrderID, res.ProductID, res.Quantity, string(res.Status), res.Reason, res.CreatedAt, res.UpdatedAt)
	return err
}

var _ inventory.Repository = (*InventoryRepository)(nil)
