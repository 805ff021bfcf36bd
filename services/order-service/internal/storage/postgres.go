package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
)

type OrderRepository struct {
	pool *db.Pool
}

func NewOrderRepository(pool *db.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id::text, customer_id, product_id, quantity, price::text, status,
	COALESCE(tracking_number, ''), COALESCE(cancel_reason, ''), COALESCE(refund_reason, ''),
	version, created_at, updated_at`

func (r *OrderRepository) Insert(ctx context.Context, o orders.Order) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO orders (id, customer_id, product_id, quantity, price, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
	`, o.ID, o.CustomerID, o.ProductID, o.Quantity, o.Price.String(), string(o.Status), o.Version, o.CreatedAt, o.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("order %s exists", o.ID)
	}
	return err
}

// validID reports whether id can name a row; ids are uuids, so anything else
// is simply not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (orders.Order, error) {
	if !validID(id) {
		return orders.Order{}, orders.ErrNotFound
	}
	rows, err := r.pool.Querier(ctx).Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1::uuid`, id)
	if err != nil {
		return orders.Order{}, err
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if db.IsNoRows(err) {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, err
}

func (r *OrderRepository) Update(ctx context.Context, o orders.Order, expectedVersion int64) error {
	if !validID(o.ID) {
		return orders.ErrNotFound
	}
	tag, err := r.pool.Querier(ctx).Exec(ctx, `
		UPDATE orders
		SET status = $2,
			tracking_number = NULLIF($3, ''),
			cancel_reason = NULLIF($4, ''),
			refund_reason = NULLIF($5, ''),
			version = $6,
			updated_at = $7
		WHERE id = $1::uuid AND version = $8
	`, o.ID, string(o.Status), o.TrackingNumber, o.CancelReason, o.RefundReason, o.Version, o.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrVersionConflict
	}
	return nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]orders.Order, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) List(ctx context.Context, limit int) ([]orders.Order, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (orders.Order, error) {
	var (
		o      orders.Order
		price  string
		status string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.ProductID, &o.Quantity, &price, &status,
		&o.TrackingNumber, &o.CancelReason, &o.RefundReason, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return orders.Order{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Order{}, err
	}
	o.Price = d
	o.Status = orders.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

var _ orders.Repository = (*OrderRepository)(nil)
