package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/notify"
)

type NotificationRepository struct {
	pool *db.Pool
}

func NewNotificationRepository(pool *db.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Insert(ctx context.Context, n notify.Notification) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO notifications (id, order_id, customer_id, channel, recipient, subject, message, status, reason, source_event, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
	`, n.ID, n.OrderID, n.CustomerID, n.Channel, n.Recipient, n.Subject, n.Message, string(n.Status), n.Reason, n.SourceEvent, n.CreatedAt)
	return err
}

func (r *NotificationRepository) List(ctx context.Context, f notify.Filter) ([]notify.Notification, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT id::text, order_id, customer_id, channel, recipient, subject, message, status,
			COALESCE(reason, ''), source_event, created_at
		FROM notifications
		WHERE $1 = '' OR order_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, f.OrderID, f.Limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notify.Notification, error) {
		var n notify.Notification
		var status string
		err := row.Scan(&n.ID, &n.OrderID, &n.CustomerID, &n.Channel, &n.Recipient, &n.Subject,
			&n.Message, &status, &n.Reason, &n.SourceEvent, &n.CreatedAt)
		n.Status = notify.Status(status)
		return n, err
	})
}
