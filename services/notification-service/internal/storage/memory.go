package storage

import (
	"context"
	"slices"

	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/notify"
)

type MemoryNotificationRepository struct {
	rows *memstore.Table[notify.Notification]
}

func NewMemoryNotificationRepository(store *memstore.Store) *MemoryNotificationRepository {
	return &MemoryNotificationRepository{rows: memstore.NewTable[notify.Notification](store)}
}

func (r *MemoryNotificationRepository) Insert(ctx context.Context, n notify.Notification) error {
	r.rows.Insert(ctx, n.ID, n)
	return nil
}

func (r *MemoryNotificationRepository) List(ctx context.Context, f notify.Filter) ([]notify.Notification, error) {
	var out []notify.Notification
	r.rows.Scan(ctx, func(_ string, n notify.Notification) bool {
		if f.OrderID == "" || n.OrderID == f.OrderID {
			out = append(out, n)
		}
		return true
	})
	slices.Reverse(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
