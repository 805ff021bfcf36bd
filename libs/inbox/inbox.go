// Package inbox remembers which events a consumer already applied.
package inbox

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
)

// Store records (consumer, event id) pairs. Record reports false for a pair
// that was already recorded. Call it inside the transaction that applies the
// event so the mark and the effect commit together.
type Store interface {
	Record(ctx context.Context, consumer, eventID, eventType string) (bool, error)
}

type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Record(ctx context.Context, consumer, eventID, eventType string) (bool, error) {
	tag, err := s.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO inbox_events (consumer, event_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer, event_id) DO NOTHING
	`, consumer, eventID, eventType)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type record struct {
	EventType   string
	ProcessedAt time.Time
}

type MemoryStore struct {
	rows *memstore.Table[record]
}

func NewMemoryStore(store *memstore.Store) *MemoryStore {
	return &MemoryStore{rows: memstore.NewTable[record](store)}
}

func (s *MemoryStore) Record(ctx context.Context, consumer, eventID, eventType string) (bool, error) {
	return s.rows.Insert(ctx, consumer+"/"+eventID, record{EventType: eventType, ProcessedAt: time.Now().UTC()}), nil
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
