package outbox

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
)

type MemoryRepository struct {
	store   *memstore.Store
	pending *memstore.Table[Event]
	dead    *memstore.Table[DeadLetter]
}

func NewMemoryRepository(store *memstore.Store) *MemoryRepository {
	return &MemoryRepository{
		store:   store,
		pending: memstore.NewTable[Event](store),
		dead:    memstore.NewTable[DeadLetter](store),
	}
}

func (r *MemoryRepository) Insert(ctx context.Context, e Event) error {
	if err := r.store.RequireTx(ctx); err != nil {
		return err
	}
	if !r.pending.Insert(ctx, e.ID, e) {
		return apperr.Conflict("outbox event %s exists", e.ID)
	}
	return nil
}

func (r *MemoryRepository) FetchPending(ctx context.Context, limit int) ([]Event, error) {
	var out []Event
	r.pending.Scan(ctx, func(_ string, e Event) bool {
		out = append(out, e)
		return len(out) < limit
	})
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.pending.Delete(ctx, id)
	return nil
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id string, reason string) (int, error) {
	attempts := 0
	err := r.store.WithinTx(ctx, func(ctx context.Context) error {
		e, ok := r.pending.Get(ctx, id)
		if !ok {
			return apperr.NotFound("outbox event %s", id)
		}
		e.Attempts++
		e.LastError = reason
		r.pending.Put(ctx, id, e)
		attempts = e.Attempts
		return nil
	})
	return attempts, err
}

func (r *MemoryRepository) DeadLetter(ctx context.Context, e Event, reason string) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		r.dead.Put(ctx, e.ID, DeadLetter{Event: e, Reason: reason, FailedAt: time.Now().UTC()})
		r.pending.Delete(ctx, e.ID)
		return nil
	})
}

func (r *MemoryRepository) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	var out []DeadLetter
	r.dead.Scan(ctx, func(_ string, d DeadLetter) bool {
		out = append(out, d)
		return len(out) < limit
	})
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
