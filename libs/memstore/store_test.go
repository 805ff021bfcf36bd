package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
)

func TestWithinTxCommits(t *testing.T) {
	s := New()
	orders := NewTable[int](s)
	events := NewTable[string](s)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		orders.Put(ctx, "o-1", 1)
		events.Put(ctx, "e-1", "ORDER_CREATED")
		return nil
	})
	require.NoError(t, err)

	v, ok := orders.Get(ctx, "o-1")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, events.Len(ctx))
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	orders := NewTable[int](s)
	events := NewTable[string](s)
	ctx := context.Background()
	orders.Put(ctx, "o-1", 1)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		orders.Put(ctx, "o-1", 2)
		orders.Put(ctx, "o-2", 1)
		events.Put(ctx, "e-1", "ORDER_STATUS_CHANGED")
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, _ := orders.Get(ctx, "o-1")
	assert.Equal(t, 1, v)
	_, ok := orders.Get(ctx, "o-2")
	assert.False(t, ok)
	assert.Zero(t, events.Len(ctx))
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	s := New()
	orders := NewTable[int](s)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context) error {
			orders.Put(ctx, "o-1", 1)
			panic("crash before commit")
		})
	})
	assert.Zero(t, orders.Len(ctx))

	// The lock must have been released.
	orders.Put(ctx, "o-2", 2)
	assert.Equal(t, 1, orders.Len(ctx))
}

func TestNestedTxJoinsOuter(t *testing.T) {
	s := New()
	orders := NewTable[int](s)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.RequireTx(ctx))
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context) error {
			orders.Put(ctx, "o-1", 1)
			return nil
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Zero(t, orders.Len(ctx))
}

func TestRequireTxOutsideTransaction(t *testing.T) {
	s := New()
	assert.Error(t, s.RequireTx(context.Background()))
}

func TestScanKeepsInsertionOrder(t *testing.T) {
	s := New()
	tbl := NewTable[int](s)
	ctx := context.Background()
	for i, k := range []string{"c", "a", "b"} {
		assert.True(t, tbl.Insert(ctx, k, i))
	}
	assert.False(t, tbl.Insert(ctx, "a", 9))
	tbl.Delete(ctx, "a")

	var keys []string
	tbl.Scan(ctx, func(k string, _ int) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []string{"c", "b"}, keys)
}

func TestAfterCommitRunsOnceOuterTxCommits(t *testing.T) {
	s := New()
	orders := NewTable[int](s)
	ctx := context.Background()

	var seen []int
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context) error {
			orders.Put(ctx, "o-1", 1)
			db.AfterCommit(ctx, func() {
				// Runs outside the lock, so a plain read sees the committed row.
				v, _ := orders.Get(context.Background(), "o-1")
				seen = append(seen, v)
			})
			return nil
		}))
		assert.Empty(t, seen, "inner tx must not fire hooks")
		orders.Put(ctx, "o-1", 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, seen)
}

func TestAfterCommitDroppedOnRollback(t *testing.T) {
	s := New()
	ctx := context.Background()

	fired := false
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		db.AfterCommit(ctx, func() { fired = true })
		return errors.New("rollback")
	})
	require.Error(t, err)
	assert.False(t, fired)
}
