package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
)

func TestMemoryStoreDetectsDuplicates(t *testing.T) {
	s := NewMemoryStore(memstore.New())
	ctx := context.Background()

	first, err := s.Record(ctx, "inventory", "e-1", "ORDER_CREATED")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.Record(ctx, "inventory", "e-1", "ORDER_CREATED")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.Record(ctx, "payment", "e-1", "ORDER_CREATED")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryStoreMarkRollsBackWithEffect(t *testing.T) {
	store := memstore.New()
	s := NewMemoryStore(store)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.Record(ctx, "order", "e-1", "PAYMENT_SUCCESS")
		require.NoError(t, err)
		return errors.New("handler failed")
	})
	require.Error(t, err)

	first, err := s.Record(ctx, "order", "e-1", "PAYMENT_SUCCESS")
	require.NoError(t, err)
	assert.True(t, first)
}
