package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
)

type fixture struct {
	store    *memstore.Store
	repo     *MemoryRepository
	recorder *Recorder
	registry *events.Registry
}

func newFixture() fixture {
	store := memstore.New()
	repo := NewMemoryRepository(store)
	registry := events.Default()
	return fixture{store: store, repo: repo, recorder: NewRecorder(repo, registry), registry: registry}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusChanged(orderID string) events.OrderStatusChangedPayload {
	return events.OrderStatusChangedPayload{OrderID: orderID, OldStatus: "CREATED", NewStatus: "PAID"}
}

func (f fixture) record(t *testing.T, orderID string) Event {
	t.Helper()
	var e Event
	err := f.store.WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		e, err = f.recorder.Record(ctx, events.AggregateOrder, orderID, events.OrderStatusChanged, statusChanged(orderID))
		return err
	})
	require.NoError(t, err)
	return e
}

func pending(t *testing.T, repo *MemoryRepository) []Event {
	t.Helper()
	rows, err := repo.FetchPending(context.Background(), 1000)
	require.NoError(t, err)
	return rows
}

func TestRecordRequiresTransaction(t *testing.T) {
	f := newFixture()
	_, err := f.recorder.Record(context.Background(), events.AggregateOrder, "o-1", events.OrderStatusChanged, statusChanged("o-1"))
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, pending(t, f.repo))
}

func TestRecordResolvesTopicAndSchema(t *testing.T) {
	f := newFixture()
	e := f.record(t, "o-1")
	assert.Equal(t, events.TopicOrderStatus, e.Topic)
	assert.Equal(t, "order.status_changed.v1", e.SchemaRef)
	assert.NotEmpty(t, e.ID)
}

func TestInvalidPayloadFailsWholeTransaction(t *testing.T) {
	f := newFixture()
	aggregates := memstore.NewTable[string](f.store)

	err := f.store.WithinTx(context.Background(), func(ctx context.Context) error {
		aggregates.Put(ctx, "o-1", "CANCELLED")
		_, err := f.recorder.Record(ctx, events.AggregateOrder, "o-1", events.OrderCancelled, events.OrderCompensationPayload{OrderID: "o-1"})
		return err
	})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, ok := aggregates.Get(context.Background(), "o-1")
	assert.False(t, ok)
	assert.Empty(t, pending(t, f.repo))
}

func TestRelayPublishesAndDeletes(t *testing.T) {
	f := newFixture()
	e := f.record(t, "o-1")
	broker := bus.NewMemoryBroker()
	relay := NewRelay(f.store, f.repo, broker, f.registry, discardLogger(), RelayConfig{})

	stats, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RelayStats{Published: 1}, stats)
	assert.Empty(t, pending(t, f.repo))

	msgs := broker.Messages(events.TopicOrderStatus)
	require.Len(t, msgs, 1)
	assert.Equal(t, "o-1", msgs[0].Key)
	assert.Equal(t, e.ID, msgs[0].Header(bus.HeaderEventID))
	assert.Equal(t, events.OrderStatusChanged, msgs[0].Header(bus.HeaderEventType))

	env, err := events.UnmarshalEnvelope(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, e.ID, env.EventID)
	assert.Equal(t, "o-1", env.AggregateID)
	assert.JSONEq(t, string(e.Payload), string(env.Payload))
}

func TestRelayRowFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture()
	f.record(t, "o-bad")
	f.record(t, "o-good")

	broker := bus.NewMemoryBroker(bus.WithPublishHook(func(m bus.Message) error {
		if m.Key == "o-bad" {
			return errors.New("broker unavailable")
		}
		return nil
	}))
	relay := NewRelay(f.store, f.repo, broker, f.registry, discardLogger(), RelayConfig{MaxAttempts: 3})

	stats, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Published)
	assert.Equal(t, 1, stats.Failed)

	rows := pending(t, f.repo)
	require.Len(t, rows, 1)
	assert.Equal(t, "o-bad", rows[0].AggregateID)
	assert.Equal(t, 1, rows[0].Attempts)
	assert.Equal(t, "broker unavailable", rows[0].LastError)
}

func TestRelayDeadLettersAfterMaxAttempts(t *testing.T) {
	f := newFixture()
	f.record(t, "o-1")
	broker := bus.NewMemoryBroker(bus.WithPublishHook(func(bus.Message) error { return errors.New("down") }))
	relay := NewRelay(f.store, f.repo, broker, f.registry, discardLogger(), RelayConfig{MaxAttempts: 3})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Len(t, pending(t, f.repo), 1)
	}
	stats, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeadLettered)
	assert.Empty(t, pending(t, f.repo))

	dead, err := f.repo.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].Attempts)
}

func TestRelayDeadLettersPoisonImmediately(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context) error {
		return f.repo.Insert(ctx, Event{
			ID:          "e-poison",
			AggregateID: "o-1",
			EventType:   events.OrderCreated,
			Topic:       events.TopicOrders,
			Payload:     []byte(`{"orderId":`),
			SchemaRef:   "order.created.v1",
		})
	}))
	f.record(t, "o-2")

	broker := bus.NewMemoryBroker()
	relay := NewRelay(f.store, f.repo, broker, f.registry, discardLogger(), RelayConfig{})

	stats, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RelayStats{Published: 1, DeadLettered: 1}, stats)
	assert.Empty(t, broker.Messages(events.TopicOrders))
	assert.Len(t, broker.Messages(events.TopicOrderStatus), 1)
}

func TestRelayKeepsAggregateOrder(t *testing.T) {
	f := newFixture()
	first := f.record(t, "o-1")
	second := f.record(t, "o-1")

	broker := bus.NewMemoryBroker()
	relay := NewRelay(f.store, f.repo, broker, f.registry, discardLogger(), RelayConfig{})
	_, err := relay.RunOnce(context.Background())
	require.NoError(t, err)

	msgs := broker.Messages(events.TopicOrderStatus)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].Header(bus.HeaderEventID))
	assert.Equal(t, second.ID, msgs[1].Header(bus.HeaderEventID))
}
