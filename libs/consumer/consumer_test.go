package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/inbox"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paymentSuccessMessage(t *testing.T, eventID string) bus.Message {
	t.Helper()
	env, err := events.Default().NewEnvelope(eventID, "o-1", events.PaymentSuccess, events.PaymentSucceededPayload{
		OrderID:    "o-1",
		CustomerID: "C1",
	})
	require.NoError(t, err)
	value, err := env.Marshal()
	require.NoError(t, err)
	return bus.Message{
		Topic:   events.TopicPaymentSuccess,
		Key:     "o-1",
		Value:   value,
		Headers: map[string]string{bus.HeaderEventID: eventID},
	}
}

func TestHandleDerivesTopics(t *testing.T) {
	c := New("payment", bus.NewMemoryBroker().Subscriber("payment"), events.Default(), discardLogger())
	noop := func(context.Context, events.Envelope, events.Payload) error { return nil }
	c.Handle(events.OrderCreated, noop)
	c.Handle(events.OrderCancelled, noop)
	c.Handle(events.OrderRefunded, noop)
	assert.Equal(t, []string{events.TopicOrders, events.TopicOrderCancellations}, c.Topics())
}

func TestDispatchDecodesTypedPayload(t *testing.T) {
	c := New("order", nil, events.Default(), discardLogger())
	var got events.PaymentSucceededPayload
	c.Handle(events.PaymentSuccess, func(_ context.Context, _ events.Envelope, p events.Payload) error {
		var err error
		got, err = events.As[events.PaymentSucceededPayload](p)
		return err
	})

	require.NoError(t, c.Dispatch(context.Background(), paymentSuccessMessage(t, "e-1")))
	assert.Equal(t, "C1", got.CustomerID)
}

func TestDispatchSkipsDuplicatesWithInbox(t *testing.T) {
	store := memstore.New()
	c := New("order", nil, events.Default(), discardLogger(), WithInbox(store, inbox.NewMemoryStore(store)))
	var calls atomic.Int32
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		calls.Add(1)
		return nil
	})

	msg := paymentSuccessMessage(t, "e-1")
	require.NoError(t, c.Dispatch(context.Background(), msg))
	require.NoError(t, c.Dispatch(context.Background(), msg))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatchRetriesTransientErrors(t *testing.T) {
	store := memstore.New()
	c := New("order", nil, events.Default(), discardLogger(),
		WithInbox(store, inbox.NewMemoryStore(store)),
		WithMaxElapsed(5*time.Second),
	)
	var calls atomic.Int32
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		if calls.Add(1) < 3 {
			return apperr.Conflict("version mismatch")
		}
		return nil
	})

	require.NoError(t, c.Dispatch(context.Background(), paymentSuccessMessage(t, "e-1")))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatchDeadLettersPermanentFailure(t *testing.T) {
	broker := bus.NewMemoryBroker()
	c := New("order", nil, events.Default(), discardLogger(), WithDeadLetter(broker))
	var calls atomic.Int32
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		calls.Add(1)
		return apperr.NotFound("order o-1")
	})

	require.NoError(t, c.Dispatch(context.Background(), paymentSuccessMessage(t, "e-1")))
	assert.Equal(t, int32(1), calls.Load())

	dlq := broker.Messages(events.DeadLetterTopic(events.TopicPaymentSuccess))
	require.Len(t, dlq, 1)
	assert.Contains(t, dlq[0].Header(bus.HeaderError), "not found")
	assert.Equal(t, "e-1", dlq[0].Header(bus.HeaderEventID))
}

func TestDispatchDeadLettersPoison(t *testing.T) {
	broker := bus.NewMemoryBroker()
	c := New("order", nil, events.Default(), discardLogger(), WithDeadLetter(broker))
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		t.Fatal("handler must not run for poison")
		return nil
	})

	msg := bus.Message{Topic: events.TopicPaymentSuccess, Key: "o-1", Value: []byte("{garbage")}
	require.NoError(t, c.Dispatch(context.Background(), msg))
	assert.Len(t, broker.Messages(events.DeadLetterTopic(events.TopicPaymentSuccess)), 1)
}

func TestDispatchIgnoresUnroutedTypes(t *testing.T) {
	c := New("notification", nil, events.Default(), discardLogger())
	c.Handle(events.PaymentFailed, func(context.Context, events.Envelope, events.Payload) error {
		return errors.New("unexpected")
	})
	require.NoError(t, c.Dispatch(context.Background(), paymentSuccessMessage(t, "e-1")))
}

func TestDispatchFailedHandlerRollsBackInboxMark(t *testing.T) {
	store := memstore.New()
	marks := inbox.NewMemoryStore(store)
	c := New("order", nil, events.Default(), discardLogger(), WithInbox(store, marks))
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		return apperr.Validation("order already shipped")
	})

	require.NoError(t, c.Dispatch(context.Background(), paymentSuccessMessage(t, "e-1")))

	first, err := marks.Record(context.Background(), "order", "e-1", events.PaymentSuccess)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRunConsumesFromBroker(t *testing.T) {
	broker := bus.NewMemoryBroker()
	c := New("order", broker.Subscriber("order"), events.Default(), discardLogger())
	var calls atomic.Int32
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.NoError(t, broker.Publish(ctx, paymentSuccessMessage(t, "e-1")))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDispatchKeepsTransientFailureUnacked(t *testing.T) {
	broker := bus.NewMemoryBroker()
	c := New("payment", nil, events.Default(), discardLogger(),
		WithDeadLetter(broker),
		WithMaxElapsed(50*time.Millisecond),
	)
	var outage atomic.Bool
	outage.Store(true)
	var applied atomic.Int32
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		if outage.Load() {
			return apperr.Transient("gateway unreachable")
		}
		applied.Add(1)
		return nil
	})

	msg := paymentSuccessMessage(t, "e-1")
	err := c.Dispatch(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.Empty(t, broker.Messages(events.DeadLetterTopic(events.TopicPaymentSuccess)))

	outage.Store(false)
	require.NoError(t, c.Dispatch(context.Background(), msg))
	assert.Equal(t, int32(1), applied.Load())
	assert.Empty(t, broker.Messages(events.DeadLetterTopic(events.TopicPaymentSuccess)))
}

func TestRunRedeliversAfterLongOutage(t *testing.T) {
	broker := bus.NewMemoryBroker()
	c := New("payment", broker.Subscriber("payment"), events.Default(), discardLogger(),
		WithDeadLetter(broker),
		WithMaxElapsed(20*time.Millisecond),
	)
	var outage atomic.Bool
	outage.Store(true)
	var attempts, applied atomic.Int32
	c.Handle(events.PaymentSuccess, func(context.Context, events.Envelope, events.Payload) error {
		attempts.Add(1)
		if outage.Load() {
			return apperr.Conflict("version mismatch")
		}
		applied.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.NoError(t, broker.Publish(ctx, paymentSuccessMessage(t, "e-1")))
	// Several backoff windows pass while the fault persists.
	require.Eventually(t, func() bool { return attempts.Load() >= 4 }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, applied.Load())

	outage.Store(false)
	require.Eventually(t, func() bool { return applied.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Empty(t, broker.Messages(events.DeadLetterTopic(events.TopicPaymentSuccess)))
}
