package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/consumer"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/inbox"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/notify"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/storage"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fixture struct {
	store  *memstore.Store
	sender *recordingSender
	outbox *outbox.MemoryRepository
	svc    *notify.Service
}

func newFixture(cfg notify.Config) fixture {
	store := memstore.New()
	sender := &recordingSender{}
	ob := outbox.NewMemoryRepository(store)
	svc := notify.NewService(store, storage.NewMemoryNotificationRepository(store),
		outbox.NewRecorder(ob, events.Default()), sender, cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return fixture{store: store, sender: sender, outbox: ob, svc: svc}
}

func (f fixture) pending(t *testing.T) []outbox.Event {
	t.Helper()
	rows, err := f.outbox.FetchPending(context.Background(), 100)
	require.NoError(t, err)
	return rows
}

func TestSendConfirmationDeliversEmail(t *testing.T) {
	f := newFixture(notify.Config{EmailEnabled: true, EmailDomain: "shop.test"})

	n, err := f.svc.SendConfirmation(context.Background(), "o-1", "C1")
	require.NoError(t, err)
	assert.Equal(t, notify.StatusSent, n.Status)
	assert.Equal(t, "C1@shop.test", n.Recipient)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Order Confirmation - Order #o-1", f.sender.sent[0].Subject)
	assert.Contains(t, f.sender.sent[0].Body, "Dear C1")

	rows := f.pending(t)
	require.Len(t, rows, 1)
	assert.Equal(t, events.NotificationSent, rows[0].EventType)
	assert.Equal(t, "o-1", rows[0].AggregateID)
}

func TestSimulationModeSkipsSMTP(t *testing.T) {
	f := newFixture(notify.Config{EmailEnabled: false})

	n, err := f.svc.SendConfirmation(context.Background(), "o-1", "C1")
	require.NoError(t, err)
	assert.Equal(t, notify.StatusSimulated, n.Status)
	assert.Equal(t, "C1@example.com", n.Recipient)
	assert.Empty(t, f.sender.sent)
	assert.Equal(t, events.NotificationSent, f.pending(t)[0].EventType)
}

func TestSendFailureIsRecorded(t *testing.T) {
	f := newFixture(notify.Config{EmailEnabled: true})
	f.sender.err = errors.New("connection refused")

	n, err := f.svc.SendConfirmation(context.Background(), "o-1", "C1")
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, n.Status)
	assert.Contains(t, n.Reason, "connection refused")
	assert.Equal(t, events.NotificationFailed, f.pending(t)[0].EventType)

	list, err := f.svc.List(context.Background(), notify.Filter{OrderID: "o-1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notify.StatusFailed, list[0].Status)
}

func TestNotifyRequiresIdentifiers(t *testing.T) {
	f := newFixture(notify.Config{})
	_, err := f.svc.SendConfirmation(context.Background(), "", "C1")
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.pending(t))
}

func TestListNewestFirstAndFiltered(t *testing.T) {
	f := newFixture(notify.Config{})
	ctx := context.Background()
	for _, id := range []string{"o-1", "o-2", "o-1"} {
		_, err := f.svc.SendConfirmation(ctx, id, "C1")
		require.NoError(t, err)
	}

	all, err := f.svc.List(ctx, notify.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "o-1", all[0].OrderID)
	assert.Equal(t, "o-2", all[1].OrderID)

	one, err := f.svc.List(ctx, notify.Filter{OrderID: "o-2"})
	require.NoError(t, err)
	assert.Len(t, one, 1)

	limited, err := f.svc.List(ctx, notify.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func paymentMessage(t *testing.T, eventID, eventType string, payload events.Payload) bus.Message {
	t.Helper()
	env, err := events.Default().NewEnvelope(eventID, "o-1", eventType, payload)
	require.NoError(t, err)
	value, err := env.Marshal()
	require.NoError(t, err)
	schema, _ := events.Default().ByType(eventType)
	return bus.Message{Topic: schema.Topic, Key: "o-1", Value: value}
}

func TestPaymentEventsNotifyOncePerDelivery(t *testing.T) {
	f := newFixture(notify.Config{EmailEnabled: true})
	ctx := context.Background()
	c := consumer.New("notification-service", nil, events.Default(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		consumer.WithInbox(f.store, inbox.NewMemoryStore(f.store)))
	f.svc.Register(c)

	success := paymentMessage(t, "e-1", events.PaymentSuccess, events.PaymentSucceededPayload{OrderID: "o-1", CustomerID: "C1"})
	require.NoError(t, c.Dispatch(ctx, success))
	require.NoError(t, c.Dispatch(ctx, success))

	failed := paymentMessage(t, "e-2", events.PaymentFailed, events.PaymentFailedPayload{OrderID: "o-1", CustomerID: "C1", Reason: "card declined"})
	require.NoError(t, c.Dispatch(ctx, failed))

	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, "Order Confirmation - Order #o-1", f.sender.sent[0].Subject)
	assert.Equal(t, "Payment Failed - Order #o-1", f.sender.sent[1].Subject)
	assert.Contains(t, f.sender.sent[1].Body, "card declined")

	list, err := f.svc.List(ctx, notify.Filter{OrderID: "o-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, events.PaymentFailed, list[0].SourceEvent)
}
