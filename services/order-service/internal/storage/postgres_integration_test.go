//go:build integration

package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/inbox"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/storage"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/migrations"
)

type PostgresSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	pool      *db.Pool
	orders    *storage.OrderRepository
	outbox    *outbox.PostgresRepository
	logger    *slog.Logger
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.container, err = tcpostgres.Run(s.ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)

	dsn, err := s.container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate(dsn, migrations.FS))

	s.pool, err = db.Open(s.ctx, dsn)
	s.Require().NoError(err)
	s.orders = storage.NewOrderRepository(s.pool)
	s.outbox = outbox.NewPostgresRepository(s.pool)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(s.ctx))
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE orders, outbox_events, outbox_dead_letters, inbox_events`)
	s.Require().NoError(err)
}

func (s *PostgresSuite) service(recorder orders.EventRecorder) *orders.Service {
	return orders.NewService(s.pool, s.orders, recorder, orders.NoCache{}, s.logger)
}

func placeSKU1() orders.PlaceOrder {
	return orders.PlaceOrder{CustomerID: "C1", ProductID: "SKU1", Quantity: 5, Price: decimal.RequireFromString("10.00")}
}

func (s *PostgresSuite) TestPlaceWritesOrderAndOutboxTogether() {
	svc := s.service(outbox.NewRecorder(s.outbox, events.Default()))

	o, err := svc.Place(s.ctx, placeSKU1())
	s.Require().NoError(err)

	got, err := s.orders.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(orders.StatusCreated, got.Status)
	s.True(decimal.RequireFromString("10.00").Equal(got.Price))

	pending, err := s.outbox.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(events.OrderCreated, pending[0].EventType)
	s.Equal(o.ID, pending[0].AggregateID)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, string, string, string, events.Payload) (outbox.Event, error) {
	return outbox.Event{}, errors.New("outbox unavailable")
}

func (s *PostgresSuite) TestRecorderFailureRollsBackOrder() {
	svc := s.service(failingRecorder{})

	_, err := svc.Place(s.ctx, placeSKU1())
	s.Require().Error(err)

	list, err := s.orders.ListByCustomer(s.ctx, "C1")
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *PostgresSuite) TestStaleVersionIsRejected() {
	svc := s.service(outbox.NewRecorder(s.outbox, events.Default()))
	o, err := svc.Place(s.ctx, placeSKU1())
	s.Require().NoError(err)

	o.Status = orders.StatusPaid
	o.Version = 1
	s.NoError(s.orders.Update(s.ctx, o, 0))
	s.ErrorIs(s.orders.Update(s.ctx, o, 0), orders.ErrVersionConflict)
}

func (s *PostgresSuite) TestGetAndUpdateByUUID() {
	svc := s.service(outbox.NewRecorder(s.outbox, events.Default()))
	o, err := svc.Place(s.ctx, placeSKU1())
	s.Require().NoError(err)

	got, err := s.orders.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(o.ID, got.ID)

	_, err = s.orders.Get(s.ctx, "not-a-uuid")
	s.ErrorIs(err, orders.ErrNotFound)
	_, err = s.orders.Get(s.ctx, uuid.NewString())
	s.ErrorIs(err, orders.ErrNotFound)

	o.ID = "not-a-uuid"
	s.ErrorIs(s.orders.Update(s.ctx, o, 0), orders.ErrNotFound)
}

func (s *PostgresSuite) TestRelayPublishesAndDeletes() {
	svc := s.service(outbox.NewRecorder(s.outbox, events.Default()))
	o, err := svc.Place(s.ctx, placeSKU1())
	s.Require().NoError(err)
	_, err = svc.Cancel(s.ctx, o.ID, "changed my mind")
	s.Require().NoError(err)

	broker := bus.NewMemoryBroker()
	relay := outbox.NewRelay(s.pool, s.outbox, broker, events.Default(), s.logger, outbox.RelayConfig{})
	stats, err := relay.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, stats.Published)

	s.Len(broker.Messages(events.TopicOrders), 1)
	s.Len(broker.Messages(events.TopicOrderCancellations), 1)
	s.Len(broker.Messages(events.TopicOrderStatus), 1)

	pending, err := s.outbox.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresSuite) TestInboxRecordsOnce() {
	store := inbox.NewPostgresStore(s.pool)
	var first, second bool
	err := s.pool.WithinTx(s.ctx, func(ctx context.Context) error {
		var err error
		first, err = store.Record(ctx, "order-service", "e-1", events.PaymentSuccess)
		return err
	})
	s.Require().NoError(err)
	second, err = store.Record(s.ctx, "order-service", "e-1", events.PaymentSuccess)
	s.Require().NoError(err)
	s.True(first)
	s.False(second)
}
