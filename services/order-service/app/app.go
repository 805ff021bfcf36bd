// Package app wires the order service from its ports. The binary uses it with
// Postgres and Kafka; the saga simulator uses it with in-memory adapters.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/consumer"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/inbox"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/handlers"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/storage"
)

const Name = "order-service"

type (
	Order      = orders.Order
	Status     = orders.Status
	PlaceOrder = orders.PlaceOrder
)

const (
	StatusCreated         = orders.StatusCreated
	StatusPaid            = orders.StatusPaid
	StatusShipped         = orders.StatusShipped
	StatusDelivered       = orders.StatusDelivered
	StatusRefundRequested = orders.StatusRefundRequested
	StatusRefunded        = orders.StatusRefunded
	StatusCancelled       = orders.StatusCancelled
)

type Deps struct {
	Tx         db.Transactor
	Orders     orders.Repository
	Outbox     outbox.Repository
	Inbox      inbox.Store
	Cache      orders.Cache
	Publisher  bus.Publisher
	Subscriber bus.Subscriber
	Registry   *events.Registry
	Logger     *slog.Logger

	Relay              outbox.RelayConfig
	ConsumerMaxElapsed time.Duration
}

type App struct {
	Orders   *orders.Service
	Relay    *outbox.Relay
	Consumer *consumer.Consumer
	API      http.Handler
}

func New(d Deps) *App {
	svc := orders.NewService(d.Tx, d.Orders, outbox.NewRecorder(d.Outbox, d.Registry), d.Cache, d.Logger)

	c := consumer.New(Name, d.Subscriber, d.Registry, d.Logger,
		consumer.WithInbox(d.Tx, d.Inbox),
		consumer.WithDeadLetter(d.Publisher),
		consumer.WithMaxElapsed(d.ConsumerMaxElapsed),
	)
	svc.Register(c)

	mux := http.NewServeMux()
	handlers.NewOrderHandler(svc, d.Logger).Register(mux)

	return &App{
		Orders:   svc,
		Relay:    outbox.NewRelay(d.Tx, d.Outbox, d.Publisher, d.Registry, d.Logger, d.Relay),
		Consumer: c,
		API:      mux,
	}
}

// NewInMemory builds the service on a memstore and the given broker.
func NewInMemory(broker *bus.MemoryBroker, logger *slog.Logger, relay outbox.RelayConfig) *App {
	store := memstore.New()
	return New(Deps{
		Tx:         store,
		Orders:     storage.NewMemoryOrderRepository(store),
		Outbox:     outbox.NewMemoryRepository(store),
		Inbox:      inbox.NewMemoryStore(store),
		Publisher:  broker,
		Subscriber: broker.Subscriber(Name),
		Registry:   events.Default(),
		Logger:     logger.With("service", Name),
		Relay:      relay,
	})
}

// Run drives the outbox relay and the saga consumer until ctx is done.
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Relay.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.Consumer.Run(ctx)
	}()
	wg.Wait()
}
