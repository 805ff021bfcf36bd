// Package app wires the inventory service from its ports.
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
	"github.com/md-rashed-zaman/ordersaga/services/inventory-service/internal/handlers"
	"github.com/md-rashed-zaman/ordersaga/services/inventory-service/internal/inventory"
	"github.com/md-rashed-zaman/ordersaga/services/inventory-service/internal/storage"
)

const Name = "inventory-service"

type (
	Item              = inventory.Item
	Reservation       = inventory.Reservation
	ReservationStatus = inventory.ReservationStatus
)

const (
	ReservationReserved = inventory.ReservationReserved
	ReservationReleased = inventory.ReservationReleased
	ReservationRejected = inventory.ReservationRejected
)

type Deps struct {
	Tx         db.Transactor
	Inventory  inventory.Repository
	Outbox     outbox.Repository
	Inbox      inbox.Store
	Publisher  bus.Publisher
	Subscriber bus.Subscriber
	Registry   *events.Registry
	Logger     *slog.Logger

	Relay              outbox.RelayConfig
	ConsumerMaxElapsed time.Duration
}

type App struct {
	Inventory *inventory.Service
	Relay     *outbox.Relay
	Consumer  *consumer.Consumer
	API       http.Handler
}

func New(d Deps) *App {
	svc := inventory.NewService(d.Tx, d.Inventory, outbox.NewRecorder(d.Outbox, d.Registry), d.Logger)

	c := consumer.New(Name, d.Subscriber, d.Registry, d.Logger,
		consumer.WithInbox(d.Tx, d.Inbox),
		consumer.WithDeadLetter(d.Publisher),
		consumer.WithMaxElapsed(d.ConsumerMaxElapsed),
	)
	svc.Register(c)

	mux := http.NewServeMux()
	handlers.NewInventoryHandler(svc, d.Logger).Register(mux)

	return &App{
		Inventory: svc,
		Relay:     outbox.NewRelay(d.Tx, d.Outbox, d.Publisher, d.Registry, d.Logger, d.Relay),
		Consumer:  c,
		API:       mux,
	}
}

func NewInMemory(broker *bus.MemoryBroker, logger *slog.Logger, relay outbox.RelayConfig) *App {
	store := memstore.New()
	return New(Deps{
		Tx:         store,
		Inventory:  storage.NewMemoryInventoryRepository(store),
		Outbox:     outbox.NewMemoryRepository(store),
		Inbox:      inbox.NewMemoryStore(store),
		Publisher:  broker,
		Subscriber: broker.Subscriber(Name),
		Registry:   events.Default(),
		Logger:     logger.With("service", Name),
		Relay:      relay,
	})
}

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
