// Package app wires the payment service. The payment row keyed by order id
// makes every handler idempotent, so this consumer runs without an inbox.
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
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/gateway"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/handlers"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/payments"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/storage"
)

const Name = "payment-service"

type (
	Payment = payments.Payment
	Status  = payments.Status
	Gateway = gateway.Gateway
	// FixedGateway always approves or always declines.
	FixedGateway = gateway.Fixed
)

const (
	StatusPending  = payments.StatusPending
	StatusSuccess  = payments.StatusSuccess
	StatusFailed   = payments.StatusFailed
	StatusRefunded = payments.StatusRefunded
	StatusVoided   = payments.StatusVoided
)

// NewRandomGateway approves a ratio of charges and remembers each outcome.
func NewRandomGateway(ratio float64) Gateway {
	return gateway.NewRandom(ratio, nil)
}

type Deps struct {
	Tx         db.Transactor
	Payments   payments.Repository
	Outbox     outbox.Repository
	Gateway    gateway.Gateway
	Publisher  bus.Publisher
	Subscriber bus.Subscriber
	Registry   *events.Registry
	Logger     *slog.Logger

	Relay              outbox.RelayConfig
	ConsumerMaxElapsed time.Duration
}

type App struct {
	Payments *payments.Service
	Relay    *outbox.Relay
	Consumer *consumer.Consumer
	API      http.Handler
}

func New(d Deps) *App {
	svc := payments.NewService(d.Tx, d.Payments, outbox.NewRecorder(d.Outbox, d.Registry), d.Gateway, d.Logger)

	c := consumer.New(Name, d.Subscriber, d.Registry, d.Logger,
		consumer.WithDeadLetter(d.Publisher),
		consumer.WithMaxElapsed(d.ConsumerMaxElapsed),
	)
	svc.Register(c)

	mux := http.NewServeMux()
	handlers.NewPaymentHandler(svc, d.Logger).Register(mux)

	return &App{
		Payments: svc,
		Relay:    outbox.NewRelay(d.Tx, d.Outbox, d.Publisher, d.Registry, d.Logger, d.Relay),
		Consumer: c,
		API:      mux,
	}
}

func NewInMemory(broker *bus.MemoryBroker, gw Gateway, logger *slog.Logger, relay outbox.RelayConfig) *App {
	store := memstore.New()
	return New(Deps{
		Tx:         store,
		Payments:   storage.NewMemoryPaymentRepository(store),
		Outbox:     outbox.NewMemoryRepository(store),
		Gateway:    gw,
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
