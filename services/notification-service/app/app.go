// Package app wires the notification service.
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
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/handlers"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/notify"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/storage"
)

const Name = "notification-service"

type (
	Notification = notify.Notification
	Filter       = notify.Filter
	Config       = notify.Config
)

const (
	StatusSent      = notify.StatusSent
	StatusSimulated = notify.StatusSimulated
	StatusFailed    = notify.StatusFailed
)

type Deps struct {
	Tx            db.Transactor
	Notifications notify.Repository
	Outbox        outbox.Repository
	Inbox         inbox.Store
	Sender        email.Sender
	Config        notify.Config
	Publisher     bus.Publisher
	Subscriber    bus.Subscriber
	Registry      *events.Registry
	Logger        *slog.Logger

	Relay              outbox.RelayConfig
	ConsumerMaxElapsed time.Duration
}

type App struct {
	Notifications *notify.Service
	Relay         *outbox.Relay
	Consumer      *consumer.Consumer
	API           http.Handler
}

func New(d Deps) *App {
	svc := notify.NewService(d.Tx, d.Notifications, outbox.NewRecorder(d.Outbox, d.Registry), d.Sender, d.Config, d.Logger)

	c := consumer.New(Name, d.Subscriber, d.Registry, d.Logger,
		consumer.WithInbox(d.Tx, d.Inbox),
		consumer.WithDeadLetter(d.Publisher),
		consumer.WithMaxElapsed(d.ConsumerMaxElapsed),
	)
	svc.Register(c)

	mux := http.NewServeMux()
	handlers.NewNotificationHandler(svc, d.Logger).Register(mux)

	return &App{
		Notifications: svc,
		Relay:         outbox.NewRelay(d.Tx, d.Outbox, d.Publisher, d.Registry, d.Logger, d.Relay),
		Consumer:      c,
		API:           mux,
	}
}

// NewInMemory runs in simulation mode: no email leaves the process.
func NewInMemory(broker *bus.MemoryBroker, logger *slog.Logger, relay outbox.RelayConfig) *App {
	store := memstore.New()
	return New(Deps{
		Tx:            store,
		Notifications: storage.NewMemoryNotificationRepository(store),
		Outbox:        outbox.NewMemoryRepository(store),
		Inbox:         inbox.NewMemoryStore(store),
		Config:        notify.Config{EmailEnabled: false},
		Publisher:     broker,
		Subscriber:    broker.Subscriber(Name),
		Registry:      events.Default(),
		Logger:        logger.With("service", Name),
		Relay:         relay,
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
