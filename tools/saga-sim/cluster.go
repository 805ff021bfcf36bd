package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/bus"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	inventoryapp "github.com/md-rashed-zaman/ordersaga/services/inventory-service/app"
	notificationapp "github.com/md-rashed-zaman/ordersaga/services/notification-service/app"
	orderapp "github.com/md-rashed-zaman/ordersaga/services/order-service/app"
	paymentapp "github.com/md-rashed-zaman/ordersaga/services/payment-service/app"
)

type Options struct {
	Gateway    paymentapp.Gateway
	Duplicates bool
	Relay      outbox.RelayConfig
	Logger     *slog.Logger
}

// Cluster runs the four services in one process over a memory broker. Each
// service owns its own store, as it would own its own database.
type Cluster struct {
	Broker        *bus.MemoryBroker
	Orders        *orderapp.App
	Inventory     *inventoryapp.App
	Payments      *paymentapp.App
	Notifications *notificationapp.App

	logger *slog.Logger
}

func NewCluster(opts Options) *Cluster {
	if opts.Gateway == nil {
		opts.Gateway = &paymentapp.FixedGateway{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Relay.PollEvery <= 0 {
		opts.Relay.PollEvery = 20 * time.Millisecond
	}
	var brokerOpts []bus.MemoryOption
	if opts.Duplicates {
		brokerOpts = append(brokerOpts, bus.WithDuplicateDelivery())
	}
	broker := bus.NewMemoryBroker(brokerOpts...)
	return &Cluster{
		Broker:        broker,
		Orders:        orderapp.NewInMemory(broker, opts.Logger, opts.Relay),
		Inventory:     inventoryapp.NewInMemory(broker, opts.Logger, opts.Relay),
		Payments:      paymentapp.NewInMemory(broker, opts.Gateway, opts.Logger, opts.Relay),
		Notifications: notificationapp.NewInMemory(broker, opts.Logger, opts.Relay),
		logger:        opts.Logger,
	}
}

// Start runs every relay and consumer until ctx is done. The returned func
// waits for them to stop.
func (c *Cluster) Start(ctx context.Context) (wait func()) {
	runners := []func(context.Context){c.Orders.Run, c.Inventory.Run, c.Payments.Run, c.Notifications.Run}
	var wg sync.WaitGroup
	wg.Add(len(runners))
	for _, run := range runners {
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	return wg.Wait
}

// Handler exposes all four APIs on one mux. Identity comes from the
// X-User-Id / X-User-Roles headers.
func (c *Cluster) Handler() http.Handler {
	mux := http.NewServeMux()
	routes := map[string]http.Handler{
		"/api/v1/orders":        c.Orders.API,
		"/api/v1/inventory":     c.Inventory.API,
		"/api/v1/payments":      c.Payments.API,
		"/api/v1/notifications": c.Notifications.API,
	}
	for prefix, api := range routes {
		mux.Handle(prefix, api)
		mux.Handle(prefix+"/", api)
	}
	authn := auth.Authenticator{TrustHeaders: true}
	return httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(c.logger),
		httpx.WithRecover(c.logger),
		authn.Middleware(),
	)
}

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-ctx.Done():
			return cond()
		case <-t.C:
		}
	}
}
