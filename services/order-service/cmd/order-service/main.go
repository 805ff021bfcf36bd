package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/inbox"
	otelx "github.com/md-rashed-zaman/ordersaga/libs/otel"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/libs/platform"
	"github.com/md-rashed-zaman/ordersaga/libs/runtime"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/app"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/cache"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/storage"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/migrations"
)

func main() {
	cfg, err := platform.ConfigFromEnv(app.Name, "8081", "9081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	infra, err := platform.Open(ctx, cfg, migrations.FS, logger)
	if err != nil {
		logger.Error("infrastructure init failed", "err", err)
		panic(err)
	}
	defer infra.Close()

	var orderCache orders.Cache = orders.NoCache{}
	if infra.Redis != nil {
		orderCache = cache.NewRedisCache(infra.Redis, cache.DefaultTTL, logger)
	}

	a := app.New(app.Deps{
		Tx:                 infra.Pool,
		Orders:             storage.NewOrderRepository(infra.Pool),
		Outbox:             outbox.NewPostgresRepository(infra.Pool),
		Inbox:              inbox.NewPostgresStore(infra.Pool),
		Cache:              orderCache,
		Publisher:          infra.Publisher,
		Subscriber:         infra.Subscriber,
		Registry:           events.Default(),
		Logger:             logger,
		Relay:              cfg.Relay,
		ConsumerMaxElapsed: cfg.ConsumerMaxElapsed,
	})
	go a.Run(ctx)

	handler := platform.Handler(cfg, logger, a.API, infra.Redis, infra.ReadyChecks()...)
	if err := platform.Serve(ctx, cfg, logger, handler); err != nil {
		logger.Error("server failed", "err", err)
	}
}
