package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/config"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	otelx "github.com/md-rashed-zaman/ordersaga/libs/otel"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/libs/platform"
	"github.com/md-rashed-zaman/ordersaga/libs/runtime"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/app"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/gateway"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/storage"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/migrations"
)

func main() {
	cfg, err := platform.ConfigFromEnv(app.Name, "8083", "9083")
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

	gw, err := gatewayFromEnv(logger)
	if err != nil {
		logger.Error("payment gateway init failed", "err", err)
		panic(err)
	}

	infra, err := platform.Open(ctx, cfg, migrations.FS, logger)
	if err != nil {
		logger.Error("infrastructure init failed", "err", err)
		panic(err)
	}
	defer infra.Close()

	a := app.New(app.Deps{
		Tx:                 infra.Pool,
		Payments:           storage.NewPaymentRepository(infra.Pool),
		Outbox:             outbox.NewPostgresRepository(infra.Pool),
		Gateway:            gw,
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

func gatewayFromEnv(logger *slog.Logger) (gateway.Gateway, error) {
	var gw gateway.Gateway
	switch mode := config.String("PAYMENT_GATEWAY", "random"); mode {
	case "random":
		ratio, err := config.Float("PAYMENT_SUCCESS_RATIO", 0.8)
		if err != nil {
			return nil, err
		}
		gw = gateway.NewRandom(ratio, nil)
	case "succeed":
		gw = &gateway.Fixed{}
	case "fail":
		gw = &gateway.Fixed{Decline: true}
	case "stripe":
		key, err := config.RequiredString("STRIPE_SECRET_KEY")
		if err != nil {
			return nil, err
		}
		s, err := gateway.NewStripe(gateway.StripeConfig{
			SecretKey:     key,
			PaymentMethod: config.String("STRIPE_PAYMENT_METHOD", "pm_card_visa"),
			Currency:      config.String("STRIPE_CURRENCY", "usd"),
		})
		if err != nil {
			return nil, err
		}
		gw = s
	default:
		return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", mode)
	}
	logger.Info("payment gateway configured", "mode", config.String("PAYMENT_GATEWAY", "random"))
	return gateway.WithBreaker(gw, "payment-gateway", logger), nil
}
