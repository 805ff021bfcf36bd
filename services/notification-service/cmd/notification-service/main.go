package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/config"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/inbox"
	otelx "github.com/md-rashed-zaman/ordersaga/libs/otel"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/libs/platform"
	"github.com/md-rashed-zaman/ordersaga/libs/runtime"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/app"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/storage"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/migrations"
)

func main() {
	cfg, err := platform.ConfigFromEnv(app.Name, "8084", "9084")
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

	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     config.String("SMTP_HOST", "mailpit"),
		Port:     config.String("SMTP_PORT", "1025"),
		From:     config.String("SMTP_FROM", "no-reply@ordersaga.local"),
		Username: config.String("SMTP_USER", ""),
		Password: config.String("SMTP_PASSWORD", ""),
	})

	a := app.New(app.Deps{
		Tx:            infra.Pool,
		Notifications: storage.NewNotificationRepository(infra.Pool),
		Outbox:        outbox.NewPostgresRepository(infra.Pool),
		Inbox:         inbox.NewPostgresStore(infra.Pool),
		Sender:        sender,
		Config: app.Config{
			EmailEnabled: config.Bool("NOTIFICATION_EMAIL_ENABLED", false),
			EmailDomain:  config.String("NOTIFICATION_EMAIL_DOMAIN", "example.com"),
		},
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
