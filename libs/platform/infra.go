package platform

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/ordersaga/libs/db"
	"github.com/md-rashed-zaman/ordersaga/libs/kafkax"
	"github.com/md-rashed-zaman/ordersaga/libs/runtime"
)

// Infra holds the production adapters of one service.
type Infra struct {
	Pool       *db.Pool
	Publisher  *kafkax.Publisher
	Subscriber *kafkax.Subscriber
	// Redis is nil when REDIS_ADDR is unset.
	Redis *redis.Client

	brokers string
}

// Open connects to Postgres (applying migrations when enabled), Kafka and,
// optionally, Redis.
func Open(ctx context.Context, cfg Config, migrations fs.FS, logger *slog.Logger) (*Infra, error) {
	if cfg.Migrate && migrations != nil {
		if err := db.Migrate(cfg.DatabaseURL, migrations); err != nil {
			return nil, err
		}
		logger.Info("migrations applied")
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	infra := &Infra{Pool: pool, brokers: cfg.KafkaBrokers}

	if infra.Publisher, err = kafkax.NewPublisher(cfg.KafkaBrokers); err != nil {
		infra.Close()
		return nil, err
	}
	if infra.Subscriber, err = kafkax.NewSubscriber(cfg.KafkaBrokers, cfg.KafkaGroupID, logger); err != nil {
		infra.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		infra.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := infra.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable at startup", "err", err, "addr", cfg.RedisAddr)
		}
	}
	return infra, nil
}

func (i *Infra) ReadyChecks() []runtime.ReadyCheck {
	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(i.Pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(i.brokers)},
	}
	if i.Redis != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return i.Redis.Ping(ctx).Err()
		}})
	}
	return checks
}

func (i *Infra) Close() {
	if i.Publisher != nil {
		_ = i.Publisher.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	i.Pool.Close()
}
