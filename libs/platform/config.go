// Package platform is the bootstrap shared by every service binary: typed
// configuration, the production adapters, and the HTTP/gRPC servers.
package platform

import (
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/config"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
)

type Config struct {
	Service  string
	HTTPPort string
	GRPCPort string

	DatabaseURL string
	Migrate     bool

	KafkaBrokers       string
	KafkaGroupID       string
	Relay              outbox.RelayConfig
	ConsumerMaxElapsed time.Duration

	RedisAddr          string
	RateLimitPerMinute int
	CORSOrigins        []string

	JWTSecret           string
	JWKSURL             string
	TrustGatewayHeaders bool
}

func ConfigFromEnv(service, httpPort, grpcPort string) (Config, error) {
	cfg := Config{
		Service:             config.String("SERVICE_NAME", service),
		Migrate:             config.Bool("DB_MIGRATE", true),
		KafkaBrokers:        config.String("KAFKA_BROKERS", ""),
		RedisAddr:           config.String("REDIS_ADDR", ""),
		CORSOrigins:         config.List("CORS_ALLOWED_ORIGINS"),
		JWTSecret:           config.String("AUTH_JWT_SECRET", ""),
		JWKSURL:             config.String("AUTH_JWKS_URL", ""),
		TrustGatewayHeaders: config.Bool("AUTH_TRUST_GATEWAY_HEADERS", false),
	}
	cfg.KafkaGroupID = config.String("KAFKA_GROUP_ID", cfg.Service)

	var err error
	if cfg.HTTPPort, err = config.Port("PORT", httpPort); err != nil {
		return Config{}, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", grpcPort); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.Relay.PollEvery, err = config.Duration("OUTBOX_POLL_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Relay.BatchSize, err = config.Int("OUTBOX_BATCH_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.Relay.MaxAttempts, err = config.Int("OUTBOX_MAX_ATTEMPTS", 10); err != nil {
		return Config{}, err
	}
	if cfg.ConsumerMaxElapsed, err = config.Duration("CONSUMER_MAX_ELAPSED", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
