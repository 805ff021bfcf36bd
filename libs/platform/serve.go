package platform

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/grpcx"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
	"github.com/md-rashed-zaman/ordersaga/libs/runtime"
)

const bodyLimit = 1 << 20

// Handler mounts api under /api/ behind authentication and rate limiting.
// /healthz and /readyz stay public.
func Handler(cfg Config, logger *slog.Logger, api http.Handler, rdb *redis.Client, checks ...runtime.ReadyCheck) http.Handler {
	authn := auth.Authenticator{Secret: cfg.JWTSecret, TrustHeaders: cfg.TrustGatewayHeaders}
	if cfg.JWKSURL != "" {
		authn.JWKS = auth.NewJWKSClient(cfg.JWKSURL, 10*time.Minute)
	}

	var limit httpx.Middleware
	if rdb != nil {
		limit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:"+cfg.Service, auth.UserKey).Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, auth.UserKey).Middleware()
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", httpx.Chain(api, authn.Middleware(), limit))

	h := httpx.Chain(mux,
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSOrigins)),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(bodyLimit),
	)
	return otelhttp.NewHandler(h, cfg.Service)
}

// Serve runs the HTTP server and the gRPC health server until ctx is done.
func Serve(ctx context.Context, cfg Config, logger *slog.Logger, handler http.Handler) error {
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	health := grpcx.NewHealthServer(cfg.Service, logger)
	go func() {
		if err := health.Serve(ctx, lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}
