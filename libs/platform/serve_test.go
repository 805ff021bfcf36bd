package platform

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
)

func TestHandlerProtectsAPIOnly(t *testing.T) {
	cfg := Config{Service: "order-service", RateLimitPerMinute: 2, TrustGatewayHeaders: true}
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(p.UserID))
	})
	h := Handler(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), api, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set(auth.HeaderUserID, "C1")
		req.Header.Set(auth.HeaderRoles, "CUSTOMER")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	rec = call()
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "C1", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	call()
	require.Equal(t, http.StatusTooManyRequests, call().Code)
}

func TestConfigFromEnvRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := ConfigFromEnv("order-service", "8080", "9090")
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/orders")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "3")
	cfg, err := ConfigFromEnv("order-service", "8080", "9090")
	require.NoError(t, err)
	require.Equal(t, "order-service", cfg.KafkaGroupID)
	require.Equal(t, 3, cfg.Relay.MaxAttempts)
	require.True(t, cfg.Migrate)
}

func TestConfigFromEnvRelayDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/orders")
	t.Setenv("OUTBOX_POLL_INTERVAL", "")
	t.Setenv("OUTBOX_BATCH_SIZE", "")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "")
	cfg, err := ConfigFromEnv("order-service", "8080", "9090")
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.Relay.PollEvery)
	require.Equal(t, 100, cfg.Relay.BatchSize)
	require.Equal(t, 10, cfg.Relay.MaxAttempts)
}
