package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/events"
	"github.com/md-rashed-zaman/ordersaga/libs/memstore"
	"github.com/md-rashed-zaman/ordersaga/libs/outbox"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/notify"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/storage"
)

func newTestMux() *http.ServeMux {
	store := memstore.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := notify.NewService(store, storage.NewMemoryNotificationRepository(store),
		outbox.NewRecorder(outbox.NewMemoryRepository(store), events.Default()), nil, notify.Config{}, logger)
	mux := http.NewServeMux()
	NewNotificationHandler(svc, logger).Register(mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string, roles ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "u1", Roles: roles}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSendThenList(t *testing.T) {
	mux := newTestMux()

	rec := do(mux, http.MethodPost, "/api/v1/notifications/send", `{"orderId":"o-1","customerId":"C1"}`, auth.RoleSupport)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(mux, http.MethodGet, "/api/v1/notifications?order_id=o-1", "", auth.RoleAuditor)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []notify.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, notify.StatusSimulated, list[0].Status)

	rec = do(mux, http.MethodGet, "/api/v1/notifications?order_id=o-2", "", auth.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRolesAndValidation(t *testing.T) {
	mux := newTestMux()
	assert.Equal(t, http.StatusForbidden, do(mux, http.MethodGet, "/api/v1/notifications", "", auth.RoleCustomer).Code)
	assert.Equal(t, http.StatusForbidden, do(mux, http.MethodPost, "/api/v1/notifications/send", `{}`, auth.RoleAuditor).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(mux, http.MethodGet, "/api/v1/notifications?limit=x", "", auth.RoleAdmin).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(mux, http.MethodPost, "/api/v1/notifications/send", `{"orderId":"o-1"}`, auth.RoleAdmin).Code)
}
