package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
	"github.com/md-rashed-zaman/ordersaga/services/notification-service/internal/notify"
)

type NotificationHandler struct {
	svc    *notify.Service
	logger *slog.Logger
}

func NewNotificationHandler(svc *notify.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

func (h *NotificationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/notifications", auth.RequireRole(h.List, auth.RoleAdmin, auth.RoleSupport, auth.RoleAuditor))
	mux.HandleFunc("POST /api/v1/notifications/send", auth.RequireRole(h.Send, auth.RoleAdmin, auth.RoleSupport))
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, r, apperr.Validation("invalid limit"))
			return
		}
		limit = n
	}
	list, err := h.svc.List(r.Context(), notify.Filter{OrderID: r.URL.Query().Get("order_id"), Limit: limit})
	if err != nil {
		h.fail(w, r, "list notifications failed", err)
		return
	}
	if list == nil {
		list = []notify.Notification{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

type sendRequest struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
}

// Send re-sends the order confirmation for an order.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	n, err := h.svc.SendConfirmation(r.Context(), req.OrderID, req.CustomerID)
	if err != nil {
		h.fail(w, r, "send notification failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, n)
}

func (h *NotificationHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "err", err)
	}
	httpx.WriteError(w, r, err)
}
