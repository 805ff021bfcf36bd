package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
	"github.com/md-rashed-zaman/ordersaga/services/order-service/internal/orders"
)

type OrderHandler struct {
	svc    *orders.Service
	logger *slog.Logger
}

func NewOrderHandler(svc *orders.Service, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

// Register mounts the order API. Callers must already carry a principal.
func (h *OrderHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", h.Place)
	mux.HandleFunc("GET /api/v1/orders", h.ListByCustomer)
	mux.HandleFunc("GET /api/v1/orders/all", auth.RequireRole(h.ListAll, auth.RoleManager, auth.RoleAdmin, auth.RoleAuditor))
	mux.HandleFunc("GET /api/v1/orders/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/orders/{id}/cancel", auth.RequireRole(h.Cancel, auth.RoleAdmin))
	mux.HandleFunc("POST /api/v1/orders/{id}/refund-request", auth.RequireRole(h.RequestRefund, auth.RoleSupport, auth.RoleManager, auth.RoleAdmin))
	mux.HandleFunc("POST /api/v1/orders/{id}/refund", auth.RequireRole(h.ProcessRefund, auth.RoleFinance, auth.RoleAdmin))
	mux.HandleFunc("POST /api/v1/orders/{id}/ship", auth.RequireRole(h.Ship, auth.RoleWarehouse, auth.RoleManager, auth.RoleAdmin))
	mux.HandleFunc("POST /api/v1/orders/{id}/deliver", auth.RequireRole(h.Deliver, auth.RoleWarehouse, auth.RoleManager, auth.RoleAdmin))
	mux.HandleFunc("PUT /api/v1/orders/{id}/status", auth.RequireRole(h.UpdateStatus, auth.RoleAdmin, auth.RoleManager))
}

type placeOrderRequest struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price"`
}

type orderResponse struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customerId"`
	ProductID      string    `json:"productId"`
	Quantity       int       `json:"quantity"`
	Price          string    `json:"price"`
	Amount         string    `json:"amount"`
	Status         string    `json:"status"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	CancelReason   string    `json:"cancelReason,omitempty"`
	RefundReason   string    `json:"refundReason,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toResponse(o orders.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		ProductID:      o.ProductID,
		Quantity:       o.Quantity,
		Price:          o.Price.StringFixed(2),
		Amount:         o.Amount().StringFixed(2),
		Status:         string(o.Status),
		TrackingNumber: o.TrackingNumber,
		CancelReason:   o.CancelReason,
		RefundReason:   o.RefundReason,
		Version:        o.Version,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toResponses(list []orders.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toResponse(o))
	}
	return out
}

func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		httpx.WriteError(w, r, apperr.Validation("invalid price %q", req.Price))
		return
	}

	p, _ := auth.FromContext(r.Context())
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = p.UserID
	}
	if !h.allowedCustomer(p, customerID) {
		httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	o, err := h.svc.Place(r.Context(), orders.PlaceOrder{
		CustomerID: customerID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Price:      price,
	})
	if err != nil {
		h.fail(w, r, "place order failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(o))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "get order failed", err)
		return
	}
	p, _ := auth.FromContext(r.Context())
	if !h.allowedCustomer(p, o.CustomerID) {
		httpx.WriteError(w, r, orders.ErrNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(o))
}

func (h *OrderHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		customerID = p.UserID
	}
	if !h.allowedCustomer(p, customerID) {
		httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	list, err := h.svc.ListByCustomer(r.Context(), customerID)
	if err != nil {
		h.fail(w, r, "list orders failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponses(list))
}

func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, r, apperr.Validation("invalid limit"))
			return
		}
		limit = n
	}
	list, err := h.svc.ListAll(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list all orders failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponses(list))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by " + principalID(r)
	}
	h.respond(w, r, "cancel order failed")(h.svc.Cancel(r.Context(), r.PathValue("id"), req.Reason))
}

func (h *OrderHandler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	h.respond(w, r, "refund request failed")(h.svc.RequestRefund(r.Context(), r.PathValue("id"), req.Reason))
}

func (h *OrderHandler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "process refund failed")(h.svc.ProcessRefund(r.Context(), r.PathValue("id")))
}

type shipRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.respond(w, r, "ship order failed")(h.svc.Ship(r.Context(), r.PathValue("id"), req.TrackingNumber))
}

func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "deliver order failed")(h.svc.Deliver(r.Context(), r.PathValue("id")))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.respond(w, r, "update order status failed")(h.svc.UpdateStatus(r.Context(), r.PathValue("id"), to))
}

func (h *OrderHandler) respond(w http.ResponseWriter, r *http.Request, msg string) func(orders.Order, error) {
	return func(o orders.Order, err error) {
		if err != nil {
			h.fail(w, r, msg, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toResponse(o))
	}
}

func (h *OrderHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "err", err, "order_id", r.PathValue("id"))
	}
	httpx.WriteError(w, r, err)
}

// allowedCustomer lets staff see any customer; a plain customer sees only
// their own orders.
func (h *OrderHandler) allowedCustomer(p auth.Principal, customerID string) bool {
	if p.HasAnyRole(auth.RoleAdmin, auth.RoleManager, auth.RoleSupport, auth.RoleFinance, auth.RoleWarehouse, auth.RoleAuditor) {
		return true
	}
	return p.UserID != "" && p.UserID == customerID
}

func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := httpx.DecodeJSON(r, v); err != nil {
		httpx.WriteError(w, r, err)
		return false
	}
	return true
}

func principalID(r *http.Request) string {
	p, _ := auth.FromContext(r.Context())
	return p.UserID
}
