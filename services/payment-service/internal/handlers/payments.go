package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
	"github.com/md-rashed-zaman/ordersaga/services/payment-service/internal/payments"
)

type PaymentHandler struct {
	svc    *payments.Service
	logger *slog.Logger
}

func NewPaymentHandler(svc *payments.Service, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

func (h *PaymentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/payments/order/{orderId}", h.GetByOrder)
}

type paymentResponse struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	CustomerID    string    `json:"customerId"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transactionId,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (h *PaymentHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetByOrder(r.Context(), r.PathValue("orderId"))
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "get payment failed", "err", err)
		}
		httpx.WriteError(w, r, err)
		return
	}
	principal, _ := auth.FromContext(r.Context())
	if principal.UserID != p.CustomerID && !principal.HasAnyRole(auth.RoleAdmin, auth.RoleManager, auth.RoleFinance, auth.RoleSupport, auth.RoleAuditor) {
		httpx.WriteError(w, r, payments.ErrNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount.StringFixed(2),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
}
