package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
	"github.com/md-rashed-zaman/ordersaga/services/inventory-service/internal/inventory"
)

type InventoryHandler struct {
	svc    *inventory.Service
	logger *slog.Logger
}

func NewInventoryHandler(svc *inventory.Service, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{svc: svc, logger: logger}
}

func (h *InventoryHandler) Register(mux *http.ServeMux) {
	writers := []string{auth.RoleAdmin, auth.RoleManager, auth.RoleWarehouse}
	mux.HandleFunc("GET /api/v1/inventory/{productId}", h.Get)
	mux.HandleFunc("POST /api/v1/inventory", auth.RequireRole(h.Add, writers...))
	mux.HandleFunc("POST /api/v1/inventory/deduct", auth.RequireRole(h.Deduct, writers...))
}

type stockRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.Get(r.Context(), r.PathValue("productId"))
	if err != nil {
		h.fail(w, r, "get inventory failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	it, err := h.svc.AddStock(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, "add stock failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) Deduct(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	it, err := h.svc.Deduct(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, "deduct stock failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "err", err)
	}
	httpx.WriteError(w, r, err)
}
