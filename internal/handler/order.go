package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/order-fulfillment/internal/domain/auth"
	"github.com/xenking/order-fulfillment/internal/domain/order"
	"github.com/xenking/order-fulfillment/internal/domain/product"
)

type createOrderRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// CreateOrder handles POST /orders: the purchase intent of the authenticated
// user.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == "" || req.Quantity == 0 {
		writeError(w, http.StatusBadRequest, "Product ID and quantity are required")
		return
	}

	e, err := h.orders.CreateOrder(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   toOrderDTO(*e, true),
	})
}

// ListOrders handles GET /orders: the caller's own orders, newest first,
// optionally filtered by status.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var status *order.Status
	if s := r.URL.Query().Get("status"); s != "" {
		v := order.Status(s)
		status = &v
	}

	orders, err := h.orders.ListForUser(r.Context(), id.UserID, status)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders": toOrderDTOs(orders, false),
		"count":  len(orders),
	})
}

// ListAllOrders handles GET /orders/all: the administrative system-wide
// listing with optional status and user filters.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	var f order.ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		v := order.Status(s)
		f.Status = &v
	}
	f.UserID = r.URL.Query().Get("userId")

	orders, err := h.orders.ListAll(r.Context(), f)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders": toOrderDTOs(orders, true),
		"count":  len(orders),
	})
}

// GetOrder handles GET /orders/{id}. Orders of other users are
// indistinguishable from missing ones.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	e, err := h.orders.GetForUser(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": toOrderDTO(*e, false)})
}

// UpdateOrderStatus handles PUT /orders/{id}/status (admin).
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "Status is required")
		return
	}

	e, err := h.orders.SetStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		var statusErr *order.InvalidStatusError
		switch {
		case errors.As(err, &statusErr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":         "Invalid status",
				"validStatuses": order.ValidStatuses(),
			})
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "Order not found")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order status updated successfully",
		"order":   toOrderDTO(*e, true),
	})
}

// writeOrderError maps fulfillment errors to their response shapes.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *order.InsufficientStockError
	switch {
	case errors.Is(err, order.ErrMissingProduct):
		writeError(w, http.StatusBadRequest, "Product ID and quantity are required")
	case errors.Is(err, order.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "Quantity must be greater than 0")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          "Insufficient stock",
			"availableStock": stockErr.Available,
		})
	default:
		internalError(w, r, err)
	}
}
