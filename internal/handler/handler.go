// Package handler exposes the fulfillment engine over HTTP: order and
// catalog routes, API key authentication, and the websocket event stream.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/order-fulfillment/internal/domain/order"
	"github.com/xenking/order-fulfillment/internal/domain/product"
	"github.com/xenking/order-fulfillment/internal/domain/user"
)

// Handler serves the API routes, delegating business logic to the order
// service and the product repository.
type Handler struct {
	products product.Repository
	orders   *order.Service
	auth     *Auth
	stream   http.Handler
}

// NewHandler constructs a Handler with the required dependencies. stream is
// the websocket hub serving GET /ws.
func NewHandler(products product.Repository, orders *order.Service, auth *Auth, stream http.Handler) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
		auth:     auth,
		stream:   stream,
	}
}

// Routes mounts all API routes on r. Catalog reads are public; catalog
// writes and every order route require authentication, and the
// administrative order surface additionally requires the admin scope.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Authenticate)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(h.auth.Authenticate)
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.With(h.auth.RequireAdmin).Get("/all", h.ListAllOrders)
		r.Get("/{id}", h.GetOrder)
		r.With(h.auth.RequireAdmin).Put("/{id}/status", h.UpdateOrderStatus)
	})

	r.Get("/ws", h.stream.ServeHTTP)
}

// Response DTOs. Field names are part of the observable contract; prices
// travel as JSON numbers.

type userDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type productRefDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type productDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type orderDTO struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	ProductID  string         `json:"productId"`
	Quantity   int            `json:"quantity"`
	TotalPrice float64        `json:"totalPrice"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	User       *userDTO       `json:"user,omitempty"`
	Product    *productRefDTO `json:"product,omitempty"`
}

func toUserDTO(u user.Projection) *userDTO {
	return &userDTO{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toProductRefDTO(p product.Projection) *productRefDTO {
	return &productRefDTO{ID: p.ID, Name: p.Name, Price: p.Price.InexactFloat64()}
}

func toProductDTO(p product.Product) productDTO {
	return productDTO{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price.InexactFloat64(),
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// toOrderDTO builds the order representation. The user projection is only
// embedded on surfaces that show other people's orders; the owner-facing
// ones carry the product projection alone.
func toOrderDTO(e order.Enriched, withUser bool) orderDTO {
	dto := orderDTO{
		ID:         e.ID,
		UserID:     e.UserID,
		ProductID:  e.ProductID,
		Quantity:   e.Quantity,
		TotalPrice: e.TotalPrice.InexactFloat64(),
		Status:     string(e.Status),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Product:    toProductRefDTO(e.Product),
	}
	if withUser {
		dto.User = toUserDTO(e.User)
	}
	return dto
}

func toOrderDTOs(es []order.Enriched, withUser bool) []orderDTO {
	out := make([]orderDTO, len(es))
	for i, e := range es {
		out[i] = toOrderDTO(e, withUser)
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// internalError logs err and answers with the generic 500 payload. Details
// stay in the log; the response body never leaks them.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
