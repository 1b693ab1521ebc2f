package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-fulfillment/internal/domain/product"
)

type productRequest struct {
	Name  *string  `json:"name"`
	Price *float64 `json:"price"`
	Stock *int     `json:"stock"`
}

// ListProducts handles GET /products with optional search, minPrice,
// maxPrice, and inStock query filters.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := product.Filter{
		Search:  q.Get("search"),
		InStock: q.Get("inStock") == "true",
	}
	if v := q.Get("minPrice"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid minPrice")
			return
		}
		f.MinPrice = &d
	}
	if v := q.Get("maxPrice"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid maxPrice")
			return
		}
		f.MaxPrice = &d
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		internalError(w, r, err)
		return
	}

	dtos := make([]productDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": dtos,
		"count":    len(dtos),
	})
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": toProductDTO(*p)})
}

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == nil || *req.Name == "" || req.Price == nil || *req.Price == 0 || req.Stock == nil {
		writeError(w, http.StatusBadRequest, "Name, price, and stock are required")
		return
	}
	if *req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "Price must be greater than 0")
		return
	}
	if *req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "Stock cannot be negative")
		return
	}

	p := &product.Product{
		ID:    uuid.NewString(),
		Name:  *req.Name,
		Price: decimal.NewFromFloat(*req.Price),
		Stock: *req.Stock,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": toProductDTO(*p),
	})
}

// UpdateProduct handles PUT /products/{id}; absent fields stay unchanged.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var u product.Update
	u.Name = req.Name
	if req.Price != nil {
		if *req.Price <= 0 {
			writeError(w, http.StatusBadRequest, "Price must be greater than 0")
			return
		}
		d := decimal.NewFromFloat(*req.Price)
		u.Price = &d
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			writeError(w, http.StatusBadRequest, "Stock cannot be negative")
			return
		}
		u.Stock = req.Stock
	}

	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": toProductDTO(*p),
	})
}

// DeleteProduct handles DELETE /products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}
