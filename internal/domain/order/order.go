package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-fulfillment/internal/domain/product"
	"github.com/xenking/order-fulfillment/internal/domain/user"
)

// Sentinel errors for order operations.
var (
	// ErrNotFound is returned when an order does not exist, or exists but is
	// not visible to the caller. Ownership misses surface as ErrNotFound on
	// purpose so that order ids of other users cannot be probed.
	ErrNotFound = errors.New("order not found")

	// ErrMissingProduct is returned when a purchase intent names no product.
	ErrMissingProduct = errors.New("product id required")

	// ErrInvalidQuantity is returned when a purchase intent has a
	// non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// InsufficientStockError indicates the product cannot cover the requested
// quantity. Available carries the stock observed at rejection time so the
// caller can retry with a smaller quantity.
type InsufficientStockError struct {
	ProductID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available", e.ProductID, e.Available)
}

// InvalidStatusError indicates a status value outside the declared set.
type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Status)
}

// Order is a committed purchase of a quantity of one product. TotalPrice is
// frozen at creation (product price at that moment times quantity) and is
// not recomputed when the product price changes later.
type Order struct {
	ID         string
	UserID     string
	ProductID  string
	Quantity   int
	TotalPrice decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Enriched is an order together with the user and product projections
// embedded in API responses and events.
type Enriched struct {
	Order
	User    user.Projection
	Product product.Projection
}

// ListFilter narrows administrative order listings. Zero values mean "no
// constraint".
type ListFilter struct {
	Status *Status
	UserID string
}

// Repository defines persistence for the order ledger.
//
// CreateConfirmed is the fulfillment unit: it must re-check stock under a
// write lock, decrement it, and insert the order row as one transaction.
// Racing requests for the same product serialize on the lock; a loser whose
// refreshed stock no longer covers the quantity gets *InsufficientStockError
// and no partial effect persists. On success the implementation fills in the
// order's CreatedAt/UpdatedAt.
type Repository interface {
	CreateConfirmed(ctx context.Context, o *Order) error
	GetForUser(ctx context.Context, id, userID string) (*Enriched, error)
	ListForUser(ctx context.Context, userID string, status *Status) ([]Enriched, error)
	ListAll(ctx context.Context, f ListFilter) ([]Enriched, error)
	UpdateStatus(ctx context.Context, id string, s Status) (*Enriched, error)
}
