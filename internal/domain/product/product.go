package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is the
// number of units still available for fulfillment; it is only ever
// decremented inside the fulfillment transaction and never goes below zero.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Projection is the reduced product view embedded in order representations
// and domain events.
type Projection struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Project returns the reduced view of p.
func (p Product) Project() Projection {
	return Projection{ID: p.ID, Name: p.Name, Price: p.Price}
}

// Filter narrows catalog listings. Zero values mean "no constraint".
type Filter struct {
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  bool
}

// Update describes a partial product edit. Nil fields are left unchanged.
type Update struct {
	Name  *string
	Price *decimal.Decimal
	Stock *int
}

// Repository defines catalog persistence. The stock decrement is deliberately
// absent from this interface: it happens inside the order repository's
// fulfillment transaction so that decrement and order insert commit as a
// single unit.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, u Update) (*Product, error)
	Delete(ctx context.Context, id string) error
}
