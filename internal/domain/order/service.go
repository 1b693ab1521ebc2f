package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/order-fulfillment/internal/domain/product"
	"github.com/xenking/order-fulfillment/internal/domain/user"
	"github.com/xenking/order-fulfillment/internal/events"
)

// Service is the fulfillment engine: it validates purchase intents, runs the
// atomic stock-check/decrement/insert unit through the repository, and emits
// domain events after commit.
type Service struct {
	products  product.Repository
	users     user.Repository
	orders    Repository
	publisher events.Publisher

	created  metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates the fulfillment engine with its domain dependencies.
func NewService(
	products product.Repository,
	users user.Repository,
	orders Repository,
	publisher events.Publisher,
	meter metric.Meter,
) *Service {
	created, _ := meter.Int64Counter("orders_created",
		metric.WithDescription("Orders successfully fulfilled"))
	rejected, _ := meter.Int64Counter("orders_rejected_stock",
		metric.WithDescription("Purchase intents rejected for insufficient stock"))

	return &Service{
		products:  products,
		users:     users,
		orders:    orders,
		publisher: publisher,
		created:   created,
		rejected:  rejected,
	}
}

// CreateOrder fulfills a purchase intent. Preconditions are checked in
// order: product id present, quantity positive, product exists, stock covers
// the quantity. The stock decrement and the order insert then commit as one
// atomic unit; a request that loses a race for the last units fails with
// *InsufficientStockError carrying the refreshed stock. On success the
// new_order event is emitted fire-and-forget and the order is returned
// enriched with user and product projections.
func (s *Service) CreateOrder(ctx context.Context, userID, productID string, quantity int) (*Enriched, error) {
	if productID == "" {
		return nil, ErrMissingProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock < quantity {
		s.rejected.Add(ctx, 1)
		return nil, &InsufficientStockError{ProductID: p.ID, Available: p.Stock}
	}

	// The caller's identity is trusted, so a missing user record is an
	// internal inconsistency rather than a client error.
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve user %s", userID)
	}

	o := &Order{
		ID:         uuid.New().String(),
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		TotalPrice: p.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Status:     StatusConfirmed,
	}
	if err := s.orders.CreateConfirmed(ctx, o); err != nil {
		var ise *InsufficientStockError
		if errors.As(err, &ise) {
			s.rejected.Add(ctx, 1)
		}
		return nil, err
	}
	s.created.Add(ctx, 1)

	enriched := &Enriched{
		Order:   *o,
		User:    u.Project(),
		Product: p.Project(),
	}

	s.publisher.Publish(events.NewOrder{
		OrderID:    o.ID,
		User:       enriched.User,
		Product:    enriched.Product,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Timestamp:  o.CreatedAt,
	})

	return enriched, nil
}

// SetStatus moves an order to the given status. Any of the five declared
// values is accepted from any current status; values outside the set fail
// with *InvalidStatusError. Emits order_status_updated after the write.
func (s *Service) SetStatus(ctx context.Context, orderID string, status Status) (*Enriched, error) {
	if !status.Valid() {
		return nil, &InvalidStatusError{Status: string(status)}
	}

	e, err := s.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.OrderStatusUpdated{
		OrderID:   e.ID,
		NewStatus: string(status),
		User:      e.User,
		Product:   e.Product,
	})

	return e, nil
}

// GetForUser returns one order scoped to its owner. A non-owner probing
// another user's order id gets ErrNotFound.
func (s *Service) GetForUser(ctx context.Context, orderID, userID string) (*Enriched, error) {
	return s.orders.GetForUser(ctx, orderID, userID)
}

// ListForUser returns the caller's orders, optionally filtered by exact
// status, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, status *Status) ([]Enriched, error) {
	return s.orders.ListForUser(ctx, userID, status)
}

// ListAll returns all orders system-wide for the administrative surface,
// newest first.
func (s *Service) ListAll(ctx context.Context, f ListFilter) ([]Enriched, error) {
	return s.orders.ListAll(ctx, f)
}
