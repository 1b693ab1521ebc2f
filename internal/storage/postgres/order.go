package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/order-fulfillment/internal/domain/order"
	"github.com/xenking/order-fulfillment/internal/domain/product"
)

// enrichedSelect joins users and products so listings come back with their
// projections in one round trip.
const enrichedSelect = `SELECT
	o.id, o.user_id, o.product_id, o.quantity, o.total_price, o.status, o.created_at, o.updated_at,
	u.id, u.name, u.email,
	p.id, p.name, p.price
FROM orders o
JOIN users u ON u.id = o.user_id
JOIN products p ON p.id = o.product_id`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateConfirmed runs the fulfillment unit: it locks the product row,
// re-checks stock, decrements it, and inserts the order, all in one
// transaction. Concurrent requests for the same product serialize on the
// row lock; a request whose refreshed stock no longer covers the quantity
// rolls back with *order.InsufficientStockError.
func (r *OrderRepository) CreateConfirmed(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin fulfillment tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, o.ProductID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.ErrNotFound
		}
		return fmt.Errorf("locking product %q: %w", o.ProductID, err)
	}
	if stock < o.Quantity {
		return &order.InsufficientStockError{ProductID: o.ProductID, Available: stock}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1`,
		o.ProductID, o.Quantity,
	); err != nil {
		return fmt.Errorf("decrementing stock for product %q: %w", o.ProductID, err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, product_id, quantity, total_price, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.ProductID, o.Quantity, o.TotalPrice, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing fulfillment for order %q: %w", o.ID, err)
	}
	return nil
}

// GetForUser returns one order scoped to its owner. Orders owned by other
// users come back as order.ErrNotFound.
func (r *OrderRepository) GetForUser(ctx context.Context, id, userID string) (*order.Enriched, error) {
	rows, err := r.pool.Query(ctx, enrichedSelect+` WHERE o.id = $1 AND o.user_id = $2`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanEnriched)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &e, nil
}

// ListForUser returns the user's orders newest first, optionally filtered by
// exact status.
func (r *OrderRepository) ListForUser(ctx context.Context, userID string, status *order.Status) ([]order.Enriched, error) {
	query := enrichedSelect + ` WHERE o.user_id = $1`
	args := []any{userID}
	if status != nil {
		query += ` AND o.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY o.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanEnriched)
}

// ListAll returns all orders newest first, optionally filtered by status
// and/or owning user.
func (r *OrderRepository) ListAll(ctx context.Context, f order.ListFilter) ([]order.Enriched, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != nil {
		conds = append(conds, `o.status = `+arg(*f.Status))
	}
	if f.UserID != "" {
		conds = append(conds, `o.user_id = `+arg(f.UserID))
	}

	query := enrichedSelect
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY o.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanEnriched)
}

// UpdateStatus persists the new status and returns the enriched order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, s order.Status) (*order.Enriched, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, s)
	if err != nil {
		return nil, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, enrichedSelect+` WHERE o.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("reading back order %q: %w", id, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEnriched)
	if err != nil {
		return nil, fmt.Errorf("reading back order %q: %w", id, err)
	}
	return &e, nil
}

func scanEnriched(row pgx.CollectableRow) (order.Enriched, error) {
	var e order.Enriched
	err := row.Scan(
		&e.ID, &e.UserID, &e.ProductID, &e.Quantity, &e.TotalPrice, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		&e.User.ID, &e.User.Name, &e.User.Email,
		&e.Product.ID, &e.Product.Name, &e.Product.Price,
	)
	return e, err
}
