//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/order-fulfillment/internal/domain/order"
	"github.com/xenking/order-fulfillment/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "fulfil",
			"POSTGRES_PASSWORD": "fulfil",
			"POSTGRES_DB":       "fulfil",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://fulfil:fulfil@%s:%s/fulfil?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`,
		id, "Ada Lovelace", id+"@example.com")
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, price string, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4)`,
		id, "Widget "+id[:8], price, stock)
	require.NoError(t, err)
	return id
}

func newOrder(userID, productID string, qty int, price string) *order.Order {
	p := decimal.RequireFromString(price)
	return &order.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		ProductID:  productID,
		Quantity:   qty,
		TotalPrice: p.Mul(decimal.NewFromInt(int64(qty))),
		Status:     order.StatusConfirmed,
	}
}

func TestOrderRepository_CreateConfirmed(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	orders := NewOrderRepository(pool)
	products := NewProductRepository(pool)

	userID := seedUser(t, pool)

	t.Run("decrements stock and persists order", func(t *testing.T) {
		productID := seedProduct(t, pool, "19.99", 10)

		o := newOrder(userID, productID, 3, "19.99")
		require.NoError(t, orders.CreateConfirmed(ctx, o))
		assert.False(t, o.CreatedAt.IsZero())

		p, err := products.GetByID(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 7, p.Stock)

		got, err := orders.GetForUser(ctx, o.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusConfirmed, got.Status)
		assert.True(t, got.TotalPrice.Equal(decimal.RequireFromString("59.97")))
		assert.Equal(t, productID, got.Product.ID)
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		productID := seedProduct(t, pool, "5.00", 2)

		o := newOrder(userID, productID, 5, "5.00")
		err := orders.CreateConfirmed(ctx, o)

		var stockErr *order.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 2, stockErr.Available)

		p, err := products.GetByID(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock, "stock must be untouched after rollback")

		_, err = orders.GetForUser(ctx, o.ID, userID)
		assert.True(t, errors.Is(err, order.ErrNotFound), "order must not exist after rollback")
	})

	t.Run("unknown product", func(t *testing.T) {
		o := newOrder(userID, uuid.NewString(), 1, "1.00")
		err := orders.CreateConfirmed(ctx, o)
		assert.True(t, errors.Is(err, product.ErrNotFound))
	})

	t.Run("concurrent orders never oversell", func(t *testing.T) {
		const (
			stock   = 5
			callers = 12
		)
		productID := seedProduct(t, pool, "2.50", stock)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := orders.CreateConfirmed(ctx, newOrder(userID, productID, 1, "2.50"))

				mu.Lock()
				defer mu.Unlock()
				var stockErr *order.InsufficientStockError
				switch {
				case err == nil:
					succeeded++
				case errors.As(err, &stockErr):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, stock, succeeded)
		assert.Equal(t, callers-stock, rejected)

		p, err := products.GetByID(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)
	})
}

func TestOrderRepository_Listing(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	orders := NewOrderRepository(pool)

	alice := seedUser(t, pool)
	bob := seedUser(t, pool)
	productID := seedProduct(t, pool, "10.00", 100)

	var placed []*order.Order
	for _, uid := range []string{alice, alice, bob} {
		o := newOrder(uid, productID, 1, "10.00")
		require.NoError(t, orders.CreateConfirmed(ctx, o))
		placed = append(placed, o)
		time.Sleep(10 * time.Millisecond) // distinct created_at for ordering
	}

	t.Run("owner listing is newest first", func(t *testing.T) {
		got, err := orders.ListForUser(ctx, alice, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, placed[1].ID, got[0].ID)
		assert.Equal(t, placed[0].ID, got[1].ID)
	})

	t.Run("owner scoping hides foreign orders", func(t *testing.T) {
		_, err := orders.GetForUser(ctx, placed[2].ID, alice)
		assert.True(t, errors.Is(err, order.ErrNotFound))
	})

	t.Run("admin listing filters by user and status", func(t *testing.T) {
		all, err := orders.ListAll(ctx, order.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		onlyBob, err := orders.ListAll(ctx, order.ListFilter{UserID: bob})
		require.NoError(t, err)
		require.Len(t, onlyBob, 1)
		assert.Equal(t, placed[2].ID, onlyBob[0].ID)

		shipped := order.StatusShipped
		none, err := orders.ListAll(ctx, order.ListFilter{Status: &shipped})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("status update round-trips", func(t *testing.T) {
		got, err := orders.UpdateStatus(ctx, placed[0].ID, order.StatusShipped)
		require.NoError(t, err)
		assert.Equal(t, order.StatusShipped, got.Status)
		assert.Equal(t, alice, got.User.ID)

		shipped := order.StatusShipped
		match, err := orders.ListForUser(ctx, alice, &shipped)
		require.NoError(t, err)
		require.Len(t, match, 1)
		assert.Equal(t, placed[0].ID, match[0].ID)
	})

	t.Run("status update on unknown order", func(t *testing.T) {
		_, err := orders.UpdateStatus(ctx, uuid.NewString(), order.StatusDelivered)
		assert.True(t, errors.Is(err, order.ErrNotFound))
	})
}

func TestProductRepository_Filters(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	products := NewProductRepository(pool)

	mk := func(name, price string, stock int) string {
		id := uuid.NewString()
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4)`,
			id, name, price, stock)
		require.NoError(t, err)
		return id
	}
	mk("Mechanical Keyboard", "120.00", 4)
	mk("Wireless Mouse", "35.50", 0)
	outID := mk("Keyboard Wrist Rest", "18.00", 9)

	t.Run("search is case-insensitive substring", func(t *testing.T) {
		got, err := products.List(ctx, product.Filter{Search: "keyboard"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("price band and stock", func(t *testing.T) {
		min := decimal.RequireFromString("10")
		max := decimal.RequireFromString("40")
		got, err := products.List(ctx, product.Filter{MinPrice: &min, MaxPrice: &max, InStock: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, outID, got[0].ID)
	})

	t.Run("update and delete", func(t *testing.T) {
		id := mk("Ephemeral", "1.00", 1)

		name := "Renamed"
		stock := 50
		updated, err := products.Update(ctx, id, product.Update{Name: &name, Stock: &stock})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, 50, updated.Stock)

		require.NoError(t, products.Delete(ctx, id))
		_, err = products.GetByID(ctx, id)
		assert.True(t, errors.Is(err, product.ErrNotFound))

		assert.True(t, errors.Is(products.Delete(ctx, id), product.ErrNotFound))
	})
}
