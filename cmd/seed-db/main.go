// Command seed-db provisions a database with demo users, catalog products,
// and API keys for local development and integration testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-fulfillment/internal/domain/auth"
	"github.com/xenking/order-fulfillment/internal/handler"
	"github.com/xenking/order-fulfillment/internal/storage/postgres"
)

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type seedUser struct {
	ID    string
	Name  string
	Email string
}

var seedUsers = []seedUser{
	{ID: "00000000-0000-0000-0000-000000000001", Name: "Demo Buyer", Email: "buyer@example.com"},
	{ID: "00000000-0000-0000-0000-000000000002", Name: "Demo Admin", Email: "admin@example.com"},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		buyerKey     string
		adminKey     string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&buyerKey, "api-key", "", "buyer API key to seed (or FULFIL_SEED_API_KEY env)")
	flag.StringVar(&adminKey, "admin-api-key", "", "admin API key to seed (or FULFIL_SEED_ADMIN_API_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FULFIL_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if buyerKey == "" {
		buyerKey = os.Getenv("FULFIL_SEED_API_KEY")
	}
	if buyerKey == "" {
		slog.Error("API key is required: set --api-key or FULFIL_SEED_API_KEY")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("FULFIL_SEED_ADMIN_API_KEY")
	}
	if pepper == "" {
		pepper = os.Getenv("FULFIL_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, buyerKey, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, buyerKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedUserRows(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKeys(ctx, pool, buyerKey, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedUserRows(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting users", slog.Int("count", len(seedUsers)))

	for _, u := range seedUsers {
		if _, err := pool.Exec(ctx,
			`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = $2, email = $3`,
			u.ID, u.Name, u.Email,
		); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
		slog.Info("upserted user", slog.String("id", u.ID), slog.String("email", u.Email))
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, stock = $4, updated_at = now()`,
			p.ID, p.Name, p.Price, p.Stock,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, buyerKey, adminKey, pepper string) error {
	slog.Info("seeding API keys")

	upsert := func(id, rawKey, name, userID string, scopes []string) error {
		if _, err := pool.Exec(ctx,
			`INSERT INTO api_keys (id, key_hash, user_id, name, scopes, active)
			 VALUES ($1, $2, $3, $4, $5, true)
			 ON CONFLICT (id) DO UPDATE SET key_hash = $2, user_id = $3, name = $4, scopes = $5, active = true`,
			id, handler.HashKey([]byte(pepper), rawKey), userID, name, scopes,
		); err != nil {
			return errors.Wrapf(err, "upsert api key %s", id)
		}
		slog.Info("upserted API key", slog.String("id", id), slog.String("name", name))
		return nil
	}

	if err := upsert("buyer", buyerKey, "Demo buyer key", seedUsers[0].ID, []string{}); err != nil {
		return err
	}
	if adminKey != "" {
		return upsert("admin", adminKey, "Demo admin key", seedUsers[1].ID, []string{auth.ScopeAdmin})
	}
	return nil
}
