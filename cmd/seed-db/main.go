// Command seed-db loads catalog items from a JSON file into the database.
// It is meant for local development and fresh deployments.
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

	"github.com/xenking/kassa/internal/storage/postgres"
)

type itemJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}

func main() {
	var (
		databaseURL string
		itemsFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&itemsFile, "items-file", "db/seed/items.json", "path to items JSON file")
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

	if err := run(ctx, databaseURL, itemsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, itemsFile string) error {
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

	return seedItems(ctx, pool, itemsFile)
}

const upsertItemSQL = `
INSERT INTO items (id, name, description, price, currency)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    currency = EXCLUDED.currency
`

func seedItems(ctx context.Context, pool *pgxpool.Pool, itemsFile string) error {
	slog.Info("reading items file", slog.String("path", itemsFile))

	data, err := os.ReadFile(itemsFile)
	if err != nil {
		return errors.Wrap(err, "read items file")
	}

	var items []itemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse items JSON")
	}

	slog.Info("upserting items", slog.Int("count", len(items)))

	for _, it := range items {
		if _, err := pool.Exec(ctx, upsertItemSQL,
			it.ID, it.Name, it.Description, it.Price, it.Currency,
		); err != nil {
			return errors.Wrapf(err, "upsert item %s", it.ID)
		}

		slog.Info("upserted item", slog.String("id", it.ID), slog.String("name", it.Name))
	}
	return nil
}
