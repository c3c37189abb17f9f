// Command catalog-ingest bulk-imports catalog items from gzip-compressed
// JSONL exports. Lines are streamed, deduplicated by item id, and upserted
// in batches. Malformed lines are counted and skipped.
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
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kassa/internal/domain/catalog"
	"github.com/xenking/kassa/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

type itemLine struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}

func (l *itemLine) valid() bool {
	return l.ID != "" && l.Name != "" &&
		!l.Price.IsNegative() &&
		catalog.Currency(l.Currency).Valid()
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz item exports")
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
		return errors.Wrap(err, "list export files")
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

	ing := &ingester{
		pool: pool,
		seen: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}

	lines := make(chan itemLine, batchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ing.write(ctx, lines)
	})
	g.Go(func() error {
		defer close(lines)

		readers, readCtx := errgroup.WithContext(ctx)
		for _, f := range files {
			readers.Go(ing.readFile(readCtx, f, lines))
		}
		return readers.Wait()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Uint64("upserted", ing.upserted),
		slog.Uint64("duplicates", ing.duplicates),
		slog.Uint64("malformed", ing.malformed),
	)
	return nil
}

type ingester struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	seen *bloom.BloomFilter

	upserted   uint64
	duplicates uint64
	malformed  uint64
}

// markSeen reports whether id was already ingested, recording it otherwise.
// Bloom false positives drop at most a handful of fresh items, which a rerun
// with a clean filter picks up.
func (ing *ingester) markSeen(id string) bool {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return ing.seen.TestOrAddString(id)
}

func (ing *ingester) readFile(ctx context.Context, path string, out chan<- itemLine) func() error {
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

		var count uint64
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("read progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("lines", count),
				)
			}

			var line itemLine
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil || !line.valid() {
				ing.mu.Lock()
				ing.malformed++
				ing.mu.Unlock()
				continue
			}
			if ing.markSeen(line.ID) {
				ing.mu.Lock()
				ing.duplicates++
				ing.mu.Unlock()
				continue
			}

			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("file complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("lines", count),
		)
		return nil
	}
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

// write drains lines into batched upserts.
func (ing *ingester) write(ctx context.Context, lines <-chan itemLine) error {
	batch := &pgx.Batch{}

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := ing.pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "send batch")
		}
		ing.upserted += uint64(batch.Len())
		batch = &pgx.Batch{}
		return nil
	}

	for line := range lines {
		batch.Queue(upsertItemSQL,
			line.ID, line.Name, line.Description, line.Price, line.Currency,
		)
		if batch.Len() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
			if ing.upserted%uint64(progressEvery) < batchSize {
				slog.Info("write progress", slog.Uint64("upserted", ing.upserted))
			}
		}
	}
	return flush()
}
