package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kassa/internal/domain/catalog"
)

var _ catalog.Repository = (*ItemRepository)(nil)

// ItemRepository implements catalog.Repository backed by PostgreSQL.
type ItemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository returns an ItemRepository that uses the given pool.
func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

const itemColumns = `id, name, description, price, currency`

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Currency)
	return it, err
}

// List returns all catalog items ordered by name.
func (r *ItemRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("scanning items: %w", err)
	}
	return items, nil
}

// GetByID returns a single item, or catalog.ErrNotFound.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*catalog.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}

	it, err := pgx.CollectOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("scanning item %s: %w", id, err)
	}
	return &it, nil
}

// GetByIDs returns the items matching ids in a single query. Missing ids
// are simply absent from the result; callers decide whether that is fatal.
func (r *ItemRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting items by ids: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("scanning items: %w", err)
	}
	return items, nil
}

// Create persists a new item.
func (r *ItemRepository) Create(ctx context.Context, it *catalog.Item) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO items (id, name, description, price, currency) VALUES ($1, $2, $3, $4, $5)`,
		it.ID, it.Name, it.Description, it.Price, it.Currency,
	)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}
	return nil
}

// Update overwrites an existing item, or returns catalog.ErrNotFound.
func (r *ItemRepository) Update(ctx context.Context, it *catalog.Item) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE items SET name = $2, description = $3, price = $4, currency = $5 WHERE id = $1`,
		it.ID, it.Name, it.Description, it.Price, it.Currency,
	)
	if err != nil {
		return fmt.Errorf("updating item %s: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Delete removes an item, or returns catalog.ErrNotFound.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
