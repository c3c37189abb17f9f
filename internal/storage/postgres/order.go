package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/domain/order"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// order's item membership lives in the order_items join table; seq keeps
// insertion order.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID loads an order and its member item ids, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var (
		o          order.Order
		discountID *string
		taxID      *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, discount_id, tax_id, total_price, created_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.Description, &discountID, &taxID, &o.TotalPrice, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %s: %w", id, err)
	}
	if discountID != nil {
		o.DiscountID = *discountID
	}
	if taxID != nil {
		o.TaxID = *taxID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT item_id FROM order_items WHERE order_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	o.ItemIDs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var itemID string
		err := row.Scan(&itemID)
		return itemID, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning order items: %w", err)
	}

	return &o, nil
}

// Create persists an order and its initial membership in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, name, description, discount_id, tax_id, total_price)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Name, o.Description, nullable(o.DiscountID), nullable(o.TaxID), o.TotalPrice,
	)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}

	if err := insertItems(ctx, tx, o.ID, o.ItemIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Update overwrites the order's own fields; membership is managed through
// AddItems/RemoveItems/ClearItems.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET name = $2, description = $3, discount_id = $4, tax_id = $5 WHERE id = $1`,
		o.ID, o.Name, o.Description, nullable(o.DiscountID), nullable(o.TaxID),
	)
	if err != nil {
		return fmt.Errorf("updating order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Delete removes an order; membership rows cascade.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// AddItems appends items to the order's membership. A primary key conflict
// maps to order.ErrDuplicateItem.
func (r *OrderRepository) AddItems(ctx context.Context, orderID string, itemIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertItems(ctx, tx, orderID, itemIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RemoveItems drops the given items from the order's membership.
func (r *OrderRepository) RemoveItems(ctx context.Context, orderID string, itemIDs []string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM order_items WHERE order_id = $1 AND item_id = ANY($2)`,
		orderID, itemIDs,
	)
	if err != nil {
		return fmt.Errorf("removing order items: %w", err)
	}
	return nil
}

// ClearItems empties the order's membership.
func (r *OrderRepository) ClearItems(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("clearing order items: %w", err)
	}
	return nil
}

// UpdateTotal persists the recomputed cached total.
func (r *OrderRepository) UpdateTotal(ctx context.Context, orderID string, total decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET total_price = $2 WHERE id = $1`, orderID, total)
	if err != nil {
		return fmt.Errorf("updating order total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, itemID := range itemIDs {
		batch.Queue(
			`INSERT INTO order_items (order_id, item_id) VALUES ($1, $2)`,
			orderID, itemID,
		)
	}

	res := tx.SendBatch(ctx, batch)
	defer res.Close()

	// Results come back in queue order, so the failing item is known.
	for _, itemID := range itemIDs {
		if _, err := res.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return errors.Wrapf(order.ErrDuplicateItem, "item %s", itemID)
			}
			return fmt.Errorf("inserting order item %s: %w", itemID, err)
		}
	}
	return nil
}

// nullable maps the empty string to SQL NULL for optional references.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
