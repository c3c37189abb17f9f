package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kassa/internal/domain/billing"
)

var _ billing.Repository = (*BillingRepository)(nil)

// BillingRepository implements billing.Repository backed by PostgreSQL.
type BillingRepository struct {
	pool *pgxpool.Pool
}

// NewBillingRepository returns a BillingRepository that uses the given pool.
func NewBillingRepository(pool *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{pool: pool}
}

// GetDiscount returns a discount by id, or billing.ErrNotFound.
func (r *BillingRepository) GetDiscount(ctx context.Context, id string) (*billing.Discount, error) {
	var d billing.Discount
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, percentage, coupon_id FROM discounts WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Percentage, &d.ExternalCouponID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrNotFound
		}
		return nil, fmt.Errorf("getting discount %s: %w", id, err)
	}
	return &d, nil
}

// ListDiscounts returns all discounts ordered by creation time.
func (r *BillingRepository) ListDiscounts(ctx context.Context) ([]billing.Discount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, percentage, coupon_id FROM discounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	discounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (billing.Discount, error) {
		var d billing.Discount
		err := row.Scan(&d.ID, &d.Name, &d.Percentage, &d.ExternalCouponID)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning discounts: %w", err)
	}
	return discounts, nil
}

// SaveDiscount upserts a discount record.
func (r *BillingRepository) SaveDiscount(ctx context.Context, d *billing.Discount) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO discounts (id, name, percentage, coupon_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = $2, percentage = $3, coupon_id = $4`,
		d.ID, d.Name, d.Percentage, d.ExternalCouponID,
	)
	if err != nil {
		return fmt.Errorf("saving discount %s: %w", d.ID, err)
	}
	return nil
}

// DeleteDiscount removes a discount, or returns billing.ErrNotFound.
func (r *BillingRepository) DeleteDiscount(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting discount %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// GetTax returns a tax by id, or billing.ErrNotFound.
func (r *BillingRepository) GetTax(ctx context.Context, id string) (*billing.Tax, error) {
	var t billing.Tax
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, percentage, rate_id FROM taxes WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Percentage, &t.ExternalRateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrNotFound
		}
		return nil, fmt.Errorf("getting tax %s: %w", id, err)
	}
	return &t, nil
}

// ListTaxes returns all taxes ordered by creation time.
func (r *BillingRepository) ListTaxes(ctx context.Context) ([]billing.Tax, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, percentage, rate_id FROM taxes ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing taxes: %w", err)
	}
	taxes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (billing.Tax, error) {
		var t billing.Tax
		err := row.Scan(&t.ID, &t.Name, &t.Percentage, &t.ExternalRateID)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning taxes: %w", err)
	}
	return taxes, nil
}

// SaveTax upserts a tax record.
func (r *BillingRepository) SaveTax(ctx context.Context, t *billing.Tax) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO taxes (id, name, percentage, rate_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = $2, percentage = $3, rate_id = $4`,
		t.ID, t.Name, t.Percentage, t.ExternalRateID,
	)
	if err != nil {
		return fmt.Errorf("saving tax %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTax removes a tax, or returns billing.ErrNotFound.
func (r *BillingRepository) DeleteTax(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM taxes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting tax %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrNotFound
	}
	return nil
}
