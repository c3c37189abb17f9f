package billing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kassa/internal/gateway"
)

// fallbackTaxName is used as the gateway display name when a tax record has
// no name of its own.
const fallbackTaxName = "VAT"

// Lifecycle keeps each local discount/tax record's external counterpart
// consistent under a create-or-replace policy: the previous external object
// is invalidated before a new one is requested, and the record is only
// persisted once the new external id is known.
//
// Invalidation is best-effort. The prior coupon may already be gone from the
// gateway, so a failed cleanup is logged and the operation proceeds. A failed
// creation, by contrast, aborts the save: the record must never be persisted
// pointing at a stale or missing external object.
type Lifecycle struct {
	repo Repository
	gw   gateway.Gateway
	lg   *zap.Logger
}

// NewLifecycle creates a Lifecycle manager over the given repository and
// gateway adapter.
func NewLifecycle(repo Repository, gw gateway.Gateway, lg *zap.Logger) *Lifecycle {
	return &Lifecycle{repo: repo, gw: gw, lg: lg}
}

// SaveDiscount creates or replaces the external coupon for d, stores the new
// coupon id on the record, and persists it. Percentages outside [0, 100]
// yield *InvalidPercentageError.
func (l *Lifecycle) SaveDiscount(ctx context.Context, d *Discount) error {
	if !validPercentage(d.Percentage) {
		return &InvalidPercentageError{Percentage: d.Percentage}
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	if d.ExternalCouponID != "" {
		if err := l.gw.DeleteCoupon(ctx, d.ExternalCouponID); err != nil {
			l.lg.Warn("coupon cleanup failed",
				zap.String("discount_id", d.ID),
				zap.String("coupon_id", d.ExternalCouponID),
				zap.Error(err),
			)
		}
	}

	couponID, err := l.gw.CreateCoupon(ctx, d.Percentage)
	if err != nil {
		return errors.Wrap(err, "create coupon")
	}
	d.ExternalCouponID = couponID

	if err := l.repo.SaveDiscount(ctx, d); err != nil {
		// The record will not reference the fresh coupon, so release it
		// instead of leaving it orphaned on the gateway.
		if delErr := l.gw.DeleteCoupon(ctx, couponID); delErr != nil {
			l.lg.Warn("orphaned coupon cleanup failed",
				zap.String("discount_id", d.ID),
				zap.String("coupon_id", couponID),
				zap.Error(delErr),
			)
		}
		return errors.Wrap(err, "persist discount")
	}
	return nil
}

// DeleteDiscount invalidates the record's external coupon and removes the
// local record. Consistency with the gateway is best-effort: a failed
// invalidation is logged and the local delete proceeds.
func (l *Lifecycle) DeleteDiscount(ctx context.Context, id string) error {
	d, err := l.repo.GetDiscount(ctx, id)
	if err != nil {
		return err
	}

	if d.ExternalCouponID != "" {
		if err := l.gw.DeleteCoupon(ctx, d.ExternalCouponID); err != nil {
			l.lg.Warn("coupon cleanup failed",
				zap.String("discount_id", d.ID),
				zap.String("coupon_id", d.ExternalCouponID),
				zap.Error(err),
			)
		}
	}

	return l.repo.DeleteDiscount(ctx, id)
}

// SaveTax creates or replaces the external tax rate for t. Replacement
// deactivates the prior rate rather than deleting it, since the gateway
// offers no delete for tax rates.
func (l *Lifecycle) SaveTax(ctx context.Context, t *Tax) error {
	if !validPercentage(t.Percentage) {
		return &InvalidPercentageError{Percentage: t.Percentage}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	if t.ExternalRateID != "" {
		if err := l.gw.DeactivateTaxRate(ctx, t.ExternalRateID); err != nil {
			l.lg.Warn("tax rate cleanup failed",
				zap.String("tax_id", t.ID),
				zap.String("rate_id", t.ExternalRateID),
				zap.Error(err),
			)
		}
	}

	displayName := t.Name
	if displayName == "" {
		displayName = fallbackTaxName
	}

	rateID, err := l.gw.CreateTaxRate(ctx, displayName, t.Percentage, false)
	if err != nil {
		return errors.Wrap(err, "create tax rate")
	}
	t.ExternalRateID = rateID

	if err := l.repo.SaveTax(ctx, t); err != nil {
		// Same ownership rule as coupons: deactivate the fresh rate rather
		// than leaving it active with no record pointing at it.
		if deactErr := l.gw.DeactivateTaxRate(ctx, rateID); deactErr != nil {
			l.lg.Warn("orphaned tax rate cleanup failed",
				zap.String("tax_id", t.ID),
				zap.String("rate_id", rateID),
				zap.Error(deactErr),
			)
		}
		return errors.Wrap(err, "persist tax")
	}
	return nil
}

// DeleteTax deactivates the record's external rate and removes the local
// record, with the same best-effort policy as DeleteDiscount.
func (l *Lifecycle) DeleteTax(ctx context.Context, id string) error {
	t, err := l.repo.GetTax(ctx, id)
	if err != nil {
		return err
	}

	if t.ExternalRateID != "" {
		if err := l.gw.DeactivateTaxRate(ctx, t.ExternalRateID); err != nil {
			l.lg.Warn("tax rate cleanup failed",
				zap.String("tax_id", t.ID),
				zap.String("rate_id", t.ExternalRateID),
				zap.Error(err),
			)
		}
	}

	return l.repo.DeleteTax(ctx, id)
}
