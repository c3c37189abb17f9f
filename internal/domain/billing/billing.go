// Package billing holds the discount and tax records and the lifecycle
// manager keeping their external gateway counterparts consistent.
package billing

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested discount or tax does not exist.
var ErrNotFound = errors.New("billing record not found")

// InvalidPercentageError indicates a percentage outside [0, 100].
type InvalidPercentageError struct {
	Percentage decimal.Decimal
}

func (e *InvalidPercentageError) Error() string {
	return fmt.Sprintf("invalid percentage %s: must be within [0, 100]", e.Percentage)
}

// Discount is a percentage discount applicable to an order. ExternalCouponID
// is system-assigned on save and never user-editable: it references the
// coupon object the gateway currently holds for this record.
type Discount struct {
	ID               string
	Name             string
	Percentage       decimal.Decimal
	ExternalCouponID string
}

// Tax is a percentage tax rate. ExternalRateID references the active tax
// rate object on the gateway; replaced rates are deactivated, not deleted.
type Tax struct {
	ID             string
	Name           string
	Percentage     decimal.Decimal
	ExternalRateID string
}

// Repository defines persistence for discount and tax records.
type Repository interface {
	GetDiscount(ctx context.Context, id string) (*Discount, error)
	ListDiscounts(ctx context.Context) ([]Discount, error)
	SaveDiscount(ctx context.Context, d *Discount) error
	DeleteDiscount(ctx context.Context, id string) error

	GetTax(ctx context.Context, id string) (*Tax, error)
	ListTaxes(ctx context.Context) ([]Tax, error)
	SaveTax(ctx context.Context, t *Tax) error
	DeleteTax(ctx context.Context, id string) error
}

var hundred = decimal.NewFromInt(100)

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && !p.GreaterThan(hundred)
}
