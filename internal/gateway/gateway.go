// Package gateway defines the narrow capability interface this system
// requires from the external payment processor. All state about coupons,
// tax rates, and sessions lives on the processor side; local records only
// hold the opaque ids handed back.
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/domain/catalog"
)

// ModePayment is the one-time payment mode for hosted checkout sessions.
const ModePayment = "payment"

// LineItem describes a single priced line in a checkout session.
// Quantity is always 1 in this system; the field exists because the wire
// format requires it.
type LineItem struct {
	Currency    catalog.Currency
	UnitAmount  int64 // minor units (kopecks/cents)
	Quantity    int
	Name        string
	Description string
}

// SessionRequest is the full description of a hosted checkout page.
type SessionRequest struct {
	LineItems  []LineItem
	Mode       string
	SuccessURL string
	CancelURL  string
	// CouponID references an external coupon object to apply to the whole
	// session. Empty means no discount.
	CouponID string
}

// IntentRequest describes a payment intent for client-side confirmation.
// No redirect URLs: the client confirms the payment itself.
type IntentRequest struct {
	Amount      int64 // minor units
	Currency    catalog.Currency
	Description string
}

// Gateway is the payment processor adapter. Implementations must be safe
// for concurrent use. The credential is owned by the implementation; there
// is no process-global API key.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (sessionID string, err error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (clientSecret string, err error)
	CreateCoupon(ctx context.Context, percentOff decimal.Decimal) (couponID string, err error)
	// DeleteCoupon is idempotent: deleting an already-gone coupon is not an
	// error.
	DeleteCoupon(ctx context.Context, couponID string) error
	CreateTaxRate(ctx context.Context, displayName string, percentage decimal.Decimal, inclusive bool) (rateID string, err error)
	// DeactivateTaxRate disables a rate; the processor offers no delete for
	// this resource.
	DeactivateTaxRate(ctx context.Context, rateID string) error
}

// Error wraps a failed gateway call with the operation name and, when the
// call reached the processor, the HTTP status of its response.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
}
