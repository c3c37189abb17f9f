// Package pricing implements the order pricing engine: pure conversion of
// item prices into the RUB settlement currency and summation into a total.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/domain/catalog"
)

var hundred = decimal.NewFromInt(100)

// InvalidPriceError indicates a negative price was passed to the engine.
type InvalidPriceError struct {
	Price decimal.Decimal
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %s: must not be negative", e.Price)
}

// InvalidRateError indicates a non-positive conversion rate.
type InvalidRateError struct {
	Rate decimal.Decimal
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid conversion rate %s: must be positive", e.Rate)
}

// PricedItem is the minimal shape the engine needs from an item.
type PricedItem struct {
	Price    decimal.Decimal
	Currency catalog.Currency
}

// ToSettlement converts a single price into the settlement currency.
// USD prices are multiplied by rate and rounded half-up to two decimal
// places; RUB prices pass through unchanged. This is the one conversion
// rule shared by total computation and session line items.
func ToSettlement(price decimal.Decimal, cur catalog.Currency, rate decimal.Decimal) decimal.Decimal {
	if cur == catalog.USD {
		// Round is half-away-from-zero, which equals half-up for the
		// non-negative amounts money columns hold.
		return price.Mul(rate).Round(2)
	}
	return price
}

// MinorUnits converts a major-unit price into minor units (kopecks/cents)
// as used by gateway amount fields.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

// ComputeTotal normalizes every item price into the settlement currency and
// returns the sum. The empty list prices to zero. A negative price yields
// *InvalidPriceError; a non-positive rate yields *InvalidRateError.
func ComputeTotal(items []PricedItem, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, &InvalidRateError{Rate: rate}
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Price.IsNegative() {
			return decimal.Zero, &InvalidPriceError{Price: item.Price}
		}
		total = total.Add(ToSettlement(item.Price, item.Currency, rate))
	}

	return total, nil
}
