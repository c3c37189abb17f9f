package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("item not found")

// Currency is the ISO-like lowercase currency code an item is priced in.
// Only the two codes the shop actually sells in are supported.
type Currency string

const (
	// USD prices are converted into the settlement currency using the
	// configured exchange rate.
	USD Currency = "usd"
	// RUB is the settlement currency; prices pass through unconverted.
	RUB Currency = "rub"
)

// Valid reports whether c is one of the supported currency codes.
func (c Currency) Valid() bool {
	return c == USD || c == RUB
}

// Item represents a catalog entry available for purchase. Price and Currency
// together form the unit price in the item's native currency.
type Item struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    Currency
}

// Repository defines persistence operations for catalog items.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id string) error
}
