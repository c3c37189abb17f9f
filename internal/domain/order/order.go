package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrDuplicateItem is returned when an item is added to an order that
// already contains it. Items may appear in many orders, but only once in
// each.
var ErrDuplicateItem = errors.New("item already in order")

// ItemNotFoundError indicates an item reference that does not resolve in
// the catalog.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

// Order is a named set of catalog items with an optional discount and tax
// reference. TotalPrice is the cached settlement-currency total over the
// member items; it is recomputed on every membership change, never lazily
// on read.
type Order struct {
	ID          string
	Name        string
	Description string
	// ItemIDs holds the member item ids in insertion order, without
	// duplicates.
	ItemIDs    []string
	DiscountID string
	TaxID      string
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

// Repository defines persistence operations for orders and their item
// membership.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error

	AddItems(ctx context.Context, orderID string, itemIDs []string) error
	RemoveItems(ctx context.Context, orderID string, itemIDs []string) error
	ClearItems(ctx context.Context, orderID string) error
	UpdateTotal(ctx context.Context, orderID string, total decimal.Decimal) error
}
