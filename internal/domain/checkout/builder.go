// Package checkout builds payment-session and payment-intent requests from
// catalog items and orders. It is stateless per call: all state lives in
// the catalog store and on the gateway.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/domain/billing"
	"github.com/xenking/kassa/internal/domain/catalog"
	"github.com/xenking/kassa/internal/domain/order"
	"github.com/xenking/kassa/internal/domain/pricing"
	"github.com/xenking/kassa/internal/gateway"
)

// ErrTaxNotSupported is returned when a session is requested for an order
// with a tax attached. The gateway integration cannot apply tax rates to
// checkout sessions yet; failing loudly beats silently dropping the tax.
var ErrTaxNotSupported = errors.New("tax on order is not supported by the gateway integration")

// Builder assembles gateway requests for purchasing a single item or a
// whole order.
type Builder struct {
	items   catalog.Repository
	orders  order.Repository
	billing billing.Repository
	rate    decimal.Decimal
	baseURL string
}

// NewBuilder creates a Builder. baseURL is the public base URL detail pages
// are served under; rate is the fixed USD to RUB conversion rate.
func NewBuilder(items catalog.Repository, orders order.Repository, billing billing.Repository, rate decimal.Decimal, baseURL string) *Builder {
	return &Builder{
		items:   items,
		orders:  orders,
		billing: billing,
		rate:    rate,
		baseURL: baseURL,
	}
}

// ItemSession builds a hosted-session request for a single item: one line
// entry in the item's own currency, success and cancel both resolving to
// the item's detail page.
func (b *Builder) ItemSession(ctx context.Context, itemID string) (*gateway.SessionRequest, error) {
	item, err := b.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Price.IsNegative() {
		return nil, &pricing.InvalidPriceError{Price: item.Price}
	}

	detail := b.itemURL(item.ID)
	return &gateway.SessionRequest{
		LineItems: []gateway.LineItem{{
			Currency:    item.Currency,
			UnitAmount:  pricing.MinorUnits(item.Price),
			Quantity:    1,
			Name:        item.Name,
			Description: item.Description,
		}},
		Mode:       gateway.ModePayment,
		SuccessURL: detail,
		CancelURL:  detail,
	}, nil
}

// ItemIntent builds a payment-intent request for a single item. No redirect
// URLs: the client confirms the payment itself.
func (b *Builder) ItemIntent(ctx context.Context, itemID string) (*gateway.IntentRequest, error) {
	item, err := b.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Price.IsNegative() {
		return nil, &pricing.InvalidPriceError{Price: item.Price}
	}

	return &gateway.IntentRequest{
		Amount:      pricing.MinorUnits(item.Price),
		Currency:    item.Currency,
		Description: fmt.Sprintf("%s: %s", item.Name, item.Description),
	}, nil
}

// OrderSession builds a hosted-session request for an order: one line entry
// per member item, always expressed in RUB. The per-line amounts are
// converted at build time through the pricing engine's conversion rule, not
// read from the order's cached total. An attached discount contributes its
// external coupon id; an attached tax fails the build with
// ErrTaxNotSupported.
func (b *Builder) OrderSession(ctx context.Context, orderID string) (*gateway.SessionRequest, error) {
	o, err := b.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.TaxID != "" {
		return nil, errors.Wrapf(ErrTaxNotSupported, "order %s", o.ID)
	}

	items, err := b.resolveItems(ctx, o.ItemIDs)
	if err != nil {
		return nil, err
	}

	lines := make([]gateway.LineItem, len(items))
	for i, item := range items {
		if item.Price.IsNegative() {
			return nil, &pricing.InvalidPriceError{Price: item.Price}
		}
		settled := pricing.ToSettlement(item.Price, item.Currency, b.rate)
		lines[i] = gateway.LineItem{
			Currency:    catalog.RUB,
			UnitAmount:  pricing.MinorUnits(settled),
			Quantity:    1,
			Name:        item.Name,
			Description: item.Description,
		}
	}

	req := &gateway.SessionRequest{
		LineItems:  lines,
		Mode:       gateway.ModePayment,
		SuccessURL: b.orderURL(o.ID),
		CancelURL:  b.orderURL(o.ID),
	}

	if o.DiscountID != "" {
		d, err := b.billing.GetDiscount(ctx, o.DiscountID)
		if err != nil {
			return nil, errors.Wrap(err, "resolve discount")
		}
		req.CouponID = d.ExternalCouponID
	}

	return req, nil
}

func (b *Builder) resolveItems(ctx context.Context, ids []string) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	fetched, err := b.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get items")
	}

	byID := make(map[string]catalog.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	items := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, &order.ItemNotFoundError{ItemID: id}
		}
		items = append(items, it)
	}
	return items, nil
}

func (b *Builder) itemURL(id string) string {
	return b.baseURL + "/items/" + id
}

func (b *Builder) orderURL(id string) string {
	return b.baseURL + "/orders/" + id
}
