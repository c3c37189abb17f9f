package order

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/domain/billing"
	"github.com/xenking/kassa/internal/domain/catalog"
	"github.com/xenking/kassa/internal/domain/pricing"
)

// lockStripes is the number of mutexes mutations are striped over. Mutations
// to the same order always hit the same stripe, so they serialize.
const lockStripes = 64

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	Name        string
	Description string
	ItemIDs     []string
	DiscountID  string
	TaxID       string
}

// Service owns order mutations. Every membership change synchronously
// recomputes the cached total through the pricing engine before the call
// returns; there is no eventual-consistency window. Mutations to the same
// order are serialized with a striped mutex.
type Service struct {
	orders  Repository
	items   catalog.Repository
	billing billing.Repository
	rate    decimal.Decimal

	locks [lockStripes]sync.Mutex
}

// NewService creates an order Service. rate is the fixed USD to RUB
// conversion rate used for total computation.
func NewService(orders Repository, items catalog.Repository, billing billing.Repository, rate decimal.Decimal) *Service {
	return &Service{
		orders:  orders,
		items:   items,
		billing: billing,
		rate:    rate,
	}
}

func (s *Service) lock(orderID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Create validates the item, discount, and tax references, computes the
// initial total, and persists the order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := checkDuplicates(req.ItemIDs); err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, req.ItemIDs)
	if err != nil {
		return nil, err
	}

	if req.DiscountID != "" {
		if _, err := s.billing.GetDiscount(ctx, req.DiscountID); err != nil {
			return nil, errors.Wrap(err, "resolve discount")
		}
	}
	if req.TaxID != "" {
		if _, err := s.billing.GetTax(ctx, req.TaxID); err != nil {
			return nil, errors.Wrap(err, "resolve tax")
		}
	}

	total, err := pricing.ComputeTotal(priced(items), s.rate)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		ItemIDs:     req.ItemIDs,
		DiscountID:  req.DiscountID,
		TaxID:       req.TaxID,
		TotalPrice:  total,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Delete removes an order. The member items are independent catalog entries
// and are left untouched.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}

// AddItems appends items to the order's membership and recomputes the
// cached total. Adding an item the order already contains yields
// ErrDuplicateItem; unknown items yield *ItemNotFoundError.
func (s *Service) AddItems(ctx context.Context, orderID string, itemIDs []string) (*Order, error) {
	if len(itemIDs) == 0 {
		return s.orders.GetByID(ctx, orderID)
	}
	if err := checkDuplicates(itemIDs); err != nil {
		return nil, err
	}

	mu := s.lock(orderID)
	mu.Lock()
	defer mu.Unlock()

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	member := make(map[string]struct{}, len(o.ItemIDs))
	for _, id := range o.ItemIDs {
		member[id] = struct{}{}
	}
	for _, id := range itemIDs {
		if _, ok := member[id]; ok {
			return nil, errors.Wrapf(ErrDuplicateItem, "item %s", id)
		}
	}

	if _, err := s.resolveItems(ctx, itemIDs); err != nil {
		return nil, err
	}

	if err := s.orders.AddItems(ctx, orderID, itemIDs); err != nil {
		return nil, errors.Wrap(err, "add items")
	}

	return s.recompute(ctx, orderID)
}

// RemoveItems drops items from the order's membership and recomputes the
// cached total. Removing an item that is not a member is a no-op.
func (s *Service) RemoveItems(ctx context.Context, orderID string, itemIDs []string) (*Order, error) {
	mu := s.lock(orderID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	if err := s.orders.RemoveItems(ctx, orderID, itemIDs); err != nil {
		return nil, errors.Wrap(err, "remove items")
	}

	return s.recompute(ctx, orderID)
}

// ClearItems empties the order's membership; the total becomes zero.
func (s *Service) ClearItems(ctx context.Context, orderID string) (*Order, error) {
	mu := s.lock(orderID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	if err := s.orders.ClearItems(ctx, orderID); err != nil {
		return nil, errors.Wrap(err, "clear items")
	}

	return s.recompute(ctx, orderID)
}

// Recompute recalculates and persists the cached total from the current
// membership. Membership mutations already do this; Recompute exists for
// callers that batch-mutate through other channels.
func (s *Service) Recompute(ctx context.Context, orderID string) (*Order, error) {
	mu := s.lock(orderID)
	mu.Lock()
	defer mu.Unlock()

	return s.recompute(ctx, orderID)
}

// SetDiscount attaches a discount reference to the order.
func (s *Service) SetDiscount(ctx context.Context, orderID, discountID string) (*Order, error) {
	return s.setRefs(ctx, orderID, func(o *Order) error {
		if discountID != "" {
			if _, err := s.billing.GetDiscount(ctx, discountID); err != nil {
				return errors.Wrap(err, "resolve discount")
			}
		}
		o.DiscountID = discountID
		return nil
	})
}

// SetTax attaches a tax reference to the order. Checkout for an order with
// a tax attached fails until the gateway integration supports it; attaching
// is still allowed so the record is ready when it does.
func (s *Service) SetTax(ctx context.Context, orderID, taxID string) (*Order, error) {
	return s.setRefs(ctx, orderID, func(o *Order) error {
		if taxID != "" {
			if _, err := s.billing.GetTax(ctx, taxID); err != nil {
				return errors.Wrap(err, "resolve tax")
			}
		}
		o.TaxID = taxID
		return nil
	})
}

func (s *Service) setRefs(ctx context.Context, orderID string, mutate func(*Order) error) (*Order, error) {
	mu := s.lock(orderID)
	mu.Lock()
	defer mu.Unlock()

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := mutate(o); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// recompute must be called with the order's stripe lock held.
func (s *Service) recompute(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, o.ItemIDs)
	if err != nil {
		return nil, err
	}

	total, err := pricing.ComputeTotal(priced(items), s.rate)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateTotal(ctx, orderID, total); err != nil {
		return nil, errors.Wrap(err, "persist total")
	}
	o.TotalPrice = total
	return o, nil
}

// resolveItems batch-fetches items and verifies every id resolved.
func (s *Service) resolveItems(ctx context.Context, ids []string) ([]catalog.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	fetched, err := s.items.GetByIDs(ctx, ids)
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
			return nil, &ItemNotFoundError{ItemID: id}
		}
		items = append(items, it)
	}
	return items, nil
}

func priced(items []catalog.Item) []pricing.PricedItem {
	out := make([]pricing.PricedItem, len(items))
	for i, it := range items {
		out[i] = pricing.PricedItem{Price: it.Price, Currency: it.Currency}
	}
	return out
}

func checkDuplicates(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return errors.Wrapf(ErrDuplicateItem, "item %s", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
