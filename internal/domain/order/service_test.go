package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kassa/internal/domain/billing"
	"github.com/xenking/kassa/internal/domain/catalog"
	"github.com/xenking/kassa/internal/domain/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memOrderRepo is an in-memory order.Repository.
type memOrderRepo struct {
	orders map[string]*Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]*Order{}}
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.ItemIDs = append([]string(nil), o.ItemIDs...)
	return &cp, nil
}

func (r *memOrderRepo) Create(_ context.Context, o *Order) error {
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) Update(_ context.Context, o *Order) error {
	stored, ok := r.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Name = o.Name
	stored.Description = o.Description
	stored.DiscountID = o.DiscountID
	stored.TaxID = o.TaxID
	return nil
}

func (r *memOrderRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.orders[id]; !ok {
		return ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *memOrderRepo) AddItems(_ context.Context, orderID string, itemIDs []string) error {
	o := r.orders[orderID]
	o.ItemIDs = append(o.ItemIDs, itemIDs...)
	return nil
}

func (r *memOrderRepo) RemoveItems(_ context.Context, orderID string, itemIDs []string) error {
	o := r.orders[orderID]
	drop := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = struct{}{}
	}
	kept := o.ItemIDs[:0]
	for _, id := range o.ItemIDs {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	o.ItemIDs = kept
	return nil
}

func (r *memOrderRepo) ClearItems(_ context.Context, orderID string) error {
	r.orders[orderID].ItemIDs = nil
	return nil
}

func (r *memOrderRepo) UpdateTotal(_ context.Context, orderID string, total decimal.Decimal) error {
	r.orders[orderID].TotalPrice = total
	return nil
}

// memItemRepo is an in-memory catalog.Repository.
type memItemRepo struct {
	items map[string]catalog.Item
}

func (r *memItemRepo) List(context.Context) ([]catalog.Item, error) { panic("not used") }

func (r *memItemRepo) GetByID(_ context.Context, id string) (*catalog.Item, error) {
	it, ok := r.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &it, nil
}

func (r *memItemRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memItemRepo) Create(context.Context, *catalog.Item) error { panic("not used") }
func (r *memItemRepo) Update(context.Context, *catalog.Item) error { panic("not used") }
func (r *memItemRepo) Delete(context.Context, string) error        { panic("not used") }

// memBillingRepo resolves any id that was pre-registered.
type memBillingRepo struct {
	discounts map[string]billing.Discount
	taxes     map[string]billing.Tax
}

func (r *memBillingRepo) GetDiscount(_ context.Context, id string) (*billing.Discount, error) {
	d, ok := r.discounts[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &d, nil
}

func (r *memBillingRepo) ListDiscounts(context.Context) ([]billing.Discount, error) {
	panic("not used")
}
func (r *memBillingRepo) SaveDiscount(context.Context, *billing.Discount) error { panic("not used") }
func (r *memBillingRepo) DeleteDiscount(context.Context, string) error          { panic("not used") }

func (r *memBillingRepo) GetTax(_ context.Context, id string) (*billing.Tax, error) {
	t, ok := r.taxes[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return &t, nil
}

func (r *memBillingRepo) ListTaxes(context.Context) ([]billing.Tax, error) { panic("not used") }
func (r *memBillingRepo) SaveTax(context.Context, *billing.Tax) error      { panic("not used") }
func (r *memBillingRepo) DeleteTax(context.Context, string) error          { panic("not used") }

func testService() (*Service, *memOrderRepo) {
	orders := newMemOrderRepo()
	items := &memItemRepo{items: map[string]catalog.Item{
		"rub-100": {ID: "rub-100", Name: "Подарочный набор", Price: dec("100.00"), Currency: catalog.RUB},
		"usd-5":   {ID: "usd-5", Name: "Sticker pack", Price: dec("5.00"), Currency: catalog.USD},
		"rub-20":  {ID: "rub-20", Name: "Открытка", Price: dec("19.99"), Currency: catalog.RUB},
	}}
	bill := &memBillingRepo{
		discounts: map[string]billing.Discount{"d1": {ID: "d1"}},
		taxes:     map[string]billing.Tax{"t1": {ID: "t1"}},
	}
	return NewService(orders, items, bill, decimal.NewFromInt(80)), orders
}

func TestService_Create(t *testing.T) {
	svc, repo := testService()

	o, err := svc.Create(context.Background(), CreateRequest{
		Name:    "order",
		ItemIDs: []string{"rub-100", "usd-5"},
	})
	require.NoError(t, err)

	// 100.00 + 5.00*80 = 500.00
	assert.True(t, dec("500.00").Equal(o.TotalPrice), "got %s", o.TotalPrice)
	assert.NotEmpty(t, o.ID)
	stored := repo.orders[o.ID]
	assert.Equal(t, []string{"rub-100", "usd-5"}, stored.ItemIDs)
}

func TestService_Create_UnknownItem(t *testing.T) {
	svc, _ := testService()

	_, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"nope"}})

	var nf *ItemNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.ItemID)
}

func TestService_Create_DuplicateItems(t *testing.T) {
	svc, _ := testService()

	_, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"usd-5", "usd-5"}})
	assert.ErrorIs(t, err, ErrDuplicateItem)
}

func TestService_Create_UnknownDiscount(t *testing.T) {
	svc, _ := testService()

	_, err := svc.Create(context.Background(), CreateRequest{
		ItemIDs:    []string{"rub-100"},
		DiscountID: "missing",
	})
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestService_AddItems_RecomputesTotal(t *testing.T) {
	svc, repo := testService()

	o, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"rub-100"}})
	require.NoError(t, err)

	updated, err := svc.AddItems(context.Background(), o.ID, []string{"usd-5"})
	require.NoError(t, err)

	// The total is recomputed synchronously by the mutating call.
	assert.True(t, dec("500.00").Equal(updated.TotalPrice), "got %s", updated.TotalPrice)
	assert.True(t, dec("500.00").Equal(repo.orders[o.ID].TotalPrice))
}

func TestService_AddItems_Duplicate(t *testing.T) {
	svc, _ := testService()

	o, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"rub-100"}})
	require.NoError(t, err)

	_, err = svc.AddItems(context.Background(), o.ID, []string{"rub-100"})
	assert.ErrorIs(t, err, ErrDuplicateItem)
}

func TestService_AddItems_OrderNotFound(t *testing.T) {
	svc, _ := testService()

	_, err := svc.AddItems(context.Background(), "missing", []string{"rub-100"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RemoveItems_RecomputesTotal(t *testing.T) {
	svc, _ := testService()

	o, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"rub-100", "usd-5"}})
	require.NoError(t, err)

	updated, err := svc.RemoveItems(context.Background(), o.ID, []string{"usd-5"})
	require.NoError(t, err)

	assert.True(t, dec("100.00").Equal(updated.TotalPrice), "got %s", updated.TotalPrice)
	assert.Equal(t, []string{"rub-100"}, updated.ItemIDs)
}

func TestService_ClearItems_ZeroTotal(t *testing.T) {
	svc, _ := testService()

	o, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"rub-100", "rub-20"}})
	require.NoError(t, err)

	updated, err := svc.ClearItems(context.Background(), o.ID)
	require.NoError(t, err)

	assert.True(t, updated.TotalPrice.IsZero())
	assert.Empty(t, updated.ItemIDs)
}

func TestService_Recompute_MatchesPricingEngine(t *testing.T) {
	svc, repo := testService()

	o, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"rub-100", "usd-5", "rub-20"}})
	require.NoError(t, err)

	// Simulate out-of-band membership churn, then an explicit recompute.
	repo.orders[o.ID].ItemIDs = []string{"usd-5"}
	updated, err := svc.Recompute(context.Background(), o.ID)
	require.NoError(t, err)

	want, err := pricing.ComputeTotal(
		[]pricing.PricedItem{{Price: dec("5.00"), Currency: catalog.USD}},
		decimal.NewFromInt(80),
	)
	require.NoError(t, err)
	assert.True(t, want.Equal(updated.TotalPrice))
}

func TestService_SetDiscountAndTax(t *testing.T) {
	svc, repo := testService()

	o, err := svc.Create(context.Background(), CreateRequest{ItemIDs: []string{"rub-100"}})
	require.NoError(t, err)

	_, err = svc.SetDiscount(context.Background(), o.ID, "d1")
	require.NoError(t, err)
	_, err = svc.SetTax(context.Background(), o.ID, "t1")
	require.NoError(t, err)

	stored := repo.orders[o.ID]
	assert.Equal(t, "d1", stored.DiscountID)
	assert.Equal(t, "t1", stored.TaxID)

	_, err = svc.SetDiscount(context.Background(), o.ID, "missing")
	assert.ErrorIs(t, err, billing.ErrNotFound)
}
