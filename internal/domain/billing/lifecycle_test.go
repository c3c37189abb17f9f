package billing

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kassa/internal/gateway"
)

// mockGateway records the sequence of calls so tests can assert the
// invalidate-before-create ordering.
type mockGateway struct {
	calls []string

	couponSeq     int
	createErr     error
	deleteErr     error
	rateSeq       int
	createRateErr error
	deactivateErr error

	deletedCoupons   []string
	deactivatedRates []string
	lastDisplayName  string
	lastInclusive    bool
}

func (m *mockGateway) CreateSession(context.Context, gateway.SessionRequest) (string, error) {
	panic("not used")
}

func (m *mockGateway) CreatePaymentIntent(context.Context, gateway.IntentRequest) (string, error) {
	panic("not used")
}

func (m *mockGateway) CreateCoupon(_ context.Context, _ decimal.Decimal) (string, error) {
	m.calls = append(m.calls, "create_coupon")
	if m.createErr != nil {
		return "", m.createErr
	}
	m.couponSeq++
	return "cp_" + string(rune('0'+m.couponSeq)), nil
}

func (m *mockGateway) DeleteCoupon(_ context.Context, id string) error {
	m.calls = append(m.calls, "delete_coupon")
	m.deletedCoupons = append(m.deletedCoupons, id)
	return m.deleteErr
}

func (m *mockGateway) CreateTaxRate(_ context.Context, displayName string, _ decimal.Decimal, inclusive bool) (string, error) {
	m.calls = append(m.calls, "create_tax_rate")
	m.lastDisplayName = displayName
	m.lastInclusive = inclusive
	if m.createRateErr != nil {
		return "", m.createRateErr
	}
	m.rateSeq++
	return "txr_" + string(rune('0'+m.rateSeq)), nil
}

func (m *mockGateway) DeactivateTaxRate(_ context.Context, id string) error {
	m.calls = append(m.calls, "deactivate_tax_rate")
	m.deactivatedRates = append(m.deactivatedRates, id)
	return m.deactivateErr
}

// memRepo is an in-memory billing.Repository.
type memRepo struct {
	discounts map[string]Discount
	taxes     map[string]Tax
	saveErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{discounts: map[string]Discount{}, taxes: map[string]Tax{}}
}

func (r *memRepo) GetDiscount(_ context.Context, id string) (*Discount, error) {
	d, ok := r.discounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (r *memRepo) ListDiscounts(context.Context) ([]Discount, error) { panic("not used") }

func (r *memRepo) SaveDiscount(_ context.Context, d *Discount) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.discounts[d.ID] = *d
	return nil
}

func (r *memRepo) DeleteDiscount(_ context.Context, id string) error {
	delete(r.discounts, id)
	return nil
}

func (r *memRepo) GetTax(_ context.Context, id string) (*Tax, error) {
	t, ok := r.taxes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *memRepo) ListTaxes(context.Context) ([]Tax, error) { panic("not used") }

func (r *memRepo) SaveTax(_ context.Context, t *Tax) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.taxes[t.ID] = *t
	return nil
}

func (r *memRepo) DeleteTax(_ context.Context, id string) error {
	delete(r.taxes, id)
	return nil
}

func TestLifecycle_SaveDiscount_CreatesCoupon(t *testing.T) {
	gw := &mockGateway{}
	repo := newMemRepo()
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	d := &Discount{Name: "summer", Percentage: decimal.NewFromInt(10)}
	require.NoError(t, l.SaveDiscount(context.Background(), d))

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "cp_1", d.ExternalCouponID)
	assert.Equal(t, []string{"create_coupon"}, gw.calls)
	assert.Equal(t, "cp_1", repo.discounts[d.ID].ExternalCouponID)
}

func TestLifecycle_SaveDiscount_ReplacesCoupon(t *testing.T) {
	gw := &mockGateway{}
	repo := newMemRepo()
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	d := &Discount{Name: "summer", Percentage: decimal.NewFromInt(10)}
	require.NoError(t, l.SaveDiscount(context.Background(), d))
	first := d.ExternalCouponID

	d.Percentage = decimal.NewFromInt(25)
	require.NoError(t, l.SaveDiscount(context.Background(), d))

	// The old coupon is requested for deletion before the new one is created,
	// and exactly one active id is stored at any time.
	assert.Equal(t, []string{"create_coupon", "delete_coupon", "create_coupon"}, gw.calls)
	assert.Equal(t, []string{first}, gw.deletedCoupons)
	assert.Equal(t, "cp_2", d.ExternalCouponID)
	assert.Equal(t, "cp_2", repo.discounts[d.ID].ExternalCouponID)
}

func TestLifecycle_SaveDiscount_CleanupFailureDoesNotAbort(t *testing.T) {
	gw := &mockGateway{deleteErr: errors.New("already gone")}
	repo := newMemRepo()
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	d := &Discount{Percentage: decimal.NewFromInt(10), ID: "d1", ExternalCouponID: "cp_old"}
	require.NoError(t, l.SaveDiscount(context.Background(), d))

	assert.Equal(t, []string{"delete_coupon", "create_coupon"}, gw.calls)
	assert.Equal(t, "cp_1", d.ExternalCouponID)
}

func TestLifecycle_SaveDiscount_CreateFailureIsFatal(t *testing.T) {
	gw := &mockGateway{createErr: &gateway.Error{Op: "create_coupon", Status: 401, Message: "bad key"}}
	repo := newMemRepo()
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	d := &Discount{Percentage: decimal.NewFromInt(10)}
	err := l.SaveDiscount(context.Background(), d)

	require.Error(t, err)
	var gwErr *gateway.Error
	assert.ErrorAs(t, err, &gwErr)
	assert.Empty(t, repo.discounts, "record must not be persisted without an external id")
}

func TestLifecycle_SaveDiscount_PersistFailureReleasesCoupon(t *testing.T) {
	gw := &mockGateway{}
	repo := newMemRepo()
	repo.saveErr = errors.New("db down")
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	d := &Discount{Percentage: decimal.NewFromInt(10)}
	err := l.SaveDiscount(context.Background(), d)

	require.Error(t, err)
	// The coupon created for this save has no record pointing at it, so it is
	// deleted again before the error is returned.
	assert.Equal(t, []string{"create_coupon", "delete_coupon"}, gw.calls)
	assert.Equal(t, []string{"cp_1"}, gw.deletedCoupons)
	assert.Empty(t, repo.discounts)
}

func TestLifecycle_SaveTax_PersistFailureDeactivatesRate(t *testing.T) {
	gw := &mockGateway{}
	repo := newMemRepo()
	repo.saveErr = errors.New("db down")
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	err := l.SaveTax(context.Background(), &Tax{Percentage: decimal.NewFromInt(20)})

	require.Error(t, err)
	assert.Equal(t, []string{"create_tax_rate", "deactivate_tax_rate"}, gw.calls)
	assert.Equal(t, []string{"txr_1"}, gw.deactivatedRates)
	assert.Empty(t, repo.taxes)
}

func TestLifecycle_SaveDiscount_InvalidPercentage(t *testing.T) {
	l := NewLifecycle(newMemRepo(), &mockGateway{}, zaptest.NewLogger(t))

	for _, pct := range []decimal.Decimal{decimal.NewFromInt(-1), decimal.NewFromInt(101)} {
		err := l.SaveDiscount(context.Background(), &Discount{Percentage: pct})
		var perr *InvalidPercentageError
		assert.ErrorAs(t, err, &perr, "percentage %s", pct)
	}
}

func TestLifecycle_DeleteDiscount(t *testing.T) {
	gw := &mockGateway{}
	repo := newMemRepo()
	repo.discounts["d1"] = Discount{ID: "d1", ExternalCouponID: "cp_x"}
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	require.NoError(t, l.DeleteDiscount(context.Background(), "d1"))

	assert.Equal(t, []string{"cp_x"}, gw.deletedCoupons)
	assert.Empty(t, repo.discounts)
}

func TestLifecycle_DeleteDiscount_NotFound(t *testing.T) {
	l := NewLifecycle(newMemRepo(), &mockGateway{}, zaptest.NewLogger(t))
	err := l.DeleteDiscount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLifecycle_SaveTax_DeactivatesPriorRate(t *testing.T) {
	gw := &mockGateway{}
	repo := newMemRepo()
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	tax := &Tax{Name: "НДС", Percentage: decimal.NewFromInt(20)}
	require.NoError(t, l.SaveTax(context.Background(), tax))
	first := tax.ExternalRateID

	tax.Percentage = decimal.NewFromInt(10)
	require.NoError(t, l.SaveTax(context.Background(), tax))

	assert.Equal(t, []string{"create_tax_rate", "deactivate_tax_rate", "create_tax_rate"}, gw.calls)
	assert.Equal(t, []string{first}, gw.deactivatedRates)
	assert.Equal(t, "НДС", gw.lastDisplayName)
	assert.False(t, gw.lastInclusive)
}

func TestLifecycle_SaveTax_FallbackDisplayName(t *testing.T) {
	gw := &mockGateway{}
	l := NewLifecycle(newMemRepo(), gw, zaptest.NewLogger(t))

	require.NoError(t, l.SaveTax(context.Background(), &Tax{Percentage: decimal.NewFromInt(20)}))
	assert.Equal(t, "VAT", gw.lastDisplayName)
}

func TestLifecycle_DeleteTax_ProceedsWhenDeactivationFails(t *testing.T) {
	gw := &mockGateway{deactivateErr: &gateway.Error{Op: "deactivate_tax_rate", Status: 500, Message: "boom"}}
	repo := newMemRepo()
	repo.taxes["t1"] = Tax{ID: "t1", ExternalRateID: "txr_x"}
	l := NewLifecycle(repo, gw, zaptest.NewLogger(t))

	// Deactivation is always attempted, its failure is reported via the log,
	// and the local delete still goes through.
	require.NoError(t, l.DeleteTax(context.Background(), "t1"))
	assert.Equal(t, []string{"txr_x"}, gw.deactivatedRates)
	assert.Empty(t, repo.taxes)
}
