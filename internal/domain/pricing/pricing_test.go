package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kassa/internal/domain/catalog"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotal(t *testing.T) {
	rate80 := decimal.NewFromInt(80)

	tests := []struct {
		name    string
		items   []PricedItem
		rate    decimal.Decimal
		want    decimal.Decimal
		wantErr any
	}{
		{
			name:  "empty list prices to zero",
			items: nil,
			rate:  rate80,
			want:  decimal.Zero,
		},
		{
			name:  "single rub item passes through",
			items: []PricedItem{{Price: dec("100.00"), Currency: catalog.RUB}},
			rate:  rate80,
			want:  dec("100.00"),
		},
		{
			name:  "single usd item converted at rate",
			items: []PricedItem{{Price: dec("10.00"), Currency: catalog.USD}},
			rate:  rate80,
			want:  dec("800.00"),
		},
		{
			name: "mixed currencies sum in rub",
			items: []PricedItem{
				{Price: dec("100.00"), Currency: catalog.RUB},
				{Price: dec("5.00"), Currency: catalog.USD},
			},
			rate: rate80,
			want: dec("500.00"),
		},
		{
			name:  "usd conversion rounds half-up to kopecks",
			items: []PricedItem{{Price: dec("0.01"), Currency: catalog.USD}},
			rate:  dec("80.5"),
			// 0.01 * 80.5 = 0.805 -> 0.81
			want: dec("0.81"),
		},
		{
			name:  "zero price is allowed",
			items: []PricedItem{{Price: decimal.Zero, Currency: catalog.RUB}},
			rate:  rate80,
			want:  decimal.Zero,
		},
		{
			name:    "negative price is rejected",
			items:   []PricedItem{{Price: dec("-1.00"), Currency: catalog.RUB}},
			rate:    rate80,
			wantErr: &InvalidPriceError{},
		},
		{
			name:    "zero rate is rejected",
			items:   []PricedItem{{Price: dec("1.00"), Currency: catalog.USD}},
			rate:    decimal.Zero,
			wantErr: &InvalidRateError{},
		},
		{
			name:    "negative rate is rejected",
			items:   []PricedItem{{Price: dec("1.00"), Currency: catalog.USD}},
			rate:    dec("-80"),
			wantErr: &InvalidRateError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTotal(tt.items, tt.rate)

			if tt.wantErr != nil {
				require.Error(t, err)
				switch tt.wantErr.(type) {
				case *InvalidPriceError:
					var target *InvalidPriceError
					assert.ErrorAs(t, err, &target)
				case *InvalidRateError:
					var target *InvalidRateError
					assert.ErrorAs(t, err, &target)
				}
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestComputeTotal_OrderInvariant(t *testing.T) {
	rate := decimal.NewFromInt(80)
	items := []PricedItem{
		{Price: dec("100.00"), Currency: catalog.RUB},
		{Price: dec("5.00"), Currency: catalog.USD},
		{Price: dec("0.01"), Currency: catalog.USD},
		{Price: dec("19.99"), Currency: catalog.RUB},
		{Price: dec("3.33"), Currency: catalog.USD},
	}

	want, err := ComputeTotal(items, rate)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for range 20 {
		shuffled := make([]PricedItem, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got, err := ComputeTotal(shuffled, rate)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "reorder changed total: %s != %s", want, got)
	}
}

func TestToSettlement(t *testing.T) {
	rate := decimal.NewFromInt(80)

	assert.True(t, dec("100.00").Equal(ToSettlement(dec("100.00"), catalog.RUB, rate)))
	assert.True(t, dec("400.00").Equal(ToSettlement(dec("5.00"), catalog.USD, rate)))
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		price string
		want  int64
	}{
		{"100.00", 10000},
		{"0.01", 1},
		{"19.99", 1999},
		{"0", 0},
		{"400.00", 40000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MinorUnits(dec(tt.price)), "price %s", tt.price)
	}
}
