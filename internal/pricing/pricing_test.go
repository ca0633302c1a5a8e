package pricing_test

import (
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculator_Compute(t *testing.T) {
	testCases := []struct {
		name         string
		subtotal     string
		discount     string
		wantShipping string
		wantTax      string
		wantTotal    string
	}{
		{name: "free shipping above threshold", subtotal: "150.00", discount: "0", wantShipping: "0.00", wantTax: "12.00", wantTotal: "162.00"},
		{name: "flat fee below threshold", subtotal: "40.00", discount: "5.00", wantShipping: "9.99", wantTax: "2.80", wantTotal: "47.79"},
		{name: "exactly at threshold", subtotal: "100.00", discount: "0", wantShipping: "0.00", wantTax: "8.00", wantTotal: "108.00"},
		{name: "threshold uses subtotal before discount", subtotal: "100.00", discount: "20.00", wantShipping: "0.00", wantTax: "6.40", wantTotal: "86.40"},
		{name: "tax rounds to cents", subtotal: "10.05", discount: "0", wantShipping: "9.99", wantTax: "0.80", wantTotal: "20.84"},
		{name: "fully discounted", subtotal: "30.00", discount: "30.00", wantShipping: "9.99", wantTax: "0.00", wantTotal: "9.99"},
	}

	calc := pricing.Default()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := calc.Compute(d(tc.subtotal), d(tc.discount))
			require.NoError(t, err)

			assert.Equal(t, tc.wantShipping, got.ShippingFee.StringFixed(2))
			assert.Equal(t, tc.wantTax, got.Tax.StringFixed(2))
			assert.Equal(t, tc.wantTotal, got.Total.StringFixed(2))

			want := got.Subtotal.Sub(got.Discount).Add(got.ShippingFee).Add(got.Tax)
			assert.True(t, want.Equal(got.Total))
		})
	}
}

func TestCalculator_Compute_Invalid(t *testing.T) {
	calc := pricing.Default()

	_, err := calc.Compute(d("10"), d("11"))
	assert.ErrorIs(t, err, entities.ErrInvalidTotals)

	_, err = calc.Compute(d("-1"), decimal.Zero)
	assert.ErrorIs(t, err, entities.ErrInvalidTotals)

	_, err = calc.Compute(d("10"), d("-1"))
	assert.ErrorIs(t, err, entities.ErrInvalidTotals)
}

func TestCalculator_CustomPolicies(t *testing.T) {
	calc := pricing.NewCalculator(
		pricing.FlatShipping{FreeThreshold: d("50"), FlatFee: d("4.50")},
		pricing.FlatTax{Rate: d("0.2")},
	)

	got, err := calc.Compute(d("49.99"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "4.50", got.ShippingFee.StringFixed(2))
	assert.Equal(t, "10.00", got.Tax.StringFixed(2))
	assert.Equal(t, "64.49", got.Total.StringFixed(2))
}
