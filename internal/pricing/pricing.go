// Package pricing computes order totals from a cart subtotal and discount.
package pricing

import (
	"fmt"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/shopspring/decimal"
)

type ShippingPolicy interface {
	ShippingFee(subtotal decimal.Decimal) decimal.Decimal
}

type TaxPolicy interface {
	Tax(taxable decimal.Decimal) decimal.Decimal
}

// FlatShipping charges a flat fee below FreeThreshold and nothing at or above it.
type FlatShipping struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

func (p FlatShipping) ShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}

// FlatTax charges Rate of the discounted subtotal, rounded to cents.
type FlatTax struct {
	Rate decimal.Decimal
}

func (p FlatTax) Tax(taxable decimal.Decimal) decimal.Decimal {
	return p.Rate.Mul(taxable).Round(2)
}

var (
	DefaultFreeShippingThreshold = decimal.NewFromInt(100)
	DefaultShippingFee           = decimal.RequireFromString("9.99")
	DefaultTaxRate               = decimal.RequireFromString("0.08")
)

type Totals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

type Calculator struct {
	shipping ShippingPolicy
	tax      TaxPolicy
}

func NewCalculator(shipping ShippingPolicy, tax TaxPolicy) Calculator {
	return Calculator{shipping: shipping, tax: tax}
}

// Default is free shipping from 100, 9.99 otherwise, and 8% tax.
func Default() Calculator {
	return NewCalculator(
		FlatShipping{FreeThreshold: DefaultFreeShippingThreshold, FlatFee: DefaultShippingFee},
		FlatTax{Rate: DefaultTaxRate},
	)
}

func (c Calculator) Compute(subtotal, discount decimal.Decimal) (Totals, error) {
	if subtotal.IsNegative() || discount.IsNegative() {
		return Totals{}, fmt.Errorf("%w: negative amount", entities.ErrInvalidTotals)
	}
	if discount.GreaterThan(subtotal) {
		return Totals{}, fmt.Errorf("%w: discount %s exceeds subtotal %s", entities.ErrInvalidTotals, discount, subtotal)
	}

	subtotal = subtotal.Round(2)
	discount = discount.Round(2)

	shipping := c.shipping.ShippingFee(subtotal).Round(2)
	tax := c.tax.Tax(subtotal.Sub(discount)).Round(2)

	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		ShippingFee: shipping,
		Tax:         tax,
		Total:       subtotal.Sub(discount).Add(shipping).Add(tax),
	}, nil
}
