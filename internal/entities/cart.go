package entities

import "github.com/shopspring/decimal"

// CartItem is a cart line with its product and variant already resolved.
type CartItem struct {
	ProductID   string
	ProductName string
	ProductSKU  string

	VariantID   string
	VariantName string
	VariantSKU  string

	Quantity int
	Price    decimal.Decimal
}

// SKU prefers the variant SKU when the line refers to a variant.
func (i CartItem) SKU() string {
	if i.VariantID != "" && i.VariantSKU != "" {
		return i.VariantSKU
	}
	return i.ProductSKU
}

type Cart struct {
	ID         string
	UserID     string
	Items      []CartItem
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	CouponCode string
}

func (c Cart) Empty() bool {
	return len(c.Items) == 0
}
