package entities

import "github.com/shopspring/decimal"

// CheckoutInput is what the buyer submits with POST /orders.
type CheckoutInput struct {
	ShippingAddress   *ShippingAddress
	ShippingAddressID string
	PaymentMethod     string
	CouponCode        string
	Notes             string
}

type PaymentIntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
}

type Tracking struct {
	Number  string
	Carrier string
}

type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize fills in defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

type PageMeta struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

func NewPageMeta(p Page, total int) PageMeta {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

type OrderPage struct {
	Orders []Order
	Meta   PageMeta
}

type OrderFilter struct {
	UserID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
}
