package repo

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID          string `db:"id"`
	OrderNumber string `db:"order_number"`
	UserID      string `db:"user_id"`

	Subtotal    decimal.Decimal `db:"subtotal"`
	Discount    decimal.Decimal `db:"discount"`
	ShippingFee decimal.Decimal `db:"shipping_fee"`
	Tax         decimal.Decimal `db:"tax"`
	Total       decimal.Decimal `db:"total"`
	CouponCode  sql.NullString  `db:"coupon_code"`

	ShippingAddress Address        `db:"shipping_address"`
	Notes           sql.NullString `db:"notes"`

	Status          string         `db:"status"`
	PaymentStatus   string         `db:"payment_status"`
	PaymentIntentID sql.NullString `db:"payment_intent_id"`

	TrackingNumber sql.NullString `db:"tracking_number"`
	Carrier        sql.NullString `db:"carrier"`
	ShippedAt      sql.NullTime   `db:"shipped_at"`
	DeliveredAt    sql.NullTime   `db:"delivered_at"`
	CancelledAt    sql.NullTime   `db:"cancelled_at"`

	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var orderColumns = []string{
	"id", "order_number", "user_id",
	"subtotal", "discount", "shipping_fee", "tax", "total", "coupon_code",
	"shipping_address", "notes",
	"status", "payment_status", "payment_intent_id",
	"tracking_number", "carrier", "shipped_at", "delivered_at", "cancelled_at",
	"version", "created_at", "updated_at",
}

type Item struct {
	ID          string          `db:"id"`
	OrderID     string          `db:"order_id"`
	Position    int             `db:"position"`
	ProductID   string          `db:"product_id"`
	VariantID   sql.NullString  `db:"variant_id"`
	ProductName string          `db:"product_name"`
	VariantName sql.NullString  `db:"variant_name"`
	SKU         string          `db:"sku"`
	Quantity    int             `db:"quantity"`
	Price       decimal.Decimal `db:"price"`
	Subtotal    decimal.Decimal `db:"subtotal"`
	CreatedAt   time.Time       `db:"created_at"`
}

var itemColumns = []string{
	"id", "order_id", "position", "product_id", "variant_id", "product_name", "variant_name",
	"sku", "quantity", "price", "subtotal", "created_at",
}

// Address is the shipping address stored as a jsonb document.
type Address struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = Address{}
		return nil
	}
	return fmt.Errorf("unsupported shipping_address type %T", src)
}

type Cart struct {
	ID         string          `db:"id"`
	UserID     string          `db:"user_id"`
	Subtotal   decimal.Decimal `db:"subtotal"`
	Discount   decimal.Decimal `db:"discount"`
	CouponCode sql.NullString  `db:"coupon_code"`
}

type CartItem struct {
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	ProductSKU  string          `db:"product_sku"`
	VariantID   sql.NullString  `db:"variant_id"`
	VariantName sql.NullString  `db:"variant_name"`
	VariantSKU  sql.NullString  `db:"variant_sku"`
	Quantity    int             `db:"quantity"`
	Price       decimal.Decimal `db:"price"`
}

func AddressToEntity(a Address) entities.ShippingAddress {
	return entities.ShippingAddress(a)
}

func AddressFromEntity(a entities.ShippingAddress) Address {
	return Address(a)
}

func ItemToEntity(i Item) entities.OrderItem {
	return entities.OrderItem{
		ID:          i.ID,
		OrderID:     i.OrderID,
		ProductID:   i.ProductID,
		VariantID:   nullStringToString(i.VariantID),
		ProductName: i.ProductName,
		VariantName: nullStringToString(i.VariantName),
		SKU:         i.SKU,
		Quantity:    i.Quantity,
		Price:       i.Price,
		Subtotal:    i.Subtotal,
		CreatedAt:   i.CreatedAt.UTC(),
	}
}

func OrderToEntity(o Order, items []Item) entities.Order {
	order := entities.Order{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		ShippingFee:     o.ShippingFee,
		Tax:             o.Tax,
		Total:           o.Total,
		CouponCode:      nullStringToString(o.CouponCode),
		ShippingAddress: AddressToEntity(o.ShippingAddress),
		Notes:           nullStringToString(o.Notes),
		Status:          entities.OrderStatus(o.Status),
		PaymentStatus:   entities.PaymentStatus(o.PaymentStatus),
		PaymentIntentID: nullStringToString(o.PaymentIntentID),
		TrackingNumber:  nullStringToString(o.TrackingNumber),
		Carrier:         nullStringToString(o.Carrier),
		ShippedAt:       nullTimeToPtr(o.ShippedAt),
		DeliveredAt:     nullTimeToPtr(o.DeliveredAt),
		CancelledAt:     nullTimeToPtr(o.CancelledAt),
		Version:         o.Version,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}

	if len(items) > 0 {
		order.Items = make([]entities.OrderItem, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, ItemToEntity(it))
		}
	}

	return order
}

func CartToEntity(c Cart, items []CartItem) entities.Cart {
	cart := entities.Cart{
		ID:         c.ID,
		UserID:     c.UserID,
		Subtotal:   c.Subtotal,
		Discount:   c.Discount,
		CouponCode: nullStringToString(c.CouponCode),
	}
	for _, it := range items {
		cart.Items = append(cart.Items, entities.CartItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			VariantID:   nullStringToString(it.VariantID),
			VariantName: nullStringToString(it.VariantName),
			VariantSKU:  nullStringToString(it.VariantSKU),
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return cart
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
