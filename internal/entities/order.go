package entities

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type ShippingAddress struct {
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
}

// OrderItem is a cart line frozen at checkout time. It is never updated after
// the order is created.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	VariantID   string
	ProductName string
	VariantName string
	SKU         string
	Quantity    int
	Price       decimal.Decimal
	Subtotal    decimal.Decimal
	CreatedAt   time.Time
}

type Order struct {
	ID          string
	OrderNumber string
	UserID      string

	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	CouponCode  string

	ShippingAddress ShippingAddress
	Notes           string

	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentIntentID string

	TrackingNumber string
	Carrier        string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time

	// Version is bumped on every update and compared on write.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []OrderItem
}

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidOrder            = errors.New("invalid order data")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrShippingAddressRequired = errors.New("shipping address is required")
	ErrSavedAddressUnsupported = errors.New("saved shipping addresses are not supported")
	ErrCouponNotApplied        = errors.New("coupon code is not applied to the cart")
	ErrInvalidTotals           = errors.New("invalid order totals")
	ErrCannotCancel            = errors.New("order cannot be cancelled in its current status")
	ErrInvalidTransition       = errors.New("invalid order status transition")
	ErrVersionConflict         = errors.New("order was modified concurrently")
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrPaymentIntentMismatch   = errors.New("payment intent does not belong to the order")
	ErrPaymentIntentMissing    = errors.New("order has no payment intent")
	ErrOrderNotPayable         = errors.New("order cannot be paid in its current status")
)

// OwnedBy reports whether the order belongs to the given user.
func (o Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}

func (o *Order) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Order) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	return nil
}

func init() {
	gob.Register(Order{})
	gob.Register(OrderItem{})
	gob.Register(ShippingAddress{})
}
