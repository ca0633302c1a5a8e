package handler

import (
	"strings"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

// ShippingAddress is accepted either with fullName or with firstName and lastName.
type ShippingAddress struct {
	FullName     string `json:"fullName,omitempty" validate:"required_without_all=FirstName LastName,max=200"`
	FirstName    string `json:"firstName,omitempty" validate:"required_without=FullName,max=100"`
	LastName     string `json:"lastName,omitempty" validate:"required_without=FullName,max=100"`
	Phone        string `json:"phone" validate:"required,min=5,max=32"`
	AddressLine1 string `json:"addressLine1" validate:"required,max=255"`
	AddressLine2 string `json:"addressLine2,omitempty" validate:"max=255"`
	City         string `json:"city" validate:"required,max=100"`
	State        string `json:"state" validate:"required,max=100"`
	PostalCode   string `json:"postalCode" validate:"required,max=20"`
	Country      string `json:"country" validate:"required,max=100"`
}

// CreateOrderRequest is the checkout form.
type CreateOrderRequest struct {
	ShippingAddress   *ShippingAddress `json:"shippingAddress,omitempty" validate:"omitempty"`
	ShippingAddressID string           `json:"shippingAddressId,omitempty" validate:"omitempty,uuid"`
	PaymentMethod     string           `json:"paymentMethod,omitempty" validate:"omitempty,oneof=card"`
	CouponCode        string           `json:"couponCode,omitempty" validate:"omitempty,max=50"`
	Notes             string           `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required,max=255"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED CANCELLED"`
	Notes  string `json:"notes,omitempty" validate:"omitempty,min=5,max=500"`
}

type UpdateTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required,min=5,max=64"`
	Carrier        string `json:"carrier" validate:"required,min=2,max=64"`
}

type OrderItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	VariantID   string `json:"variantId,omitempty"`
	ProductName string `json:"productName"`
	VariantName string `json:"variantName,omitempty"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price" example:"19.99"`
	Subtotal    string `json:"subtotal" example:"39.98"`
}

type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber" example:"ORD-1718000000000-042"`
	UserID      string `json:"userId"`

	Subtotal    string `json:"subtotal" example:"40.00"`
	Discount    string `json:"discount" example:"5.00"`
	ShippingFee string `json:"shippingFee" example:"9.99"`
	Tax         string `json:"tax" example:"2.80"`
	Total       string `json:"total" example:"47.79"`
	CouponCode  string `json:"couponCode,omitempty"`

	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Notes           string          `json:"notes,omitempty"`

	Status          string `json:"status" example:"PENDING"`
	PaymentStatus   string `json:"paymentStatus" example:"PENDING"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`

	TrackingNumber string     `json:"trackingNumber,omitempty"`
	Carrier        string     `json:"carrier,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Items []OrderItem `json:"items"`
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type OrderList struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

func AddressJSONToEntity(a ShippingAddress) entities.ShippingAddress {
	fullName := strings.TrimSpace(a.FullName)
	if fullName == "" {
		fullName = strings.TrimSpace(a.FirstName + " " + a.LastName)
	}
	return entities.ShippingAddress{
		FullName:     fullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

func AddressEntityToJSON(a entities.ShippingAddress) ShippingAddress {
	return ShippingAddress{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

func CheckoutJSONToEntity(req CreateOrderRequest) entities.CheckoutInput {
	in := entities.CheckoutInput{
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethod:     req.PaymentMethod,
		CouponCode:        strings.TrimSpace(req.CouponCode),
		Notes:             req.Notes,
	}
	if req.ShippingAddress != nil {
		addr := AddressJSONToEntity(*req.ShippingAddress)
		in.ShippingAddress = &addr
	}
	return in
}

func ItemEntityToJSON(i entities.OrderItem) OrderItem {
	return OrderItem{
		ID:          i.ID,
		ProductID:   i.ProductID,
		VariantID:   i.VariantID,
		ProductName: i.ProductName,
		VariantName: i.VariantName,
		SKU:         i.SKU,
		Quantity:    i.Quantity,
		Price:       i.Price.StringFixed(2),
		Subtotal:    i.Subtotal.StringFixed(2),
	}
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, i := range o.Items {
		items = append(items, ItemEntityToJSON(i))
	}

	return Order{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Subtotal:        o.Subtotal.StringFixed(2),
		Discount:        o.Discount.StringFixed(2),
		ShippingFee:     o.ShippingFee.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		CouponCode:      o.CouponCode,
		ShippingAddress: AddressEntityToJSON(o.ShippingAddress),
		Notes:           o.Notes,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentIntentID: o.PaymentIntentID,
		TrackingNumber:  o.TrackingNumber,
		Carrier:         o.Carrier,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           items,
	}
}

func OrderPageToJSON(p entities.OrderPage) OrderList {
	orders := make([]Order, 0, len(p.Orders))
	for _, o := range p.Orders {
		orders = append(orders, OrderEntityToJSON(o))
	}
	return OrderList{
		Orders: orders,
		Pagination: Pagination{
			Page:       p.Meta.Page,
			Limit:      p.Meta.Limit,
			Total:      p.Meta.Total,
			TotalPages: p.Meta.TotalPages,
			HasNext:    p.Meta.HasNext,
			HasPrev:    p.Meta.HasPrev,
		},
	}
}
