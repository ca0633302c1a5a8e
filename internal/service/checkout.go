package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/postgres"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
	"github.com/shopspring/decimal"
)

// CreateOrder turns the user's cart into a PENDING order. The order header and
// its items are written in one transaction. The cart is left untouched until
// the payment succeeds.
func (s *orderService) CreateOrder(ctx context.Context, userID string, in entities.CheckoutInput) (entities.Order, error) {
	address, err := resolveAddress(in)
	if err != nil {
		return entities.Order{}, err
	}

	var (
		order entities.Order
		jobs  []entities.Notification
	)
	fn := func() error {
		jobs = nil
		return s.txManager.Do(ctx, func(ctx context.Context) error {
			cart, err := s.carts.GetCart(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to get cart: %w", err)
			}
			if in.CouponCode != "" && !strings.EqualFold(in.CouponCode, cart.CouponCode) {
				return entities.ErrCouponNotApplied
			}

			now := s.clock()
			o, err := s.newOrder(userID, cart, address, in.Notes, now)
			if err != nil {
				return err
			}

			if err := s.orders.CreateOrder(ctx, o); err != nil {
				return fmt.Errorf("failed to save order: %w", err)
			}
			if err := s.orders.CreateOrderItems(ctx, o.Items); err != nil {
				return fmt.Errorf("failed to save order items: %w", err)
			}

			order = o
			jobs = entities.CreatedNotifications(o, now)
			return nil
		})
	}

	// A colliding order number is drawn again on the next attempt.
	cfg := s.writeRetry
	cfg.Retryable = func(err error) bool {
		return postgres.IsRetryable(err) || postgres.IsUniqueViolation(err)
	}
	if err := utils.RetryContext(ctx, cfg, fn); err != nil {
		return entities.Order{}, err
	}

	ordersCreated.Inc()
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("total", order.Total.StringFixed(2)),
	)
	s.dispatch(ctx, jobs)
	return order, nil
}

func (s *orderService) newOrder(userID string, cart entities.Cart, address entities.ShippingAddress, notes string, now time.Time) (entities.Order, error) {
	orderID := s.newID()
	items, linesTotal, err := BuildSnapshot(cart, orderID, now, s.newID)
	if err != nil {
		return entities.Order{}, err
	}
	// The cart's subtotal is authoritative and must agree with its lines.
	if !cart.Subtotal.Equal(linesTotal) {
		return entities.Order{}, fmt.Errorf("%w: cart subtotal %s, lines add up to %s",
			entities.ErrInvalidOrder, cart.Subtotal.StringFixed(2), linesTotal.StringFixed(2))
	}

	totals, err := s.pricing.Compute(cart.Subtotal, cart.Discount)
	if err != nil {
		return entities.Order{}, err
	}

	return entities.Order{
		ID:              orderID,
		OrderNumber:     newOrderNumber(now),
		UserID:          userID,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		ShippingFee:     totals.ShippingFee,
		Tax:             totals.Tax,
		Total:           totals.Total,
		CouponCode:      cart.CouponCode,
		ShippingAddress: address,
		Notes:           notes,
		Status:          entities.OrderStatusPending,
		PaymentStatus:   entities.PaymentStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
	}, nil
}

// BuildSnapshot freezes the cart lines into order items and returns their
// subtotal. Names, SKUs and prices are copied so later catalog edits do not
// change the order.
func BuildSnapshot(cart entities.Cart, orderID string, at time.Time, newID func() string) ([]entities.OrderItem, decimal.Decimal, error) {
	if cart.Empty() {
		return nil, decimal.Zero, entities.ErrEmptyCart
	}

	items := make([]entities.OrderItem, 0, len(cart.Items))
	subtotal := decimal.Zero
	for _, line := range cart.Items {
		if line.Quantity <= 0 || line.Price.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: cart line %s", entities.ErrInvalidOrder, line.ProductID)
		}

		lineTotal := line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)

		items = append(items, entities.OrderItem{
			ID:          newID(),
			OrderID:     orderID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			VariantName: line.VariantName,
			SKU:         line.SKU(),
			Quantity:    line.Quantity,
			Price:       line.Price,
			Subtotal:    lineTotal,
			CreatedAt:   at,
		})
	}
	return items, subtotal, nil
}

func resolveAddress(in entities.CheckoutInput) (entities.ShippingAddress, error) {
	if in.ShippingAddress != nil {
		return *in.ShippingAddress, nil
	}
	if in.ShippingAddressID != "" {
		return entities.ShippingAddress{}, entities.ErrSavedAddressUnsupported
	}
	return entities.ShippingAddress{}, entities.ErrShippingAddressRequired
}

// newOrderNumber is the creation time in milliseconds plus a random suffix.
func newOrderNumber(at time.Time) string {
	return fmt.Sprintf("ORD-%d-%03d", at.UnixMilli(), rand.IntN(1000))
}
