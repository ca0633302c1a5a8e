package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

// CreatePaymentIntent opens a gateway intent for the order total and attaches
// it to the order. An intent attached earlier is voided.
func (s *orderService) CreatePaymentIntent(ctx context.Context, orderID, userID string) (entities.PaymentIntent, error) {
	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return entities.PaymentIntent{}, err
	}
	if err := checkPayable(order); err != nil {
		return entities.PaymentIntent{}, err
	}

	intent, err := s.payments.CreateIntent(ctx, entities.PaymentIntentRequest{
		Amount:   order.Total,
		Currency: s.currency,
		Metadata: map[string]string{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"userId":      order.UserID,
		},
		IdempotencyKey: fmt.Sprintf("order-%s-v%d", order.ID, order.Version),
	})
	if err != nil {
		return entities.PaymentIntent{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	previous := order.PaymentIntentID
	_, err = s.mutate(ctx, orderID, func(_ context.Context, o *entities.Order) ([]entities.Notification, error) {
		if !o.OwnedBy(userID) {
			return nil, entities.ErrOrderNotFound
		}
		if err := checkPayable(*o); err != nil {
			return nil, err
		}
		previous = o.PaymentIntentID
		o.PaymentIntentID = intent.ID
		o.UpdatedAt = s.clock()
		return nil, nil
	})
	if err != nil {
		if previous != intent.ID {
			s.cancelIntent(ctx, intent.ID)
		}
		return entities.PaymentIntent{}, err
	}

	if previous != intent.ID {
		s.cancelIntent(ctx, previous)
	}
	s.logger.InfoContext(ctx, "payment intent attached",
		slog.String("order_id", orderID),
		slog.String("payment_intent_id", intent.ID),
	)
	return intent, nil
}

// ConfirmPayment asks the gateway whether the attached intent succeeded. On
// success the payment is COMPLETED, the order goes to PROCESSING and the cart
// is cleared, all in one transaction. On failure the payment is FAILED and
// entities.ErrPaymentFailed is returned. A payment that lands on an order
// cancelled in the meantime is recorded as COMPLETED on the cancelled order and
// reported with entities.ErrOrderNotPayable.
func (s *orderService) ConfirmPayment(ctx context.Context, orderID, userID, intentID string) (entities.Order, error) {
	order, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return entities.Order{}, err
	}
	if err := checkConfirmable(order, intentID); err != nil {
		return entities.Order{}, err
	}

	paid, err := s.payments.Confirm(ctx, intentID)
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to confirm payment: %w", err)
	}

	result := entities.PaymentStatusFailed
	if paid {
		result = entities.PaymentStatusCompleted
	}

	var capturedAfterCancel bool
	updated, err := s.mutate(ctx, orderID, func(ctx context.Context, o *entities.Order) ([]entities.Notification, error) {
		capturedAfterCancel = false
		if !o.OwnedBy(userID) {
			return nil, entities.ErrOrderNotFound
		}
		// The order was cancelled after the gateway took the money. The capture
		// is recorded so it can be refunded, the order stays cancelled.
		if paid && o.Status == entities.OrderStatusCancelled &&
			o.PaymentStatus == entities.PaymentStatusPending && o.PaymentIntentID == intentID {
			if err := o.SettlePayment(entities.PaymentStatusCompleted); err != nil {
				return nil, err
			}
			o.UpdatedAt = s.clock()
			capturedAfterCancel = true
			return nil, nil
		}
		if err := checkConfirmable(*o, intentID); err != nil {
			return nil, err
		}
		if err := o.SettlePayment(result); err != nil {
			return nil, err
		}
		o.UpdatedAt = s.clock()
		if !paid {
			return nil, nil
		}

		// An order shipped ahead of payment keeps its status.
		if o.Status == entities.OrderStatusPending {
			if _, err := s.transition(o, entities.EventPaymentConfirmed); err != nil {
				return nil, err
			}
		}
		if err := s.carts.ClearCart(ctx, o.UserID); err != nil {
			return nil, fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return entities.Order{}, err
	}

	paymentsSettled.WithLabelValues(string(result)).Inc()
	if capturedAfterCancel {
		s.logger.ErrorContext(ctx, "payment captured for cancelled order, refund required",
			slog.String("order_id", orderID),
			slog.String("payment_intent_id", intentID),
			slog.String("amount", updated.Total.StringFixed(2)),
		)
		return entities.Order{}, fmt.Errorf("%w: payment %s captured after cancellation", entities.ErrOrderNotPayable, intentID)
	}
	s.logger.InfoContext(ctx, "payment settled",
		slog.String("order_id", orderID),
		slog.String("payment_intent_id", intentID),
		slog.String("payment_status", string(result)),
	)

	if !paid {
		return entities.Order{}, fmt.Errorf("%w: intent %s", entities.ErrPaymentFailed, intentID)
	}
	return updated, nil
}

func checkPayable(o entities.Order) error {
	if o.PaymentStatus != entities.PaymentStatusPending {
		return entities.ErrPaymentAlreadyProcessed
	}
	if o.Status == entities.OrderStatusCancelled {
		return entities.ErrOrderNotPayable
	}
	return nil
}

func checkConfirmable(o entities.Order, intentID string) error {
	if err := checkPayable(o); err != nil {
		return err
	}
	if o.PaymentIntentID == "" {
		return entities.ErrPaymentIntentMissing
	}
	if o.PaymentIntentID != intentID {
		return entities.ErrPaymentIntentMismatch
	}
	return nil
}
