package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

// GetOrder returns the order if it belongs to userID. Orders of other users
// are reported as not found.
func (s *orderService) GetOrder(ctx context.Context, orderID, userID string) (entities.Order, error) {
	if data, ok := s.cache.Get(ctx, orderID); ok {
		var order entities.Order
		err := order.Unmarshal(data)
		if err == nil {
			if !order.OwnedBy(userID) {
				return entities.Order{}, entities.ErrOrderNotFound
			}
			return order, nil
		}
		s.logger.WarnContext(ctx, "dropping broken cache entry", slog.String("order_id", orderID), slog.Any("error", err))
		s.cache.Delete(ctx, orderID)
	}

	gen := s.cacheGeneration()
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	s.fillCache(ctx, order, gen)

	if !order.OwnedBy(userID) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return order, nil
}

// loadOrder reads the order from the database, retrying transient failures.
func (s *orderService) loadOrder(ctx context.Context, orderID string) (entities.Order, error) {
	var order entities.Order
	fn := func() error {
		var err error
		order, err = s.orders.GetOrderByID(ctx, orderID)
		return err
	}
	if err := utils.RetryContext(ctx, s.readRetry, fn, entities.ErrOrderNotFound); err != nil {
		return entities.Order{}, err
	}
	return order, nil
}

func (s *orderService) ownedOrder(ctx context.Context, orderID, userID string) (entities.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	if !order.OwnedBy(userID) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID string, page entities.Page) (entities.OrderPage, error) {
	return s.listOrders(ctx, entities.OrderFilter{UserID: userID}, page)
}

// ListAllOrders returns orders of every user matching filter, newest first.
func (s *orderService) ListAllOrders(ctx context.Context, filter entities.OrderFilter, page entities.Page) (entities.OrderPage, error) {
	return s.listOrders(ctx, filter, page)
}

func (s *orderService) listOrders(ctx context.Context, filter entities.OrderFilter, page entities.Page) (entities.OrderPage, error) {
	page = page.Normalize()

	var (
		orders []entities.Order
		total  int
	)
	fn := func() error {
		var err error
		orders, total, err = s.orders.ListOrders(ctx, filter, page)
		return err
	}
	if err := utils.RetryContext(ctx, s.readRetry, fn); err != nil {
		return entities.OrderPage{}, fmt.Errorf("failed to list orders: %w", err)
	}

	return entities.OrderPage{
		Orders: orders,
		Meta:   entities.NewPageMeta(page, total),
	}, nil
}

// CancelOrder cancels the user's order while it is still PENDING or PROCESSING.
func (s *orderService) CancelOrder(ctx context.Context, orderID, userID string) (entities.Order, error) {
	var staleIntent string
	order, err := s.mutate(ctx, orderID, func(_ context.Context, o *entities.Order) ([]entities.Notification, error) {
		staleIntent = ""
		if !o.OwnedBy(userID) {
			return nil, entities.ErrOrderNotFound
		}
		if !o.CanCancel() {
			return nil, fmt.Errorf("%w: %s", entities.ErrCannotCancel, o.Status)
		}
		if o.PaymentStatus == entities.PaymentStatusPending {
			staleIntent = o.PaymentIntentID
		}
		return s.transition(o, entities.EventCancel)
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.cancelIntent(ctx, staleIntent)
	return order, nil
}

// UpdateStatus moves an order to status on behalf of an admin. PROCESSING is
// reached through payment confirmation only.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status entities.OrderStatus, notes string) (entities.Order, error) {
	ev, ok := entities.EventForStatus(status)
	if !ok {
		return entities.Order{}, fmt.Errorf("%w: cannot set %s", entities.ErrInvalidTransition, status)
	}

	var staleIntent string
	order, err := s.mutate(ctx, orderID, func(_ context.Context, o *entities.Order) ([]entities.Notification, error) {
		staleIntent = ""
		jobs, err := s.transition(o, ev)
		if err != nil {
			return nil, err
		}
		if notes != "" {
			o.Notes = notes
		}
		if ev == entities.EventCancel && o.PaymentStatus == entities.PaymentStatusPending {
			staleIntent = o.PaymentIntentID
		}
		return jobs, nil
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.cancelIntent(ctx, staleIntent)
	return order, nil
}

// UpdateTracking records the shipment. Unshipped orders are shipped by it,
// shipped orders get their tracking corrected.
func (s *orderService) UpdateTracking(ctx context.Context, orderID string, tracking entities.Tracking) (entities.Order, error) {
	return s.mutate(ctx, orderID, func(_ context.Context, o *entities.Order) ([]entities.Notification, error) {
		o.TrackingNumber = tracking.Number
		o.Carrier = tracking.Carrier

		switch o.Status {
		case entities.OrderStatusPending, entities.OrderStatusProcessing:
			return s.transition(o, entities.EventShip)
		case entities.OrderStatusShipped:
			now := s.clock()
			o.ShippedAt = &now
			o.UpdatedAt = now
			n, _ := entities.TransitionNotification(*o, entities.EventShip, now)
			return []entities.Notification{n}, nil
		default:
			return nil, fmt.Errorf("%w: tracking on %s order", entities.ErrInvalidTransition, o.Status)
		}
	})
}

// WarmUpCache loads the latest orders into the cache.
func (s *orderService) WarmUpCache(ctx context.Context, count int) error {
	gen := s.cacheGeneration()
	orders, err := s.orders.LatestOrders(ctx, count)
	if err != nil {
		return fmt.Errorf("failed to load latest orders: %w", err)
	}
	for _, order := range orders {
		s.fillCache(ctx, order, gen)
	}
	s.logger.InfoContext(ctx, "cache warmed up", slog.Int("orders", len(orders)))
	return nil
}
