package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

// mutation changes a locked order in place and returns the jobs to send once
// the change is committed.
type mutation func(ctx context.Context, o *entities.Order) ([]entities.Notification, error)

// mutate runs fn against the locked order row and writes the result back with
// a version check. The cached copy is dropped, the status change is recorded
// and jobs are dispatched only after commit.
func (s *orderService) mutate(ctx context.Context, orderID string, fn mutation) (entities.Order, error) {
	var (
		updated entities.Order
		from    entities.OrderStatus
		jobs    []entities.Notification
	)
	attempt := func() error {
		jobs = nil
		return s.txManager.Do(ctx, func(ctx context.Context) error {
			o, err := s.orders.LockOrder(ctx, orderID)
			if err != nil {
				return err
			}
			from = o.Status

			jobs, err = fn(ctx, &o)
			if err != nil {
				return err
			}

			if err := s.orders.UpdateOrder(ctx, o); err != nil {
				return err
			}

			updated, err = s.orders.GetOrderByID(ctx, orderID)
			if err != nil {
				return fmt.Errorf("failed to reload order: %w", err)
			}
			return nil
		})
	}
	if err := utils.RetryContext(ctx, s.writeRetry, attempt); err != nil {
		return entities.Order{}, err
	}

	s.invalidateCache(ctx, orderID)

	if updated.Status != from {
		transitionsTotal.WithLabelValues(string(updated.Status)).Inc()
		s.logger.InfoContext(ctx, "order status changed",
			slog.String("order_id", orderID),
			slog.String("from", string(from)),
			slog.String("to", string(updated.Status)),
		)
	}
	s.dispatch(ctx, jobs)
	return updated, nil
}

// transition applies ev to o and returns the job the event emits, if any.
func (s *orderService) transition(o *entities.Order, ev entities.OrderEvent) ([]entities.Notification, error) {
	now := s.clock()
	if err := o.Apply(ev, now); err != nil {
		return nil, err
	}

	if n, ok := entities.TransitionNotification(*o, ev, now); ok {
		return []entities.Notification{n}, nil
	}
	return nil, nil
}

// cancelIntent voids an intent that no order refers to anymore. The gateway
// expires abandoned intents by itself, so failures are only logged.
func (s *orderService) cancelIntent(ctx context.Context, intentID string) {
	if intentID == "" {
		return
	}
	if err := s.payments.Cancel(ctx, intentID); err != nil {
		s.logger.WarnContext(ctx, "failed to cancel payment intent",
			slog.String("payment_intent_id", intentID),
			slog.Any("error", err),
		)
	}
}
