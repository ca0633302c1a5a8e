package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/pricing"
	mocks "github.com/SergeyBogomolovv/checkout-service/internal/service/mocks"
	txMocks "github.com/SergeyBogomolovv/checkout-service/pkg/trm/mocks"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMutate_RetriedCommitCountsTransitionOnce(t *testing.T) {
	repo := mocks.NewMockOrderRepo(t)
	dispatcher := mocks.NewMockDispatcher(t)
	orderCache := mocks.NewMockCache(t)
	tx := txMocks.NewMockManager(t)

	// The first commit fails after the callback has applied the transition.
	tx.EXPECT().
		Do(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, cb func(ctx context.Context) error) error {
			if err := cb(ctx); err != nil {
				return err
			}
			return &pq.Error{Code: "40001"}
		}).Once()
	tx.EXPECT().
		Do(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, cb func(ctx context.Context) error) error {
			return cb(ctx)
		}).Once()

	pending := entities.Order{
		ID:            "order-1",
		UserID:        "user-1",
		Status:        entities.OrderStatusPending,
		PaymentStatus: entities.PaymentStatusPending,
		Version:       1,
	}
	cancelled := pending
	cancelled.Status = entities.OrderStatusCancelled
	cancelled.Version = 2

	repo.EXPECT().LockOrder(mock.Anything, "order-1").Return(pending, nil).Twice()
	repo.EXPECT().UpdateOrder(mock.Anything, mock.Anything).Return(nil).Twice()
	repo.EXPECT().GetOrderByID(mock.Anything, "order-1").Return(cancelled, nil).Twice()
	orderCache.EXPECT().Delete(mock.Anything, "order-1").Return().Once()
	dispatcher.EXPECT().
		Enqueue(mock.Anything, mock.MatchedBy(func(n entities.Notification) bool {
			return n.Topic == entities.TopicOrderCancelled
		})).
		Return(nil).Once()

	svc := NewOrderService(slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		TxManager:  tx,
		Orders:     repo,
		Carts:      mocks.NewMockCartStore(t),
		Payments:   mocks.NewMockPaymentGateway(t),
		Dispatcher: dispatcher,
		Cache:      orderCache,
		Pricing:    pricing.Default(),
		Now:        func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})

	counter := transitionsTotal.WithLabelValues(string(entities.OrderStatusCancelled))
	before := testutil.ToFloat64(counter)

	order, err := svc.CancelOrder(context.Background(), "order-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusCancelled, order.Status)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMutate_UnchangedStatusIsNotCounted(t *testing.T) {
	repo := mocks.NewMockOrderRepo(t)
	tx := txMocks.NewMockManager(t)
	orderCache := mocks.NewMockCache(t)

	tx.EXPECT().
		Do(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, cb func(ctx context.Context) error) error {
			return cb(ctx)
		}).Once()

	o := entities.Order{ID: "order-2", Status: entities.OrderStatusShipped, Version: 1}
	repo.EXPECT().LockOrder(mock.Anything, "order-2").Return(o, nil).Once()
	repo.EXPECT().UpdateOrder(mock.Anything, mock.Anything).Return(nil).Once()
	repo.EXPECT().GetOrderByID(mock.Anything, "order-2").Return(o, nil).Once()
	orderCache.EXPECT().Delete(mock.Anything, "order-2").Return().Once()

	svc := NewOrderService(slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		TxManager: tx,
		Orders:    repo,
		Cache:     orderCache,
	})

	counter := transitionsTotal.WithLabelValues(string(entities.OrderStatusShipped))
	before := testutil.ToFloat64(counter)

	_, err := svc.mutate(context.Background(), "order-2", func(context.Context, *entities.Order) ([]entities.Notification, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, before, testutil.ToFloat64(counter))
}
