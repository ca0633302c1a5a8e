package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/pricing"
	"github.com/SergeyBogomolovv/checkout-service/internal/service"
	mocks "github.com/SergeyBogomolovv/checkout-service/internal/service/mocks"
	"github.com/SergeyBogomolovv/checkout-service/pkg/cache"
	txMocks "github.com/SergeyBogomolovv/checkout-service/pkg/trm/mocks"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	userID    = "user-1"
	otherUser = "user-2"
	orderID   = "9b2f6c1e-8a4d-4f0e-9d55-1c2b3a4d5e6f"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type checkoutService interface {
	CreateOrder(ctx context.Context, userID string, in entities.CheckoutInput) (entities.Order, error)
	GetOrder(ctx context.Context, orderID, userID string) (entities.Order, error)
	ListOrders(ctx context.Context, userID string, page entities.Page) (entities.OrderPage, error)
	ListAllOrders(ctx context.Context, filter entities.OrderFilter, page entities.Page) (entities.OrderPage, error)
	CancelOrder(ctx context.Context, orderID, userID string) (entities.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status entities.OrderStatus, notes string) (entities.Order, error)
	UpdateTracking(ctx context.Context, orderID string, tracking entities.Tracking) (entities.Order, error)
	CreatePaymentIntent(ctx context.Context, orderID, userID string) (entities.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, orderID, userID, intentID string) (entities.Order, error)
	WarmUpCache(ctx context.Context, count int) error
}

type testDeps struct {
	repo       *mocks.MockOrderRepo
	carts      *mocks.MockCartStore
	gateway    *mocks.MockPaymentGateway
	dispatcher *mocks.MockDispatcher
	cache      *mocks.MockCache
	tx         *txMocks.MockManager
}

func newTestService(t *testing.T) (checkoutService, testDeps) {
	d := testDeps{
		repo:       mocks.NewMockOrderRepo(t),
		carts:      mocks.NewMockCartStore(t),
		gateway:    mocks.NewMockPaymentGateway(t),
		dispatcher: mocks.NewMockDispatcher(t),
		cache:      mocks.NewMockCache(t),
		tx:         txMocks.NewMockManager(t),
	}

	d.tx.EXPECT().
		Do(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, cb func(ctx context.Context) error) error {
			return cb(ctx)
		}).Maybe()

	seq := 0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewOrderService(logger, service.Deps{
		TxManager:  d.tx,
		Orders:     d.repo,
		Carts:      d.carts,
		Payments:   d.gateway,
		Dispatcher: d.dispatcher,
		Cache:      d.cache,
		Pricing:    pricing.Default(),
		Currency:   "usd",
		Now:        func() time.Time { return now },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	return svc, d
}

// orderStore backs the repo mock with a single stored order, so that lock,
// update and reload behave like the real repository.
type orderStore struct {
	order entities.Order
}

func (s *orderStore) expect(repo *mocks.MockOrderRepo) {
	repo.EXPECT().
		GetOrderByID(mock.Anything, s.order.ID).
		RunAndReturn(func(context.Context, string) (entities.Order, error) {
			return s.order, nil
		}).Maybe()
	repo.EXPECT().
		LockOrder(mock.Anything, s.order.ID).
		RunAndReturn(func(context.Context, string) (entities.Order, error) {
			o := s.order
			o.Items = nil
			return o, nil
		}).Maybe()
	repo.EXPECT().
		UpdateOrder(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, o entities.Order) error {
			if o.Version != s.order.Version {
				return entities.ErrVersionConflict
			}
			o.Version++
			o.Items = s.order.Items
			s.order = o
			return nil
		}).Maybe()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAddress() *entities.ShippingAddress {
	return &entities.ShippingAddress{
		FullName:     "Jane Doe",
		Phone:        "+15550100",
		AddressLine1: "1 Main St",
		City:         "Springfield",
		State:        "IL",
		PostalCode:   "62701",
		Country:      "US",
	}
}

func testCart() entities.Cart {
	return entities.Cart{
		ID:     "cart-1",
		UserID: userID,
		Items: []entities.CartItem{
			{ProductID: "p-1", ProductName: "Mug", ProductSKU: "MUG", Quantity: 2, Price: dec("15.00")},
			{ProductID: "p-2", ProductName: "Shirt", ProductSKU: "SHIRT", VariantID: "v-1", VariantName: "L", VariantSKU: "SHIRT-L", Quantity: 1, Price: dec("10.00")},
		},
		Subtotal:   dec("40.00"),
		Discount:   dec("5.00"),
		CouponCode: "SAVE5",
	}
}

func testOrder(status entities.OrderStatus, payment entities.PaymentStatus) entities.Order {
	return entities.Order{
		ID:              orderID,
		OrderNumber:     "ORD-1714564800000-042",
		UserID:          userID,
		Subtotal:        dec("40.00"),
		Discount:        dec("5.00"),
		ShippingFee:     dec("9.99"),
		Tax:             dec("2.80"),
		Total:           dec("47.79"),
		ShippingAddress: *testAddress(),
		Status:          status,
		PaymentStatus:   payment,
		Version:         3,
		CreatedAt:       now.Add(-time.Hour),
		UpdatedAt:       now.Add(-time.Hour),
		Items: []entities.OrderItem{
			{ID: "item-1", OrderID: orderID, ProductID: "p-1", ProductName: "Mug", SKU: "MUG", Quantity: 2, Price: dec("15.00"), Subtotal: dec("30.00")},
		},
	}
}

func jobTopic(topic entities.Topic) any {
	return mock.MatchedBy(func(n entities.Notification) bool { return n.Topic == topic })
}

func TestOrderService_CreateOrder(t *testing.T) {
	type MockBehavior func(d testDeps)

	dbError := errors.New("db error")

	testCases := []struct {
		name         string
		input        entities.CheckoutInput
		mockBehavior MockBehavior
		wantErr      error
	}{
		{
			name:  "OK",
			input: entities.CheckoutInput{ShippingAddress: testAddress(), CouponCode: "save5", Notes: "leave at the door"},
			mockBehavior: func(d testDeps) {
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(testCart(), nil).Once()
				d.repo.EXPECT().CreateOrder(mock.Anything, mock.Anything).Return(nil).Once()
				d.repo.EXPECT().CreateOrderItems(mock.Anything, mock.Anything).Return(nil).Once()
				d.dispatcher.EXPECT().Enqueue(mock.Anything, jobTopic(entities.TopicOrderConfirmation)).Return(nil).Once()
				d.dispatcher.EXPECT().Enqueue(mock.Anything, jobTopic(entities.TopicProcessOrder)).Return(nil).Once()
			},
		},
		{
			name:         "missing address",
			input:        entities.CheckoutInput{},
			mockBehavior: func(testDeps) {},
			wantErr:      entities.ErrShippingAddressRequired,
		},
		{
			name:         "saved address",
			input:        entities.CheckoutInput{ShippingAddressID: "addr-1"},
			mockBehavior: func(testDeps) {},
			wantErr:      entities.ErrSavedAddressUnsupported,
		},
		{
			name:  "empty cart",
			input: entities.CheckoutInput{ShippingAddress: testAddress()},
			mockBehavior: func(d testDeps) {
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(entities.Cart{UserID: userID}, nil).Once()
			},
			wantErr: entities.ErrEmptyCart,
		},
		{
			name:  "coupon not applied to cart",
			input: entities.CheckoutInput{ShippingAddress: testAddress(), CouponCode: "OTHER"},
			mockBehavior: func(d testDeps) {
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(testCart(), nil).Once()
			},
			wantErr: entities.ErrCouponNotApplied,
		},
		{
			name:  "cart subtotal does not match its lines",
			input: entities.CheckoutInput{ShippingAddress: testAddress()},
			mockBehavior: func(d testDeps) {
				cart := testCart()
				cart.Subtotal = dec("35.00")
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(cart, nil).Once()
			},
			wantErr: entities.ErrInvalidOrder,
		},
		{
			name:  "items insert fails",
			input: entities.CheckoutInput{ShippingAddress: testAddress()},
			mockBehavior: func(d testDeps) {
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(testCart(), nil).Once()
				d.repo.EXPECT().CreateOrder(mock.Anything, mock.Anything).Return(nil).Once()
				d.repo.EXPECT().CreateOrderItems(mock.Anything, mock.Anything).Return(dbError).Once()
			},
			wantErr: dbError,
		},
		{
			name:  "retry on serialization failure",
			input: entities.CheckoutInput{ShippingAddress: testAddress()},
			mockBehavior: func(d testDeps) {
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(entities.Cart{}, &pq.Error{Code: "40001"}).Once()
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(testCart(), nil).Once()
				d.repo.EXPECT().CreateOrder(mock.Anything, mock.Anything).Return(nil).Once()
				d.repo.EXPECT().CreateOrderItems(mock.Anything, mock.Anything).Return(nil).Once()
				d.dispatcher.EXPECT().Enqueue(mock.Anything, mock.Anything).Return(nil).Twice()
			},
		},
		{
			name:  "dispatch failure does not fail checkout",
			input: entities.CheckoutInput{ShippingAddress: testAddress()},
			mockBehavior: func(d testDeps) {
				d.carts.EXPECT().GetCart(mock.Anything, userID).Return(testCart(), nil).Once()
				d.repo.EXPECT().CreateOrder(mock.Anything, mock.Anything).Return(nil).Once()
				d.repo.EXPECT().CreateOrderItems(mock.Anything, mock.Anything).Return(nil).Once()
				d.dispatcher.EXPECT().Enqueue(mock.Anything, mock.Anything).Return(errors.New("broker down")).Twice()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, d := newTestService(t)
			tc.mockBehavior(d)

			order, err := svc.CreateOrder(context.Background(), userID, tc.input)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, entities.OrderStatusPending, order.Status)
			assert.Equal(t, entities.PaymentStatusPending, order.PaymentStatus)
			assert.Equal(t, userID, order.UserID)
			assert.Regexp(t, regexp.MustCompile(`^ORD-1714564800000-\d{3}$`), order.OrderNumber)
			assert.Equal(t, "40.00", order.Subtotal.StringFixed(2))
			assert.Equal(t, "5.00", order.Discount.StringFixed(2))
			assert.Equal(t, "9.99", order.ShippingFee.StringFixed(2))
			assert.Equal(t, "2.80", order.Tax.StringFixed(2))
			assert.Equal(t, "47.79", order.Total.StringFixed(2))
			assert.Equal(t, "SAVE5", order.CouponCode)
			assert.Equal(t, now, order.CreatedAt)
			require.Len(t, order.Items, 2)
			assert.Equal(t, "SHIRT-L", order.Items[1].SKU)
			assert.Equal(t, order.ID, order.Items[0].OrderID)
		})
	}
}

func TestBuildSnapshot(t *testing.T) {
	ids := 0
	newID := func() string {
		ids++
		return fmt.Sprintf("item-%d", ids)
	}

	items, subtotal, err := service.BuildSnapshot(testCart(), "order-1", now, newID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", subtotal.StringFixed(2))
	require.Len(t, items, 2)

	assert.Equal(t, entities.OrderItem{
		ID:          "item-1",
		OrderID:     "order-1",
		ProductID:   "p-1",
		ProductName: "Mug",
		SKU:         "MUG",
		Quantity:    2,
		Price:       dec("15.00"),
		Subtotal:    dec("30.00"),
		CreatedAt:   now,
	}, items[0])
	assert.Equal(t, "v-1", items[1].VariantID)
	assert.Equal(t, "L", items[1].VariantName)

	_, _, err = service.BuildSnapshot(entities.Cart{}, "order-1", now, newID)
	assert.ErrorIs(t, err, entities.ErrEmptyCart)

	bad := testCart()
	bad.Items[0].Quantity = 0
	_, _, err = service.BuildSnapshot(bad, "order-1", now, newID)
	assert.ErrorIs(t, err, entities.ErrInvalidOrder)
}

func TestOrderService_GetOrder(t *testing.T) {
	type MockBehavior func(d testDeps)

	validOrder := testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)
	validData, err := validOrder.Marshal()
	require.NoError(t, err)

	testCases := []struct {
		name         string
		userID       string
		mockBehavior MockBehavior
		wantErr      error
	}{
		{
			name:   "success from cache",
			userID: userID,
			mockBehavior: func(d testDeps) {
				d.cache.EXPECT().Get(mock.Anything, orderID).Return(validData, true).Once()
			},
		},
		{
			name:   "cached order of another user",
			userID: otherUser,
			mockBehavior: func(d testDeps) {
				d.cache.EXPECT().Get(mock.Anything, orderID).Return(validData, true).Once()
			},
			wantErr: entities.ErrOrderNotFound,
		},
		{
			name:   "success from repo and set to cache",
			userID: userID,
			mockBehavior: func(d testDeps) {
				d.cache.EXPECT().Get(mock.Anything, orderID).Return(nil, false).Once()
				d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(validOrder, nil).Once()
				d.cache.EXPECT().Set(mock.Anything, orderID, validData).Return().Once()
			},
		},
		{
			name:   "broken cache entry is dropped",
			userID: userID,
			mockBehavior: func(d testDeps) {
				d.cache.EXPECT().Get(mock.Anything, orderID).Return([]byte("broken"), true).Once()
				d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()
				d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(validOrder, nil).Once()
				d.cache.EXPECT().Set(mock.Anything, orderID, validData).Return().Once()
			},
		},
		{
			name:   "not found in repo",
			userID: userID,
			mockBehavior: func(d testDeps) {
				d.cache.EXPECT().Get(mock.Anything, orderID).Return(nil, false).Once()
				d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(entities.Order{}, entities.ErrOrderNotFound).Once()
			},
			wantErr: entities.ErrOrderNotFound,
		},
		{
			name:   "second attempt from repo",
			userID: userID,
			mockBehavior: func(d testDeps) {
				d.cache.EXPECT().Get(mock.Anything, orderID).Return(nil, false).Once()
				d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(entities.Order{}, &pq.Error{Code: "57P01"}).Once()
				d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(validOrder, nil).Once()
				d.cache.EXPECT().Set(mock.Anything, orderID, validData).Return().Once()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, d := newTestService(t)
			tc.mockBehavior(d)

			order, err := svc.GetOrder(context.Background(), orderID, tc.userID)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, validOrder.ID, order.ID)
			assert.True(t, validOrder.Total.Equal(order.Total))
			assert.Len(t, order.Items, 1)
		})
	}
}

func TestOrderService_GetOrderRacingCancel(t *testing.T) {
	d := testDeps{
		repo:       mocks.NewMockOrderRepo(t),
		dispatcher: mocks.NewMockDispatcher(t),
		tx:         txMocks.NewMockManager(t),
	}
	d.tx.EXPECT().
		Do(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, cb func(ctx context.Context) error) error {
			return cb(ctx)
		}).Maybe()

	svc := service.NewOrderService(slog.New(slog.NewTextHandler(io.Discard, nil)), service.Deps{
		TxManager:  d.tx,
		Orders:     d.repo,
		Carts:      mocks.NewMockCartStore(t),
		Payments:   mocks.NewMockPaymentGateway(t),
		Dispatcher: d.dispatcher,
		Cache:      cache.NewLRUCache(10, time.Minute),
		Pricing:    pricing.Default(),
		Now:        func() time.Time { return now },
	})

	store := &orderStore{order: testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)}
	before := store.order

	// The first read returns its row only after a cancel has committed.
	d.repo.EXPECT().
		GetOrderByID(mock.Anything, orderID).
		RunAndReturn(func(ctx context.Context, _ string) (entities.Order, error) {
			_, err := svc.CancelOrder(ctx, orderID, userID)
			require.NoError(t, err)
			return before, nil
		}).Once()
	store.expect(d.repo)
	d.dispatcher.EXPECT().Enqueue(mock.Anything, jobTopic(entities.TopicOrderCancelled)).Return(nil).Once()

	first, err := svc.GetOrder(context.Background(), orderID, userID)
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusPending, first.Status)

	second, err := svc.GetOrder(context.Background(), orderID, userID)
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusCancelled, second.Status)
	assert.Equal(t, 4, second.Version)
}

func TestOrderService_ListOrders(t *testing.T) {
	svc, d := newTestService(t)

	orders := []entities.Order{testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)}
	d.repo.EXPECT().
		ListOrders(mock.Anything, entities.OrderFilter{UserID: userID}, entities.Page{Page: 2, Limit: 10}).
		Return(orders, 11, nil).Once()

	res, err := svc.ListOrders(context.Background(), userID, entities.Page{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, orders, res.Orders)
	assert.Equal(t, entities.PageMeta{Page: 2, Limit: 10, Total: 11, TotalPages: 2, HasNext: false, HasPrev: true}, res.Meta)
}

func TestOrderService_ListAllOrders(t *testing.T) {
	svc, d := newTestService(t)

	filter := entities.OrderFilter{Status: entities.OrderStatusShipped}
	d.repo.EXPECT().
		ListOrders(mock.Anything, filter, entities.Page{Page: 1, Limit: 100}).
		Return([]entities.Order{}, 0, nil).Once()

	res, err := svc.ListAllOrders(context.Background(), filter, entities.Page{Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, res.Orders)
	assert.Equal(t, 0, res.Meta.TotalPages)
}

func TestOrderService_CancelOrder(t *testing.T) {
	t.Run("pending order with intent", func(t *testing.T) {
		svc, d := newTestService(t)
		o := testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)
		o.PaymentIntentID = "pi_1"
		store := &orderStore{order: o}
		store.expect(d.repo)

		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()
		d.dispatcher.EXPECT().Enqueue(mock.Anything, jobTopic(entities.TopicOrderCancelled)).Return(nil).Once()
		d.gateway.EXPECT().Cancel(mock.Anything, "pi_1").Return(nil).Once()

		order, err := svc.CancelOrder(context.Background(), orderID, userID)
		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusCancelled, order.Status)
		require.NotNil(t, order.CancelledAt)
		assert.Equal(t, now, *order.CancelledAt)
		assert.Equal(t, 4, order.Version)
		assert.Len(t, order.Items, 1)
	})

	t.Run("shipped order", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: testOrder(entities.OrderStatusShipped, entities.PaymentStatusCompleted)}
		store.expect(d.repo)

		_, err := svc.CancelOrder(context.Background(), orderID, userID)
		assert.ErrorIs(t, err, entities.ErrCannotCancel)
		assert.Equal(t, entities.OrderStatusShipped, store.order.Status)
	})

	t.Run("order of another user", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)}
		store.expect(d.repo)

		_, err := svc.CancelOrder(context.Background(), orderID, otherUser)
		assert.ErrorIs(t, err, entities.ErrOrderNotFound)
	})

	t.Run("concurrent update", func(t *testing.T) {
		svc, d := newTestService(t)
		d.repo.EXPECT().LockOrder(mock.Anything, orderID).
			Return(testOrder(entities.OrderStatusPending, entities.PaymentStatusPending), nil).Once()
		d.repo.EXPECT().UpdateOrder(mock.Anything, mock.Anything).Return(entities.ErrVersionConflict).Once()

		_, err := svc.CancelOrder(context.Background(), orderID, userID)
		assert.ErrorIs(t, err, entities.ErrVersionConflict)
	})
}

func TestOrderService_UpdateStatus(t *testing.T) {
	testCases := []struct {
		name       string
		from       entities.OrderStatus
		to         entities.OrderStatus
		notes      string
		wantJob    entities.Topic
		wantErr    error
		skipLookup bool
	}{
		{name: "ship", from: entities.OrderStatusProcessing, to: entities.OrderStatusShipped, wantJob: entities.TopicOrderShipped},
		{name: "deliver with notes", from: entities.OrderStatusShipped, to: entities.OrderStatusDelivered, notes: "left with neighbour", wantJob: entities.TopicOrderDelivered},
		{name: "cancel", from: entities.OrderStatusPending, to: entities.OrderStatusCancelled, wantJob: entities.TopicOrderCancelled},
		{name: "deliver unshipped", from: entities.OrderStatusPending, to: entities.OrderStatusDelivered, wantErr: entities.ErrInvalidTransition},
		{name: "reopen cancelled", from: entities.OrderStatusCancelled, to: entities.OrderStatusShipped, wantErr: entities.ErrInvalidTransition},
		{name: "processing is not settable", from: entities.OrderStatusPending, to: entities.OrderStatusProcessing, wantErr: entities.ErrInvalidTransition, skipLookup: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, d := newTestService(t)
			store := &orderStore{order: testOrder(tc.from, entities.PaymentStatusCompleted)}
			if !tc.skipLookup {
				store.expect(d.repo)
			}
			if tc.wantErr == nil {
				d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()
				d.dispatcher.EXPECT().Enqueue(mock.Anything, jobTopic(tc.wantJob)).Return(nil).Once()
			}

			order, err := svc.UpdateStatus(context.Background(), orderID, tc.to, tc.notes)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.from, store.order.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, order.Status)
			assert.Equal(t, tc.notes, order.Notes)
		})
	}
}

func TestOrderService_UpdateTracking(t *testing.T) {
	tracking := entities.Tracking{Number: "1Z999AA10123456784", Carrier: "UPS"}

	t.Run("ships processing order", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: testOrder(entities.OrderStatusProcessing, entities.PaymentStatusCompleted)}
		store.expect(d.repo)

		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()
		d.dispatcher.EXPECT().
			Enqueue(mock.Anything, mock.MatchedBy(func(n entities.Notification) bool {
				return n.Topic == entities.TopicOrderShipped && n.TrackingNumber == tracking.Number && n.Carrier == "UPS"
			})).
			Return(nil).Once()

		order, err := svc.UpdateTracking(context.Background(), orderID, tracking)
		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusShipped, order.Status)
		assert.Equal(t, tracking.Number, order.TrackingNumber)
		require.NotNil(t, order.ShippedAt)
	})

	t.Run("corrects shipped order", func(t *testing.T) {
		svc, d := newTestService(t)
		o := testOrder(entities.OrderStatusShipped, entities.PaymentStatusCompleted)
		o.TrackingNumber = "WRONG1"
		store := &orderStore{order: o}
		store.expect(d.repo)

		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()
		d.dispatcher.EXPECT().Enqueue(mock.Anything, jobTopic(entities.TopicOrderShipped)).Return(nil).Once()

		order, err := svc.UpdateTracking(context.Background(), orderID, tracking)
		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusShipped, order.Status)
		assert.Equal(t, tracking.Number, order.TrackingNumber)
	})

	t.Run("delivered order", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: testOrder(entities.OrderStatusDelivered, entities.PaymentStatusCompleted)}
		store.expect(d.repo)

		_, err := svc.UpdateTracking(context.Background(), orderID, tracking)
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
		assert.Empty(t, store.order.TrackingNumber)
	})
}

func TestOrderService_CreatePaymentIntent(t *testing.T) {
	t.Run("replaces previous intent", func(t *testing.T) {
		svc, d := newTestService(t)
		o := testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)
		o.PaymentIntentID = "pi_old"
		store := &orderStore{order: o}
		store.expect(d.repo)

		d.gateway.EXPECT().
			CreateIntent(mock.Anything, mock.MatchedBy(func(req entities.PaymentIntentRequest) bool {
				return req.Amount.Equal(dec("47.79")) &&
					req.Currency == "usd" &&
					req.Metadata["orderId"] == orderID &&
					req.Metadata["userId"] == userID &&
					req.Metadata["orderNumber"] == o.OrderNumber
			})).
			Return(entities.PaymentIntent{ID: "pi_new", ClientSecret: "pi_new_secret"}, nil).Once()
		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()
		d.gateway.EXPECT().Cancel(mock.Anything, "pi_old").Return(errors.New("already expired")).Once()

		intent, err := svc.CreatePaymentIntent(context.Background(), orderID, userID)
		require.NoError(t, err)
		assert.Equal(t, "pi_new", intent.ID)
		assert.Equal(t, "pi_new_secret", intent.ClientSecret)
		assert.Equal(t, "pi_new", store.order.PaymentIntentID)
	})

	t.Run("same intent returned again", func(t *testing.T) {
		svc, d := newTestService(t)
		o := testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)
		o.PaymentIntentID = "pi_1"
		store := &orderStore{order: o}
		store.expect(d.repo)

		d.gateway.EXPECT().CreateIntent(mock.Anything, mock.Anything).
			Return(entities.PaymentIntent{ID: "pi_1", ClientSecret: "s"}, nil).Once()
		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()

		_, err := svc.CreatePaymentIntent(context.Background(), orderID, userID)
		require.NoError(t, err)
	})

	testCases := []struct {
		name    string
		order   entities.Order
		userID  string
		wantErr error
	}{
		{name: "already paid", order: testOrder(entities.OrderStatusProcessing, entities.PaymentStatusCompleted), userID: userID, wantErr: entities.ErrPaymentAlreadyProcessed},
		{name: "cancelled order", order: testOrder(entities.OrderStatusCancelled, entities.PaymentStatusPending), userID: userID, wantErr: entities.ErrOrderNotPayable},
		{name: "another user", order: testOrder(entities.OrderStatusPending, entities.PaymentStatusPending), userID: otherUser, wantErr: entities.ErrOrderNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, d := newTestService(t)
			d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(tc.order, nil).Once()

			_, err := svc.CreatePaymentIntent(context.Background(), orderID, tc.userID)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	t.Run("gateway error", func(t *testing.T) {
		svc, d := newTestService(t)
		gwErr := errors.New("card network down")
		d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).
			Return(testOrder(entities.OrderStatusPending, entities.PaymentStatusPending), nil).Once()
		d.gateway.EXPECT().CreateIntent(mock.Anything, mock.Anything).Return(entities.PaymentIntent{}, gwErr).Once()

		_, err := svc.CreatePaymentIntent(context.Background(), orderID, userID)
		assert.ErrorIs(t, err, gwErr)
	})
}

func TestOrderService_ConfirmPayment(t *testing.T) {
	pendingWithIntent := func() entities.Order {
		o := testOrder(entities.OrderStatusPending, entities.PaymentStatusPending)
		o.PaymentIntentID = "pi_1"
		return o
	}

	t.Run("success clears cart", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: pendingWithIntent()}
		store.expect(d.repo)

		d.gateway.EXPECT().Confirm(mock.Anything, "pi_1").Return(true, nil).Once()
		d.carts.EXPECT().ClearCart(mock.Anything, userID).Return(nil).Once()
		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()

		order, err := svc.ConfirmPayment(context.Background(), orderID, userID, "pi_1")
		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusProcessing, order.Status)
		assert.Equal(t, entities.PaymentStatusCompleted, order.PaymentStatus)
		assert.Equal(t, 4, store.order.Version)
	})

	t.Run("declined payment", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: pendingWithIntent()}
		store.expect(d.repo)

		d.gateway.EXPECT().Confirm(mock.Anything, "pi_1").Return(false, nil).Once()
		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()

		_, err := svc.ConfirmPayment(context.Background(), orderID, userID, "pi_1")
		assert.ErrorIs(t, err, entities.ErrPaymentFailed)
		assert.Equal(t, entities.PaymentStatusFailed, store.order.PaymentStatus)
		assert.Equal(t, entities.OrderStatusPending, store.order.Status)
	})

	t.Run("capture after concurrent cancel is recorded", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: pendingWithIntent()}
		store.expect(d.repo)

		d.gateway.EXPECT().Confirm(mock.Anything, "pi_1").
			RunAndReturn(func(context.Context, string) (bool, error) {
				cancelled := store.order
				cancelled.Status = entities.OrderStatusCancelled
				cancelled.Version++
				store.order = cancelled
				return true, nil
			}).Once()
		d.cache.EXPECT().Delete(mock.Anything, orderID).Return().Once()

		_, err := svc.ConfirmPayment(context.Background(), orderID, userID, "pi_1")
		assert.ErrorIs(t, err, entities.ErrOrderNotPayable)
		assert.Equal(t, entities.OrderStatusCancelled, store.order.Status)
		assert.Equal(t, entities.PaymentStatusCompleted, store.order.PaymentStatus)
		assert.Equal(t, 5, store.order.Version)
	})

	t.Run("cart clear failure rolls back", func(t *testing.T) {
		svc, d := newTestService(t)
		store := &orderStore{order: pendingWithIntent()}
		store.expect(d.repo)
		clearErr := errors.New("cart locked")

		d.gateway.EXPECT().Confirm(mock.Anything, "pi_1").Return(true, nil).Once()
		d.carts.EXPECT().ClearCart(mock.Anything, userID).Return(clearErr).Once()

		_, err := svc.ConfirmPayment(context.Background(), orderID, userID, "pi_1")
		assert.ErrorIs(t, err, clearErr)
		assert.Equal(t, entities.PaymentStatusPending, store.order.PaymentStatus)
	})

	testCases := []struct {
		name     string
		order    func() entities.Order
		intentID string
		wantErr  error
	}{
		{
			name:     "replay after success",
			order:    func() entities.Order { return testOrder(entities.OrderStatusProcessing, entities.PaymentStatusCompleted) },
			intentID: "pi_1",
			wantErr:  entities.ErrPaymentAlreadyProcessed,
		},
		{
			name:     "replay after failure",
			order:    func() entities.Order { return testOrder(entities.OrderStatusPending, entities.PaymentStatusFailed) },
			intentID: "pi_1",
			wantErr:  entities.ErrPaymentAlreadyProcessed,
		},
		{
			name:     "foreign intent",
			order:    pendingWithIntent,
			intentID: "pi_other",
			wantErr:  entities.ErrPaymentIntentMismatch,
		},
		{
			name:     "no intent attached",
			order:    func() entities.Order { return testOrder(entities.OrderStatusPending, entities.PaymentStatusPending) },
			intentID: "pi_1",
			wantErr:  entities.ErrPaymentIntentMissing,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, d := newTestService(t)
			d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(tc.order(), nil).Once()

			_, err := svc.ConfirmPayment(context.Background(), orderID, userID, tc.intentID)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	t.Run("gateway error leaves order untouched", func(t *testing.T) {
		svc, d := newTestService(t)
		gwErr := errors.New("timeout")
		d.repo.EXPECT().GetOrderByID(mock.Anything, orderID).Return(pendingWithIntent(), nil).Once()
		d.gateway.EXPECT().Confirm(mock.Anything, "pi_1").Return(false, gwErr).Once()

		_, err := svc.ConfirmPayment(context.Background(), orderID, userID, "pi_1")
		assert.ErrorIs(t, err, gwErr)
		assert.NotErrorIs(t, err, entities.ErrPaymentFailed)
	})
}

func TestOrderService_WarmUpCache(t *testing.T) {
	svc, d := newTestService(t)

	orders := []entities.Order{
		testOrder(entities.OrderStatusPending, entities.PaymentStatusPending),
	}
	d.repo.EXPECT().LatestOrders(mock.Anything, 10).Return(orders, nil).Once()
	d.cache.EXPECT().Set(mock.Anything, orderID, mock.Anything).Return().Once()

	require.NoError(t, svc.WarmUpCache(context.Background(), 10))

	d2svc, d2 := newTestService(t)
	d2.repo.EXPECT().LatestOrders(mock.Anything, 10).Return(nil, errors.New("db down")).Once()
	assert.Error(t, d2svc.WarmUpCache(context.Background(), 10))
}
