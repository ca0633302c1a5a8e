// Package service implements checkout: turning a cart into an order, taking
// the order through payment and moving it along its lifecycle.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/postgres"
	"github.com/SergeyBogomolovv/checkout-service/internal/pricing"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
	"github.com/google/uuid"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, o entities.Order) error
	CreateOrderItems(ctx context.Context, items []entities.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (entities.Order, error)
	// LockOrder reads the order header with a row lock held until the transaction ends.
	LockOrder(ctx context.Context, id string) (entities.Order, error)
	// UpdateOrder fails with entities.ErrVersionConflict when o.Version is stale.
	UpdateOrder(ctx context.Context, o entities.Order) error
	ListOrders(ctx context.Context, filter entities.OrderFilter, page entities.Page) ([]entities.Order, int, error)
	LatestOrders(ctx context.Context, count int) ([]entities.Order, error)
}

type CartStore interface {
	GetCart(ctx context.Context, userID string) (entities.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, req entities.PaymentIntentRequest) (entities.PaymentIntent, error)
	Confirm(ctx context.Context, intentID string) (bool, error)
	Cancel(ctx context.Context, intentID string) error
}

// Dispatcher delivers jobs. Delivery is best effort.
type Dispatcher interface {
	Enqueue(ctx context.Context, n entities.Notification) error
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, key string)
}

type Deps struct {
	TxManager  trm.Manager
	Orders     OrderRepo
	Carts      CartStore
	Payments   PaymentGateway
	Dispatcher Dispatcher
	Cache      Cache
	Pricing    pricing.Calculator
	Currency   string

	// Now and NewID default to the wall clock and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

type orderService struct {
	logger     *slog.Logger
	txManager  trm.Manager
	orders     OrderRepo
	carts      CartStore
	payments   PaymentGateway
	dispatcher Dispatcher
	cache      Cache
	pricing    pricing.Calculator
	currency   string
	now        func() time.Time
	newID      func() string

	writeRetry utils.RetryConfig
	readRetry  utils.RetryConfig

	// fills guards cache fills against orders changed while they were read.
	fills fillGuard
}

// fillGuard counts cache invalidations. A read may fill the cache only if no
// invalidation happened since it started.
type fillGuard struct {
	mu  sync.Mutex
	gen uint64
}

func NewOrderService(logger *slog.Logger, deps Deps) *orderService {
	s := &orderService{
		logger:     logger.With(slog.String("service", "order")),
		txManager:  deps.TxManager,
		orders:     deps.Orders,
		carts:      deps.Carts,
		payments:   deps.Payments,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		pricing:    deps.Pricing,
		currency:   deps.Currency,
		now:        deps.Now,
		newID:      deps.NewID,
		writeRetry: utils.RetryConfig{
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			MaxAttempts:  3,
			Multiplier:   2,
			Retryable:    postgres.IsRetryable,
		},
		readRetry: utils.RetryConfig{
			InitialDelay: 100 * time.Millisecond,
			MaxAttempts:  5,
			Multiplier:   2,
			Retryable:    postgres.IsRetryable,
		},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	return s
}

// clock returns the current time the way it is stored: UTC, microsecond precision.
func (s *orderService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// dispatch hands jobs to the dispatcher after the transaction that produced them
// has committed. Failures are logged and counted only.
func (s *orderService) dispatch(ctx context.Context, jobs []entities.Notification) {
	for _, n := range jobs {
		if err := s.dispatcher.Enqueue(ctx, n); err != nil {
			notificationsFailed.WithLabelValues(string(n.Topic)).Inc()
			s.logger.ErrorContext(ctx, "failed to enqueue job",
				slog.String("job", string(n.Topic)),
				slog.String("order_id", n.OrderID),
				slog.Any("error", err),
			)
			continue
		}
		notificationsEnqueued.WithLabelValues(string(n.Topic)).Inc()
	}
}

// cacheGeneration is taken before reading orders that may be cached.
func (s *orderService) cacheGeneration() uint64 {
	s.fills.mu.Lock()
	defer s.fills.mu.Unlock()
	return s.fills.gen
}

// fillCache stores an order read at generation gen. The fill is skipped when
// an order was changed meanwhile, since the copy may predate that change.
func (s *orderService) fillCache(ctx context.Context, order entities.Order, gen uint64) {
	data, err := order.Marshal()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal order", slog.String("order_id", order.ID), slog.Any("error", err))
		return
	}

	s.fills.mu.Lock()
	defer s.fills.mu.Unlock()
	if s.fills.gen != gen {
		s.logger.DebugContext(ctx, "skipping stale cache fill", slog.String("order_id", order.ID))
		return
	}
	s.cache.Set(ctx, order.ID, data)
}

func (s *orderService) invalidateCache(ctx context.Context, orderID string) {
	s.fills.mu.Lock()
	defer s.fills.mu.Unlock()
	s.fills.gen++
	s.cache.Delete(ctx, orderID)
}
