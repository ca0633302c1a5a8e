package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type OrderRepo struct {
	conn
}

func NewOrderRepo(db *sqlx.DB) *OrderRepo {
	return &OrderRepo{conn: newConn(db)}
}

func (r *OrderRepo) CreateOrder(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Insert("orders").
		Columns(
			"id", "order_number", "user_id",
			"subtotal", "discount", "shipping_fee", "tax", "total", "coupon_code",
			"shipping_address", "notes",
			"status", "payment_status", "payment_intent_id",
			"version", "created_at", "updated_at",
		).
		Values(
			o.ID, o.OrderNumber, o.UserID,
			o.Subtotal, o.Discount, o.ShippingFee, o.Tax, o.Total, nullString(o.CouponCode),
			AddressFromEntity(o.ShippingAddress), nullString(o.Notes),
			string(o.Status), string(o.PaymentStatus), nullString(o.PaymentIntentID),
			o.Version, o.CreatedAt, o.UpdatedAt,
		).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) CreateOrderItems(ctx context.Context, items []entities.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.qb.Insert("order_items").Columns(itemColumns...)
	for i, it := range items {
		q = q.Values(
			it.ID, it.OrderID, i, it.ProductID, nullString(it.VariantID),
			it.ProductName, nullString(it.VariantName),
			it.SKU, it.Quantity, it.Price, it.Subtotal, it.CreatedAt,
		)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}
	return nil
}

// GetOrderByID loads the order with its items.
func (r *OrderRepo) GetOrderByID(ctx context.Context, id string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.itemsByOrder(ctx, []string{id})
	if err != nil {
		return entities.Order{}, err
	}

	return OrderToEntity(order, items[id]), nil
}

// LockOrder reads the order header and holds a row lock until the
// surrounding transaction ends. Items are not loaded.
func (r *OrderRepo) LockOrder(ctx context.Context, id string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to lock order: %w", err)
	}
	return OrderToEntity(order, nil), nil
}

// UpdateOrder writes the mutable columns if the stored version still equals
// o.Version and bumps the version.
func (r *OrderRepo) UpdateOrder(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Update("orders").
		SetMap(map[string]any{
			"notes":             nullString(o.Notes),
			"status":            string(o.Status),
			"payment_status":    string(o.PaymentStatus),
			"payment_intent_id": nullString(o.PaymentIntentID),
			"tracking_number":   nullString(o.TrackingNumber),
			"carrier":           nullString(o.Carrier),
			"shipped_at":        nullTime(o.ShippedAt),
			"delivered_at":      nullTime(o.DeliveredAt),
			"cancelled_at":      nullTime(o.CancelledAt),
			"updated_at":        o.UpdatedAt,
			"version":           sq.Expr("version + 1"),
		}).
		Where(sq.Eq{"id": o.ID, "version": o.Version}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if affected == 0 {
		return entities.ErrVersionConflict
	}
	return nil
}

// ListOrders returns one page of orders matching filter, newest first, and the
// total number of matches.
func (r *OrderRepo) ListOrders(ctx context.Context, filter entities.OrderFilter, page entities.Page) ([]entities.Order, int, error) {
	where := sq.And{}
	if filter.UserID != "" {
		where = append(where, sq.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": string(filter.Status)})
	}
	if filter.PaymentStatus != "" {
		where = append(where, sq.Eq{"payment_status": string(filter.PaymentStatus)})
	}

	query, args := r.qb.Select("COUNT(*)").From("orders").Where(where).MustSql()
	var total int
	if err := r.getContext(ctx, &total, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	if total == 0 {
		return []entities.Order{}, 0, nil
	}

	query, args = r.qb.Select(orderColumns...).
		From("orders").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		MustSql()

	orders, err := r.selectWithItems(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepo) LatestOrders(ctx context.Context, count int) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC").
		Limit(uint64(count)).
		MustSql()

	return r.selectWithItems(ctx, query, args...)
}

func (r *OrderRepo) selectWithItems(ctx context.Context, query string, args ...any) ([]entities.Order, error) {
	var orders []Order
	if err := r.selectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	if len(orders) == 0 {
		return []entities.Order{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	items, err := r.itemsByOrder(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, OrderToEntity(o, items[o.ID]))
	}
	return result, nil
}

func (r *OrderRepo) itemsByOrder(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	query, args := r.qb.Select(itemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "position").
		MustSql()

	var items []Item
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select order items: %w", err)
	}

	byOrder := make(map[string][]Item, len(orderIDs))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}
