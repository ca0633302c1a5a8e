package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// CartStore reads carts owned by the cart service and clears them once an
// order has been paid.
type CartStore struct {
	conn
}

func NewCartStore(db *sqlx.DB) *CartStore {
	return &CartStore{conn: newConn(db)}
}

// GetCart returns the user's cart with product and variant data resolved.
// A user without a cart gets an empty one.
func (s *CartStore) GetCart(ctx context.Context, userID string) (entities.Cart, error) {
	query, args := s.qb.Select("id", "user_id", "subtotal", "discount", "coupon_code").
		From("carts").
		Where(sq.Eq{"user_id": userID}).
		Suffix("FOR SHARE").
		MustSql()

	var cart Cart
	err := s.getContext(ctx, &cart, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Cart{UserID: userID}, nil
	}
	if err != nil {
		return entities.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}

	query, args = s.qb.Select(
		"ci.product_id", "p.name AS product_name", "p.sku AS product_sku",
		"ci.variant_id", "v.name AS variant_name", "v.sku AS variant_sku",
		"ci.quantity", "ci.price",
	).
		From("cart_items ci").
		Join("products p ON p.id = ci.product_id").
		LeftJoin("product_variants v ON v.id = ci.variant_id").
		Where(sq.Eq{"ci.cart_id": cart.ID}).
		OrderBy("ci.created_at", "ci.id").
		MustSql()

	var items []CartItem
	if err := s.selectContext(ctx, &items, query, args...); err != nil {
		return entities.Cart{}, fmt.Errorf("failed to get cart items: %w", err)
	}

	return CartToEntity(cart, items), nil
}

// ClearCart removes every line and resets the cart totals and coupon.
func (s *CartStore) ClearCart(ctx context.Context, userID string) error {
	query, args := s.qb.Delete("cart_items").
		Where(sq.Expr("cart_id IN (SELECT id FROM carts WHERE user_id = ?)", userID)).
		MustSql()

	if _, err := s.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	query, args = s.qb.Update("carts").
		SetMap(map[string]any{
			"subtotal":    0,
			"discount":    0,
			"total":       0,
			"coupon_code": nil,
			"updated_at":  time.Now().UTC(),
		}).
		Where(sq.Eq{"user_id": userID}).
		MustSql()

	if _, err := s.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reset cart: %w", err)
	}
	return nil
}
