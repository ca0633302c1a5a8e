// checkout-generator fills random carts and drives them through checkout,
// payment and shipping against a running service. It talks to the service
// database directly only to seed carts, which the service never writes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/middleware"
	"github.com/SergeyBogomolovv/checkout-service/internal/postgres"
	"github.com/SergeyBogomolovv/checkout-service/internal/telemetry"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

type generator struct {
	logger *slog.Logger
	db     *sqlx.DB
	tx     trm.Manager
	auth   *middleware.Authenticator
	client *http.Client
	base   string
}

func main() {
	godotenv.Load()

	baseURL := flag.String("url", "http://localhost:8080", "service base URL")
	interval := flag.Duration("interval", 2*time.Second, "delay between checkouts")
	flag.Parse()

	conf := config.New()
	logger := telemetry.NewLogger(os.Stdout, conf.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.New(ctx, conf.Postgres)
	if err != nil {
		logger.Error("failed to connect to db", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	g := &generator{
		logger: logger,
		db:     db,
		tx:     trm.NewManager(db),
		auth:   middleware.NewAuthenticator(conf.Auth),
		client: &http.Client{Timeout: 10 * time.Second},
		base:   *baseURL,
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := g.checkout(ctx); err != nil {
				logger.Warn("checkout failed", slog.Any("error", err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *generator) checkout(ctx context.Context) error {
	userID := fmt.Sprintf("shopper-%d", rand.IntN(50))
	if err := g.seedCart(ctx, userID); err != nil {
		return fmt.Errorf("seed cart: %w", err)
	}

	token, err := g.auth.Issue(userID, middleware.RoleUser, time.Hour)
	if err != nil {
		return err
	}

	var order struct {
		ID    string `json:"id"`
		Total string `json:"total"`
	}
	err = g.call(ctx, token, http.MethodPost, "/orders", map[string]any{
		"shippingAddress": map[string]string{
			"fullName":     "Shopper " + userID,
			"phone":        fmt.Sprintf("+1555%07d", rand.IntN(10_000_000)),
			"addressLine1": fmt.Sprintf("%d Market St", rand.IntN(900)+1),
			"city":         "Springfield",
			"state":        "IL",
			"postalCode":   fmt.Sprintf("%05d", rand.IntN(100_000)),
			"country":      "US",
		},
	}, &order)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	var intent struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	if err := g.call(ctx, token, http.MethodPost, "/orders/"+order.ID+"/payment-intent", nil, &intent); err != nil {
		return fmt.Errorf("payment intent: %w", err)
	}

	body := map[string]string{"paymentIntentId": intent.PaymentIntentID}
	if err := g.call(ctx, token, http.MethodPost, "/orders/"+order.ID+"/confirm-payment", body, nil); err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}

	if rand.IntN(3) == 0 {
		admin, err := g.auth.Issue("generator", middleware.RoleAdmin, time.Hour)
		if err != nil {
			return err
		}
		tracking := map[string]string{"trackingNumber": fmt.Sprintf("1Z%08d", rand.IntN(100_000_000)), "carrier": "UPS"}
		if err := g.call(ctx, admin, http.MethodPatch, "/admin/orders/"+order.ID+"/shipping", tracking, nil); err != nil {
			return fmt.Errorf("ship: %w", err)
		}
	}

	g.logger.Info("order generated", slog.String("order_id", order.ID), slog.String("total", order.Total))
	return nil
}

// seedCart replaces the user's cart with one to three random lines.
func (g *generator) seedCart(ctx context.Context, userID string) error {
	return g.tx.Do(ctx, func(ctx context.Context) error {
		tx := trm.ExtractTx(ctx)

		var cartID string
		err := tx.GetContext(ctx, &cartID, `
			INSERT INTO carts (id, user_id) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
			RETURNING id`, uuid.NewString(), userID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return err
		}

		subtotal := 0
		for range rand.IntN(3) + 1 {
			productID := uuid.NewString()
			price := rand.IntN(80) + 5
			qty := rand.IntN(3) + 1
			if _, err := tx.ExecContext(ctx, `INSERT INTO products (id, name, sku, price) VALUES ($1, $2, $3, $4)`,
				productID, "Item "+productID[:5], "SKU-"+productID[:8], price); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO cart_items (id, cart_id, product_id, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
				uuid.NewString(), cartID, productID, qty, price); err != nil {
				return err
			}
			subtotal += price * qty
		}

		_, err = tx.ExecContext(ctx, `UPDATE carts SET subtotal = $2, discount = 0, total = $2, coupon_code = NULL WHERE id = $1`, cartID, subtotal)
		return err
	})
}

func (g *generator) call(ctx context.Context, token, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s -> %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
