// Package payment talks to the payment provider. The provider is picked once
// at startup from configuration.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

type Mode string

const (
	ModeMock   Mode = "mock"
	ModeStripe Mode = "stripe"
)

type Config struct {
	Mode      Mode
	SecretKey string
}

type Gateway interface {
	CreateIntent(ctx context.Context, req entities.PaymentIntentRequest) (entities.PaymentIntent, error)
	// Confirm reports whether the intent has been paid.
	Confirm(ctx context.Context, intentID string) (bool, error)
	Cancel(ctx context.Context, intentID string) error
}

var ErrMissingSecretKey = errors.New("payment: stripe mode requires a secret key")

// New returns the gateway for cfg.Mode. Stripe mode never falls back to the mock.
func New(cfg Config) (Gateway, error) {
	switch cfg.Mode {
	case ModeMock:
		return NewMockGateway(), nil
	case ModeStripe:
		key := strings.TrimSpace(cfg.SecretKey)
		if key == "" {
			return nil, ErrMissingSecretKey
		}
		return NewStripeGateway(key), nil
	}
	return nil, fmt.Errorf("payment: unknown mode %q", cfg.Mode)
}
