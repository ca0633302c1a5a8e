package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type StripeGateway struct {
	intents stripeIntentAPI
}

func NewStripeGateway(secretKey string) *StripeGateway {
	sc := client.New(secretKey, nil)
	return &StripeGateway{intents: sc.PaymentIntents}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req entities.PaymentIntentRequest) (entities.PaymentIntent, error) {
	if !req.Amount.IsPositive() {
		return entities.PaymentIntent{}, errors.New("stripe: amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Shift(2).Round(0).IntPart()),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	intent, err := g.intents.New(params)
	if err != nil {
		return entities.PaymentIntent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	return entities.PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (g *StripeGateway) Confirm(ctx context.Context, intentID string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := g.intents.Get(intentID, params)
	if err != nil {
		return false, fmt.Errorf("stripe: get payment intent: %w", err)
	}
	return intent.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func (g *StripeGateway) Cancel(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := g.intents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("stripe: cancel payment intent: %w", err)
	}
	return nil
}
