package payment

import (
	"context"
	"errors"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/oklog/ulid/v2"
)

const mockIntentPrefix = "pi_mock_"

// MockGateway never leaves the process: intents are synthesized and every
// confirmation succeeds.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) CreateIntent(_ context.Context, req entities.PaymentIntentRequest) (entities.PaymentIntent, error) {
	if !req.Amount.IsPositive() {
		return entities.PaymentIntent{}, errors.New("payment: amount must be positive")
	}
	id := mockIntentPrefix + ulid.Make().String()
	return entities.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + ulid.Make().String(),
	}, nil
}

func (g *MockGateway) Confirm(context.Context, string) (bool, error) {
	return true, nil
}

func (g *MockGateway) Cancel(context.Context, string) error {
	return nil
}
