package config_test

import (
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("POSTGRES_USER", "checkout")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
}

func TestNew_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := config.New()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mock", cfg.Payment.Mode)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "9.99", cfg.Pricing.ShippingFee)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestValidate_StripeRequiresKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_MODE", "stripe")

	cfg := config.New()
	assert.Error(t, cfg.Validate())

	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	cfg = config.New()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown payment mode", env: map[string]string{"PAYMENT_MODE": "paypal"}},
		{name: "unknown cache driver", env: map[string]string{"CACHE_DRIVER": "memcached"}},
		{name: "same kafka topics", env: map[string]string{"KAFKA_EMAIL_TOPIC": "jobs", "KAFKA_ORDER_TOPIC": "jobs"}},
		{name: "http mailer without url", env: map[string]string{"MAILER_DRIVER": "http"}},
		{name: "short jwt secret", env: map[string]string{"JWT_SECRET": "short"}},
		{name: "bad tax rate", env: map[string]string{"PRICING_TAX_RATE": "eight"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			assert.Error(t, config.New().Validate())
		})
	}
}

func TestPostgres_URL(t *testing.T) {
	p := config.Postgres{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "checkout", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/checkout?sslmode=disable", p.URL())
	assert.Equal(t, "host=db port=5432 user=u password=p@ss dbname=checkout sslmode=disable", p.DSN())
}
