package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Http Http

	Cors CORS `validate:"required"`
	Auth Auth `validate:"required"`

	Kafka    Kafka    `validate:"required"`
	Postgres Postgres `validate:"required"`
	Cache    Cache    `validate:"required"`
	Redis    Redis

	Payment   Payment   `validate:"required"`
	Pricing   Pricing   `validate:"required"`
	Mailer    Mailer    `validate:"required"`
	Telemetry Telemetry
}

type Http struct {
	Host         string        `validate:"required,hostname|ip"`
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gte=0"`
	WriteTimeout time.Duration `validate:"gte=0"`
}

type Auth struct {
	JWTSecret string `validate:"required,min=16"`
	Issuer    string
}

type Kafka struct {
	GroupID string   `validate:"required"`
	Brokers []string `validate:"required,min=1,dive,hostname_port"`

	// EmailTopic carries email jobs, OrderTopic carries order processing jobs.
	EmailTopic string `validate:"required"`
	OrderTopic string `validate:"required,nefield=EmailTopic"`

	ReaderMaxWait time.Duration `validate:"gte=0"`
	BatchTimeout  time.Duration `validate:"gte=0"`
	WriteTimeout  time.Duration `validate:"gte=0"`
}

type Postgres struct {
	Host     string `validate:"required,hostname|ip"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	DBName   string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`

	SSLMode string `validate:"required,oneof=disable require verify-ca verify-full"`

	MaxOpenConns    int           `validate:"gte=1"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
}

// DSN is the key/value connection string understood by lib/pq.
func (p Postgres) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// URL is the same connection as a postgres:// URL, as golang-migrate expects.
func (p Postgres) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     p.DBName,
		RawQuery: "sslmode=" + p.SSLMode,
	}
	return u.String()
}

type CORS struct {
	AllowedOrigins []string `validate:"required,min=1,dive,url"`
}

type Cache struct {
	Driver   string        `validate:"required,oneof=memory redis"`
	Capacity int           `validate:"gte=1"`
	TTL      time.Duration `validate:"gt=0"`
}

type Redis struct {
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int `validate:"gte=0"`
	Enabled  bool
}

type Payment struct {
	Mode      string `validate:"required,oneof=mock stripe"`
	SecretKey string `validate:"required_if=Mode stripe"`
	Currency  string `validate:"required,len=3,lowercase"`
}

type Pricing struct {
	FreeShippingThreshold string `validate:"required,numeric"`
	ShippingFee           string `validate:"required,numeric"`
	TaxRate               string `validate:"required,numeric"`
}

type Mailer struct {
	Driver string `validate:"required,oneof=log http"`
	URL    string `validate:"required_if=Driver http"`
}

type Telemetry struct {
	Enabled     bool
	Endpoint    string  `validate:"required_if=Enabled true"`
	ServiceName string  `validate:"required"`
	SampleRatio float64 `validate:"gte=0,lte=1"`
}

func New() Config {
	cacheDriver := env("CACHE_DRIVER", "memory")

	return Config{
		Env: env("ENV", "development"),

		Http: Http{
			Host:         env("HOST", "localhost"),
			Port:         env("PORT", "8080"),
			ReadTimeout:  envDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: envDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},

		Cors: CORS{
			AllowedOrigins: strings.Split(env("ALLOWED_CORS_ORIGINS", "http://localhost:3000"), ","),
		},

		Auth: Auth{
			JWTSecret: env("JWT_SECRET", ""),
			Issuer:    env("JWT_ISSUER", ""),
		},

		Kafka: Kafka{
			GroupID:    env("KAFKA_GROUP_ID", "checkout-service"),
			Brokers:    strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ","),
			EmailTopic: env("KAFKA_EMAIL_TOPIC", "email"),
			OrderTopic: env("KAFKA_ORDER_TOPIC", "orders"),

			ReaderMaxWait: envDuration("KAFKA_READER_MAX_WAIT", 10*time.Millisecond),
			BatchTimeout:  envDuration("KAFKA_BATCH_TIMEOUT", 10*time.Millisecond),
			WriteTimeout:  envDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		},

		Postgres: Postgres{
			Port:     envInt("POSTGRES_PORT", 5432),
			Host:     env("POSTGRES_HOST", "localhost"),
			DBName:   env("POSTGRES_DB", "checkout"),
			User:     env("POSTGRES_USER", ""),
			Password: env("POSTGRES_PASSWORD", ""),

			SSLMode: env("POSTGRES_SSL_MODE", "disable"),

			MaxOpenConns:    envInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("POSTGRES_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Cache: Cache{
			Driver:   cacheDriver,
			Capacity: envInt("CACHE_CAPACITY", 1000),
			TTL:      envDuration("CACHE_TTL", 10*time.Minute),
		},

		Redis: Redis{
			Addr:     env("REDIS_ADDR", "localhost:6379"),
			Password: env("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
			Enabled:  cacheDriver == "redis",
		},

		Payment: Payment{
			Mode:      env("PAYMENT_MODE", "mock"),
			SecretKey: env("STRIPE_SECRET_KEY", ""),
			Currency:  env("PAYMENT_CURRENCY", "usd"),
		},

		Pricing: Pricing{
			FreeShippingThreshold: env("PRICING_FREE_SHIPPING_THRESHOLD", "100"),
			ShippingFee:           env("PRICING_SHIPPING_FEE", "9.99"),
			TaxRate:               env("PRICING_TAX_RATE", "0.08"),
		},

		Mailer: Mailer{
			Driver: env("MAILER_DRIVER", "log"),
			URL:    env("EMAIL_SERVICE_URL", ""),
		},

		Telemetry: Telemetry{
			Enabled:     envBool("OTEL_ENABLED", false),
			Endpoint:    env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName: env("OTEL_SERVICE_NAME", "checkout-service"),
			SampleRatio: envFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
