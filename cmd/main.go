package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/app"
	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/handler"
	"github.com/SergeyBogomolovv/checkout-service/internal/middleware"
	"github.com/SergeyBogomolovv/checkout-service/internal/notify"
	"github.com/SergeyBogomolovv/checkout-service/internal/payment"
	"github.com/SergeyBogomolovv/checkout-service/internal/postgres"
	"github.com/SergeyBogomolovv/checkout-service/internal/pricing"
	"github.com/SergeyBogomolovv/checkout-service/internal/repo"
	"github.com/SergeyBogomolovv/checkout-service/internal/service"
	"github.com/SergeyBogomolovv/checkout-service/internal/telemetry"
	"github.com/SergeyBogomolovv/checkout-service/pkg/cache"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const mailerTimeout = 5 * time.Second

// @title                       Checkout Service API
// @version                     1.0
// @description                 Checkout, payment and order lifecycle HTTP API
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
func main() {
	conf := config.New()
	logger := telemetry.NewLogger(os.Stdout, conf.Env)
	panicIfErr("invalid config", conf.Validate())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, conf.Telemetry, conf.Env)
	panicIfErr("failed to init tracing", err)

	db, err := postgres.New(ctx, conf.Postgres)
	panicIfErr("failed to connect to db", err)
	logger.Info("postgres connected")

	calculator, err := newCalculator(conf.Pricing)
	panicIfErr("invalid pricing config", err)

	gateway, err := payment.New(payment.Config{
		Mode:      payment.Mode(conf.Payment.Mode),
		SecretKey: conf.Payment.SecretKey,
	})
	panicIfErr("failed to init payment gateway", err)

	orderCache := newCache(logger, conf)
	publisher := notify.NewPublisher(conf.Kafka)

	orderService := service.NewOrderService(logger, service.Deps{
		TxManager:  trm.NewManager(db),
		Orders:     repo.NewOrderRepo(db),
		Carts:      repo.NewCartStore(db),
		Payments:   gateway,
		Dispatcher: publisher,
		Cache:      orderCache,
		Pricing:    calculator,
		Currency:   conf.Payment.Currency,
	})

	processor := notify.NewProcessor(logger, newMailer(logger, conf.Mailer))
	kafkaHandler := handler.NewKafkaHandler(logger, conf.Kafka, processor)
	httpHandler := handler.NewHTTPHandler(logger, middleware.NewAuthenticator(conf.Auth), orderService)
	handler.RegisterMetrics()

	app := app.New(logger, conf)

	app.SetHTTPHandlers(httpHandler)
	app.SetConsumers(kafkaHandler)
	app.SetStarters(orderCache, cacheWarmUpAdapter{svc: orderService, count: conf.Cache.Capacity})
	app.SetHealthCheck("postgres", db.PingContext)
	app.SetClosers(publisher, db)
	if rc, ok := orderCache.(*cache.RedisCache); ok {
		app.SetHealthCheck("redis", rc.Start)
		app.SetClosers(rc)
	}

	panicIfErr("failed to start app", app.Start(ctx))
	<-ctx.Done()

	if err := app.Stop(); err != nil {
		logger.Error("failed to stop app", slog.Any("error", err))
	}
	if err := shutdownTracer(context.Background()); err != nil {
		logger.Error("failed to shutdown tracer", slog.Any("error", err))
	}
}

func init() {
	godotenv.Load()
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}

type startableCache interface {
	service.Cache
	app.Starter
}

func newCache(logger *slog.Logger, conf config.Config) startableCache {
	if conf.Cache.Driver == "redis" {
		return cache.NewRedisCache(logger, cache.RedisConfig{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
			Prefix:   "checkout",
			TTL:      conf.Cache.TTL,
		})
	}
	return cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
}

func newMailer(logger *slog.Logger, conf config.Mailer) notify.Mailer {
	if conf.Driver == "http" {
		return notify.NewHTTPMailer(conf.URL, mailerTimeout)
	}
	return notify.NewLogMailer(logger)
}

func newCalculator(conf config.Pricing) (pricing.Calculator, error) {
	threshold, err := decimal.NewFromString(conf.FreeShippingThreshold)
	if err != nil {
		return pricing.Calculator{}, fmt.Errorf("free shipping threshold: %w", err)
	}
	fee, err := decimal.NewFromString(conf.ShippingFee)
	if err != nil {
		return pricing.Calculator{}, fmt.Errorf("shipping fee: %w", err)
	}
	rate, err := decimal.NewFromString(conf.TaxRate)
	if err != nil {
		return pricing.Calculator{}, fmt.Errorf("tax rate: %w", err)
	}
	return pricing.NewCalculator(
		pricing.FlatShipping{FreeThreshold: threshold, FlatFee: fee},
		pricing.FlatTax{Rate: rate},
	), nil
}

type warmUpper interface {
	WarmUpCache(ctx context.Context, count int) error
}

type cacheWarmUpAdapter struct {
	svc   warmUpper
	count int
}

func (a cacheWarmUpAdapter) Start(ctx context.Context) error {
	return a.svc.WarmUpCache(ctx, a.count)
}
