package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	_ "github.com/SergeyBogomolovv/checkout-service/docs"
	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/middleware"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

type application struct {
	logger *slog.Logger

	router  chi.Router
	httpSrv *http.Server

	consumers []Consumer
	starters  []Starter
	closers   []io.Closer
	checks    map[string]HealthCheck

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(logger *slog.Logger, cfg config.Config) *application {
	a := &application{
		logger: logger.With(slog.String("component", "app")),
		checks: make(map[string]HealthCheck),
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logger(logger))
	router.Use(chimw.Recoverer)
	router.Use(middleware.Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Cors.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	router.Get("/healthz", a.health)

	a.router = router
	a.httpSrv = &http.Server{
		Handler:      otelhttp.NewHandler(router, "http.server"),
		Addr:         net.JoinHostPort(cfg.Http.Host, cfg.Http.Port),
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
	}
	return a
}

type HTTPHandler interface {
	Init(r chi.Router)
}

func (a *application) SetHTTPHandlers(handlers ...HTTPHandler) {
	for _, h := range handlers {
		h.Init(a.router)
	}
}

type Consumer interface {
	Consume(ctx context.Context)
	Close() error
}

func (a *application) SetConsumers(consumers ...Consumer) {
	a.consumers = append(a.consumers, consumers...)
}

// Starter runs once before the HTTP server accepts traffic. Starters run
// concurrently with the application context, so background work they spawn
// lives until Stop. Any error aborts Start.
type Starter interface {
	Start(ctx context.Context) error
}

func (a *application) SetStarters(starters ...Starter) {
	a.starters = append(a.starters, starters...)
}

// SetClosers registers resources closed after the server and consumers stop,
// in registration order.
func (a *application) SetClosers(closers ...io.Closer) {
	a.closers = append(a.closers, closers...)
}

type HealthCheck func(ctx context.Context) error

func (a *application) SetHealthCheck(name string, check HealthCheck) {
	a.checks[name] = check
}

func (a *application) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	var g errgroup.Group
	for _, s := range a.starters {
		g.Go(func() error { return s.Start(ctx) })
	}
	if err := g.Wait(); err != nil {
		a.cancel()
		return fmt.Errorf("failed to run starters: %w", err)
	}

	for _, c := range a.consumers {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			c.Consume(ctx)
		}()
	}

	ln, err := net.Listen("tcp", a.httpSrv.Addr)
	if err != nil {
		a.cancel()
		return fmt.Errorf("failed to listen on %s: %w", a.httpSrv.Addr, err)
	}

	go func() {
		a.logger.Info("starting http server", slog.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", slog.Any("error", err))
		}
	}()

	a.logger.Info("application started")
	return nil
}

const gracefulShutdownTimeout = 10 * time.Second

func (a *application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown http server: %w", err))
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.logger.Info("application stopped")
	return errors.Join(errs...)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (a *application) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	res := healthResponse{Status: "ok", Checks: make(map[string]string, len(a.checks))}
	code := http.StatusOK
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			a.logger.WarnContext(ctx, "health check failed", slog.String("check", name), slog.Any("error", err))
			res.Checks[name] = "down"
			res.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "up"
	}
	utils.WriteJSON(w, res, code)
}
