package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *application {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, config.Config{
		Http: config.Http{Host: "127.0.0.1", Port: "0"},
		Cors: config.CORS{AllowedOrigins: []string{"http://localhost:3000"}},
	})
}

func TestHealth(t *testing.T) {
	testCases := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   healthResponse
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok"},
		},
		{
			name: "all up",
			checks: map[string]HealthCheck{
				"postgres": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok", Checks: map[string]string{"postgres": "up"}},
		},
		{
			name: "one down",
			checks: map[string]HealthCheck{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthResponse{Status: "degraded", Checks: map[string]string{"postgres": "up", "redis": "down"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestApp()
			for name, check := range tc.checks {
				a.SetHealthCheck(name, check)
			}

			rr := httptest.NewRecorder()
			a.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tc.wantStatus, rr.Code)
			var body healthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.wantBody, body)
		})
	}
}

type pingHandler struct{}

func (pingHandler) Init(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

type starterFunc func(ctx context.Context) error

func (f starterFunc) Start(ctx context.Context) error { return f(ctx) }

type fakeConsumer struct {
	consumed chan struct{}
	closed   bool
}

func (c *fakeConsumer) Consume(ctx context.Context) {
	close(c.consumed)
	<-ctx.Done()
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func TestApplication_Lifecycle(t *testing.T) {
	a := newTestApp()
	a.SetHTTPHandlers(pingHandler{})

	consumer := &fakeConsumer{consumed: make(chan struct{})}
	a.SetConsumers(consumer)

	var started bool
	a.SetStarters(starterFunc(func(ctx context.Context) error {
		started = true
		return nil
	}))

	require.NoError(t, a.Start(context.Background()))
	<-consumer.consumed
	assert.True(t, started)

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	require.NoError(t, a.Stop())
	assert.True(t, consumer.closed)
}

func TestApplication_StarterError(t *testing.T) {
	a := newTestApp()
	a.SetStarters(
		starterFunc(func(context.Context) error { return nil }),
		starterFunc(func(context.Context) error { return errors.New("redis unreachable") }),
	)

	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unreachable")
}
