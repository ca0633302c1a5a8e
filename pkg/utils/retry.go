package utils

import (
	"context"
	"errors"
	"time"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Retryable decides whether an error is worth another attempt.
	// When nil every error except the permanent ones is retried.
	Retryable func(error) bool
}

// Retry calls fn until it succeeds, returns one of the permanent errors,
// or runs out of attempts. The last error is returned.
func Retry(cfg RetryConfig, fn func() error, permanent ...error) error {
	return RetryContext(context.Background(), cfg, fn, permanent...)
}

// RetryContext is Retry that stops waiting once ctx is done.
func RetryContext(ctx context.Context, cfg RetryConfig, fn func() error, permanent ...error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Millisecond * 100
	}

	delay := cfg.InitialDelay

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts || isPermanent(err, permanent) {
			return err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

func isPermanent(err error, permanent []error) bool {
	for _, p := range permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}
