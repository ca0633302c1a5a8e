package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Email is a templated message for one user. The email service resolves the
// user's address.
type Email struct {
	UserID   string            `json:"userId"`
	Template string            `json:"template"`
	Subject  string            `json:"subject"`
	Data     map[string]string `json:"data"`
}

type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(slog.String("mailer", "log"))}
}

func (m *LogMailer) Send(ctx context.Context, e Email) error {
	m.logger.InfoContext(ctx, "email sent",
		slog.String("user_id", e.UserID),
		slog.String("template", e.Template),
		slog.String("subject", e.Subject),
		slog.Any("data", e.Data),
	)
	return nil
}

// HTTPMailer hands emails to the email service over HTTP.
type HTTPMailer struct {
	url    string
	client *http.Client
}

func NewHTTPMailer(baseURL string, timeout time.Duration) *HTTPMailer {
	return &HTTPMailer{
		url: strings.TrimRight(baseURL, "/") + "/send",
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (m *HTTPMailer) Send(ctx context.Context, e Email) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
	return nil
}
