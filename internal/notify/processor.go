package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// Processor executes consumed jobs.
type Processor struct {
	logger *slog.Logger
	mailer Mailer
}

func NewProcessor(logger *slog.Logger, mailer Mailer) *Processor {
	return &Processor{
		logger: logger.With(slog.String("service", "notify")),
		mailer: mailer,
	}
}

func (p *Processor) Process(ctx context.Context, n entities.Notification) error {
	if n.Topic == entities.TopicProcessOrder {
		p.logger.InfoContext(ctx, "order accepted for processing",
			slog.String("order_id", n.OrderID),
			slog.String("order_number", n.OrderNumber),
		)
		return nil
	}

	email, err := RenderEmail(n)
	if err != nil {
		return err
	}
	if err := p.mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send %s email: %w", n.Topic, err)
	}
	return nil
}

// RenderEmail builds the email for an email job.
func RenderEmail(n entities.Notification) (Email, error) {
	data := map[string]string{
		"orderId":     n.OrderID,
		"orderNumber": n.OrderNumber,
	}

	var subject string
	switch n.Topic {
	case entities.TopicOrderConfirmation:
		subject = fmt.Sprintf("Order %s confirmed", n.OrderNumber)
		data["total"] = n.Total.StringFixed(2)
	case entities.TopicOrderShipped:
		subject = fmt.Sprintf("Order %s has shipped", n.OrderNumber)
		data["trackingNumber"] = n.TrackingNumber
		if n.Carrier != "" {
			data["carrier"] = n.Carrier
		}
	case entities.TopicOrderDelivered:
		subject = fmt.Sprintf("Order %s was delivered", n.OrderNumber)
	case entities.TopicOrderCancelled:
		subject = fmt.Sprintf("Order %s was cancelled", n.OrderNumber)
	default:
		return Email{}, fmt.Errorf("job %q is not an email", n.Topic)
	}

	return Email{
		UserID:   n.UserID,
		Template: string(n.Topic),
		Subject:  subject,
		Data:     data,
	}, nil
}
