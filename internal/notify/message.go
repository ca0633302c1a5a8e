// Package notify publishes order jobs to Kafka and turns consumed jobs into emails.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/shopspring/decimal"
)

// Message is the JSON body of every job on the wire.
type Message struct {
	Job            string    `json:"job" validate:"required,oneof=order-confirmation order-shipped order-delivered order-cancelled process-order"`
	OrderID        string    `json:"orderId" validate:"required"`
	UserID         string    `json:"userId" validate:"required"`
	OrderNumber    string    `json:"orderNumber,omitempty"`
	Total          string    `json:"total,omitempty" validate:"omitempty,numeric"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func MessageFromEntity(n entities.Notification) Message {
	return Message{
		Job:            string(n.Topic),
		OrderID:        n.OrderID,
		UserID:         n.UserID,
		OrderNumber:    n.OrderNumber,
		Total:          n.Total.StringFixed(2),
		TrackingNumber: n.TrackingNumber,
		Carrier:        n.Carrier,
		CreatedAt:      n.CreatedAt,
	}
}

func MessageToEntity(m Message) (entities.Notification, error) {
	n := entities.Notification{
		Topic:          entities.Topic(m.Job),
		OrderID:        m.OrderID,
		UserID:         m.UserID,
		OrderNumber:    m.OrderNumber,
		TrackingNumber: m.TrackingNumber,
		Carrier:        m.Carrier,
		CreatedAt:      m.CreatedAt,
	}
	if m.Total != "" {
		total, err := decimal.NewFromString(m.Total)
		if err != nil {
			return entities.Notification{}, fmt.Errorf("invalid total: %w", err)
		}
		n.Total = total
	}
	return n, nil
}

func Encode(n entities.Notification) ([]byte, error) {
	return json.Marshal(MessageFromEntity(n))
}
