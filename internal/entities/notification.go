package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type Topic string

const (
	TopicOrderConfirmation Topic = "order-confirmation"
	TopicOrderShipped      Topic = "order-shipped"
	TopicOrderDelivered    Topic = "order-delivered"
	TopicOrderCancelled    Topic = "order-cancelled"
	TopicProcessOrder      Topic = "process-order"
)

// IsEmail reports whether jobs of this topic end up as an email to the buyer.
func (t Topic) IsEmail() bool {
	switch t {
	case TopicOrderConfirmation, TopicOrderShipped, TopicOrderDelivered, TopicOrderCancelled:
		return true
	}
	return false
}

func (t Topic) Valid() bool {
	return t.IsEmail() || t == TopicProcessOrder
}

// Notification is a fire-and-forget job. It is collected while an order is being
// written and handed to the dispatcher only after the transaction commits.
type Notification struct {
	Topic          Topic
	OrderID        string
	UserID         string
	OrderNumber    string
	Total          decimal.Decimal
	TrackingNumber string
	Carrier        string
	CreatedAt      time.Time
}

func newNotification(topic Topic, o Order, at time.Time) Notification {
	return Notification{
		Topic:       topic,
		OrderID:     o.ID,
		UserID:      o.UserID,
		OrderNumber: o.OrderNumber,
		Total:       o.Total,
		CreatedAt:   at,
	}
}

// CreatedNotifications are the jobs emitted for a freshly persisted order.
func CreatedNotifications(o Order, at time.Time) []Notification {
	return []Notification{
		newNotification(TopicOrderConfirmation, o, at),
		newNotification(TopicProcessOrder, o, at),
	}
}

// TransitionNotification returns the job a lifecycle event emits, if any.
func TransitionNotification(o Order, ev OrderEvent, at time.Time) (Notification, bool) {
	switch ev {
	case EventShip:
		n := newNotification(TopicOrderShipped, o, at)
		n.TrackingNumber = o.TrackingNumber
		n.Carrier = o.Carrier
		return n, true
	case EventDeliver:
		return newNotification(TopicOrderDelivered, o, at), true
	case EventCancel:
		return newNotification(TopicOrderCancelled, o, at), true
	}
	return Notification{}, false
}
