package entities

import (
	"fmt"
	"time"
)

type OrderEvent string

const (
	EventPaymentConfirmed OrderEvent = "payment_confirmed"
	EventShip             OrderEvent = "ship"
	EventDeliver          OrderEvent = "deliver"
	EventCancel           OrderEvent = "cancel"
)

// orderTransitions is the complete order lifecycle: current status x event -> next status.
// Anything missing from the table is rejected.
var orderTransitions = map[OrderStatus]map[OrderEvent]OrderStatus{
	OrderStatusPending: {
		EventPaymentConfirmed: OrderStatusProcessing,
		EventShip:             OrderStatusShipped,
		EventCancel:           OrderStatusCancelled,
	},
	OrderStatusProcessing: {
		EventShip:   OrderStatusShipped,
		EventCancel: OrderStatusCancelled,
	},
	OrderStatusShipped: {
		EventDeliver: OrderStatusDelivered,
	},
}

// NextStatus returns the status an order moves to when ev happens in status from.
func NextStatus(from OrderStatus, ev OrderEvent) (OrderStatus, error) {
	next, ok := orderTransitions[from][ev]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}
	return next, nil
}

// EventForStatus maps an administrative target status to the event that reaches it.
// PROCESSING is only reachable through payment confirmation.
func EventForStatus(to OrderStatus) (OrderEvent, bool) {
	switch to {
	case OrderStatusShipped:
		return EventShip, true
	case OrderStatusDelivered:
		return EventDeliver, true
	case OrderStatusCancelled:
		return EventCancel, true
	}
	return "", false
}

// Apply moves the order through ev and stamps the matching timestamp.
func (o *Order) Apply(ev OrderEvent, at time.Time) error {
	next, err := NextStatus(o.Status, ev)
	if err != nil {
		return err
	}

	o.Status = next
	switch next {
	case OrderStatusShipped:
		o.ShippedAt = &at
	case OrderStatusDelivered:
		o.DeliveredAt = &at
	case OrderStatusCancelled:
		o.CancelledAt = &at
	}
	o.UpdatedAt = at
	return nil
}

// CanCancel reports whether the owner is still allowed to cancel the order.
func (o Order) CanCancel() bool {
	_, err := NextStatus(o.Status, EventCancel)
	return err == nil
}

// SettlePayment moves a pending payment to a terminal status.
func (o *Order) SettlePayment(to PaymentStatus) error {
	if o.PaymentStatus != PaymentStatusPending {
		return ErrPaymentAlreadyProcessed
	}
	if to != PaymentStatusCompleted && to != PaymentStatusFailed {
		return fmt.Errorf("%w: payment %s", ErrInvalidTransition, to)
	}
	o.PaymentStatus = to
	return nil
}
