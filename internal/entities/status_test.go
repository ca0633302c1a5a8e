package entities_test

import (
	"testing"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	testCases := []struct {
		from    entities.OrderStatus
		event   entities.OrderEvent
		want    entities.OrderStatus
		wantErr bool
	}{
		{entities.OrderStatusPending, entities.EventPaymentConfirmed, entities.OrderStatusProcessing, false},
		{entities.OrderStatusPending, entities.EventShip, entities.OrderStatusShipped, false},
		{entities.OrderStatusPending, entities.EventCancel, entities.OrderStatusCancelled, false},
		{entities.OrderStatusPending, entities.EventDeliver, "", true},
		{entities.OrderStatusProcessing, entities.EventShip, entities.OrderStatusShipped, false},
		{entities.OrderStatusProcessing, entities.EventCancel, entities.OrderStatusCancelled, false},
		{entities.OrderStatusProcessing, entities.EventPaymentConfirmed, "", true},
		{entities.OrderStatusProcessing, entities.EventDeliver, "", true},
		{entities.OrderStatusShipped, entities.EventDeliver, entities.OrderStatusDelivered, false},
		{entities.OrderStatusShipped, entities.EventCancel, "", true},
		{entities.OrderStatusShipped, entities.EventShip, "", true},
		{entities.OrderStatusDelivered, entities.EventCancel, "", true},
		{entities.OrderStatusDelivered, entities.EventShip, "", true},
		{entities.OrderStatusCancelled, entities.EventShip, "", true},
		{entities.OrderStatusCancelled, entities.EventCancel, "", true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"/"+string(tc.event), func(t *testing.T) {
			got, err := entities.NextStatus(tc.from, tc.event)
			if tc.wantErr {
				assert.ErrorIs(t, err, entities.ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOrder_Apply(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ship sets shippedAt", func(t *testing.T) {
		o := entities.Order{Status: entities.OrderStatusProcessing}
		require.NoError(t, o.Apply(entities.EventShip, at))
		assert.Equal(t, entities.OrderStatusShipped, o.Status)
		require.NotNil(t, o.ShippedAt)
		assert.Equal(t, at, *o.ShippedAt)
		assert.Equal(t, at, o.UpdatedAt)
	})

	t.Run("deliver sets deliveredAt", func(t *testing.T) {
		o := entities.Order{Status: entities.OrderStatusShipped}
		require.NoError(t, o.Apply(entities.EventDeliver, at))
		assert.Equal(t, entities.OrderStatusDelivered, o.Status)
		require.NotNil(t, o.DeliveredAt)
	})

	t.Run("cancel sets cancelledAt", func(t *testing.T) {
		o := entities.Order{Status: entities.OrderStatusPending}
		require.NoError(t, o.Apply(entities.EventCancel, at))
		assert.Equal(t, entities.OrderStatusCancelled, o.Status)
		require.NotNil(t, o.CancelledAt)
	})

	t.Run("rejected transition leaves order untouched", func(t *testing.T) {
		o := entities.Order{Status: entities.OrderStatusDelivered}
		err := o.Apply(entities.EventCancel, at)
		assert.ErrorIs(t, err, entities.ErrInvalidTransition)
		assert.Equal(t, entities.OrderStatusDelivered, o.Status)
		assert.Nil(t, o.CancelledAt)
	})
}

func TestOrder_CanCancel(t *testing.T) {
	want := map[entities.OrderStatus]bool{
		entities.OrderStatusPending:    true,
		entities.OrderStatusProcessing: true,
		entities.OrderStatusShipped:    false,
		entities.OrderStatusDelivered:  false,
		entities.OrderStatusCancelled:  false,
	}
	for status, ok := range want {
		assert.Equal(t, ok, entities.Order{Status: status}.CanCancel(), status)
	}
}

func TestOrder_SettlePayment(t *testing.T) {
	o := entities.Order{PaymentStatus: entities.PaymentStatusPending}
	require.NoError(t, o.SettlePayment(entities.PaymentStatusCompleted))
	assert.Equal(t, entities.PaymentStatusCompleted, o.PaymentStatus)

	assert.ErrorIs(t, o.SettlePayment(entities.PaymentStatusFailed), entities.ErrPaymentAlreadyProcessed)

	pending := entities.Order{PaymentStatus: entities.PaymentStatusPending}
	assert.ErrorIs(t, pending.SettlePayment(entities.PaymentStatusPending), entities.ErrInvalidTransition)
}

func TestEventForStatus(t *testing.T) {
	_, ok := entities.EventForStatus(entities.OrderStatusProcessing)
	assert.False(t, ok)
	_, ok = entities.EventForStatus(entities.OrderStatusPending)
	assert.False(t, ok)

	ev, ok := entities.EventForStatus(entities.OrderStatusShipped)
	assert.True(t, ok)
	assert.Equal(t, entities.EventShip, ev)
}

func TestTransitionNotification(t *testing.T) {
	at := time.Now().UTC()
	o := entities.Order{ID: "o1", UserID: "u1", OrderNumber: "ORD-1-001", TrackingNumber: "TRACK123", Carrier: "UPS"}

	n, ok := entities.TransitionNotification(o, entities.EventShip, at)
	require.True(t, ok)
	assert.Equal(t, entities.TopicOrderShipped, n.Topic)
	assert.Equal(t, "TRACK123", n.TrackingNumber)
	assert.Equal(t, "u1", n.UserID)

	_, ok = entities.TransitionNotification(o, entities.EventPaymentConfirmed, at)
	assert.False(t, ok)
}

func TestPageMeta(t *testing.T) {
	p := entities.Page{Page: 2, Limit: 10}.Normalize()
	meta := entities.NewPageMeta(p, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)
	assert.Equal(t, 10, p.Offset())

	def := entities.Page{}.Normalize()
	assert.Equal(t, 1, def.Page)
	assert.Equal(t, entities.DefaultPageLimit, def.Limit)
}
