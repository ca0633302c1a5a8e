package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout_service",
		Subsystem: "checkout",
		Name:      "orders_created_total",
		Help:      "Total number of orders created.",
	})

	paymentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_service",
		Subsystem: "checkout",
		Name:      "payments_settled_total",
		Help:      "Total number of settled payments by result.",
	}, []string{"status"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_service",
		Subsystem: "checkout",
		Name:      "order_transitions_total",
		Help:      "Total number of order status transitions by target status.",
	}, []string{"status"})

	notificationsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_service",
		Subsystem: "notifications",
		Name:      "enqueued_total",
		Help:      "Total number of jobs handed to the dispatcher.",
	}, []string{"job"})

	notificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_service",
		Subsystem: "notifications",
		Name:      "failed_total",
		Help:      "Total number of jobs the dispatcher rejected.",
	}, []string{"job"})
)
