package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_service",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by backend and result (hit, miss, expired, error).",
	}, []string{"backend", "result"})

	evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout_service",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Entries dropped by the in-process cache, by reason.",
	}, []string{"reason"})
)
