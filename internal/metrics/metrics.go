// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_orders_consumed_total",
		Help: "Total order events consumed, by order type.",
	}, []string{"order_type"})

	TradesExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_trades_executed_total",
		Help: "Total trade executions produced by the matching engine.",
	})

	OrdersCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_orders_cancelled_total",
		Help: "Total order cancellations, by reason class.",
	}, []string{"reason"})

	AdmissionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exchange_admission_latency_seconds",
		Help:    "Latency of one order admission through the matching engine.",
		Buckets: prometheus.DefBuckets,
	})

	DuplicateEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_duplicate_events_total",
		Help: "Total order events skipped by the idempotency check.",
	})
)

func init() {
	prometheus.MustRegister(OrdersConsumed, TradesExecuted, OrdersCancelled, AdmissionLatency, DuplicateEvents)
}
