package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_products_created_total",
		Help: "Total number of products created",
	})

	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_movements_total",
		Help: "Total number of committed stock movements",
	}, []string{"type"})

	StockMovementsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_movements_rejected_total",
		Help: "Total number of rejected stock movements",
	}, []string{"reason"})

	StockMovementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_stock_movement_latency_seconds",
		Help:    "Latency of stock movements including lock waits",
		Buckets: prometheus.DefBuckets,
	})

	LockRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_lock_retries_total",
		Help: "Total number of operations retried after a busy lock",
	}, []string{"op"})

	AlertsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_alerts_created_total",
		Help: "Total number of low-stock alerts raised",
	})

	AlertsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_alerts_resolved_total",
		Help: "Total number of low-stock alerts resolved",
	}, []string{"mode"})

	RecycleOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_recycle_operations_total",
		Help: "Total number of recycle bin transitions",
	}, []string{"entity", "op"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_recycle_sweep_duration_seconds",
		Help:    "Duration of recycle bin sweeps",
		Buckets: prometheus.DefBuckets,
	})

	EventsPublishFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_events_publish_failed_total",
		Help: "Total number of domain events that could not be published",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
