// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tarot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_orders_created_total",
			Help: "Total number of order creation attempts by result",
		},
		[]string{"pay_type", "result"},
	)

	PaymentCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_payment_callbacks_total",
			Help: "Total number of gateway notifications by verdict",
		},
		[]string{"verdict"},
	)

	SettledCoinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tarot_settled_coins_total",
			Help: "Coins credited through settled payment orders",
		},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_ledger_operations_total",
			Help: "Total number of ledger operations by type and result",
		},
		[]string{"type", "result"},
	)

	OrdersExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tarot_orders_expired_total",
			Help: "Pending orders moved to expired by the sweeper",
		},
	)

	OutboxMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_outbox_messages_total",
			Help: "Outbox relay attempts by result",
		},
		[]string{"result"},
	)

	LedgerEventsArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarot_ledger_events_archived_total",
			Help: "Ledger events consumed by the archiver by result",
		},
		[]string{"result"},
	)

	WorkerPoolRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tarot_worker_pool_running",
			Help: "Goroutines currently running in the archive worker pool",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordOrderCreated(payType, result string) {
	OrdersCreatedTotal.WithLabelValues(payType, result).Inc()
}

func RecordPaymentCallback(verdict string) {
	PaymentCallbacksTotal.WithLabelValues(verdict).Inc()
}

// RecordSettlement counts coins credited by a settled order
func RecordSettlement(coins int64) {
	SettledCoinsTotal.Add(float64(coins))
}

func RecordLedgerOperation(txType, result string) {
	LedgerOperationsTotal.WithLabelValues(txType, result).Inc()
}

func RecordOrdersExpired(n int64) {
	OrdersExpiredTotal.Add(float64(n))
}

func RecordOutboxMessage(result string) {
	OutboxMessagesTotal.WithLabelValues(result).Inc()
}

func RecordLedgerEventArchived(result string) {
	LedgerEventsArchivedTotal.WithLabelValues(result).Inc()
}

func SetWorkerPoolRunning(n int) {
	WorkerPoolRunning.Set(float64(n))
}
