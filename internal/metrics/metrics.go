package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rentescrow"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions.",
		},
		[]string{"from", "to"},
	)

	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Payment gateway calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Payment gateway call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Gateway webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	expiredBookings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_expired_total",
			Help:      "Bookings cancelled by the expiry sweep.",
		},
	)

	ledgerQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_sync_queue_length",
			Help:      "Pending ledger sync tasks.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingTransitions,
			gatewayCalls,
			gatewayLatency,
			webhookDeliveries,
			expiredBookings,
			ledgerQueue,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncTransition(from, to string) {
	bookingTransitions.WithLabelValues(from, to).Inc()
}

// ObserveGateway records one gateway call.
func ObserveGateway(operation, outcome string, took time.Duration) {
	gatewayCalls.WithLabelValues(operation, outcome).Inc()
	gatewayLatency.WithLabelValues(operation).Observe(took.Seconds())
}

func IncWebhook(outcome string) {
	webhookDeliveries.WithLabelValues(outcome).Inc()
}

func AddExpired(n int) {
	expiredBookings.Add(float64(n))
}

func SetLedgerQueue(n int) {
	ledgerQueue.Set(float64(n))
}
