package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Checkout orders created, by provider and whether they were mocked",
		},
		[]string{"provider", "mock"},
	)

	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_payment_verifications_total",
			Help: "Payment verification outcomes: enrolled, already_enrolled, failed",
		},
		[]string{"outcome"},
	)

	LedgerCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_instructor_credit_minor_units_total",
		Help: "Instructor share credited from course sales, in minor units",
	})

	PayoutTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Payout state transitions by resulting status",
		},
		[]string{"status"},
	)

	WalletDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_wallet_drift_instructors",
		Help: "Instructors whose wallet balance differs from their ledger sum at the last reconciliation",
	})
)
