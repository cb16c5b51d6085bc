package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentInitiationsTotal,
		gatewayLatencySeconds,
		paymentsRevenueTotal,
	)
}

var (
	// result: initiated|validation|duplicate|rate_limited|gateway_error|internal
	paymentInitiationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_initiations_total",
			Help: "Checkout payment initiations by result.",
		},
		[]string{"result"},
	)

	gatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_latency_seconds",
			Help:    "Latency of outbound payment initiation calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"gateway", "result"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_subunits_total",
			Help: "Verified successful payment value in subunits, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncInitiation(result string) {
	paymentInitiationsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveGatewayCall(gateway string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	gatewayLatencySeconds.WithLabelValues(norm(gateway), result).Observe(d.Seconds())
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
