package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
		callbackOutcomesTotal,
		callbackAnomaliesTotal,
		callbackRedeliveryLookups,
	)
}

var (
	// Count of webhook calls grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): bad_json|authentication|decoding|unknown_status|not_found|conflict|internal
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Count of /api/payment/webhook calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of /api/payment/webhook handler in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"result"},
	)

	// outcome: succeeded|failed|pending|unknown ; result: applied|duplicate|stale|anomaly|unknown|not_found
	callbackOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Authenticated callbacks by mapped outcome and apply result.",
		},
		[]string{"outcome", "result"},
	)

	callbackAnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_anomalies_total",
			Help: "Callbacks that contradicted the stored order, by kind.",
		},
		[]string{"kind"},
	)

	// result: hit (exact redelivery short-circuited) | miss | error (redis unavailable)
	callbackRedeliveryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_redelivery_lookups_total",
			Help: "Seen-signature lookups made before applying a callback.",
		},
		[]string{"result"},
	)
)

func IncCallback(outcome, result string) {
	callbackOutcomesTotal.WithLabelValues(norm(outcome), norm(result)).Inc()
}

func IncCallbackAnomaly(kind string) {
	callbackAnomaliesTotal.WithLabelValues(norm(kind)).Inc()
}

func IncCallbackRedeliveryLookup(result string) {
	callbackRedeliveryLookups.WithLabelValues(norm(result)).Inc()
}
