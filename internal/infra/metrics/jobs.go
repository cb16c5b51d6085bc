package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(outboxDeliveriesTotal, stalePendingOrders) }

var (
	outboxDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_event_deliveries_total",
			Help: "Outbox order event deliveries, labeled by notifier and status.",
		},
		[]string{"notifier", "status"}, // 'sent', 'error', 'gave_up'
	)

	stalePendingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orders_stale_pending",
			Help: "Orders still awaiting a gateway callback past the stale threshold.",
		},
	)
)

func IncOutboxDelivery(notifier, status string) {
	outboxDeliveriesTotal.WithLabelValues(norm(notifier), norm(status)).Inc()
}

func SetStalePendingOrders(n int) {
	stalePendingOrders.Set(float64(n))
}
