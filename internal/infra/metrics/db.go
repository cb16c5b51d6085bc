package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(orderStorePool, orderStoreEmptyAcquires, orderStoreAcquireWait) }

var (
	orderStorePool = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "order_store_pool_conns",
			Help: "Order store connections by state (max, total, idle, in_use).",
		},
		[]string{"state"},
	)
	orderStoreEmptyAcquires = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "order_store_pool_empty_acquires",
		Help: "Cumulative acquires that had to wait for a free connection.",
	})
	orderStoreAcquireWait = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "order_store_pool_acquire_wait_seconds",
		Help: "Cumulative time spent waiting for a connection.",
	})
)

// PoolSnapshot is a point-in-time copy of the pgx pool counters.
type PoolSnapshot struct {
	Max, Total, Idle, InUse int32
	EmptyAcquires           int64
	AcquireWait             time.Duration
}

func SetDBPoolStats(s PoolSnapshot) {
	orderStorePool.WithLabelValues("max").Set(float64(s.Max))
	orderStorePool.WithLabelValues("total").Set(float64(s.Total))
	orderStorePool.WithLabelValues("idle").Set(float64(s.Idle))
	orderStorePool.WithLabelValues("in_use").Set(float64(s.InUse))
	orderStoreEmptyAcquires.Set(float64(s.EmptyAcquires))
	orderStoreAcquireWait.Set(s.AcquireWait.Seconds())
}
