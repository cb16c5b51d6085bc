package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register queues collectors from each file's init; nothing is exported until MustRegister.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister installs the storefront collectors into reg, or the default registry when reg
// is nil. Only the first call has an effect.
func MustRegister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	once.Do(func() {
		reg.MustRegister(collectors...)
	})
}

// norm keeps label values low-cardinality friendly.
func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
