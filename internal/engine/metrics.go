package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts engine operations for the /metrics endpoint.
type Metrics struct {
	Operations   *prometheus.CounterVec
	AutoSuspends prometheus.Counter
}

// NewMetrics registers engine counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vpsd",
			Name:      "engine_operations_total",
			Help:      "Lifecycle engine operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		AutoSuspends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vpsd",
			Name:      "auto_suspensions_total",
			Help:      "Instances suspended by the abuse monitor.",
		}),
	}
}
