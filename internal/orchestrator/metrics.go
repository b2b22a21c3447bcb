package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds orchestrator Prometheus metrics.
type Metrics struct {
	Verdicts   *prometheus.CounterVec
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics registers orchestrator metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Verdicts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "corethink_verdicts_total",
					Help: "Verdicts by disposition and confidence band",
				},
				[]string{"disposition", "confidence"},
			),
			Operations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "corethink_operations_total",
					Help: "Orchestrator operations by name and outcome",
				},
				[]string{"operation", "outcome"},
			),
			Duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "corethink_operation_duration_seconds",
					Help:    "Orchestrator operation latency",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) verdict(v Verdict) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(string(v.Disposition), string(v.Confidence)).Inc()
}

func (m *Metrics) operation(name string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.Operations.WithLabelValues(name, outcome).Inc()
	m.Duration.WithLabelValues(name).Observe(seconds)
}
