package sandbox

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for sandbox lifecycle operations.
type Metrics struct {
	Operations *prometheus.CounterVec
	Active     prometheus.Gauge
}

// NewMetrics registers sandbox metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Operations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "corethink_sandbox_operations_total",
					Help: "Sandbox operations by op, mechanism and outcome",
				},
				[]string{"op", "mechanism", "outcome"},
			),
			Active: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "corethink_sandbox_active",
				Help: "Sandboxes currently tracked by this process",
			}),
		}
	})
	return globalMetrics
}

func (m *Metrics) record(op string, mech Mechanism, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(op, string(mech), outcome).Inc()
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.Active.Set(float64(n))
}
