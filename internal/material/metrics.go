package material

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for material collection.
type Metrics struct {
	GatherTotal    *prometheus.CounterVec
	GatherDuration *prometheus.HistogramVec
}

// NewMetrics registers the collector metrics once per process.
//
//   - corethink_material_gather_total{kind,outcome}
//   - corethink_material_gather_duration_seconds{kind}
//
// outcome is one of local, augmented, timeout, error, disabled, unsupported.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			GatherTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "corethink_material_gather_total",
					Help: "Material gathers by kind and outcome",
				},
				[]string{"kind", "outcome"},
			),
			GatherDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "corethink_material_gather_duration_seconds",
					Help:    "Time spent gathering one material kind",
					Buckets: []float64{.005, .025, .1, .5, 1, 2, 5, 10, 20},
				},
				[]string{"kind"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observe(e Entry) {
	if m == nil {
		return
	}
	outcome := string(e.Source)
	if e.Degradation != nil {
		outcome = string(e.Degradation.Reason)
	}
	m.GatherTotal.WithLabelValues(string(e.Kind), outcome).Inc()
	m.GatherDuration.WithLabelValues(string(e.Kind)).Observe(e.Elapsed.Seconds())
}
