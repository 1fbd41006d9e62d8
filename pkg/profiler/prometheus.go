package profiler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder is the production Recorder, exporting chunk-loop
// operation counts, error counts and duration histograms so the
// event-console's companion dashboard can alert on real-time overruns.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusRecorder registers its collectors on reg and returns a ready
// Recorder. Callers typically pass prometheus.NewRegistry() so the engine's
// metrics don't collide with a host application's default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wavelang",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Count of engine operations by status.",
		}, []string{"operation", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wavelang",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Count of engine soft failures by kind.",
		}, []string{"operation", "kind"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wavelang",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
		}, []string{"operation"}),
	}
	reg.MustRegister(r.operations, r.errors, r.durations)
	return r
}

func (r *PrometheusRecorder) RecordOperation(operation, status string) {
	r.operations.WithLabelValues(operation, status).Inc()
}

func (r *PrometheusRecorder) RecordDuration(operation string, seconds float64) {
	r.durations.WithLabelValues(operation).Observe(seconds)
}

func (r *PrometheusRecorder) RecordError(operation, kind string) {
	r.errors.WithLabelValues(operation, kind).Inc()
}
