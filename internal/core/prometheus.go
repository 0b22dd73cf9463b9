package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports service operation latencies and outcomes
// as Prometheus collectors.
type PrometheusMetricsRecorder struct {
	duration   *prometheus.HistogramVec
	operations *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the service collectors on reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	rec := &PrometheusMetricsRecorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "todoapi",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Latency of todo service operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"operation"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "todoapi",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Todo service operations by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{rec.duration, rec.operations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
	r.operations.WithLabelValues(operation, statusLabel(success)).Inc()
}
