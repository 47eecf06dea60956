package objectstore

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/netstreams/metric"
)

// storeMetrics holds Prometheus metrics for ObjectStore operations.
type storeMetrics struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	bytesWritten prometheus.Counter
	storageBytes prometheus.Gauge
}

func newStoreMetrics(registry *metric.MetricsRegistry, bucket string) (*storeMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"bucket": bucket}
	m := &storeMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "netstreams",
			Subsystem:   "objectstore",
			Name:        "operations_total",
			Help:        "Total number of object store operations",
			ConstLabels: labels,
		}, []string{"operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "netstreams",
			Subsystem:   "objectstore",
			Name:        "operation_duration_seconds",
			Help:        "Object store operation duration in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "netstreams",
			Subsystem:   "objectstore",
			Name:        "operation_errors_total",
			Help:        "Total number of object store operation errors",
			ConstLabels: labels,
		}, []string{"operation"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "netstreams",
			Subsystem:   "objectstore",
			Name:        "written_bytes_total",
			Help:        "Total bytes written",
			ConstLabels: labels,
		}),
		storageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "netstreams",
			Subsystem:   "objectstore",
			Name:        "storage_bytes",
			Help:        "Storage bytes used by the bucket",
			ConstLabels: labels,
		}),
	}

	prefix := "objectstore_" + bucket
	if err := registry.RegisterCounterVec(prefix, "operations", m.operations); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(prefix, "latency", m.latency); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "written_bytes", m.bytesWritten); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "storage_bytes", m.storageBytes); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *storeMetrics) record(operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation).Inc()
	m.latency.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		m.errors.WithLabelValues(operation).Inc()
	}
}

func (m *storeMetrics) recordWritten(n int) {
	if m != nil {
		m.bytesWritten.Add(float64(n))
	}
}

func (m *storeMetrics) updateStorageBytes(n uint64) {
	if m != nil {
		m.storageBytes.Set(float64(n))
	}
}
