package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netstreams"

// Metrics contains the pipeline metrics shared by intake, dispatcher, exporters and the alert gate.
// All Record methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	EnvelopesReceived *prometheus.CounterVec
	RecordsParsed     *prometheus.CounterVec
	ParseErrors       *prometheus.CounterVec
	SinkDeliveries    *prometheus.CounterVec
	SinkDuration      *prometheus.HistogramVec
	Anomalies         *prometheus.CounterVec
	ExportBatches     *prometheus.CounterVec
	ExportRecords     *prometheus.CounterVec
	ExportRetained    *prometheus.GaugeVec
	AlertsSent        *prometheus.CounterVec
	AlertsSuppressed  *prometheus.CounterVec

	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates the pipeline metrics. They are registered by NewMetricsRegistry.
func NewMetrics() *Metrics {
	return &Metrics{
		EnvelopesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "envelopes_total",
			Help:      "Envelopes read from the input stream",
		}, []string{"status"}),

		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "records_total",
			Help:      "Records produced by the path parser",
		}, []string{"kind"}),

		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "errors_total",
			Help:      "Entries rejected by the path parser",
		}, []string{"reason"}),

		SinkDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deliveries_total",
			Help:      "Record deliveries per sink",
		}, []string{"sink", "status"}),

		SinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "delivery_duration_seconds",
			Help:      "Time to deliver a record to a sink, including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),

		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "anomalies_total",
			Help:      "Records that triggered an anomaly rule",
		}, []string{"rule"}),

		ExportBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "batches_total",
			Help:      "Columnar batch flush attempts",
		}, []string{"kind", "status"}),

		ExportRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "records_total",
			Help:      "Records persisted to object storage",
		}, []string{"kind"}),

		ExportRetained: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "retained_batches",
			Help:      "Failed batches waiting for retry",
		}, []string{"kind"}),

		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sent_total",
			Help:      "Notifications handed to the notifier",
		}, []string{"condition", "status"}),

		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Condition occurrences folded into a window summary",
		}, []string{"condition"}),

		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),

		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Total number of NATS reconnections",
		}),

		NATSCircuitBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "circuit_breaker",
			Help:      "NATS circuit breaker status (0=closed, 1=open)",
		}),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.EnvelopesReceived,
		c.RecordsParsed,
		c.ParseErrors,
		c.SinkDeliveries,
		c.SinkDuration,
		c.Anomalies,
		c.ExportBatches,
		c.ExportRecords,
		c.ExportRetained,
		c.AlertsSent,
		c.AlertsSuppressed,
		c.NATSConnected,
		c.NATSReconnects,
		c.NATSCircuitBreaker,
	}
}

func (c *Metrics) RecordEnvelope(status string) {
	if c == nil {
		return
	}
	c.EnvelopesReceived.WithLabelValues(status).Inc()
}

func (c *Metrics) RecordParsed(kind string) {
	if c == nil {
		return
	}
	c.RecordsParsed.WithLabelValues(kind).Inc()
}

func (c *Metrics) RecordParseError(reason string) {
	if c == nil {
		return
	}
	c.ParseErrors.WithLabelValues(reason).Inc()
}

// RecordDelivery counts one (record, sink) delivery and its total latency.
func (c *Metrics) RecordDelivery(sink string, ok bool, duration time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	c.SinkDeliveries.WithLabelValues(sink, status).Inc()
	c.SinkDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

func (c *Metrics) RecordAnomaly(rule string) {
	if c == nil {
		return
	}
	c.Anomalies.WithLabelValues(rule).Inc()
}

// RecordExport counts a flush attempt; records is only added on success.
func (c *Metrics) RecordExport(kind string, ok bool, records int) {
	if c == nil {
		return
	}
	if ok {
		c.ExportBatches.WithLabelValues(kind, "success").Inc()
		c.ExportRecords.WithLabelValues(kind).Add(float64(records))
		return
	}
	c.ExportBatches.WithLabelValues(kind, "failed").Inc()
}

func (c *Metrics) RecordRetained(kind string, batches int) {
	if c == nil {
		return
	}
	c.ExportRetained.WithLabelValues(kind).Set(float64(batches))
}

func (c *Metrics) RecordAlertSent(condition string, ok bool) {
	if c == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	c.AlertsSent.WithLabelValues(condition, status).Inc()
}

func (c *Metrics) RecordAlertSuppressed(condition string) {
	if c == nil {
		return
	}
	c.AlertsSuppressed.WithLabelValues(condition).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	if c == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	if c == nil {
		return
	}
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	if c == nil {
		return
	}
	c.NATSCircuitBreaker.Set(float64(state))
}
