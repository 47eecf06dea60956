package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/netstreams/metric"
)

// engineMetrics holds Prometheus metrics for engine lifecycle and shutdown.
type engineMetrics struct {
	starts       *prometheus.CounterVec // By status (success/failure)
	stopDuration prometheus.Histogram
	running      prometheus.Gauge
	inFlight     prometheus.Gauge
	// shutdownLoss counts work abandoned at shutdown, by unit (envelopes/records)
	shutdownLoss *prometheus.CounterVec
}

// newEngineMetrics creates and registers engine metrics with the provided registry.
func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &engineMetrics{
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstreams",
			Subsystem: "engine",
			Name:      "starts_total",
			Help:      "Engine start attempts",
		}, []string{"status"}),

		stopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netstreams",
			Subsystem: "engine",
			Name:      "stop_duration_seconds",
			Help:      "Time spent draining and stopping the engine",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 15.0, 30.0, 60.0},
		}),

		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netstreams",
			Subsystem: "engine",
			Name:      "running",
			Help:      "1 while the engine accepts input",
		}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netstreams",
			Subsystem: "engine",
			Name:      "in_flight_messages",
			Help:      "Input messages queued or being dispatched",
		}),

		shutdownLoss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netstreams",
			Subsystem: "engine",
			Name:      "shutdown_loss_total",
			Help:      "Work not completed when shutdown finished",
		}, []string{"unit"}),
	}

	if err := registry.RegisterCounterVec("engine", "starts", m.starts); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("engine", "stop_duration", m.stopDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "running", m.running); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "in_flight", m.inFlight); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "shutdown_loss", m.shutdownLoss); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *engineMetrics) recordStart(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.starts.WithLabelValues(status).Inc()
	if success {
		m.running.Set(1)
	}
}

func (m *engineMetrics) recordStop(seconds float64, lostEnvelopes, lostRecords int) {
	if m == nil {
		return
	}
	m.running.Set(0)
	m.stopDuration.Observe(seconds)
	m.shutdownLoss.WithLabelValues("messages").Add(float64(lostEnvelopes))
	m.shutdownLoss.WithLabelValues("records").Add(float64(lostRecords))
}

func (m *engineMetrics) addInFlight(delta float64) {
	if m != nil {
		m.inFlight.Add(delta)
	}
}
