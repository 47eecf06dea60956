// Package metric provides the Prometheus registry and the metrics HTTP server.
//
// NewMetricsRegistry registers the pipeline metrics (Metrics) together with the Go
// runtime and process collectors. Components record through the nil-safe helpers
// on Metrics:
//
//	m := registry.CoreMetrics()
//	m.RecordParsed("interface")
//	m.RecordDelivery("topic", ok, time.Since(start))
//
// Components with their own collectors register them through MetricsRegistrar.
// Registration is keyed by service and metric name, and a second registration of
// the same key fails with an Invalid-class error.
//
// Server exposes the registry at a configurable path and a /health endpoint
// backed by a HealthFunc:
//
//	server := metric.NewServer(9090, "/metrics", registry, client.HealthCheck)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//	defer server.Stop(ctx)
package metric
