// Package health aggregates component health for the /health endpoint.
//
// Components register a Check with a Monitor. Each /health request runs every check and
// combines the results:
//
//   - unhealthy if any component is unhealthy
//   - degraded if any component is degraded
//   - healthy otherwise
//
// Only an unhealthy aggregate fails the endpoint. A degraded pipeline, such as
// one whose exporter is retaining batches after store failures, keeps
// serving and reports through alerts instead.
//
//	monitor := health.NewMonitor()
//	monitor.Register("nats", func() health.Status {
//		return health.FromError("nats", client.HealthCheck())
//	})
//	monitor.Register("engine", eng.Health)
//	server := metric.NewServer(port, path, registry, monitor.HealthFunc("netstreams"))
//
// Error messages passed through FromError are stripped of server URLs,
// addresses, file paths and credentials before they are exposed.
package health
