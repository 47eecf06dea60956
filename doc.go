// Package netstreams normalizes streaming network telemetry.
//
// Collectors publish path-addressed envelopes such as
// ".node.srl.interface.subinterface.ipv4.address" with identity keys and
// descriptive fields. netstreams consumes them from a JetStream stream,
// routes each entry by path to a typed node, interface or address record,
// and fans every record out to:
//
//   - a per-kind JetStream subject carrying the record as JSON
//   - a per-kind batch exporter writing parquet objects to a NATS object store
//   - an alert gate that deduplicates failures per condition and window
//
// Malformed input and failing sinks are reported and skipped; they never
// stall the stream.
//
// # Packages
//
//   - telemetry: envelopes, records and columnar row schemas
//   - parser: path routing and field coercion
//   - dispatcher: per-record fan-out with bounded retry
//   - exporter: size and interval bounded batching, parquet encoding
//   - alert: condition deduplication and notification delivery
//   - engine: intake, dispatch pool and ordered shutdown
//   - config: layered JSON/YAML configuration with environment overrides
//   - natsclient, storage/objectstore: broker and object store access
//   - metric, health: Prometheus metrics and the /health endpoint
//   - errors, pkg/retry, pkg/worker, pkg/buffer, pkg/timestamp: shared infrastructure
//
// The cmd/netstreams binary wires these together from configuration.
package netstreams
