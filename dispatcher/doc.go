// Package dispatcher fans parsed telemetry records out to sinks.
//
// Each envelope is parsed into records and every record is delivered to all
// sinks that accept its kind. Deliveries to different sinks for the same
// record run concurrently and are joined before the next record, so each sink
// sees records in entry order.
//
// Delivery runs under a retry policy with a per-attempt timeout. Only
// transient errors are retried. A delivery that still fails is counted in
// the Report, logged, and raised to the Alerter under the sink_failure:<sink>
// condition. It never stops delivery to other sinks or of later records.
//
// After delivery each record runs through the anomaly rules. The default
// InterfaceDownRule raises interface_down:<node>/<iface> for an interface
// whose oper status is down while it is not administratively disabled. The
// alert gate deduplicates repeats of the same interface.
//
// Two sinks are provided:
//
//	TopicSink     publishes record JSON to a per-kind JetStream subject
//	ExporterSink  hands records to the per-kind batch exporter
//
// Usage:
//
//	d := dispatcher.New(parser.New(), []dispatcher.Sink{topics, exporters},
//	    dispatcher.WithAlerter(gate),
//	    dispatcher.WithMetrics(registry.CoreMetrics()))
//	report := d.Dispatch(ctx, envelopes)
package dispatcher
