// Package errors classifies failures in the telemetry pipeline.
//
// Every error that crosses a component boundary falls into one of three classes:
//
//   - Transient: broker or object store hiccups, timeouts. Sink deliveries retry these.
//   - Invalid: malformed envelopes, unknown paths, missing keys. Never retried; the entry is skipped.
//   - Fatal: conditions that lose data (retained export batch dropped, shutdown drain
//     timed out) or that prevent startup (invalid configuration).
//
// Wrapping follows a single format so that logs can be grepped by component:
//
//	"component.method: action failed: %w"
//
// Use the class-aware helpers to attach a classification:
//
//	errors.WrapTransient(err, "TopicSink", "Deliver", "publish record")
//	errors.WrapInvalid(err, "Intake", "decode", "validate envelope")
//	errors.WrapFatal(errors.ErrExportOverflow, "Exporter", "retain", "retain batch")
//
// Unclassified errors from client libraries are classified by sentinel first and
// by message pattern second; data loss sentinels always win over message patterns,
// so ErrShutdownDrainTimeout is fatal even though its text mentions a timeout.
package errors
