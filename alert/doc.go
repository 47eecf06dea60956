// Package alert implements the alert gate: deduplication of failure reports
// by condition key and bounded, asynchronous delivery of notifications.
//
// # Windows
//
// The first report of a key opens a window of Config.Window. Reports inside
// the window only increment the key's counter. When the window expires one
// notification carries the latest detail and the number of reports, and the
// key is forgotten until it is reported again. Ten reports inside one window
// therefore produce a single notification with Count 10.
//
// With Config.Immediate the first report is also sent straight away, and the
// summary at expiry counts only the reports that were held back.
//
// A report that arrives after its window expired but before the sweeper ran
// closes that window first, so the old summary is never merged into the new
// window.
//
// Close emits summaries for every open window, so a shutdown never loses the
// counts gathered so far.
//
// # Delivery
//
// Notify only touches in-memory state. Notifications go through a bounded
// queue to a single delivery goroutine, which applies a global rate limit
// (golang.org/x/time/rate) and at most MaxDeliveryAttempts sends per
// notification. A full queue or an unreachable channel is logged and counted,
// never retried further.
//
// Notifications carry the component, error class and batch ID of the latest
// report. The component comes from the error's ClassifiedError, and the batch
// ID from any error in the chain with a BatchID method (see WithBatchID).
//
// NATSNotifier publishes the JSON form of Notification to a subject;
// LogNotifier writes it to slog.
package alert
