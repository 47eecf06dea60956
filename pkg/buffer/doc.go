// Retained export batches use DropOldest so a long object store outage costs the
// oldest data first:
//
//	retained, err := buffer.NewCircularBuffer[*batch](cfg.MaxRetainedBatches,
//	    buffer.WithOverflowPolicy[*batch](buffer.DropOldest),
//	    buffer.WithDropCallback[*batch](e.dropped),
//	    buffer.WithMetrics[*batch](registry, "export_retained_interface"),
//	)
//
// Statistics are always collected and Stats().Summary() snapshots them; the
// exporter logs that snapshot when it stops. Prometheus metrics only with
// WithMetrics.
package buffer
