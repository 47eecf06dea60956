// Package exporter batches records of one kind into parquet objects.
//
// Each Exporter owns its batch in a single run loop goroutine. Enqueue
// hands records to the loop over a bounded channel. The batch is cut and
// written when it reaches MaxSize, on every MaxInterval tick, on Flush and
// on Close.
//
// A cut batch is encoded once and given its object key
//
//	<prefix>/<kind>/YYYY/MM/DD/HH/<uuid>.parquet
//
// so retries overwrite the same object. A batch whose Put fails stays in a
// ring of MaxRetainedBatches and is retried, oldest first, before the next
// batch is written. When the ring is full the oldest batch is dropped and
// export_overflow:<kind> is raised with errors.ErrExportOverflow. Every
// failed write also raises export_failure:<kind>.
//
// Close drains the queue, makes a final attempt and reports how many
// records remain unpersisted.
package exporter
