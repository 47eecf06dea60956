// Package worker provides a generic, bounded worker pool.
//
// A Pool runs a fixed number of goroutines that pull work items of type T from
// a bounded channel and hand each to a processor function:
//
//	pool := worker.NewPool[[]telemetry.RawEnvelope](4, 256,
//	    func(ctx context.Context, envs []telemetry.RawEnvelope) error {
//	        d.Dispatch(ctx, envs)
//	        return nil
//	    },
//	    worker.WithMetricsRegistry[[]telemetry.RawEnvelope](registry, "netstreams_dispatch"),
//	)
//
// Submit never blocks and returns ErrQueueFull when the queue is at capacity,
// counting the event in Stats().QueueFull. SubmitContext blocks until space
// frees up, which lets a broker consumer apply backpressure instead of
// dropping input. The engine tries Submit first and falls back to
// SubmitContext, so the queue-full counter shows how often intake stalled.
//
// Stop closes the queue and waits up to the given timeout for workers to drain
// it. If the timeout elapses Stop returns ErrStopTimeout and Pending reports how
// many items were still queued or being processed.
//
// Always-on counters are exposed through Stats; Prometheus metrics are added
// when WithMetricsRegistry is supplied.
package worker
