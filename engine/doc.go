// Package engine runs the telemetry pipeline: it consumes raw envelopes from
// the input stream, dispatches them through the parser to the sinks and
// owns the startup and shutdown ordering of every stage.
//
// # Architecture
//
//	┌──────────────┐  MessageHandler   ┌──────────┐  work   ┌──────────────┐
//	│ StreamSource │ ────────────────> │  intake  │ ──────> │ worker.Pool  │
//	│  (durable)   │                   │ (Decode) │         │  (Dispatch)  │
//	└──────────────┘                   └────┬─────┘         └──────┬───────┘
//	                                        │ invalid_envelope     │ Ack
//	                                        ▼                      ▼
//	                                   ┌─────────┐         TopicSink, ExporterSink
//	                                   │  Gate   │ <────── sink_failure, export_*
//	                                   └─────────┘
//
// Intake validates each envelope of a message against the envelope schema
// and hands the valid ones to the pool. An invalid envelope is reported and
// skipped while its siblings are still dispatched. Intake never performs
// sink I/O. It tries a non-blocking Submit first and on a full queue falls
// back to a blocking submit, which stops the broker from pushing more than
// MaxAckPending.
//
// # Delivery Semantics
//
// Messages are acknowledged after Dispatch returns, so delivery is
// at-least-once. Malformed payloads are reported and acknowledged since a
// redelivery would fail the same way. Messages refused by a stopping pool
// are negatively acknowledged. Work interrupted by the shutdown grace is
// left unacknowledged and the broker redelivers it to the next run.
//
// # Shutdown
//
// Stop runs the stages in order:
//
//  1. stop intake
//  2. drain the pool within ShutdownGrace (or the ctx deadline, if sooner)
//  3. close the exporters concurrently, flushing partial batches. Exporters
//     run on a context detached from Start's, so this flush still happens
//     when the ctx passed to Start is already cancelled.
//  4. report shutdown_loss if messages or records were left behind
//  5. close the alert gate, emitting summaries for open windows
//
// The loss is also returned as a fatal error wrapping
// errors.ErrShutdownDrainTimeout.
//
// # Usage
//
//	e, err := engine.Build(ctx, cfg, client, registry, logger)
//	if err != nil {
//		return err
//	}
//	if err := e.Start(ctx); err != nil {
//		return err
//	}
//	<-ctx.Done()
//	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+5*time.Second)
//	defer cancel()
//	return e.Stop(stopCtx)
package engine
