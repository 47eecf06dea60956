// Package natsclient manages the NATS connection used by the pipeline: core
// publish for alert notifications, JetStream streams for envelope intake and
// per-kind topics, and ObjectStore buckets for columnar exports.
//
// # Circuit Breaker
//
// Every broker operation that fails counts toward a circuit breaker. After
// the threshold (default 5) the circuit opens and operations return
// ErrCircuitOpen until the backoff expires, doubling up to the configured
// maximum. A successful operation resets the count.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
//		natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	_, err = client.EnsureStream(ctx, jetstream.StreamConfig{
//		Name:     "TELEMETRY",
//		Subjects: []string{"telemetry.raw"},
//	})
//
// # Consumers
//
// ConsumeDurable hands each message to the handler without acknowledging it.
// The handler calls Ack once the message is processed, Nak to request
// redelivery, or Term to drop it. Unacknowledged messages are redelivered
// after AckWait, which gives at-least-once delivery across restarts.
//
// # Testing
//
// NewTestClient starts a NATS server in a container via testcontainers and
// returns a connected client. Tests that use it carry the integration build
// tag.
package natsclient
