// Package testutil provides in-memory fakes and sample payloads for tests.
//
// Fakes:
//
//   - MockPublisher: records Publish/PublishToStream calls per subject,
//     with per-subject failure injection
//   - MockStore: storage.Store over a map, with Put failure injection
//   - MockNotifier: alert.Notifier that records notifications
//   - MockAlerter: records NotifyError calls, no windowing
//   - MockMessage: broker message that records Ack/Nak/Term
//
// Data:
//
//   - NodeEnvelopeJSON, InterfaceEnvelopeJSON, AddressEnvelopeJSON and
//     MixedEnvelopesJSON as they arrive on the input stream
//   - MalformedPayloads that intake must reject
//   - NodeEnvelope and AddressEnvelope builders
//
// NATS-backed tests use natsclient.NewTestClient (testcontainers) instead.
package testutil
