// Package storage defines the Store interface used to persist exported
// columnar files.
//
// The exporter writes one object per flushed batch and never reads it back,
// so Put is the hot path; Get, List and Delete serve tests, operators and
// retention tooling.
//
// The production backend lives in storage/objectstore and is a NATS
// JetStream ObjectStore bucket. testutil provides an in-memory Store with
// failure injection.
package storage
