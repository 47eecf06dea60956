// Package objectstore implements storage.Store on a NATS JetStream
// ObjectStore bucket.
//
// Open creates the bucket if it does not exist (through any Provider, in
// production *natsclient.Client) and returns a Store. NewStore wraps a
// bucket that is already open, which is how the unit tests inject an
// in-memory Bucket.
//
// Errors follow the errors package classification: broker and network
// failures are transient and wrap errors.ErrStorageUnavailable on Put so the
// exporter can retain the batch, while a missing key is invalid and wraps
// errors.ErrKeyNotFound.
//
// Usage:
//
//	store, err := objectstore.Open(ctx, natsClient, objectstore.Config{
//		Bucket: "TELEMETRY_EXPORT",
//	}, objectstore.WithMetrics(registry), objectstore.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	err = store.Put(ctx, "telemetry/node/2026/10/19/12/<uuid>.parquet", data)
package objectstore
