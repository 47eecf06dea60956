package storage

import "context"

// Store is a durable key-value backend for binary objects.
//
// Keys are "/"-separated hierarchical paths. Implementations must be safe
// for concurrent use.
type Store interface {
	// Put stores data at key. An existing key is replaced.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the data stored at key, or an error wrapping
	// errors.ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns the keys starting with prefix in lexicographic order.
	// An empty prefix lists every key.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
