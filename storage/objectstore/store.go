package objectstore

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/metric"
	"github.com/c360/netstreams/storage"
)

// Bucket is the subset of jetstream.ObjectStore used by Store.
type Bucket interface {
	PutBytes(ctx context.Context, name string, data []byte) (*jetstream.ObjectInfo, error)
	GetBytes(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) ([]byte, error)
	List(ctx context.Context, opts ...jetstream.ListObjectsOpt) ([]*jetstream.ObjectInfo, error)
	Delete(ctx context.Context, name string) error
	Status(ctx context.Context) (jetstream.ObjectStoreStatus, error)
}

// Provider creates or opens ObjectStore buckets; *natsclient.Client
// implements it.
type Provider interface {
	CreateObjectStore(ctx context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error)
}

// Store implements storage.Store on a NATS JetStream ObjectStore bucket.
type Store struct {
	bucket  Bucket
	name    string
	logger  *slog.Logger
	metrics *storeMetrics
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics registers store metrics with registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Store) error {
		m, err := newStoreMetrics(registry, s.name)
		if err != nil {
			return err
		}
		s.metrics = m
		return nil
	}
}

// Open creates the bucket described by cfg if needed and returns a Store on it.
func Open(ctx context.Context, provider Provider, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Store", "Open", "validate config")
	}

	bucket, err := provider.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      cfg.Bucket,
		Description: cfg.Description,
		MaxBytes:    cfg.MaxBytes,
		TTL:         cfg.TTL,
		Replicas:    cfg.Replicas,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Open", "open bucket "+cfg.Bucket)
	}

	return NewStore(bucket, cfg.Bucket, opts...)
}

// NewStore wraps an already opened bucket.
func NewStore(bucket Bucket, name string, opts ...Option) (*Store, error) {
	if bucket == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Store", "NewStore", "bucket is nil")
	}

	s := &Store{
		bucket: bucket,
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "Store", "NewStore", "apply option")
		}
	}
	s.logger = s.logger.With("component", "objectstore", "bucket", name)
	return s, nil
}

// Put stores data at key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	_, err := s.bucket.PutBytes(ctx, key, data)
	s.metrics.record("put", time.Since(start).Seconds(), err)
	if err != nil {
		return errors.WrapTransient(stderrors.Join(errors.ErrStorageUnavailable, err),
			"Store", "Put", "put object "+key)
	}
	s.metrics.recordWritten(len(data))
	s.logger.Debug("Stored object", "key", key, "bytes", len(data))
	return nil
}

// Get returns the data stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.bucket.GetBytes(ctx, key)
	s.metrics.record("get", time.Since(start).Seconds(), err)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "Store", "Get", "get object "+key)
		}
		return nil, errors.WrapTransient(err, "Store", "Get", "get object "+key)
	}
	return data, nil
}

// List returns the keys with the given prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	infos, err := s.bucket.List(ctx)
	if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
		err = nil
	}
	s.metrics.record("list", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "List", "list objects")
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		if strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key; a missing key is ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.bucket.Delete(ctx, key)
	if stderrors.Is(err, jetstream.ErrObjectNotFound) {
		err = nil
	}
	s.metrics.record("delete", time.Since(start).Seconds(), err)
	if err != nil {
		return errors.WrapTransient(err, "Store", "Delete", "delete object "+key)
	}
	return nil
}

// Size reports the bytes used by the bucket and refreshes the storage gauge.
func (s *Store) Size(ctx context.Context) (uint64, error) {
	status, err := s.bucket.Status(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "Store", "Size", "get bucket status")
	}
	size := status.Size()
	s.metrics.updateStorageBytes(size)
	return size, nil
}
