package objectstore

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/metric"
)

type fakeStatus struct {
	jetstream.ObjectStoreStatus
	size uint64
}

func (s fakeStatus) Size() uint64 { return s.size }

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (b *fakeBucket) PutBytes(_ context.Context, name string, data []byte) (*jetstream.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return nil, b.putErr
	}
	b.objects[name] = append([]byte(nil), data...)
	return &jetstream.ObjectInfo{ObjectMeta: jetstream.ObjectMeta{Name: name}, Size: uint64(len(data))}, nil
}

func (b *fakeBucket) GetBytes(_ context.Context, name string, _ ...jetstream.GetObjectOpt) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, jetstream.ErrObjectNotFound
	}
	return data, nil
}

func (b *fakeBucket) List(_ context.Context, _ ...jetstream.ListObjectsOpt) ([]*jetstream.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.objects) == 0 {
		return nil, jetstream.ErrNoObjectsFound
	}
	infos := make([]*jetstream.ObjectInfo, 0, len(b.objects))
	for name := range b.objects {
		infos = append(infos, &jetstream.ObjectInfo{ObjectMeta: jetstream.ObjectMeta{Name: name}})
	}
	return infos, nil
}

func (b *fakeBucket) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[name]; !ok {
		return jetstream.ErrObjectNotFound
	}
	delete(b.objects, name)
	return nil
}

func (b *fakeBucket) Status(_ context.Context) (jetstream.ObjectStoreStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var size uint64
	for _, data := range b.objects {
		size += uint64(len(data))
	}
	return fakeStatus{size: size}, nil
}

func TestStore_PutGet(t *testing.T) {
	store, err := NewStore(newFakeBucket(), "exports")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "telemetry/node/2026/01/02/03/a.parquet", []byte("PAR1")))

	data, err := store.Get(ctx, "telemetry/node/2026/01/02/03/a.parquet")
	require.NoError(t, err)
	assert.Equal(t, []byte("PAR1"), data)
}

func TestStore_GetMissingKey(t *testing.T) {
	store, err := NewStore(newFakeBucket(), "exports")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
	assert.True(t, errors.IsInvalid(err))
}

func TestStore_PutFailureIsTransient(t *testing.T) {
	bucket := newFakeBucket()
	bucket.putErr = stderrors.New("nats: timeout")
	store, err := NewStore(bucket, "exports")
	require.NoError(t, err)

	err = store.Put(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
}

func TestStore_ListFiltersAndSorts(t *testing.T) {
	store, err := NewStore(newFakeBucket(), "exports")
	require.NoError(t, err)
	ctx := context.Background()

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"t/node/b", "t/address/a", "t/node/a"} {
		require.NoError(t, store.Put(ctx, k, []byte(k)))
	}

	keys, err = store.List(ctx, "t/node/")
	require.NoError(t, err)
	assert.Equal(t, []string{"t/node/a", "t/node/b"}, keys)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	store, err := NewStore(newFakeBucket(), "exports")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestStore_SizeUpdatesMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	store, err := NewStore(newFakeBucket(), "exports", WithMetrics(registry))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", []byte("1234")))
	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), size)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "netstreams_objectstore_storage_bytes" {
			found = true
			assert.Equal(t, float64(4), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestNewStore_NilBucket(t *testing.T) {
	_, err := NewStore(nil, "exports")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Bucket: "b", TTL: -time.Second}.Validate())
	assert.Error(t, Config{Bucket: "b", MaxBytes: -1}.Validate())
}

type fakeProvider struct {
	err error
	cfg jetstream.ObjectStoreConfig
}

func (p *fakeProvider) CreateObjectStore(_ context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error) {
	p.cfg = cfg
	return nil, p.err
}

func TestOpen_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: stderrors.New("connection refused")}
	_, err := Open(context.Background(), provider, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, "TELEMETRY_EXPORT", provider.cfg.Bucket)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), &fakeProvider{}, Config{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
