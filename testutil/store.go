package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360/netstreams/errors"
)

// MockStore is an in-memory storage.Store with failure injection.
// Thread-safe for concurrent use from multiple goroutines.
type MockStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	putErr   error
	failPuts int
	puts     int
	putDelay time.Duration
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

// FailPuts makes the next n Put calls return err. n < 0 fails every Put
// until FailPuts is called again.
func (s *MockStore) FailPuts(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPuts = n
	s.putErr = err
}

// SetPutDelay makes every Put wait d before it stores, or until ctx ends.
func (s *MockStore) SetPutDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putDelay = d
}

func (s *MockStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	delay := s.putDelay
	s.mu.RUnlock()
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++
	if s.failPuts != 0 {
		if s.failPuts > 0 {
			s.failPuts--
		}
		return s.putErr
	}
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *MockStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key), "MockStore", "Get", "lookup")
	}
	return append([]byte(nil), val...), nil
}

func (s *MockStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MockStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns every stored key in order.
func (s *MockStore) Keys() []string {
	keys, _ := s.List(context.Background(), "")
	return keys
}

// PutCalls returns the number of Put calls, failed ones included.
func (s *MockStore) PutCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
