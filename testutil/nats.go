package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// MockPublisher is an in-memory broker publisher for testing.
// It satisfies the Publish and PublishToStream methods of natsclient.Client.
// Thread-safe for concurrent use from multiple goroutines.
type MockPublisher struct {
	mu       sync.RWMutex
	messages map[string][][]byte
	failures map[string]error
	closed   bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		messages: make(map[string][][]byte),
		failures: make(map[string]error),
	}
}

// Publish records data on subject (matches natsclient.Client signature).
func (p *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publisher is closed")
	}
	if err, ok := p.failures[subject]; ok {
		return err
	}

	// Copy the payload, callers may reuse their buffer
	p.messages[subject] = append(p.messages[subject], append([]byte(nil), data...))
	return nil
}

// PublishToStream records data on subject (matches natsclient.Client signature).
func (p *MockPublisher) PublishToStream(ctx context.Context, subject string, data []byte) error {
	return p.Publish(ctx, subject, data)
}

// FailSubject makes every publish to subject return err. A nil err clears it.
func (p *MockPublisher) FailSubject(subject string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, subject)
		return
	}
	p.failures[subject] = err
}

// GetMessages returns all messages for a subject.
func (p *MockPublisher) GetMessages(subject string) [][]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()

	msgs := p.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// GetMessageCount returns the number of messages on a subject.
func (p *MockPublisher) GetMessageCount(subject string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages[subject])
}

// Close closes the mock publisher.
func (p *MockPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// MockMessage is a broker message for intake tests. It satisfies
// natsclient.Message and records how it was settled.
type MockMessage struct {
	subject string
	data    []byte

	mu     sync.Mutex
	acks   int
	naks   int
	terms  int
	settle chan struct{}
	once   sync.Once
}

// NewMockMessage creates a message carrying data.
func NewMockMessage(subject string, data []byte) *MockMessage {
	return &MockMessage{subject: subject, data: data, settle: make(chan struct{})}
}

func (m *MockMessage) Data() []byte    { return m.data }
func (m *MockMessage) Subject() string { return m.subject }

func (m *MockMessage) Ack() error {
	m.mu.Lock()
	m.acks++
	m.mu.Unlock()
	m.once.Do(func() { close(m.settle) })
	return nil
}

func (m *MockMessage) Nak() error {
	m.mu.Lock()
	m.naks++
	m.mu.Unlock()
	m.once.Do(func() { close(m.settle) })
	return nil
}

func (m *MockMessage) Term() error {
	m.mu.Lock()
	m.terms++
	m.mu.Unlock()
	m.once.Do(func() { close(m.settle) })
	return nil
}

// Counts returns how many times the message was acked, naked and terminated.
func (m *MockMessage) Counts() (acks, naks, terms int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acks, m.naks, m.terms
}

// WaitSettled waits until the message is acked, naked or terminated.
func (m *MockMessage) WaitSettled(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-m.settle:
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for message on %s to be settled", m.subject)
	}
}

// AssertNoMessages checks that no messages were published on a subject.
func AssertNoMessages(t *testing.T, p *MockPublisher, subject string) {
	t.Helper()

	if n := p.GetMessageCount(subject); n > 0 {
		t.Fatalf("expected no messages on subject %s, got %d", subject, n)
	}
}
