package testutil

import (
	"context"
	"sync"

	"github.com/c360/netstreams/alert"
)

// MockNotifier records notifications. It satisfies alert.Notifier.
type MockNotifier struct {
	mu   sync.Mutex
	sent []alert.Notification
	err  error
}

// NewMockNotifier creates a notifier that accepts everything.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// SetError makes Send fail with err. A nil err restores success.
func (n *MockNotifier) SetError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *MockNotifier) Send(_ context.Context, notification alert.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

// Sent returns the delivered notifications in order.
func (n *MockNotifier) Sent() []alert.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alert.Notification(nil), n.sent...)
}

// AlertCall is one recorded NotifyError call.
type AlertCall struct {
	Key string
	Err error
}

// MockAlerter records NotifyError calls without any windowing. It
// satisfies the Alerter interfaces of dispatcher, exporter and engine.
type MockAlerter struct {
	mu    sync.Mutex
	calls []AlertCall
}

// NewMockAlerter creates an empty alerter.
func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

func (a *MockAlerter) NotifyError(key string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, AlertCall{Key: key, Err: err})
}

// Calls returns every recorded call in order.
func (a *MockAlerter) Calls() []AlertCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AlertCall(nil), a.calls...)
}

// Count returns how many calls used key.
func (a *MockAlerter) Count(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.Key == key {
			n++
		}
	}
	return n
}
