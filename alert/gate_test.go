package alert

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/netstreams/errors"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	calls atomic.Int32
	err   error
}

func (r *recordingNotifier) Send(_ context.Context, n Notification) error {
	r.calls.Add(1)
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func newTestGate(t *testing.T, cfg Config, notifier Notifier) (*Gate, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	g, err := NewGate(cfg, notifier, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))
	return g, clock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Window = time.Hour
	cfg.RatePerMinute = 0
	return cfg
}

func closeGate(t *testing.T, g *Gate) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Close(ctx))
}

func TestGate_TenOccurrencesOneNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	g, clock := newTestGate(t, testConfig(), notifier)

	for i := 0; i < 10; i++ {
		g.Notify("parse_error:unknown_path", fmt.Sprintf("entry %d", i))
		clock.Advance(time.Minute)
	}
	g.sweep(clock.Advance(time.Hour))
	assert.Equal(t, 0, g.Pending())

	closeGate(t, g)

	sent := notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, "parse_error:unknown_path", sent[0].Condition)
	assert.Equal(t, 10, sent[0].Count)
	assert.Equal(t, "entry 9", sent[0].Detail)
	assert.Equal(t, SeverityWarning, sent[0].Severity)
	assert.True(t, sent[0].LastSeen.After(sent[0].FirstSeen))
}

func TestGate_TwoWindowsTwoNotifications(t *testing.T) {
	notifier := &recordingNotifier{}
	g, clock := newTestGate(t, testConfig(), notifier)

	for i := 0; i < 5; i++ {
		g.Notify("sink_failure:topic", "publish failed")
	}
	g.sweep(clock.Advance(time.Hour))

	clock.Advance(time.Second)
	for i := 0; i < 3; i++ {
		g.Notify("sink_failure:topic", "publish failed")
	}
	g.sweep(clock.Advance(time.Hour))

	closeGate(t, g)

	sent := notifier.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, 5, sent[0].Count)
	assert.Equal(t, 3, sent[1].Count)
}

func TestGate_ExpiredWindowClosedByNextOccurrence(t *testing.T) {
	notifier := &recordingNotifier{}
	g, clock := newTestGate(t, testConfig(), notifier)

	for i := 0; i < 3; i++ {
		g.Notify("sink_failure:topic", "publish failed")
	}
	// No sweep runs between the expiry and the next occurrence
	clock.Advance(time.Hour)
	g.Notify("sink_failure:topic", "publish failed again")
	assert.Equal(t, 1, g.Pending())

	closeGate(t, g)

	sent := notifier.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, 3, sent[0].Count)
	assert.Equal(t, "publish failed", sent[0].Detail)
	assert.Equal(t, 1, sent[1].Count)
	assert.Equal(t, "publish failed again", sent[1].Detail)
}

func TestGate_NotificationAttributes(t *testing.T) {
	notifier := &recordingNotifier{}
	g, clock := newTestGate(t, testConfig(), notifier)

	sinkErr := errors.WrapTransient(assert.AnError, "topic.node", "Deliver", "publish")
	g.NotifyError(SinkFailure("topic.node"), WithBatchID(sinkErr, "batch-1"))
	g.NotifyError(ExportOverflow("node"), errors.ErrExportOverflow)
	g.Notify(ExportFailure("node"), "put failed")
	g.sweep(clock.Advance(time.Hour))
	closeGate(t, g)

	byCondition := map[string]Notification{}
	for _, n := range notifier.notifications() {
		byCondition[n.Condition] = n
	}
	require.Len(t, byCondition, 3)

	sink := byCondition[SinkFailure("topic.node")]
	assert.Equal(t, "topic.node", sink.Component)
	assert.Equal(t, "transient", sink.ErrorType)
	assert.Equal(t, "batch-1", sink.BatchID)

	overflow := byCondition[ExportOverflow("node")]
	assert.Equal(t, "export_overflow", overflow.Component)
	assert.Equal(t, "fatal", overflow.ErrorType)
	assert.Equal(t, SeverityCritical, overflow.Severity)
	assert.Empty(t, overflow.BatchID)

	failure := byCondition[ExportFailure("node")]
	assert.Equal(t, "export_failure", failure.Component)
	assert.Empty(t, failure.ErrorType)
}

func TestGate_SweepBeforeExpiryKeepsWindow(t *testing.T) {
	notifier := &recordingNotifier{}
	g, clock := newTestGate(t, testConfig(), notifier)

	g.Notify("export_failure:node", "put failed")
	g.sweep(clock.Advance(59 * time.Minute))
	assert.Equal(t, 1, g.Pending())
	assert.Empty(t, notifier.notifications())

	closeGate(t, g)

	sent := notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].Count)
}

func TestGate_DistinctKeysIndependent(t *testing.T) {
	notifier := &recordingNotifier{}
	g, clock := newTestGate(t, testConfig(), notifier)

	g.Notify("a", "x")
	g.Notify("b", "y")
	g.Notify("a", "x")
	g.sweep(clock.Advance(time.Hour))
	closeGate(t, g)

	counts := map[string]int{}
	for _, n := range notifier.notifications() {
		counts[n.Condition] = n.Count
	}
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, counts)
}

func TestGate_Immediate(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := testConfig()
	cfg.Immediate = true
	g, clock := newTestGate(t, cfg, notifier)

	g.Notify("a", "first")
	require.Eventually(t, func() bool { return len(notifier.notifications()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, notifier.notifications()[0].Count)

	for i := 0; i < 4; i++ {
		g.Notify("a", "again")
	}
	g.Notify("b", "only once")
	g.sweep(clock.Advance(time.Hour))
	closeGate(t, g)

	sent := notifier.notifications()
	var aCounts []int
	bCount := 0
	for _, n := range sent {
		switch n.Condition {
		case "a":
			aCounts = append(aCounts, n.Count)
		case "b":
			bCount++
			assert.Equal(t, 1, n.Count)
		}
	}
	assert.Equal(t, []int{1, 4}, aCounts)
	assert.Equal(t, 1, bCount)
}

func TestGate_WindowExpiresOnTicker(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := testConfig()
	cfg.Window = 50 * time.Millisecond

	g, err := NewGate(cfg, notifier)
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))
	defer closeGate(t, g)

	g.Notify("a", "x")
	g.Notify("a", "x")
	g.Notify("a", "x")

	require.Eventually(t, func() bool { return len(notifier.notifications()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, notifier.notifications()[0].Count)
}

func TestGate_DeliveryFailureBoundedAttempts(t *testing.T) {
	notifier := &recordingNotifier{err: stderrors.New("connection refused")}
	cfg := testConfig()
	cfg.MaxDeliveryAttempts = 2
	g, clock := newTestGate(t, cfg, notifier)

	g.Notify("a", "x")
	g.sweep(clock.Advance(time.Hour))
	closeGate(t, g)

	assert.Equal(t, int32(2), notifier.calls.Load())
}

type blockingNotifier struct {
	release chan struct{}
}

func (b *blockingNotifier) Send(ctx context.Context, _ Notification) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestGate_NotifyDoesNotBlockOnSlowNotifier(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{})}
	cfg := testConfig()
	cfg.Immediate = true
	cfg.QueueSize = 2
	g, _ := newTestGate(t, cfg, notifier)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			g.Notify(fmt.Sprintf("key-%d", i), "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on delivery")
	}

	close(notifier.release)
	closeGate(t, g)
}

func TestGate_RateLimitedCloseHonoursContext(t *testing.T) {
	notifier := &recordingNotifier{}
	cfg := testConfig()
	cfg.RatePerMinute = 1
	g, clock := newTestGate(t, cfg, notifier)

	g.Notify("a", "x")
	g.Notify("b", "y")
	g.sweep(clock.Advance(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := g.Close(ctx)
	assert.Error(t, err)
	assert.Len(t, notifier.notifications(), 1)
}

func TestGate_NotifyErrorSeverity(t *testing.T) {
	notifier := &recordingNotifier{}
	g, _ := newTestGate(t, testConfig(), notifier)

	g.NotifyError("export_overflow:node", errors.WrapFatal(errors.ErrExportOverflow, "Exporter", "retain", "drop batch"))
	g.NotifyError("ignored", nil)
	closeGate(t, g)

	sent := notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, SeverityCritical, sent[0].Severity)
}

func TestGate_NotifyAfterCloseDropped(t *testing.T) {
	notifier := &recordingNotifier{}
	g, _ := newTestGate(t, testConfig(), notifier)
	closeGate(t, g)

	g.Notify("a", "late")
	assert.Equal(t, 0, g.Pending())
	assert.NoError(t, g.Close(context.Background()))
}

func TestGate_StartTwice(t *testing.T) {
	g, _ := newTestGate(t, testConfig(), &recordingNotifier{})
	defer closeGate(t, g)
	assert.ErrorIs(t, g.Start(context.Background()), errors.ErrAlreadyStarted)
}

func TestNewGate_Validation(t *testing.T) {
	_, err := NewGate(testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Window = 0
	_, err = NewGate(cfg, &recordingNotifier{})
	assert.Error(t, err)
}

func TestGate_SweepInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Window = 20 * time.Millisecond
	g, err := NewGate(cfg, &recordingNotifier{})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, g.sweepInterval())

	cfg.Window = 5 * time.Minute
	g, err = NewGate(cfg, &recordingNotifier{})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, g.sweepInterval())
}

type capturePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *capturePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNATSNotifier_Send(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNATSNotifier(pub, "netstreams.alerts")
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	err := n.Send(context.Background(), Notification{
		Condition: "sink_failure:topic",
		Detail:    "timeout",
		Count:     3,
		Severity:  SeverityWarning,
		Component: "topic",
		ErrorType: "transient",
		BatchID:   "batch-1",
		FirstSeen: ts,
		LastSeen:  ts,
		Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "netstreams.alerts", pub.subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, "sink_failure:topic", decoded["condition"])
	assert.Equal(t, float64(3), decoded["count"])
	assert.Equal(t, "timeout", decoded["detail"])
	assert.Equal(t, "topic", decoded["component"])
	assert.Equal(t, "transient", decoded["error_type"])
	assert.Equal(t, "batch-1", decoded["batch_id"])
}

func TestNATSNotifier_OmitsUnknownBatch(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewNATSNotifier(pub, "x").Send(context.Background(), Notification{Condition: "a", Component: "a"}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.NotContains(t, decoded, "batch_id")
	assert.NotContains(t, decoded, "error_type")
	assert.Equal(t, "a", decoded["component"])
}

func TestNATSNotifier_PublishFailureTransient(t *testing.T) {
	n := NewNATSNotifier(&capturePublisher{err: stderrors.New("not connected")}, "x")
	err := n.Send(context.Background(), Notification{})
	assert.True(t, errors.IsTransient(err))
}

func TestLogNotifier_Send(t *testing.T) {
	assert.NoError(t, NewLogNotifier(nil).Send(context.Background(), Notification{Condition: "a", Severity: SeverityCritical}))
}

func TestConditionKeys(t *testing.T) {
	assert.Equal(t, "sink_failure:topic.node", SinkFailure("topic.node"))
	assert.Equal(t, "export_failure:node", ExportFailure("node"))
	assert.Equal(t, "export_overflow:address", ExportOverflow("address"))
	assert.Equal(t, "export_overflow", Class(ExportOverflow("address")))
	assert.Equal(t, "shutdown_loss", Class(ShutdownLoss))
	assert.Equal(t, "interface_down:srl1/ethernet-1/1", InterfaceDown("srl1", "ethernet-1/1"))
	assert.Equal(t, "interface_down", Class(InterfaceDown("srl1", "ethernet-1/1")))
}

func TestWithBatchID(t *testing.T) {
	assert.NoError(t, WithBatchID(nil, "b"))
	assert.Same(t, assert.AnError, WithBatchID(assert.AnError, ""))

	err := WithBatchID(errors.WrapInvalid(errors.ErrInterfaceDown, "srl1", "interface", "check"), "b")
	assert.ErrorIs(t, err, errors.ErrInterfaceDown)
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, "b", describe("interface_down:srl1/e1", err).batchID)
}
