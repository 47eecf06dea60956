package alert

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/metric"
)

// Config controls deduplication and delivery.
type Config struct {
	// Window is the deduplication window per condition key
	Window time.Duration
	// Immediate sends the first occurrence of each window at once
	Immediate bool
	// QueueSize bounds notifications awaiting delivery
	QueueSize int
	// RatePerMinute caps outbound notifications; zero disables the cap
	RatePerMinute int
	// MaxDeliveryAttempts per notification
	MaxDeliveryAttempts int
	// SendTimeout bounds each delivery attempt
	SendTimeout time.Duration
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		Window:              5 * time.Minute,
		QueueSize:           256,
		RatePerMinute:       60,
		MaxDeliveryAttempts: 2,
		SendTimeout:         5 * time.Second,
	}
}

// window tracks one condition key between its first occurrence and expiry.
type window struct {
	opened    time.Time
	firstSeen time.Time
	lastSeen  time.Time
	count     int
	detail    string
	critical  bool
	attrs     attributes
}

// attributes of the latest occurrence in a window.
type attributes struct {
	component string
	errorType string
	batchID   string
}

func describe(key string, err error) attributes {
	a := attributes{component: Class(key)}
	if err == nil {
		return a
	}
	a.errorType = errors.Classify(err).String()
	var ce *errors.ClassifiedError
	if stderrors.As(err, &ce) && ce.Component != "" {
		a.component = ce.Component
	}
	var batched interface{ BatchID() string }
	if stderrors.As(err, &batched) {
		a.batchID = batched.BatchID()
	}
	return a
}

// Gate deduplicates condition reports and delivers at most one notification
// per condition key per window. Notify never blocks on delivery.
type Gate struct {
	cfg      Config
	notifier Notifier
	logger   *slog.Logger
	metrics  *metric.Metrics
	now      func() time.Time
	limiter  *rate.Limiter

	mu      sync.Mutex
	windows map[string]*window
	closed  bool
	started bool

	queue         chan Notification
	stopSweep     chan struct{}
	sweepDone     chan struct{}
	deliverDone   chan struct{}
	deliverCtx    context.Context
	cancelDeliver context.CancelFunc
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records sent and suppressed notifications.
func WithMetrics(m *metric.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate creates a gate delivering to notifier.
func NewGate(cfg Config, notifier Notifier, opts ...Option) (*Gate, error) {
	if notifier == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gate", "NewGate", "notifier is nil")
	}
	if cfg.Window <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Gate", "NewGate", "window must be positive")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = DefaultConfig().MaxDeliveryAttempts
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultConfig().SendTimeout
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
		burst = cfg.RatePerMinute
	}

	g := &Gate{
		cfg:      cfg,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
		limiter:  rate.NewLimiter(limit, burst),
		windows:  make(map[string]*window),
		queue:    make(chan Notification, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "alert_gate")
	return g, nil
}

// Start launches the expiry sweeper and the delivery worker.
func (g *Gate) Start(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Gate", "Start", "gate closed")
	}
	if g.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Gate", "Start", "gate running")
	}
	g.started = true

	// Delivery outlives the caller's context so Close can drain summaries
	g.deliverCtx, g.cancelDeliver = context.WithCancel(context.Background())
	g.stopSweep = make(chan struct{})
	g.sweepDone = make(chan struct{})
	g.deliverDone = make(chan struct{})

	go g.sweepLoop()
	go g.deliverLoop()
	return nil
}

// Notify records one occurrence of key. It never blocks on delivery.
func (g *Gate) Notify(key, detail string) {
	g.record(key, detail, false, describe(key, nil))
}

// NotifyError records err under key; fatal errors mark the notification
// critical.
func (g *Gate) NotifyError(key string, err error) {
	if err == nil {
		return
	}
	g.record(key, err.Error(), errors.IsFatal(err), describe(key, err))
}

func (g *Gate) record(key, detail string, critical bool, attrs attributes) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		g.logger.Debug("Dropping alert after close", "condition", key)
		return
	}

	w, ok := g.windows[key]
	if ok && now.Sub(w.opened) >= g.cfg.Window {
		// Expired but not yet swept: close it before this occurrence opens the next
		delete(g.windows, key)
		if w.count > 0 {
			g.enqueueLocked(g.notification(key, w, w.count, now))
		}
		ok = false
	}
	if ok {
		w.count++
		w.lastSeen = now
		w.detail = detail
		w.critical = w.critical || critical
		w.attrs = attrs
		g.metrics.RecordAlertSuppressed(key)
		return
	}

	w = &window{opened: now, firstSeen: now, lastSeen: now, detail: detail, critical: critical, attrs: attrs}
	g.windows[key] = w

	if !g.cfg.Immediate {
		w.count = 1
		return
	}
	g.enqueueLocked(g.notification(key, w, 1, now))
}

func (g *Gate) notification(key string, w *window, count int, now time.Time) Notification {
	severity := SeverityWarning
	if w.critical {
		severity = SeverityCritical
	}
	return Notification{
		Condition: key,
		Detail:    w.detail,
		Count:     count,
		Severity:  severity,
		Component: w.attrs.component,
		ErrorType: w.attrs.errorType,
		BatchID:   w.attrs.batchID,
		FirstSeen: w.firstSeen,
		LastSeen:  w.lastSeen,
		Timestamp: now,
	}
}

// enqueueLocked hands a notification to the delivery worker, dropping it if
// the queue is full. Callers hold g.mu.
func (g *Gate) enqueueLocked(n Notification) {
	select {
	case g.queue <- n:
	default:
		g.logger.Warn("Alert queue full, dropping notification",
			"condition", n.Condition, "count", n.Count)
		g.metrics.RecordAlertSent(n.Condition, false)
	}
}

// sweep emits summaries for windows that expired at now and forgets them.
func (g *Gate) sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, w := range g.windows {
		if now.Sub(w.opened) < g.cfg.Window {
			continue
		}
		delete(g.windows, key)
		if w.count > 0 {
			g.enqueueLocked(g.notification(key, w, w.count, now))
		}
	}
}

func (g *Gate) sweepInterval() time.Duration {
	interval := g.cfg.Window / 10
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

func (g *Gate) sweepLoop() {
	defer close(g.sweepDone)

	ticker := time.NewTicker(g.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-g.stopSweep:
			return
		case <-ticker.C:
			g.sweep(g.now())
		}
	}
}

func (g *Gate) deliverLoop() {
	defer close(g.deliverDone)

	for n := range g.queue {
		g.deliver(n)
	}
}

func (g *Gate) deliver(n Notification) {
	if err := g.limiter.Wait(g.deliverCtx); err != nil {
		g.logger.Warn("Alert rate limit wait aborted, dropping notification",
			"condition", n.Condition, "error", err)
		g.metrics.RecordAlertSent(n.Condition, false)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxDeliveryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(g.deliverCtx, g.cfg.SendTimeout)
		lastErr = g.notifier.Send(ctx, n)
		cancel()

		if lastErr == nil {
			g.metrics.RecordAlertSent(n.Condition, true)
			return
		}
		if stderrors.Is(lastErr, context.Canceled) || errors.IsInvalid(lastErr) {
			break
		}
	}

	g.logger.Error("Alert delivery failed",
		"condition", n.Condition, "count", n.Count, "error", lastErr)
	g.metrics.RecordAlertSent(n.Condition, false)
}

// Pending returns the number of open condition windows.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.windows)
}

// Close emits summaries for every open window and waits for queued
// notifications to be delivered, giving up when ctx expires.
func (g *Gate) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	started := g.started
	g.mu.Unlock()

	if started {
		close(g.stopSweep)
		<-g.sweepDone
	}

	// Nothing else enqueues once closed is set and the sweeper is gone
	now := g.now()
	g.mu.Lock()
	for key, w := range g.windows {
		if w.count > 0 {
			g.enqueueLocked(g.notification(key, w, w.count, now))
		}
	}
	g.windows = make(map[string]*window)
	g.mu.Unlock()
	close(g.queue)

	if !started {
		if n := len(g.queue); n > 0 {
			g.logger.Warn("Gate closed before start, discarding notifications", "count", n)
		}
		return nil
	}

	select {
	case <-g.deliverDone:
		g.cancelDeliver()
		return nil
	case <-ctx.Done():
		g.cancelDeliver()
		<-g.deliverDone
		return errors.Wrap(ctx.Err(), "Gate", "Close", "drain notifications")
	}
}
