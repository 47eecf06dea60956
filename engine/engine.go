package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/netstreams/alert"
	"github.com/c360/netstreams/dispatcher"
	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/exporter"
	"github.com/c360/netstreams/health"
	"github.com/c360/netstreams/metric"
	"github.com/c360/netstreams/natsclient"
	"github.com/c360/netstreams/pkg/worker"
	"github.com/c360/netstreams/telemetry"
)

// Gate receives failure reports and owns notification delivery.
// *alert.Gate implements it.
type Gate interface {
	NotifyError(key string, err error)
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config sizes the dispatch pool and bounds shutdown.
type Config struct {
	Workers       int
	QueueSize     int
	ShutdownGrace time.Duration
}

// Dependencies are the collaborators the engine runs.
type Dependencies struct {
	Source     Source
	Dispatcher *dispatcher.Dispatcher
	Exporters  []*exporter.Exporter
	Gate       Gate
	Logger     *slog.Logger
	Metrics    *metric.MetricsRegistry
}

// work is one input message and its decoded envelopes.
type work struct {
	msg       natsclient.Message
	envelopes []telemetry.RawEnvelope
}

// Engine connects intake to the dispatch pool. Intake decodes messages and
// hands them to the pool; pool workers dispatch and then acknowledge.
// Intake never performs sink I/O.
type Engine struct {
	cfg        Config
	source     Source
	dispatcher *dispatcher.Dispatcher
	exporters  []*exporter.Exporter
	gate       Gate
	decoder    *Decoder
	pool       *worker.Pool[work]
	logger     *slog.Logger
	core       *metric.Metrics
	metrics    *engineMetrics

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	runCtx      context.Context
	cancelRun   context.CancelFunc
	stopIntake  func()

	// exporters outlive runCtx so their final flush runs after workers abort
	cancelExport context.CancelFunc

	reportMu sync.Mutex
	report   dispatcher.Report
}

// New creates an engine. Start must be called before messages flow.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.Source == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "source is nil")
	}
	if deps.Dispatcher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "dispatcher is nil")
	}
	if deps.Gate == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "gate is nil")
	}
	if cfg.Workers <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "New", "workers must be positive")
	}
	if cfg.ShutdownGrace <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "New", "shutdown grace must be positive")
	}

	decoder, err := NewDecoder()
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newEngineMetrics(deps.Metrics)
	if err != nil {
		logger.Error("Failed to initialize engine metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	e := &Engine{
		cfg:        cfg,
		source:     deps.Source,
		dispatcher: deps.Dispatcher,
		exporters:  deps.Exporters,
		gate:       deps.Gate,
		decoder:    decoder,
		logger:     logger.With("component", "engine"),
		metrics:    metrics,
		report:     dispatcher.NewReport(),
	}
	if deps.Metrics != nil {
		e.core = deps.Metrics.CoreMetrics()
	}

	var poolOpts []worker.Option[work]
	if deps.Metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[work](deps.Metrics, "dispatch"))
	}
	e.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, e.process, poolOpts...)

	return e, nil
}

// Start launches the gate, exporters and dispatch pool, then begins intake.
func (e *Engine) Start(ctx context.Context) (err error) {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Engine", "Start", "check running state")
	}
	defer func() { e.metrics.recordStart(err == nil) }()

	// Workers run on their own context so Stop can drain after ctx ends
	e.runCtx, e.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	if err := e.gate.Start(e.runCtx); err != nil {
		e.cancelRun()
		return errors.Wrap(err, "Engine", "Start", "start alert gate")
	}
	var exportCtx context.Context
	exportCtx, e.cancelExport = context.WithCancel(context.WithoutCancel(ctx))
	for _, exp := range e.exporters {
		exp.Start(exportCtx)
	}
	if err := e.pool.Start(e.runCtx); err != nil {
		e.cancelRun()
		e.cancelExport()
		return errors.WrapFatal(err, "Engine", "Start", "start dispatch pool")
	}

	stop, err := e.source.Start(ctx, e.handle)
	if err != nil {
		_ = e.pool.Stop(time.Second)
		e.cancelRun()
		e.closeExporters(context.Background())
		e.cancelExport()
		return errors.WrapTransient(err, "Engine", "Start", "start intake")
	}
	e.stopIntake = stop
	e.started = true

	e.logger.Info("Engine started",
		"workers", e.cfg.Workers,
		"queue_size", e.cfg.QueueSize,
		"exporters", len(e.exporters))
	return nil
}

// handle runs on the intake goroutine. It blocks while the pool queue is
// full, which holds back further deliveries from the broker.
func (e *Engine) handle(msg natsclient.Message) {
	decoded, err := e.decoder.Decode(msg.Data())
	if err != nil {
		e.core.RecordEnvelope("invalid")
		e.logger.Warn("Dropping malformed payload", "subject", msg.Subject(), "bytes", len(msg.Data()), "error", err)
		e.gate.NotifyError(alert.InvalidEnvelope, err)
		e.ack(msg)
		return
	}
	for _, rejected := range decoded.Rejected {
		e.core.RecordEnvelope("invalid")
		e.logger.Warn("Dropping malformed envelope", "subject", msg.Subject(), "error", rejected)
		e.gate.NotifyError(alert.InvalidEnvelope, rejected)
	}
	if len(decoded.Envelopes) == 0 {
		e.ack(msg)
		return
	}
	for range decoded.Envelopes {
		e.core.RecordEnvelope("accepted")
	}

	w := work{msg: msg, envelopes: decoded.Envelopes}
	e.metrics.addInFlight(1)
	err = e.pool.Submit(w)
	if stderrors.Is(err, worker.ErrQueueFull) {
		e.logger.Debug("Dispatch queue full, holding intake", "subject", msg.Subject())
		err = e.pool.SubmitContext(e.runCtx, w)
	}
	if err != nil {
		e.metrics.addInFlight(-1)
		// Redelivered by the broker once the engine runs again
		e.logger.Debug("Intake refused message", "subject", msg.Subject(), "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			e.logger.Debug("Nak failed", "error", nakErr)
		}
	}
}

// process runs on a pool worker.
func (e *Engine) process(ctx context.Context, w work) error {
	defer e.metrics.addInFlight(-1)

	report := e.dispatcher.Dispatch(ctx, w.envelopes)

	e.reportMu.Lock()
	e.report.Merge(report)
	e.reportMu.Unlock()

	if ctx.Err() != nil {
		// Dispatch was cut short, let the broker redeliver
		return ctx.Err()
	}
	e.ack(w.msg)
	return nil
}

func (e *Engine) ack(msg natsclient.Message) {
	if err := msg.Ack(); err != nil {
		e.logger.Warn("Ack failed", "subject", msg.Subject(), "error", err)
	}
}

// Report returns the dispatch totals since Start.
func (e *Engine) Report() dispatcher.Report {
	e.reportMu.Lock()
	defer e.reportMu.Unlock()
	var out dispatcher.Report
	out.Merge(e.report)
	return out
}

// Health reports intake, the dispatch queue and each exporter. A full
// queue or retained export batches degrade the engine; it is unhealthy only
// when it is not running.
func (e *Engine) Health() health.Status {
	e.lifecycleMu.Lock()
	started, stopped := e.started, e.stopped
	e.lifecycleMu.Unlock()

	var intake health.Status
	switch {
	case stopped:
		intake = health.NewUnhealthy("intake", "stopped")
	case !started:
		intake = health.NewUnhealthy("intake", "not started")
	default:
		intake = health.NewHealthy("intake", "consuming")
	}

	stats := e.pool.Stats()
	dispatch := health.NewHealthy("dispatch", fmt.Sprintf("%d active, %d queued", stats.Active, stats.QueueDepth))
	if stats.QueueSize > 0 && stats.QueueDepth >= stats.QueueSize {
		dispatch = health.NewDegraded("dispatch", fmt.Sprintf("queue full (%d)", stats.QueueDepth))
	}

	subs := []health.Status{intake, dispatch}
	for _, exp := range e.exporters {
		name := "export:" + exp.Kind().String()
		if n := exp.Retained(); n > 0 {
			subs = append(subs, health.NewDegraded(name, fmt.Sprintf("%d batches awaiting retry", n)))
		} else {
			subs = append(subs, health.NewHealthy(name, "ok"))
		}
	}
	return health.Aggregate("engine", subs)
}

// Stop stops intake, drains the dispatch pool within the shutdown grace,
// closes the exporters and finally the gate. Work that could not be
// finished is reported as shutdown_loss and returned as an error wrapping
// errors.ErrShutdownDrainTimeout. Unacknowledged messages are redelivered
// by the broker on the next start.
func (e *Engine) Stop(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if !e.started || e.stopped {
		return nil
	}
	e.stopped = true
	start := time.Now()
	defer e.cancelRun()
	defer e.cancelExport()

	if e.stopIntake != nil {
		e.stopIntake()
	}

	grace := e.cfg.ShutdownGrace
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < grace {
		grace = max(time.Until(deadline), 0)
	}

	pending := 0
	if err := e.pool.Stop(grace); err != nil {
		pending = e.pool.Pending()
		e.logger.Warn("Dispatch pool did not drain in time", "pending", pending, "grace", grace)
		// Abort in-flight deliveries; exporters keep running for the final flush
		e.cancelRun()
	}

	lost := e.closeExporters(ctx)

	var lossErr error
	if pending > 0 || lost > 0 {
		lossErr = errors.WrapFatal(
			fmt.Errorf("%w: %d messages in flight, %d records not persisted",
				errors.ErrShutdownDrainTimeout, pending, lost),
			"Engine", "Stop", "drain")
		e.gate.NotifyError(alert.ShutdownLoss, lossErr)
	}

	if err := e.gate.Close(ctx); err != nil {
		e.logger.Warn("Alert gate did not flush before shutdown", "error", err)
	}

	e.metrics.recordStop(time.Since(start).Seconds(), pending, lost)

	totals := e.Report()
	e.logger.Info("Engine stopped",
		"duration", time.Since(start),
		"envelopes", totals.Envelopes,
		"records", totals.TotalParsed(),
		"parse_errors", totals.ParseErrors,
		"sink_failures", totals.TotalSinkFailures(),
		"lost_messages", pending,
		"lost_records", lost)

	return lossErr
}

// closeExporters closes every exporter concurrently and returns the number
// of records they could not persist.
func (e *Engine) closeExporters(ctx context.Context) int {
	var (
		mu   sync.Mutex
		lost int
	)
	// A lossy exporter must not cancel the final flush of the others
	var g errgroup.Group
	for _, exp := range e.exporters {
		g.Go(func() error {
			n := exp.Close(ctx)
			mu.Lock()
			lost += n
			mu.Unlock()
			if n > 0 {
				return fmt.Errorf("%s exporter lost %d records", exp.Kind(), n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("Exporter close incomplete", "error", err)
	}
	return lost
}
