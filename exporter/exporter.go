package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/netstreams/alert"
	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/metric"
	"github.com/c360/netstreams/pkg/buffer"
	"github.com/c360/netstreams/storage"
	"github.com/c360/netstreams/telemetry"
)

// Alerter receives export failures. *alert.Gate implements it.
type Alerter interface {
	NotifyError(key string, err error)
}

type nopAlerter struct{}

func (nopAlerter) NotifyError(string, error) {}

// batch is a set of records persisted as one object. The key and payload
// are fixed when the batch is cut, so a retry overwrites the same object.
type batch struct {
	key     string
	records int
	data    []byte
}

type flushRequest struct {
	ctx   context.Context
	reply chan error
}

type closeRequest struct {
	ctx   context.Context
	reply chan int
}

// Exporter batches records of one kind and writes them as parquet objects.
// All batch state is owned by the run loop goroutine; callers talk to it
// over channels.
type Exporter struct {
	cfg      Config
	store    storage.Store
	alerter  Alerter
	logger   *slog.Logger
	metrics  *metric.Metrics
	registry *metric.MetricsRegistry
	now      func() time.Time
	newID    func() string

	in       chan telemetry.Record
	flushReq chan flushRequest
	closeReq chan closeRequest
	shutdown chan struct{}
	stopped  chan struct{}

	// owned by the run loop
	current  []telemetry.Record
	retained buffer.Buffer[*batch]

	started   atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
	lost      int
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithAlerter sets where export failures and overflows are reported.
func WithAlerter(a Alerter) Option {
	return func(e *Exporter) {
		if a != nil {
			e.alerter = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records export counters and the retained gauge, and
// registers the retained ring's buffer metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Exporter) {
		e.registry = registry
		e.metrics = registry.CoreMetrics()
	}
}

// WithClock overrides the clock used for object keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides the object name generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Exporter) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// New creates an Exporter writing to store. Call Start before Enqueue.
func New(cfg Config, store storage.Store, opts ...Option) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Exporter", "New", "store is nil")
	}

	e := &Exporter{
		cfg:      cfg,
		store:    store,
		alerter:  nopAlerter{},
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		in:       make(chan telemetry.Record, cfg.QueueSize),
		flushReq: make(chan flushRequest),
		closeReq: make(chan closeRequest),
		shutdown: make(chan struct{}),
		stopped:  make(chan struct{}),
		closed:   make(chan struct{}),
		current:  make([]telemetry.Record, 0, cfg.MaxSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "exporter", "kind", cfg.Kind.String())

	retained, err := buffer.NewCircularBuffer[*batch](cfg.MaxRetainedBatches,
		buffer.WithOverflowPolicy[*batch](buffer.DropOldest),
		buffer.WithDropCallback[*batch](e.dropped),
		buffer.WithMetrics[*batch](e.registry, "export_retained_"+cfg.Kind.String()))
	if err != nil {
		return nil, errors.WrapFatal(err, "Exporter", "New", "create retained buffer")
	}
	e.retained = retained

	return e, nil
}

// Kind returns the record kind this exporter accepts.
func (e *Exporter) Kind() telemetry.Kind {
	return e.cfg.Kind
}

// Start launches the run loop. It stops when ctx is cancelled or Close is
// called.
func (e *Exporter) Start(ctx context.Context) {
	if e.started.CompareAndSwap(false, true) {
		go e.run(ctx)
	}
}

// Retained returns the number of cut batches waiting to be persisted.
func (e *Exporter) Retained() int {
	return e.retained.Size()
}

// Enqueue hands rec to the run loop. It blocks while the queue is full.
func (e *Exporter) Enqueue(ctx context.Context, rec telemetry.Record) error {
	if rec.Kind() != e.cfg.Kind {
		return errors.WrapInvalid(errors.ErrInvalidData, "Exporter", "Enqueue",
			fmt.Sprintf("record kind %s, exporter kind %s", rec.Kind(), e.cfg.Kind))
	}

	select {
	case <-e.shutdown:
		return errors.WrapInvalid(errors.ErrShuttingDown, "Exporter", "Enqueue", "exporter closed")
	default:
	}

	select {
	case e.in <- rec:
		return nil
	case <-e.shutdown:
		return errors.WrapInvalid(errors.ErrShuttingDown, "Exporter", "Enqueue", "exporter closed")
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Exporter", "Enqueue", "wait for queue")
	}
}

// Flush persists retained batches and the current batch, and waits for the
// result.
func (e *Exporter) Flush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, reply: make(chan error, 1)}
	select {
	case e.flushReq <- req:
	case <-e.stopped:
		return errors.WrapInvalid(errors.ErrNotStarted, "Exporter", "Flush", "run loop not running")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close performs a final flush and stops the run loop. It returns the
// number of records that could not be persisted. Later calls return the
// same count.
func (e *Exporter) Close(ctx context.Context) int {
	e.closeOnce.Do(func() {
		defer close(e.closed)

		if !e.started.Load() {
			close(e.shutdown)
			e.lost = len(e.current) + len(e.in)
			return
		}

		req := closeRequest{ctx: ctx, reply: make(chan int, 1)}
		select {
		case e.closeReq <- req:
			e.lost = <-req.reply
		case <-e.stopped:
			// the loop already exited with its state intact
			close(e.shutdown)
			e.lost = e.unpersisted() + len(e.in)
		}
	})
	<-e.closed
	return e.lost
}

func (e *Exporter) run(ctx context.Context) {
	defer close(e.stopped)

	ticker := time.NewTicker(e.cfg.MaxInterval)
	defer ticker.Stop()

	e.logger.Debug("Exporter started",
		"max_size", e.cfg.MaxSize,
		"max_interval", e.cfg.MaxInterval,
		"max_retained_batches", e.cfg.MaxRetainedBatches)

	for {
		select {
		case rec := <-e.in:
			e.current = append(e.current, rec)
			if len(e.current) >= e.cfg.MaxSize {
				_ = e.flush(ctx)
			}

		case <-ticker.C:
			if len(e.current) > 0 || !e.retained.IsEmpty() {
				_ = e.flush(ctx)
			}

		case req := <-e.flushReq:
			req.reply <- e.flush(req.ctx)

		case req := <-e.closeReq:
			close(e.shutdown)
			e.finalFlush(req.ctx)
			lost := e.unpersisted()
			if lost > 0 {
				e.logger.Error("Records not persisted at close", "records", lost)
			}
			e.logger.Debug("Exporter stopped", "retained_stats", e.retained.Stats().Summary())
			req.reply <- lost
			return

		case <-ctx.Done():
			e.logger.Debug("Exporter context cancelled",
				"pending_records", len(e.current)+len(e.in), "retained_batches", e.retained.Size())
			// each put is still bounded by PutTimeout
			e.finalFlush(context.WithoutCancel(ctx))
			e.logger.Debug("Exporter stopped", "retained_stats", e.retained.Stats().Summary())
			return
		}
	}
}

// finalFlush moves records already queued into the current batch and
// flushes everything held.
func (e *Exporter) finalFlush(ctx context.Context) {
	for drained := false; !drained; {
		select {
		case rec := <-e.in:
			e.current = append(e.current, rec)
		default:
			drained = true
		}
	}
	if err := e.flush(ctx); err != nil {
		e.logger.Warn("Final flush incomplete", "error", err)
	}
}

// flush writes retained batches oldest first, then the current batch. It
// stops at the first failure; what was not written stays retained.
func (e *Exporter) flush(ctx context.Context) error {
	for {
		b, ok := e.retained.Peek()
		if !ok {
			break
		}
		if err := e.persist(ctx, b); err != nil {
			e.failed(b, err)
			e.cut()
			return err
		}
		e.retained.Read()
		e.logger.Info("Retained batch persisted", "key", b.key, "records", b.records)
	}
	e.metrics.RecordRetained(e.cfg.Kind.String(), e.retained.Size())

	b := e.cut()
	if b == nil {
		return nil
	}
	if err := e.persist(ctx, b); err != nil {
		e.failed(b, err)
		return err
	}
	e.retained.Read()
	return nil
}

// cut moves the current records into a new batch at the tail of the
// retained ring and returns it, or nil when there is nothing to cut.
func (e *Exporter) cut() *batch {
	if len(e.current) == 0 {
		return nil
	}
	records := e.current
	e.current = make([]telemetry.Record, 0, e.cfg.MaxSize)

	data, err := Encode(e.cfg.Kind, records)
	if err != nil {
		e.metrics.RecordExport(e.cfg.Kind.String(), false, len(records))
		e.logger.Error("Batch encoding failed, records dropped", "records", len(records), "error", err)
		e.alerter.NotifyError(alert.ExportFailure(e.cfg.Kind.String()),
			errors.WrapInvalid(err, "Exporter", "flush", "encode parquet"))
		return nil
	}

	b := &batch{
		key:     ObjectKey(e.cfg.Prefix, e.cfg.Kind, e.now(), e.newID()),
		records: len(records),
		data:    data,
	}
	// the ring may evict its oldest batch here
	_ = e.retained.Write(b)
	return b
}

func (e *Exporter) persist(ctx context.Context, b *batch) error {
	putCtx, cancel := context.WithTimeout(ctx, e.cfg.PutTimeout)
	defer cancel()

	if err := e.store.Put(putCtx, b.key, b.data); err != nil {
		e.metrics.RecordExport(e.cfg.Kind.String(), false, b.records)
		return errors.WrapTransient(err, "Exporter", "persist", "put "+b.key)
	}

	e.metrics.RecordExport(e.cfg.Kind.String(), true, b.records)
	e.logger.Debug("Batch persisted", "key", b.key, "records", b.records, "bytes", len(b.data))
	return nil
}

func (e *Exporter) failed(b *batch, err error) {
	e.metrics.RecordRetained(e.cfg.Kind.String(), e.retained.Size())
	e.logger.Warn("Batch flush failed, retained for retry",
		"key", b.key, "records", b.records, "retained_batches", e.retained.Size(), "error", err)
	e.alerter.NotifyError(alert.ExportFailure(e.cfg.Kind.String()), err)
}

// dropped is the retained ring's overflow callback.
func (e *Exporter) dropped(b *batch) {
	err := errors.WrapFatal(
		fmt.Errorf("%w: %s with %d records", errors.ErrExportOverflow, b.key, b.records),
		"Exporter", "retain", "retained batches at capacity")
	e.logger.Error("Retained batch dropped", "key", b.key, "records", b.records,
		"capacity", e.cfg.MaxRetainedBatches)
	e.alerter.NotifyError(alert.ExportOverflow(e.cfg.Kind.String()), err)
}

// unpersisted counts records in the current batch and the retained ring.
// Only the run loop, or Close after the loop exited, may call it.
func (e *Exporter) unpersisted() int {
	n := len(e.current)
	for _, b := range e.retained.ReadBatch(e.retained.Size()) {
		n += b.records
	}
	return n
}
