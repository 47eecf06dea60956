package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/netstreams/alert"
	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/metric"
	"github.com/c360/netstreams/parser"
	"github.com/c360/netstreams/pkg/retry"
	"github.com/c360/netstreams/telemetry"
)

// Alerter receives failure reports. *alert.Gate implements it.
type Alerter interface {
	NotifyError(key string, err error)
}

type nopAlerter struct{}

func (nopAlerter) NotifyError(string, error) {}

// Dispatcher parses envelopes and delivers every record to each sink that
// accepts its kind. A failing sink never blocks other sinks or later records.
type Dispatcher struct {
	parser  *parser.Parser
	sinks   []Sink
	alerter Alerter
	rules   []Rule
	retry   retry.Config
	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAlerter sets where parse errors and exhausted deliveries are reported.
func WithAlerter(a Alerter) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.alerter = a
		}
	}
}

// WithRules replaces the anomaly rules run on every parsed record. With no
// rules anomaly detection is off.
func WithRules(rules ...Rule) Option {
	return func(d *Dispatcher) {
		d.rules = append([]Rule(nil), rules...)
	}
}

// WithRetry sets the delivery retry policy. Only transient errors are
// retried.
func WithRetry(cfg errors.RetryConfig) Option {
	return func(d *Dispatcher) {
		d.retry = cfg.ToRetryConfig()
		d.retry.Retryable = errors.IsTransient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records parse and delivery counters.
func WithMetrics(m *metric.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher delivering to sinks.
func New(p *parser.Parser, sinks []Sink, opts ...Option) *Dispatcher {
	if p == nil {
		p = parser.New()
	}
	d := &Dispatcher{
		parser:  p,
		sinks:   append([]Sink(nil), sinks...),
		alerter: nopAlerter{},
		rules:   DefaultRules(),
		logger:  slog.Default(),
	}
	WithRetry(errors.DefaultRetryConfig())(d)
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// Dispatch processes envelopes in order. Records of one envelope are
// delivered in entry order; the sinks of one record are delivered
// concurrently.
func (d *Dispatcher) Dispatch(ctx context.Context, envelopes []telemetry.RawEnvelope) Report {
	report := NewReport()

	for _, env := range envelopes {
		report.Envelopes++

		for _, result := range d.parser.Parse(env) {
			if result.Err != nil {
				d.parseFailed(&report, result.Err)
				continue
			}

			kind := result.Record.Kind()
			report.Parsed[kind]++
			d.metrics.RecordParsed(kind.String())

			d.deliver(ctx, &report, result.Record)
			d.evaluate(&report, result.Record)
		}
	}

	return report
}

func (d *Dispatcher) parseFailed(report *Report, perr *parser.ParseError) {
	report.ParseErrors++
	report.ParseErrorReasons[perr.Class()]++
	d.metrics.RecordParseError(perr.Class())
	d.logger.Debug("Skipping entry", "path", perr.Path, "index", perr.Index, "reason", perr.Reason)
	d.alerter.NotifyError(perr.ConditionKey(), perr)
}

type outcome struct {
	sink string
	err  error
}

// deliver sends rec to every accepting sink and waits for all of them.
func (d *Dispatcher) deliver(ctx context.Context, report *Report, rec telemetry.Record) {
	outcomes := make([]outcome, len(d.sinks))
	var wg sync.WaitGroup

	for i, sink := range d.sinks {
		if !sink.Accepts(rec.Kind()) {
			continue
		}
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			outcomes[i] = outcome{sink: sink.Name(), err: d.deliverOne(ctx, sink, rec)}
		}(i, sink)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.sink == "" {
			continue
		}
		if o.err == nil {
			report.Delivered[o.sink]++
			continue
		}
		report.SinkFailures[o.sink]++
		d.logger.Warn("Sink delivery failed",
			"sink", o.sink, "kind", rec.Kind(), "identity", rec.Identity(), "error", o.err)
		d.alerter.NotifyError(alert.SinkFailure(o.sink), alert.WithBatchID(o.err, rec.Metadata().BatchID))
	}
}

// evaluate runs the anomaly rules against a record once delivery is done.
func (d *Dispatcher) evaluate(report *Report, rec telemetry.Record) {
	for _, rule := range d.rules {
		if !rule.Evaluate(rec) {
			continue
		}
		key, err := rule.Condition(rec)
		report.Anomalies[rule.Name()]++
		d.metrics.RecordAnomaly(rule.Name())
		d.logger.Info("Anomaly detected", "rule", rule.Name(), "condition", key, "identity", rec.Identity())
		d.alerter.NotifyError(key, err)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, sink Sink, rec telemetry.Record) error {
	start := time.Now()
	err := retry.DoContext(ctx, d.retry, func(ctx context.Context) error {
		return sink.Deliver(ctx, rec)
	})
	d.metrics.RecordDelivery(sink.Name(), err == nil, time.Since(start))

	if err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrSinkFailed, err),
			sink.Name(), "Deliver", fmt.Sprintf("deliver %s %s", rec.Kind(), rec.Identity()))
	}
	return nil
}
