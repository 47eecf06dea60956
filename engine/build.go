package engine

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/netstreams/alert"
	"github.com/c360/netstreams/config"
	"github.com/c360/netstreams/dispatcher"
	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/exporter"
	"github.com/c360/netstreams/metric"
	"github.com/c360/netstreams/natsclient"
	"github.com/c360/netstreams/parser"
	"github.com/c360/netstreams/pkg/retry"
	"github.com/c360/netstreams/storage/objectstore"
	"github.com/c360/netstreams/telemetry"
)

// Build wires an engine from configuration on a connected client. It
// creates the output stream and, when export is enabled, the export bucket.
func Build(
	ctx context.Context,
	cfg *config.Config,
	client *natsclient.Client,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	var core *metric.Metrics
	if registry != nil {
		core = registry.CoreMetrics()
	}

	policy := retry.Quick()
	policy.Retryable = errors.IsTransient
	stream, err := retry.DoWithResult(ctx, policy, func() (jetstream.Stream, error) {
		return client.EnsureStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Topics.Stream,
			Subjects: cfg.Topics.Subjects(),
			Storage:  jetstream.FileStorage,
		})
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Engine", "Build", "ensure output stream")
	}
	logger.Debug("Output stream ready", "stream", stream.CachedInfo().Config.Name)

	gate, err := buildGate(cfg.Alerts, client, core, logger)
	if err != nil {
		return nil, err
	}

	topics, err := dispatcher.NewTopicSink(client, map[telemetry.Kind]string{
		telemetry.KindNode:      cfg.Topics.Node,
		telemetry.KindInterface: cfg.Topics.Interface,
		telemetry.KindAddress:   cfg.Topics.Address,
	})
	if err != nil {
		return nil, err
	}
	sinks := []dispatcher.Sink{topics}

	var exporters []*exporter.Exporter
	if cfg.Export.Enabled {
		exporters, err = buildExporters(ctx, cfg.Export, client, gate, registry, logger)
		if err != nil {
			return nil, err
		}
		enqueuers := make(map[telemetry.Kind]dispatcher.Enqueuer, len(exporters))
		for _, exp := range exporters {
			enqueuers[exp.Kind()] = exp
		}
		sinks = append(sinks, dispatcher.NewExporterSink(enqueuers))
	} else {
		logger.Info("Columnar export disabled")
	}

	d := dispatcher.New(parser.New(), sinks,
		dispatcher.WithAlerter(gate),
		dispatcher.WithRetry(cfg.Dispatch.RetryConfig()),
		dispatcher.WithLogger(logger),
		dispatcher.WithMetrics(core))

	source := NewStreamSource(client, natsclient.ConsumerConfig{
		Stream:        cfg.Input.Stream,
		Durable:       cfg.Input.Durable,
		Subject:       cfg.Input.Subject,
		AckWait:       cfg.Input.AckWait,
		MaxDeliver:    cfg.Input.MaxDeliver,
		MaxAckPending: cfg.Input.MaxAckPending,
	})

	return New(Config{
		Workers:       cfg.Dispatch.Workers,
		QueueSize:     cfg.Dispatch.QueueSize,
		ShutdownGrace: cfg.ShutdownGrace,
	}, Dependencies{
		Source:     source,
		Dispatcher: d,
		Exporters:  exporters,
		Gate:       gate,
		Logger:     logger,
		Metrics:    registry,
	})
}

func buildGate(cfg config.AlertsConfig, client *natsclient.Client, core *metric.Metrics, logger *slog.Logger) (*alert.Gate, error) {
	gateCfg := alert.DefaultConfig()
	var notifier alert.Notifier
	if cfg.Enabled {
		gateCfg = alert.Config{
			Window:              cfg.Window,
			Immediate:           cfg.Immediate,
			QueueSize:           cfg.QueueSize,
			RatePerMinute:       cfg.RatePerMinute,
			MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
			SendTimeout:         cfg.SendTimeout,
		}
		notifier = alert.NewNATSNotifier(client, cfg.Subject)
	} else {
		logger.Info("Alert channel disabled, notifications are logged")
		notifier = alert.NewLogNotifier(logger)
	}

	return alert.NewGate(gateCfg, notifier, alert.WithLogger(logger), alert.WithMetrics(core))
}

func buildExporters(
	ctx context.Context,
	cfg config.ExportConfig,
	client *natsclient.Client,
	gate *alert.Gate,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) ([]*exporter.Exporter, error) {
	storeCfg := objectstore.DefaultConfig()
	storeCfg.Bucket = cfg.Bucket
	storeCfg.MaxBytes = cfg.MaxBytes
	if cfg.Replicas > 0 {
		storeCfg.Replicas = cfg.Replicas
	}

	storeOpts := []objectstore.Option{objectstore.WithLogger(logger)}
	if registry != nil {
		storeOpts = append(storeOpts, objectstore.WithMetrics(registry))
	}
	store, err := objectstore.Open(ctx, client, storeCfg, storeOpts...)
	if err != nil {
		return nil, err
	}

	exporters := make([]*exporter.Exporter, 0, len(telemetry.Kinds()))
	for _, kind := range telemetry.Kinds() {
		exp, err := exporter.New(exporter.Config{
			Kind:               kind,
			Prefix:             cfg.Prefix,
			MaxSize:            cfg.MaxSize,
			MaxInterval:        cfg.MaxInterval,
			MaxRetainedBatches: cfg.MaxRetainedBatches,
			PutTimeout:         cfg.PutTimeout,
			QueueSize:          cfg.QueueSize,
		}, store,
			exporter.WithAlerter(gate),
			exporter.WithLogger(logger),
			exporter.WithMetrics(registry))
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, exp)
	}
	return exporters, nil
}
