package dispatcher

import (
	"context"
	"fmt"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/pkg/retry"
	"github.com/c360/netstreams/telemetry"
)

// Sink is a destination for parsed records.
type Sink interface {
	// Name identifies the sink in reports and alert conditions
	Name() string
	// Accepts reports whether the sink takes records of kind
	Accepts(kind telemetry.Kind) bool
	// Deliver sends one record. It is called under the dispatcher's retry
	// policy with a per-attempt deadline on ctx.
	Deliver(ctx context.Context, rec telemetry.Record) error
}

// StreamPublisher publishes to a JetStream subject. *natsclient.Client
// implements it.
type StreamPublisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// TopicSink publishes each record as JSON to the subject of its kind.
type TopicSink struct {
	publisher StreamPublisher
	subjects  map[telemetry.Kind]string
}

// NewTopicSink creates a TopicSink. Kinds without a subject are not accepted.
func NewTopicSink(publisher StreamPublisher, subjects map[telemetry.Kind]string) (*TopicSink, error) {
	if publisher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "TopicSink", "NewTopicSink", "publisher is nil")
	}
	copied := make(map[telemetry.Kind]string, len(subjects))
	for kind, subject := range subjects {
		if subject != "" {
			copied[kind] = subject
		}
	}
	if len(copied) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "TopicSink", "NewTopicSink", "no topic subjects")
	}
	return &TopicSink{publisher: publisher, subjects: copied}, nil
}

func (s *TopicSink) Name() string { return "topic" }

func (s *TopicSink) Accepts(kind telemetry.Kind) bool {
	_, ok := s.subjects[kind]
	return ok
}

// Subject returns the subject records of kind are published to.
func (s *TopicSink) Subject(kind telemetry.Kind) string {
	return s.subjects[kind]
}

func (s *TopicSink) Deliver(ctx context.Context, rec telemetry.Record) error {
	subject, ok := s.subjects[rec.Kind()]
	if !ok {
		return retry.NonRetryable(errors.WrapInvalid(
			fmt.Errorf("no subject for kind %s", rec.Kind()), "TopicSink", "Deliver", "route record"))
	}

	data, err := telemetry.Marshal(rec)
	if err != nil {
		return retry.NonRetryable(errors.WrapInvalid(err, "TopicSink", "Deliver", "marshal record"))
	}

	if err := s.publisher.PublishToStream(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "TopicSink", "Deliver", "publish to "+subject)
	}
	return nil
}

// Enqueuer accepts records for batching. *exporter.Exporter implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec telemetry.Record) error
}

// ExporterSink hands records to the batch exporter of their kind.
type ExporterSink struct {
	exporters map[telemetry.Kind]Enqueuer
}

// NewExporterSink creates an ExporterSink over per-kind exporters.
func NewExporterSink(exporters map[telemetry.Kind]Enqueuer) *ExporterSink {
	copied := make(map[telemetry.Kind]Enqueuer, len(exporters))
	for kind, e := range exporters {
		if e != nil {
			copied[kind] = e
		}
	}
	return &ExporterSink{exporters: copied}
}

func (s *ExporterSink) Name() string { return "exporter" }

func (s *ExporterSink) Accepts(kind telemetry.Kind) bool {
	_, ok := s.exporters[kind]
	return ok
}

func (s *ExporterSink) Deliver(ctx context.Context, rec telemetry.Record) error {
	e, ok := s.exporters[rec.Kind()]
	if !ok {
		return retry.NonRetryable(errors.WrapInvalid(
			fmt.Errorf("no exporter for kind %s", rec.Kind()), "ExporterSink", "Deliver", "route record"))
	}
	return e.Enqueue(ctx, rec)
}
