package engine

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/netstreams/natsclient"
)

// Source delivers input messages to handler until the returned stop
// function is called.
type Source interface {
	Start(ctx context.Context, handler natsclient.MessageHandler) (stop func(), err error)
}

// StreamSource consumes the input stream with a durable JetStream consumer.
type StreamSource struct {
	client   *natsclient.Client
	consumer natsclient.ConsumerConfig
}

// NewStreamSource creates a Source reading consumer.Subject from
// consumer.Stream.
func NewStreamSource(client *natsclient.Client, consumer natsclient.ConsumerConfig) *StreamSource {
	return &StreamSource{client: client, consumer: consumer}
}

// Start makes sure the input stream exists and begins consuming.
func (s *StreamSource) Start(ctx context.Context, handler natsclient.MessageHandler) (func(), error) {
	if _, err := s.client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     s.consumer.Stream,
		Subjects: []string{s.consumer.Subject},
		Storage:  jetstream.FileStorage,
		MaxAge:   24 * time.Hour,
	}); err != nil {
		return nil, err
	}

	cc, err := s.client.ConsumeDurable(ctx, s.consumer, handler)
	if err != nil {
		return nil, err
	}
	return cc.Stop, nil
}
