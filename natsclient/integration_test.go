//go:build integration

package natsclient

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/netstreams/metric"
)

func TestIntegration_Connect(t *testing.T) {
	tc := NewTestClient(t, WithNATSVersion("2.10-alpine"))

	assert.True(t, tc.Client.IsHealthy())
	assert.NoError(t, tc.Client.HealthCheck())

	status := tc.Client.GetStatus()
	assert.Equal(t, StatusConnected, status.Status)
	assert.Zero(t, status.FailureCount)

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestIntegration_PublishCore(t *testing.T) {
	tc := NewTestClient(t)
	conn := tc.GetNativeConnection()

	sub, err := conn.SubscribeSync("alerts.test")
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	require.NoError(t, tc.Client.Publish(context.Background(), "alerts.test", []byte(`{"condition":"x"}`)))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"condition":"x"}`, string(msg.Data))
}

func TestIntegration_EnsureStreamIdempotent(t *testing.T) {
	tc := NewTestClient(t, WithJetStream())
	ctx := context.Background()

	cfg := jetstream.StreamConfig{Name: "TELEMETRY", Subjects: []string{"telemetry.>"}}
	_, err := tc.Client.EnsureStream(ctx, cfg)
	require.NoError(t, err)

	stream, err := tc.Client.EnsureStream(ctx, cfg)
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TELEMETRY", info.Config.Name)
}

func TestIntegration_ConsumeDurableAckAndNak(t *testing.T) {
	tc := NewTestClient(t, WithJetStream())
	ctx := context.Background()

	_, err := tc.Client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     "INTAKE",
		Subjects: []string{"intake.raw"},
	})
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		delivered []string
		naked     bool
	)
	done := make(chan struct{})

	cc, err := tc.Client.ConsumeDurable(ctx, ConsumerConfig{
		Stream:  "INTAKE",
		Durable: "intake-test",
		Subject: "intake.raw",
		AckWait: time.Second,
	}, func(msg Message) {
		mu.Lock()
		defer mu.Unlock()
		if string(msg.Data()) == "second" && !naked {
			naked = true
			_ = msg.Nak()
			return
		}
		delivered = append(delivered, string(msg.Data()))
		_ = msg.Ack()
		if len(delivered) == 2 {
			close(done)
		}
	})
	require.NoError(t, err)
	defer cc.Stop()

	require.NoError(t, tc.Client.PublishToStream(ctx, "intake.raw", []byte("first")))
	require.NoError(t, tc.Client.PublishToStream(ctx, "intake.raw", []byte("second")))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for redelivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"first", "second"}, delivered)
	assert.True(t, naked)
}

func TestIntegration_ObjectStore(t *testing.T) {
	tc := NewTestClient(t, WithJetStream())
	ctx := context.Background()

	store, err := tc.Client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: "exports"})
	require.NoError(t, err)

	_, err = store.PutBytes(ctx, "telemetry/flow/a.parquet", []byte("PAR1"))
	require.NoError(t, err)

	again, err := tc.Client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: "exports"})
	require.NoError(t, err)

	obj, err := again.Get(ctx, "telemetry/flow/a.parquet")
	require.NoError(t, err)
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, []byte("PAR1"), data)
}

func TestIntegration_JetStreamMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	tc := NewTestClient(t, WithJetStream(), WithClientOptions(WithMetrics(registry)))
	ctx := context.Background()

	_, err := tc.Client.EnsureStream(ctx, jetstream.StreamConfig{Name: "METRICS", Subjects: []string{"metrics.x"}})
	require.NoError(t, err)
	require.NoError(t, tc.Client.PublishToStream(ctx, "metrics.x", []byte("a")))
	require.NoError(t, tc.Client.PublishToStream(ctx, "metrics.x", []byte("b")))

	tc.Client.jsMetrics.updateStats(ctx)

	var m dto.Metric
	require.NoError(t, tc.Client.jsMetrics.streamMessages.WithLabelValues("METRICS").Write(&m))
	assert.Equal(t, float64(2), m.GetGauge().GetValue())
}
