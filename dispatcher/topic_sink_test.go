package dispatcher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/netstreams/alert"
	"github.com/c360/netstreams/dispatcher"
	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/parser"
	"github.com/c360/netstreams/telemetry"
	"github.com/c360/netstreams/testutil"
)

var topicSubjects = map[telemetry.Kind]string{
	telemetry.KindNode:      "netstreams.node",
	telemetry.KindInterface: "netstreams.interface",
	telemetry.KindAddress:   "netstreams.address",
}

func newTopicDispatcher(t *testing.T, pub *testutil.MockPublisher, alerter *testutil.MockAlerter) *dispatcher.Dispatcher {
	t.Helper()
	sink, err := dispatcher.NewTopicSink(pub, topicSubjects)
	require.NoError(t, err)
	return dispatcher.New(parser.New(), []dispatcher.Sink{sink},
		dispatcher.WithAlerter(alerter),
		dispatcher.WithRetry(errors.RetryConfig{
			MaxRetries:     1,
			InitialDelay:   time.Millisecond,
			MaxDelay:       time.Millisecond,
			BackoffFactor:  2,
			AttemptTimeout: time.Second,
		}))
}

func TestTopicSink_PublishesPerKindSubject(t *testing.T) {
	pub := testutil.NewMockPublisher()
	d := newTopicDispatcher(t, pub, testutil.NewMockAlerter())

	report := d.Dispatch(context.Background(), []telemetry.RawEnvelope{
		testutil.NodeEnvelope("srl1", "srl2"),
		testutil.AddressEnvelope("srl1", "ethernet-1/1", "10.0.0.1/24"),
	})

	assert.Equal(t, 2, report.Parsed[telemetry.KindNode])
	assert.Equal(t, 1, report.Parsed[telemetry.KindAddress])
	assert.Equal(t, 3, report.Delivered["topic"])

	nodes := pub.GetMessages("netstreams.node")
	require.Len(t, nodes, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal(nodes[0], &first))
	assert.Equal(t, "srl1", first["node_name"])

	addrs := pub.GetMessages("netstreams.address")
	require.Len(t, addrs, 1)
	var addr map[string]any
	require.NoError(t, json.Unmarshal(addrs[0], &addr))
	assert.Equal(t, "10.0.0.1/24", addr["address_ip_prefix"])
	assert.Equal(t, "ipv4", addr["family"])

	testutil.AssertNoMessages(t, pub, "netstreams.interface")
}

func TestTopicSink_FailingSubjectIsolated(t *testing.T) {
	pub := testutil.NewMockPublisher()
	alerter := testutil.NewMockAlerter()
	d := newTopicDispatcher(t, pub, alerter)

	pub.FailSubject("netstreams.address", testutil.ErrMockConnection)
	report := d.Dispatch(context.Background(), []telemetry.RawEnvelope{
		testutil.AddressEnvelope("srl1", "ethernet-1/1", "10.0.0.1/24", "10.0.1.1/24"),
		testutil.NodeEnvelope("srl1"),
	})

	assert.Equal(t, 2, report.SinkFailures["topic"])
	assert.Equal(t, 1, report.Delivered["topic"])
	assert.Equal(t, 2, alerter.Count(alert.SinkFailure("topic")))
	assert.Equal(t, 1, pub.GetMessageCount("netstreams.node"))

	pub.FailSubject("netstreams.address", nil)
	report = d.Dispatch(context.Background(), []telemetry.RawEnvelope{
		testutil.AddressEnvelope("srl1", "ethernet-1/1", "10.0.0.1/24"),
	})
	assert.Equal(t, 1, report.Delivered["topic"])
	assert.Equal(t, 1, pub.GetMessageCount("netstreams.address"))
}
