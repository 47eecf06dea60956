package alert_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/netstreams/alert"
	"github.com/c360/netstreams/testutil"
)

func TestGate_FailedDeliveryIsDropped(t *testing.T) {
	notifier := testutil.NewMockNotifier()
	notifier.SetError(testutil.ErrMockConnection)

	cfg := alert.DefaultConfig()
	cfg.Window = time.Hour
	cfg.SendTimeout = 50 * time.Millisecond
	g, err := alert.NewGate(cfg, notifier)
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	g.Notify(alert.SinkFailure("topic"), "publish failed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Close(ctx))
	assert.Empty(t, notifier.Sent())
}

func TestGate_NotifierRecovers(t *testing.T) {
	notifier := testutil.NewMockNotifier()
	notifier.SetError(testutil.ErrMockConnection)
	notifier.SetError(nil)

	cfg := alert.DefaultConfig()
	cfg.Window = time.Hour
	g, err := alert.NewGate(cfg, notifier)
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	g.Notify(alert.ExportFailure("node"), "put failed")
	g.Notify(alert.ExportFailure("node"), "put failed again")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Close(ctx))

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 2, sent[0].Count)
	assert.Equal(t, "put failed again", sent[0].Detail)
}
