package engine

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/testutil"
)

func TestDecoder_SingleEnvelope(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	out, err := d.Decode([]byte(testutil.InterfaceEnvelopeJSON))
	require.NoError(t, err)
	assert.Empty(t, out.Rejected)
	require.Len(t, out.Envelopes, 1)
	assert.Equal(t, ".node.srl.interface.statistics", out.Envelopes[0].Path)
	require.Len(t, out.Envelopes[0].Entries, 1)
	// Numbers keep their textual form
	assert.Equal(t, "2048", out.Envelopes[0].Entries[0].Fields["out_octets"])
}

func TestDecoder_FlattensInDocumentOrder(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	out, err := d.Decode([]byte(testutil.MixedEnvelopesJSON))
	require.NoError(t, err)
	require.Len(t, out.Envelopes, 3)
	assert.Equal(t, ".node", out.Envelopes[0].Path)
	assert.Equal(t, ".node.srl.interface.statistics", out.Envelopes[1].Path)
	assert.Equal(t, ".node.srl.interface.subinterface.ipv4.address", out.Envelopes[2].Path)
}

func TestDecoder_EmptyArray(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	out, err := d.Decode([]byte(`[[], []]`))
	require.NoError(t, err)
	assert.Empty(t, out.Envelopes)
	assert.Empty(t, out.Rejected)
}

func TestDecoder_NullValuesDropped(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	out, err := d.Decode([]byte(`{"path": ".node", "entries": [{"keys": {"node_name": "a"}, "fields": {"version": null, "up": true}}]}`))
	require.NoError(t, err)
	require.Len(t, out.Envelopes, 1)
	fields := out.Envelopes[0].Entries[0].Fields
	assert.NotContains(t, fields, "version")
	assert.Equal(t, "true", fields["up"])
}

func TestDecoder_InvalidItemKeepsSiblings(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	payload := `[
	  {"path": ".node", "entries": [{"keys": {"node_name": "srl1"}}]},
	  {"path": ".node", "entries": [{"keys": {"node_name": "srl2"}, "fields": {"x": {"nested": 1}}}]},
	  [5, {"path": ".node", "entries": [{"keys": {"node_name": "srl3"}}]}]
	]`
	out, err := d.Decode([]byte(payload))
	require.NoError(t, err)

	require.Len(t, out.Envelopes, 2)
	assert.Equal(t, "srl1", out.Envelopes[0].Entries[0].Keys["node_name"])
	assert.Equal(t, "srl3", out.Envelopes[1].Entries[0].Keys["node_name"])

	require.Len(t, out.Rejected, 2)
	assert.Contains(t, out.Rejected[0].Error(), "item 1")
	assert.Contains(t, out.Rejected[1].Error(), "item 2.0")
	for _, rej := range out.Rejected {
		assert.True(t, errors.IsInvalid(rej))
		assert.True(t, stderrors.Is(rej, errors.ErrInvalidData))
	}
}

func TestDecoder_Rejects(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	payloads := append([]string{
		``,
		`   `,
		`{"path": ".node", "entries": [{"keys": {"node_name": {"nested": 1}}}]}`,
	}, testutil.MalformedPayloads...)

	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			out, err := d.Decode([]byte(p))
			assert.Empty(t, out.Envelopes)
			if err == nil {
				require.Len(t, out.Rejected, 1)
				err = out.Rejected[0]
			}
			assert.True(t, errors.IsInvalid(err))
			assert.True(t, stderrors.Is(err, errors.ErrInvalidData))
		})
	}
}
