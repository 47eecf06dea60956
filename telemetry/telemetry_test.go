package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawEnvelope_Decode(t *testing.T) {
	payload := `{"path": ".node.srl.interface.subinterface.ipv4.address",
		"entries":[{"keys":{"address_ip-prefix":"12.0.0.0/31","interface_name":"ethernet-1/33",
		"node_name":"srl-os","subinterface_index":"0"},"fields":{"origin":"static","status":"preferred"}}]}`

	var env RawEnvelope
	require.NoError(t, json.Unmarshal([]byte(payload), &env))

	assert.Equal(t, ".node.srl.interface.subinterface.ipv4.address", env.Path)
	require.Len(t, env.Entries, 1)
	assert.Equal(t, "12.0.0.0/31", env.Entries[0].Keys["address_ip-prefix"])
	assert.Equal(t, "preferred", env.Entries[0].Fields["status"])
}

func TestValues_ScalarCoercion(t *testing.T) {
	var v Values
	require.NoError(t, json.Unmarshal([]byte(`{"mtu": 9232, "enabled": true, "speed": 1e9, "gone": null, "name": "x"}`), &v))

	assert.Equal(t, Values{"mtu": "9232", "enabled": "true", "speed": "1e9", "name": "x"}, v)
}

func TestValues_RejectsNested(t *testing.T) {
	var v Values
	assert.Error(t, json.Unmarshal([]byte(`{"nested": {"a": 1}}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"list": [1]}`), &v))
}

func TestValues_DuplicateKeyLastWins(t *testing.T) {
	var v Values
	require.NoError(t, json.Unmarshal([]byte(`{"node_name": "a", "node_name": "b"}`), &v))
	assert.Equal(t, "b", v["node_name"])
}

func TestRecord_Identity(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		kind   Kind
		want   string
	}{
		{"node", NodeRecord{NodeName: "srl-os"}, KindNode, "srl-os"},
		{"interface", InterfaceRecord{NodeName: "srl-os", InterfaceName: "ethernet-1/1"}, KindInterface, "srl-os/ethernet-1/1"},
		{
			"address",
			AddressRecord{NodeName: "srl-os", InterfaceName: "e1", SubinterfaceIndex: "0", AddressIPPrefix: "12.0.0.0/31"},
			KindAddress,
			"srl-os/e1/0/12.0.0.0/31",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.record.Kind())
			assert.Equal(t, tt.want, tt.record.Identity())
		})
	}
}

func TestKind_Valid(t *testing.T) {
	for _, k := range Kinds() {
		assert.True(t, k.Valid())
	}
	assert.False(t, Kind("vlan").Valid())
}

func TestMarshal_FlattensMeta(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rec := AddressRecord{
		Meta:              Meta{BatchID: "b1", SourcePath: ".node.x", Timestamp: ts},
		NodeName:          "srl-os",
		InterfaceName:     "ethernet-1/33",
		SubinterfaceIndex: "0",
		AddressIPPrefix:   "12.0.0.0/31",
		Family:            "ipv4",
		Origin:            "static",
		Status:            "preferred",
	}

	data, err := Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"batch_id":"b1","source_path":".node.x","timestamp":"2026-10-19T12:00:00Z",
		"node_name":"srl-os","interface_name":"ethernet-1/33","subinterface_index":"0",
		"address_ip_prefix":"12.0.0.0/31","family":"ipv4","origin":"static","status":"preferred"}`, string(data))
}

func TestRow_Conversion(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	mtu := int64(9232)

	node := NodeRecord{Meta: Meta{Timestamp: ts}, NodeName: "n", SystemIP: "10.0.0.1", Attributes: map[string]string{"vendor": "nokia"}}
	nodeRow := node.Row().(NodeRow)
	assert.Equal(t, ts.UnixMilli(), nodeRow.Timestamp)
	require.NotNil(t, nodeRow.SystemIP)
	assert.Equal(t, "10.0.0.1", *nodeRow.SystemIP)
	assert.Nil(t, nodeRow.MgmtIP)
	assert.JSONEq(t, `{"vendor":"nokia"}`, nodeRow.Attributes)

	iface := InterfaceRecord{Meta: Meta{Timestamp: ts}, NodeName: "n", InterfaceName: "e1", MTU: &mtu, LastChange: &ts}
	ifaceRow := iface.Row().(InterfaceRow)
	assert.Equal(t, &mtu, ifaceRow.MTU)
	require.NotNil(t, ifaceRow.LastChange)
	assert.Equal(t, ts.UnixMilli(), *ifaceRow.LastChange)
	assert.Nil(t, ifaceRow.InOctets)
}

func TestRowSchema(t *testing.T) {
	for _, k := range Kinds() {
		schema, err := RowSchema(k)
		require.NoError(t, err)
		assert.NotNil(t, schema)
	}
	_, err := RowSchema("bogus")
	assert.Error(t, err)
}
