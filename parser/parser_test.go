package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/telemetry"
)

var fixedTime = time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

func newTestParser() *Parser {
	return New(
		WithClock(func() time.Time { return fixedTime }),
		WithBatchID(func() string { return "batch-1" }),
	)
}

func decode(t *testing.T, payload string) telemetry.RawEnvelope {
	t.Helper()
	var env telemetry.RawEnvelope
	require.NoError(t, json.Unmarshal([]byte(payload), &env))
	return env
}

func TestParse_AddressScenario(t *testing.T) {
	env := decode(t, `{"path": ".node.srl.interface.subinterface.ipv4.address","entries":[{"keys":{"address_ip-prefix":"12.0.0.0/31","interface_name":"ethernet-1/33","node_name":"srl-os","subinterface_index":"0"},"fields":{"origin":"static","status":"preferred"}}]}`)

	results := newTestParser().Parse(env)
	require.Len(t, results, 1)
	require.True(t, results[0].OK(), "unexpected error: %v", results[0].Err)

	rec, ok := results[0].Record.(telemetry.AddressRecord)
	require.True(t, ok)
	want := telemetry.AddressRecord{
		Meta: telemetry.Meta{
			BatchID:    "batch-1",
			SourcePath: ".node.srl.interface.subinterface.ipv4.address",
			Timestamp:  fixedTime,
		},
		NodeName:          "srl-os",
		InterfaceName:     "ethernet-1/33",
		SubinterfaceIndex: "0",
		AddressIPPrefix:   "12.0.0.0/31",
		Family:            "ipv4",
		Origin:            "static",
		Status:            "preferred",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("address record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, telemetry.KindAddress, rec.Kind())
}

func TestParse_Routing(t *testing.T) {
	tests := []struct {
		path string
		kind telemetry.Kind
	}{
		{".node", telemetry.KindNode},
		{".node.srl", telemetry.KindNode},
		{"node.srl.system", telemetry.KindNode},
		{".node.srl.interface", telemetry.KindInterface},
		{".node.srl.interface.status", telemetry.KindInterface},
		{".node.srl.interface.statistics", telemetry.KindInterface},
		{"..node..srl.interface.ethernet-1/1.oper-state", telemetry.KindInterface},
		{".node.srl.interface.subinterface.ipv4.address", telemetry.KindAddress},
		{".node.srl.interface.e1.subinterface.ipv6.address", telemetry.KindAddress},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			env := telemetry.RawEnvelope{Path: tt.path, Entries: []telemetry.Entry{{
				Keys: telemetry.Values{
					"node_name":          "n1",
					"interface_name":     "e1",
					"subinterface_index": "0",
					"address_ip-prefix":  "10.0.0.0/31",
				},
			}}}
			if tt.path == ".node.srl.interface.e1.subinterface.ipv6.address" {
				env.Entries[0].Keys["address_ip-prefix"] = "2001:db8::/64"
			}
			results := newTestParser().Parse(env)
			require.Len(t, results, 1)
			require.Nil(t, results[0].Err)
			assert.Equal(t, tt.kind, results[0].Record.Kind())
		})
	}
}

func TestParse_UnknownPath(t *testing.T) {
	paths := []string{
		"",
		".system.cpu",
		".interface.e1",
		".node.srl.interface.subinterface",
		".node.srl.interface.subinterface.ipv5.address",
		".node.srl.interface.subinterface.ipv4.route",
		".node.srl.subinterface.ipv4.address",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			env := telemetry.RawEnvelope{Path: path, Entries: []telemetry.Entry{
				{Keys: telemetry.Values{"node_name": "a"}},
				{Keys: telemetry.Values{"node_name": "b"}},
			}}
			results := newTestParser().Parse(env)
			require.Len(t, results, 2)
			for i, r := range results {
				assert.Nil(t, r.Record)
				require.NotNil(t, r.Err)
				assert.Equal(t, ReasonUnknownPath, r.Err.Reason)
				assert.Equal(t, i, r.Err.Index)
				assert.Equal(t, path, r.Err.Path)
				assert.Equal(t, "parse_error:unknown_path", r.Err.ConditionKey())
				assert.ErrorIs(t, r.Err, errors.ErrUnknownPath)
				assert.True(t, errors.IsInvalid(r.Err))
			}
		})
	}
}

func TestParse_EmptyEntries(t *testing.T) {
	results := newTestParser().Parse(telemetry.RawEnvelope{Path: ".bogus"})
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestParse_MissingKeys(t *testing.T) {
	tests := []struct {
		name string
		path string
		keys telemetry.Values
		want string
	}{
		{"node name", ".node", telemetry.Values{}, "missing_key:node_name"},
		{"interface node", ".node.x.interface", telemetry.Values{"interface_name": "e1"}, "missing_key:node_name"},
		{"interface name", ".node.x.interface", telemetry.Values{"node_name": "n"}, "missing_key:interface_name"},
		{
			"subinterface index",
			".node.x.interface.subinterface.ipv4.address",
			telemetry.Values{"node_name": "n", "interface_name": "e1", "address_ip-prefix": "10.0.0.0/8"},
			"missing_key:subinterface_index",
		},
		{
			"prefix",
			".node.x.interface.subinterface.ipv4.address",
			telemetry.Values{"node_name": "n", "interface_name": "e1", "subinterface_index": "0"},
			"missing_key:address_ip-prefix",
		},
		{"empty value", ".node", telemetry.Values{"node_name": ""}, "missing_key:node_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := newTestParser().Parse(telemetry.RawEnvelope{Path: tt.path, Entries: []telemetry.Entry{{Keys: tt.keys}}})
			require.Len(t, results, 1)
			require.NotNil(t, results[0].Err)
			assert.Nil(t, results[0].Record)
			assert.Equal(t, tt.want, results[0].Err.Reason)
			assert.Equal(t, "parse_error:missing_key", results[0].Err.ConditionKey())
			assert.ErrorIs(t, results[0].Err, errors.ErrMissingKey)
		})
	}
}

func TestParse_MalformedCIDRSkipsOnlyThatEntry(t *testing.T) {
	keys := func(prefix string) telemetry.Values {
		return telemetry.Values{"node_name": "n", "interface_name": "e1", "subinterface_index": "0", "address_ip_prefix": prefix}
	}
	env := telemetry.RawEnvelope{
		Path: ".node.n.interface.subinterface.ipv4.address",
		Entries: []telemetry.Entry{
			{Keys: keys("10.0.0.0/31")},
			{Keys: keys("10.0.0.300/31")},
			{Keys: keys("2001:db8::/64")},
			{Keys: keys("10.0.0.2/31")},
		},
	}

	results := newTestParser().Parse(env)
	require.Len(t, results, 4)

	assert.True(t, results[0].OK())
	require.NotNil(t, results[1].Err)
	assert.Equal(t, "type_coercion_failed:address_ip_prefix", results[1].Err.Reason)
	assert.Equal(t, 1, results[1].Err.Index)
	require.NotNil(t, results[2].Err)
	assert.Equal(t, "type_coercion_failed:address_ip_prefix", results[2].Err.Reason)
	assert.True(t, results[3].OK())
	assert.Equal(t, "10.0.0.2/31", results[3].Record.(telemetry.AddressRecord).AddressIPPrefix)
}

func TestParse_InterfaceCoercion(t *testing.T) {
	env := decode(t, `{"path":".node.srl.interface.statistics","entries":[
		{"keys":{"node_name":"srl","interface_name":"e1"},
		 "fields":{"admin_status":"up","oper_status":"down","mtu":9232,"speed":"1e9",
		           "in_octets":"1024","out_errors":"0","last_change":"2026-10-19T10:00:00Z"}}]}`)

	results := newTestParser().Parse(env)
	require.Len(t, results, 1)
	require.Nil(t, results[0].Err)

	rec := results[0].Record.(telemetry.InterfaceRecord)
	assert.Equal(t, "up", rec.AdminStatus)
	assert.Equal(t, "down", rec.OperStatus)
	require.NotNil(t, rec.MTU)
	assert.Equal(t, int64(9232), *rec.MTU)
	require.NotNil(t, rec.Speed)
	assert.Equal(t, int64(1_000_000_000), *rec.Speed)
	require.NotNil(t, rec.InOctets)
	assert.Equal(t, int64(1024), *rec.InOctets)
	require.NotNil(t, rec.OutErrors)
	assert.Equal(t, int64(0), *rec.OutErrors)
	assert.Nil(t, rec.InPackets)
	require.NotNil(t, rec.LastChange)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), *rec.LastChange)
}

func TestParse_LastChangeEpoch(t *testing.T) {
	env := telemetry.RawEnvelope{Path: ".node.n.interface", Entries: []telemetry.Entry{{
		Keys:   telemetry.Values{"node_name": "n", "interface_name": "e1"},
		Fields: telemetry.Values{"last_change": "1792404000"},
	}}}
	results := newTestParser().Parse(env)
	require.Len(t, results, 1)
	require.Nil(t, results[0].Err)

	rec := results[0].Record.(telemetry.InterfaceRecord)
	require.NotNil(t, rec.LastChange)
	assert.Equal(t, time.Unix(1792404000, 0).UTC(), *rec.LastChange)
}

func TestParse_InterfaceCoercionFailures(t *testing.T) {
	tests := []struct {
		field string
		value string
	}{
		{"mtu", "jumbo"},
		{"in_octets", "-5"},
		{"speed", "1.5"},
		{"last_change", "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			env := telemetry.RawEnvelope{Path: ".node.n.interface", Entries: []telemetry.Entry{{
				Keys:   telemetry.Values{"node_name": "n", "interface_name": "e1"},
				Fields: telemetry.Values{tt.field: tt.value},
			}}}
			results := newTestParser().Parse(env)
			require.Len(t, results, 1)
			require.NotNil(t, results[0].Err)
			assert.Equal(t, "type_coercion_failed:"+tt.field, results[0].Err.Reason)
			assert.Equal(t, "parse_error:type_coercion_failed", results[0].Err.ConditionKey())
			assert.ErrorIs(t, results[0].Err, errors.ErrTypeCoercion)
		})
	}
}

func TestParse_NodeFields(t *testing.T) {
	env := telemetry.RawEnvelope{Path: ".node.r1", Entries: []telemetry.Entry{
		{
			Keys:   telemetry.Values{"node_name": "r1"},
			Fields: telemetry.Values{"system_ip": "10.0.0.1", "mgmt_ip": "192.168.1.1", "vendor": "nokia"},
		},
		{
			Keys:   telemetry.Values{"node_name": "r2"},
			Fields: telemetry.Values{"mgmt_ip": "not-an-ip"},
		},
	}}

	results := newTestParser().Parse(env)
	require.Len(t, results, 2)

	node := results[0].Record.(telemetry.NodeRecord)
	assert.Equal(t, "r1", node.NodeName)
	assert.Equal(t, "10.0.0.1", node.SystemIP)
	assert.Equal(t, "192.168.1.1", node.MgmtIP)
	assert.Equal(t, map[string]string{"vendor": "nokia"}, node.Attributes)

	require.NotNil(t, results[1].Err)
	assert.Equal(t, "type_coercion_failed:mgmt_ip", results[1].Err.Reason)
}

func TestParse_Idempotent(t *testing.T) {
	env := decode(t, `{"path":".node.srl.interface.status","entries":[
		{"keys":{"node_name":"srl","interface_name":"e1"},"fields":{"admin_status":"up","mtu":"1500"}},
		{"keys":{"node_name":"srl","interface_name":"e2"},"fields":{"admin_status":"down"}}]}`)

	p := newTestParser()
	first := p.Parse(env)
	second := p.Parse(env)
	assert.Equal(t, first, second)
}

func TestParse_DefaultBatchIDFollowsContent(t *testing.T) {
	env := decode(t, `{"path":".node","entries":[{"keys":{"node_name":"a"},"fields":{"x":"1","y":"2"}}]}`)
	reordered := decode(t, `{"path":".node","entries":[{"fields":{"y":"2","x":"1"},"keys":{"node_name":"a"}}]}`)
	other := decode(t, `{"path":".node","entries":[{"keys":{"node_name":"b"}}]}`)

	// Only the processing time is injected; the batch ID comes from content
	p := New(WithClock(func() time.Time { return fixedTime }))
	first := p.Parse(env)
	if diff := cmp.Diff(first, p.Parse(env)); diff != "" {
		t.Errorf("re-parse differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, p.Parse(reordered)); diff != "" {
		t.Errorf("member order changed the records (-first +reordered):\n%s", diff)
	}

	assert.Equal(t, ContentBatchID(env), first[0].Record.Metadata().BatchID)
	assert.NotEqual(t, ContentBatchID(env), ContentBatchID(other))
}

func TestParse_SiblingsShareBatch(t *testing.T) {
	env := telemetry.RawEnvelope{Path: ".node", Entries: []telemetry.Entry{
		{Keys: telemetry.Values{"node_name": "a"}},
		{Keys: telemetry.Values{"node_name": "b"}},
	}}

	results := New().Parse(env)
	require.Len(t, results, 2)
	a := results[0].Record.Metadata()
	b := results[1].Record.Metadata()
	assert.NotEmpty(t, a.BatchID)
	assert.Equal(t, a.BatchID, b.BatchID)
	assert.Equal(t, a.Timestamp, b.Timestamp)
}

func TestParse_ErrorCarriesSiblingBatch(t *testing.T) {
	env := telemetry.RawEnvelope{Path: ".node", Entries: []telemetry.Entry{
		{Keys: telemetry.Values{"node_name": "a"}},
		{Keys: telemetry.Values{}},
	}}

	results := New().Parse(env)
	require.Len(t, results, 2)
	require.NotNil(t, results[1].Err)
	assert.Equal(t, results[0].Record.Metadata().BatchID, results[1].Err.BatchID())

	unknown := New().Parse(telemetry.RawEnvelope{Path: ".bogus", Entries: []telemetry.Entry{{}}})
	require.Len(t, unknown, 1)
	assert.NotEmpty(t, unknown[0].Err.BatchID())
}

func TestParseError_Error(t *testing.T) {
	err := coercionFailed(".node", 3, "mtu", assert.AnError)
	assert.Contains(t, err.Error(), `".node" entry 3: type_coercion_failed:mtu`)
	assert.Equal(t, ReasonTypeCoercion, err.Class())
}
