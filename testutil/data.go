package testutil

import (
	"fmt"

	"github.com/c360/netstreams/telemetry"
)

// Sample telemetry payloads as they arrive on the input stream.

// AddressEnvelopeJSON is a single address envelope.
const AddressEnvelopeJSON = `{
  "path": ".node.srl.interface.subinterface.ipv4.address",
  "entries": [
    {
      "keys": {
        "address_ip-prefix": "12.0.0.0/31",
        "interface_name": "ethernet-1/33",
        "node_name": "srl-os",
        "subinterface_index": "0"
      },
      "fields": {"origin": "static", "status": "preferred"}
    }
  ]
}`

// InterfaceEnvelopeJSON is an interface envelope with statistics counters.
const InterfaceEnvelopeJSON = `{
  "path": ".node.srl.interface.statistics",
  "entries": [
    {
      "keys": {"node_name": "srl-os", "interface_name": "ethernet-1/1"},
      "fields": {
        "admin_status": "enable",
        "oper_status": "up",
        "mtu": "9232",
        "in_octets": "1024",
        "out_octets": 2048,
        "last_change": "2024-01-15T10:30:00Z"
      }
    }
  ]
}`

// NodeEnvelopeJSON is a node envelope.
const NodeEnvelopeJSON = `{
  "path": ".node",
  "entries": [
    {
      "keys": {"node_name": "srl-os"},
      "fields": {"system_ip": "10.0.0.1", "mgmt_ip": "172.20.20.2", "version": "v24.3.1"}
    }
  ]
}`

// MixedEnvelopesJSON is an array of envelopes, one of them nested.
var MixedEnvelopesJSON = fmt.Sprintf(`[%s, [%s, %s]]`,
	NodeEnvelopeJSON, InterfaceEnvelopeJSON, AddressEnvelopeJSON)

// MalformedPayloads cannot be decoded as envelopes.
var MalformedPayloads = []string{
	`not json`,
	`{"path": 42, "entries": []}`,
	`{"entries": [{"keys": {"node_name": "x"}}]}`,
	`{"path": ".node", "entries": "nope"}`,
	`"just a string"`,
}

// NodeEnvelope builds a node envelope with one entry per name.
func NodeEnvelope(names ...string) telemetry.RawEnvelope {
	env := telemetry.RawEnvelope{Path: ".node"}
	for _, n := range names {
		env.Entries = append(env.Entries, telemetry.Entry{Keys: telemetry.Values{"node_name": n}})
	}
	return env
}

// AddressEnvelope builds an ipv4 address envelope with one entry per prefix.
func AddressEnvelope(node, iface string, prefixes ...string) telemetry.RawEnvelope {
	env := telemetry.RawEnvelope{Path: ".node." + node + ".interface.subinterface.ipv4.address"}
	for _, p := range prefixes {
		env.Entries = append(env.Entries, telemetry.Entry{
			Keys: telemetry.Values{
				"node_name":          node,
				"interface_name":     iface,
				"subinterface_index": "0",
				"address_ip-prefix":  p,
			},
			Fields: telemetry.Values{"origin": "static", "status": "preferred"},
		})
	}
	return env
}
