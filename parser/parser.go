package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/c360/netstreams/pkg/timestamp"
	"github.com/c360/netstreams/telemetry"
)

// Result is the outcome of parsing one entry: exactly one of Record and Err
// is set.
type Result struct {
	Record telemetry.Record
	Err    *ParseError
}

// OK reports whether the entry produced a record.
func (r Result) OK() bool {
	return r.Err == nil && r.Record != nil
}

// Parser maps envelopes to records. It holds no mutable state and is safe
// for concurrent use.
//
// Re-parsing an envelope yields the same records apart from Timestamp,
// which is the processing time: the default batch ID is derived from the
// envelope content, so a redelivered envelope keeps its batch ID.
type Parser struct {
	now     func() time.Time
	batchID func(env telemetry.RawEnvelope) string
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithBatchID replaces the content-derived batch ID with gen.
func WithBatchID(gen func() string) Option {
	return func(p *Parser) {
		if gen != nil {
			p.batchID = func(telemetry.RawEnvelope) string { return gen() }
		}
	}
}

// batchNamespace scopes content-derived batch IDs.
var batchNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:netstreams:envelope"))

// ContentBatchID returns a name-based UUID over the envelope path and
// entries. Map keys are encoded in sorted order, so equal envelopes get
// equal IDs.
func ContentBatchID(env telemetry.RawEnvelope) string {
	data, err := json.Marshal(env)
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(batchNamespace, data).String()
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		now:     time.Now,
		batchID: ContentBatchID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns one Result per entry of env, in entry order. Entries of the
// same envelope share a batch ID and timestamp.
func (p *Parser) Parse(env telemetry.RawEnvelope) []Result {
	results := make([]Result, 0, len(env.Entries))
	if len(env.Entries) == 0 {
		return results
	}

	rt, ok := resolve(env.Path)
	meta := telemetry.Meta{
		BatchID:    p.batchID(env),
		SourcePath: env.Path,
		Timestamp:  p.now().UTC(),
	}

	for i, entry := range env.Entries {
		if !ok {
			results = append(results, Result{Err: unknownPath(env.Path, i).inBatch(meta)})
			continue
		}

		var (
			rec telemetry.Record
			err *ParseError
		)
		switch rt.kind {
		case telemetry.KindNode:
			rec, err = parseNode(meta, i, entry)
		case telemetry.KindInterface:
			rec, err = parseInterface(meta, i, entry)
		case telemetry.KindAddress:
			rec, err = parseAddress(meta, i, entry, rt.family)
		}
		if err != nil {
			results = append(results, Result{Err: err.inBatch(meta)})
			continue
		}
		results = append(results, Result{Record: rec})
	}

	return results
}

func required(meta telemetry.Meta, index int, keys telemetry.Values, names ...string) (map[string]string, *ParseError) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		v := keys[name]
		if v == "" {
			return nil, missingKey(meta.SourcePath, index, name)
		}
		out[name] = v
	}
	return out, nil
}

func parseNode(meta telemetry.Meta, index int, entry telemetry.Entry) (telemetry.Record, *ParseError) {
	keys, perr := required(meta, index, entry.Keys, "node_name")
	if perr != nil {
		return nil, perr
	}

	rec := telemetry.NodeRecord{Meta: meta, NodeName: keys["node_name"]}

	for _, field := range []string{"system_ip", "mgmt_ip"} {
		v := entry.Fields[field]
		if v == "" {
			continue
		}
		if _, err := netip.ParseAddr(v); err != nil {
			return nil, coercionFailed(meta.SourcePath, index, field, err)
		}
	}
	rec.SystemIP = entry.Fields["system_ip"]
	rec.MgmtIP = entry.Fields["mgmt_ip"]

	for k, v := range entry.Fields {
		if k == "system_ip" || k == "mgmt_ip" {
			continue
		}
		if rec.Attributes == nil {
			rec.Attributes = make(map[string]string)
		}
		rec.Attributes[k] = v
	}

	return rec, nil
}

var interfaceCounters = []string{"in_octets", "out_octets", "in_packets", "out_packets", "in_errors", "out_errors"}

func parseInterface(meta telemetry.Meta, index int, entry telemetry.Entry) (telemetry.Record, *ParseError) {
	keys, perr := required(meta, index, entry.Keys, "node_name", "interface_name")
	if perr != nil {
		return nil, perr
	}

	f := entry.Fields
	rec := telemetry.InterfaceRecord{
		Meta:          meta,
		NodeName:      keys["node_name"],
		InterfaceName: keys["interface_name"],
		InterfaceType: firstOf(f, "interface_type", "type"),
		AdminStatus:   f["admin_status"],
		OperStatus:    f["oper_status"],
		Description:   f["description"],
	}

	numbers := map[string]**int64{
		"mtu":         &rec.MTU,
		"speed":       &rec.Speed,
		"in_octets":   &rec.InOctets,
		"out_octets":  &rec.OutOctets,
		"in_packets":  &rec.InPackets,
		"out_packets": &rec.OutPackets,
		"in_errors":   &rec.InErrors,
		"out_errors":  &rec.OutErrors,
	}
	// Deterministic order so the first failing field is stable
	for _, field := range append([]string{"mtu", "speed"}, interfaceCounters...) {
		n, present, err := nonNegativeInt(f[field])
		if err != nil {
			return nil, coercionFailed(meta.SourcePath, index, field, err)
		}
		if present {
			*numbers[field] = &n
		}
	}

	if v := f["last_change"]; v != "" {
		ts, err := timestamp.Parse(v)
		if err != nil {
			return nil, coercionFailed(meta.SourcePath, index, "last_change", err)
		}
		rec.LastChange = &ts
	}

	return rec, nil
}

func parseAddress(meta telemetry.Meta, index int, entry telemetry.Entry, family string) (telemetry.Record, *ParseError) {
	keys, perr := required(meta, index, entry.Keys, "node_name", "interface_name", "subinterface_index")
	if perr != nil {
		return nil, perr
	}

	prefix := firstOf(entry.Keys, "address_ip-prefix", "address_ip_prefix")
	if prefix == "" {
		return nil, missingKey(meta.SourcePath, index, "address_ip-prefix")
	}

	parsed, err := netip.ParsePrefix(prefix)
	if err != nil {
		return nil, coercionFailed(meta.SourcePath, index, "address_ip_prefix", err)
	}
	if parsed.Addr().Is4() != (family == "ipv4") {
		return nil, coercionFailed(meta.SourcePath, index, "address_ip_prefix",
			fmt.Errorf("%s is not an %s prefix", prefix, family))
	}

	return telemetry.AddressRecord{
		Meta:              meta,
		NodeName:          keys["node_name"],
		InterfaceName:     keys["interface_name"],
		SubinterfaceIndex: keys["subinterface_index"],
		AddressIPPrefix:   prefix,
		Family:            family,
		Origin:            entry.Fields["origin"],
		Status:            entry.Fields["status"],
	}, nil
}

func firstOf(values telemetry.Values, names ...string) string {
	for _, name := range names {
		if v := values[name]; v != "" {
			return v
		}
	}
	return ""
}

// nonNegativeInt parses a decimal or integral float string. An empty string
// is absent, not an error.
func nonNegativeInt(s string) (int64, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false, fmt.Errorf("negative value %d", n)
		}
		return n, true, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("not a number: %q", s)
	}
	if f < 0 || f != math.Trunc(f) || f >= 1<<63 {
		return 0, false, fmt.Errorf("not a non-negative integer: %q", s)
	}
	return int64(f), true, nil
}
