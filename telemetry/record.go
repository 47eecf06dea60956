package telemetry

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind identifies an entity stream.
type Kind string

// Entity kinds.
const (
	KindNode      Kind = "node"
	KindInterface Kind = "interface"
	KindAddress   Kind = "address"
)

// Kinds returns every entity kind in routing order.
func Kinds() []Kind {
	return []Kind{KindNode, KindInterface, KindAddress}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNode, KindInterface, KindAddress:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// Record is a normalized entity. The concrete types are NodeRecord,
// InterfaceRecord and AddressRecord; records are values and are never
// modified after the parser builds them.
type Record interface {
	Kind() Kind
	// Identity is the "/"-joined identity key of the entity.
	Identity() string
	// Metadata returns the processing metadata shared by every kind.
	Metadata() Meta
	// Row returns the columnar row written by the exporter.
	Row() any

	sealed()
}

// Meta is processing metadata attached to every record.
type Meta struct {
	// BatchID correlates records parsed from the same envelope
	BatchID    string    `json:"batch_id"`
	SourcePath string    `json:"source_path"`
	Timestamp  time.Time `json:"timestamp"`
}

// NodeRecord describes a network device.
type NodeRecord struct {
	Meta
	NodeName string `json:"node_name"`
	SystemIP string `json:"system_ip,omitempty"`
	MgmtIP   string `json:"mgmt_ip,omitempty"`
	// Attributes holds the remaining fields of the entry
	Attributes map[string]string `json:"attributes,omitempty"`
}

// InterfaceRecord describes the state and counters of one interface.
// Status and statistics updates populate different subsets of fields.
type InterfaceRecord struct {
	Meta
	NodeName      string     `json:"node_name"`
	InterfaceName string     `json:"interface_name"`
	InterfaceType string     `json:"interface_type,omitempty"`
	AdminStatus   string     `json:"admin_status,omitempty"`
	OperStatus    string     `json:"oper_status,omitempty"`
	Description   string     `json:"description,omitempty"`
	MTU           *int64     `json:"mtu,omitempty"`
	Speed         *int64     `json:"speed,omitempty"`
	LastChange    *time.Time `json:"last_change,omitempty"`
	InOctets      *int64     `json:"in_octets,omitempty"`
	OutOctets     *int64     `json:"out_octets,omitempty"`
	InPackets     *int64     `json:"in_packets,omitempty"`
	OutPackets    *int64     `json:"out_packets,omitempty"`
	InErrors      *int64     `json:"in_errors,omitempty"`
	OutErrors     *int64     `json:"out_errors,omitempty"`
}

// AddressRecord describes an IP prefix assigned to a subinterface.
type AddressRecord struct {
	Meta
	NodeName          string `json:"node_name"`
	InterfaceName     string `json:"interface_name"`
	SubinterfaceIndex string `json:"subinterface_index"`
	AddressIPPrefix   string `json:"address_ip_prefix"`
	Family            string `json:"family"`
	Origin            string `json:"origin,omitempty"`
	Status            string `json:"status,omitempty"`
}

func (NodeRecord) Kind() Kind      { return KindNode }
func (InterfaceRecord) Kind() Kind { return KindInterface }
func (AddressRecord) Kind() Kind   { return KindAddress }

func (r NodeRecord) Identity() string { return r.NodeName }

func (r InterfaceRecord) Identity() string {
	return strings.Join([]string{r.NodeName, r.InterfaceName}, "/")
}

func (r AddressRecord) Identity() string {
	return strings.Join([]string{r.NodeName, r.InterfaceName, r.SubinterfaceIndex, r.AddressIPPrefix}, "/")
}

func (r NodeRecord) Metadata() Meta      { return r.Meta }
func (r InterfaceRecord) Metadata() Meta { return r.Meta }
func (r AddressRecord) Metadata() Meta   { return r.Meta }

func (NodeRecord) sealed()      {}
func (InterfaceRecord) sealed() {}
func (AddressRecord) sealed()   {}

// Marshal encodes a record as the JSON message published to its topic.
func Marshal(r Record) ([]byte, error) {
	return json.Marshal(r)
}
