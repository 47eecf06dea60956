package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/c360/netstreams/pkg/timestamp"
)

// Columnar rows written by the exporter, one struct per kind. Timestamps are
// stored as UTC milliseconds.

// NodeRow is the parquet schema of the node export.
type NodeRow struct {
	BatchID    string  `parquet:"name=batch_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	SourcePath string  `parquet:"name=source_path,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp  int64   `parquet:"name=timestamp,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	NodeName   string  `parquet:"name=node_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	SystemIP   *string `parquet:"name=system_ip,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	MgmtIP     *string `parquet:"name=mgmt_ip,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
	// Attributes is the JSON object of remaining fields
	Attributes string `parquet:"name=attributes,type=BYTE_ARRAY,convertedtype=UTF8"`
}

// InterfaceRow is the parquet schema of the interface export.
type InterfaceRow struct {
	BatchID       string  `parquet:"name=batch_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	SourcePath    string  `parquet:"name=source_path,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp     int64   `parquet:"name=timestamp,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	NodeName      string  `parquet:"name=node_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	InterfaceName string  `parquet:"name=interface_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	InterfaceType string  `parquet:"name=interface_type,type=BYTE_ARRAY,convertedtype=UTF8"`
	AdminStatus   string  `parquet:"name=admin_status,type=BYTE_ARRAY,convertedtype=UTF8"`
	OperStatus    string  `parquet:"name=oper_status,type=BYTE_ARRAY,convertedtype=UTF8"`
	Description   string  `parquet:"name=description,type=BYTE_ARRAY,convertedtype=UTF8"`
	MTU           *int64  `parquet:"name=mtu,type=INT64,repetitiontype=OPTIONAL"`
	Speed         *int64  `parquet:"name=speed,type=INT64,repetitiontype=OPTIONAL"`
	LastChange    *int64  `parquet:"name=last_change,type=INT64,convertedtype=TIMESTAMP_MILLIS,repetitiontype=OPTIONAL"`
	InOctets      *int64  `parquet:"name=in_octets,type=INT64,repetitiontype=OPTIONAL"`
	OutOctets     *int64  `parquet:"name=out_octets,type=INT64,repetitiontype=OPTIONAL"`
	InPackets     *int64  `parquet:"name=in_packets,type=INT64,repetitiontype=OPTIONAL"`
	OutPackets    *int64  `parquet:"name=out_packets,type=INT64,repetitiontype=OPTIONAL"`
	InErrors      *int64  `parquet:"name=in_errors,type=INT64,repetitiontype=OPTIONAL"`
	OutErrors     *int64  `parquet:"name=out_errors,type=INT64,repetitiontype=OPTIONAL"`
}

// AddressRow is the parquet schema of the address export.
type AddressRow struct {
	BatchID           string `parquet:"name=batch_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	SourcePath        string `parquet:"name=source_path,type=BYTE_ARRAY,convertedtype=UTF8"`
	Timestamp         int64  `parquet:"name=timestamp,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	NodeName          string `parquet:"name=node_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	InterfaceName     string `parquet:"name=interface_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	SubinterfaceIndex string `parquet:"name=subinterface_index,type=BYTE_ARRAY,convertedtype=UTF8"`
	AddressIPPrefix   string `parquet:"name=address_ip_prefix,type=BYTE_ARRAY,convertedtype=UTF8"`
	Family            string `parquet:"name=family,type=BYTE_ARRAY,convertedtype=UTF8"`
	Origin            string `parquet:"name=origin,type=BYTE_ARRAY,convertedtype=UTF8"`
	Status            string `parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
}

// RowSchema returns a pointer to the zero row of kind, as the parquet writer
// expects for schema inference.
func RowSchema(kind Kind) (any, error) {
	switch kind {
	case KindNode:
		return new(NodeRow), nil
	case KindInterface:
		return new(InterfaceRow), nil
	case KindAddress:
		return new(AddressRow), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Row implements Record.
func (r NodeRecord) Row() any {
	attrs := "{}"
	if len(r.Attributes) > 0 {
		if b, err := json.Marshal(r.Attributes); err == nil {
			attrs = string(b)
		}
	}
	return NodeRow{
		BatchID:    r.BatchID,
		SourcePath: r.SourcePath,
		Timestamp:  timestamp.ToUnixMs(r.Timestamp),
		NodeName:   r.NodeName,
		SystemIP:   optional(r.SystemIP),
		MgmtIP:     optional(r.MgmtIP),
		Attributes: attrs,
	}
}

// Row implements Record.
func (r InterfaceRecord) Row() any {
	row := InterfaceRow{
		BatchID:       r.BatchID,
		SourcePath:    r.SourcePath,
		Timestamp:     timestamp.ToUnixMs(r.Timestamp),
		NodeName:      r.NodeName,
		InterfaceName: r.InterfaceName,
		InterfaceType: r.InterfaceType,
		AdminStatus:   r.AdminStatus,
		OperStatus:    r.OperStatus,
		Description:   r.Description,
		MTU:           r.MTU,
		Speed:         r.Speed,
		InOctets:      r.InOctets,
		OutOctets:     r.OutOctets,
		InPackets:     r.InPackets,
		OutPackets:    r.OutPackets,
		InErrors:      r.InErrors,
		OutErrors:     r.OutErrors,
	}
	if r.LastChange != nil {
		ms := timestamp.ToUnixMs(*r.LastChange)
		row.LastChange = &ms
	}
	return row
}

// Row implements Record.
func (r AddressRecord) Row() any {
	return AddressRow{
		BatchID:           r.BatchID,
		SourcePath:        r.SourcePath,
		Timestamp:         timestamp.ToUnixMs(r.Timestamp),
		NodeName:          r.NodeName,
		InterfaceName:     r.InterfaceName,
		SubinterfaceIndex: r.SubinterfaceIndex,
		AddressIPPrefix:   r.AddressIPPrefix,
		Family:            r.Family,
		Origin:            r.Origin,
		Status:            r.Status,
	}
}
