// Package telemetry defines the envelope read from the input stream and the
// normalized entity records derived from it.
//
// A RawEnvelope carries a dotted path and a list of entries. The parser turns
// each entry into one Record: a NodeRecord, InterfaceRecord or AddressRecord.
// Record is a closed interface; switch on the concrete type to handle each
// kind.
//
// Records have two encodings. Marshal produces the JSON published to the
// per-kind topic, and Row returns the struct written to the columnar export,
// whose parquet schema is given by struct tags on NodeRow, InterfaceRow and
// AddressRow.
package telemetry
