package parser

import (
	"fmt"
	"strings"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/telemetry"
)

// Reason classes carried by ParseError.
const (
	ReasonUnknownPath  = "unknown_path"
	ReasonMissingKey   = "missing_key"
	ReasonTypeCoercion = "type_coercion_failed"
)

// ParseError reports an entry that could not be turned into a record. It is
// returned as a value and never aborts sibling entries.
type ParseError struct {
	Path  string
	Index int
	// Reason is "unknown_path", "missing_key:<name>" or
	// "type_coercion_failed:<field>"
	Reason string
	// Cause is the underlying conversion error, if any
	Cause error
	// Batch is the batch ID the entry's records would have carried
	Batch string
}

func unknownPath(path string, index int) *ParseError {
	return &ParseError{Path: path, Index: index, Reason: ReasonUnknownPath}
}

func missingKey(path string, index int, key string) *ParseError {
	return &ParseError{Path: path, Index: index, Reason: ReasonMissingKey + ":" + key}
}

func coercionFailed(path string, index int, field string, cause error) *ParseError {
	return &ParseError{Path: path, Index: index, Reason: ReasonTypeCoercion + ":" + field, Cause: cause}
}

func (e *ParseError) inBatch(meta telemetry.Meta) *ParseError {
	e.Batch = meta.BatchID
	return e
}

// BatchID lets alerts correlate the failure with the envelope's records.
func (e *ParseError) BatchID() string {
	return e.Batch
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %q entry %d: %s", e.Path, e.Index, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Class returns the reason without its qualifier.
func (e *ParseError) Class() string {
	class, _, _ := strings.Cut(e.Reason, ":")
	return class
}

// ConditionKey is the alert condition for this class of failure.
func (e *ParseError) ConditionKey() string {
	return "parse_error:" + e.Class()
}

// Unwrap returns the sentinel for the reason class, so errors.Is and
// errors.IsInvalid work on a ParseError.
func (e *ParseError) Unwrap() error {
	switch e.Class() {
	case ReasonUnknownPath:
		return errors.ErrUnknownPath
	case ReasonMissingKey:
		return errors.ErrMissingKey
	case ReasonTypeCoercion:
		return errors.ErrTypeCoercion
	default:
		return errors.ErrParsingFailed
	}
}
