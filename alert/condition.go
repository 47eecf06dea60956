package alert

import "strings"

// Condition keys raised by the pipeline. Parse failures use the
// ParseError's own ConditionKey.
const (
	InvalidEnvelope = "parse_error:invalid_envelope"
	ShutdownLoss    = "shutdown_loss"
)

// SinkFailure is raised when a sink exhausts its retries for a record.
func SinkFailure(sink string) string {
	return "sink_failure:" + sink
}

// ExportFailure is raised for every failed flush of kind.
func ExportFailure(kind string) string {
	return "export_failure:" + kind
}

// ExportOverflow is raised when a retained batch of kind is dropped.
func ExportOverflow(kind string) string {
	return "export_overflow:" + kind
}

// InterfaceDown is raised when an enabled interface reports oper status down.
func InterfaceDown(node, iface string) string {
	return "interface_down:" + node + "/" + iface
}

// Class returns the part of a condition key before the first colon.
func Class(key string) string {
	class, _, _ := strings.Cut(key, ":")
	return class
}

type batchError struct {
	err     error
	batchID string
}

// WithBatchID attaches the batch ID of the records behind err. The gate
// reports it as the notification's batch_id.
func WithBatchID(err error, batchID string) error {
	if err == nil || batchID == "" {
		return err
	}
	return &batchError{err: err, batchID: batchID}
}

func (e *batchError) Error() string   { return e.err.Error() }
func (e *batchError) Unwrap() error   { return e.err }
func (e *batchError) BatchID() string { return e.batchID }
