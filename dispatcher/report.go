package dispatcher

import "github.com/c360/netstreams/telemetry"

// Report summarizes one Dispatch call. It is for observability only.
type Report struct {
	Envelopes   int
	Parsed      map[telemetry.Kind]int
	ParseErrors int
	// ParseErrorReasons counts parse errors by reason class
	ParseErrorReasons map[string]int
	// Delivered counts successful deliveries per sink
	Delivered map[string]int
	// SinkFailures counts deliveries that failed after retries, per sink
	SinkFailures map[string]int
	// Anomalies counts records that triggered each rule
	Anomalies map[string]int
}

// NewReport returns an empty report with initialized maps.
func NewReport() Report {
	return Report{
		Parsed:            make(map[telemetry.Kind]int),
		ParseErrorReasons: make(map[string]int),
		Delivered:         make(map[string]int),
		SinkFailures:      make(map[string]int),
		Anomalies:         make(map[string]int),
	}
}

// Merge adds other into r.
func (r *Report) Merge(other Report) {
	if r.Parsed == nil {
		*r = mergeInto(NewReport(), *r)
	}
	*r = mergeInto(*r, other)
}

func mergeInto(dst, src Report) Report {
	dst.Envelopes += src.Envelopes
	dst.ParseErrors += src.ParseErrors
	for k, v := range src.Parsed {
		dst.Parsed[k] += v
	}
	for k, v := range src.ParseErrorReasons {
		dst.ParseErrorReasons[k] += v
	}
	for k, v := range src.Delivered {
		dst.Delivered[k] += v
	}
	for k, v := range src.SinkFailures {
		dst.SinkFailures[k] += v
	}
	for k, v := range src.Anomalies {
		dst.Anomalies[k] += v
	}
	return dst
}

// TotalParsed returns the number of records parsed across kinds.
func (r Report) TotalParsed() int {
	total := 0
	for _, n := range r.Parsed {
		total += n
	}
	return total
}

// TotalSinkFailures returns the number of failed deliveries across sinks.
func (r Report) TotalSinkFailures() int {
	total := 0
	for _, n := range r.SinkFailures {
		total += n
	}
	return total
}
