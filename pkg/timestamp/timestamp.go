// Package timestamp converts between time.Time, Unix milliseconds and the
// textual timestamps collectors emit.
//
// Unix milliseconds are the canonical stored form: columnar rows carry them
// in INT64 TIMESTAMP_MILLIS columns. A value of 0 means "not set".
package timestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bounds of accepted epoch values. Integers at or below secondsLimit are
// seconds, anything larger is milliseconds.
const (
	secondsLimit = 1e12
	maxMillis    = 32503680000000 // year 3000
)

// layouts are tried in order by Parse.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToUnixMs converts t to Unix milliseconds. The zero time maps to 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to a UTC time. 0 maps to the zero time.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Format renders ms as RFC 3339 in UTC, or "" when ms is 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return FromUnixMs(ms).Format(time.RFC3339Nano)
}

// Parse reads an ISO 8601 timestamp or a Unix epoch in seconds or
// milliseconds. Timestamps without a zone are taken as UTC. The result is
// always UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		ms := n
		if n <= secondsLimit {
			ms = n * 1000
		}
		if err := Validate(ms); err != nil {
			return time.Time{}, err
		}
		return FromUnixMs(ms), nil
	}

	return time.Time{}, fmt.Errorf("not an ISO 8601 timestamp or Unix epoch: %q", s)
}

// Validate checks ms is non-negative and before year 3000.
func Validate(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("timestamp cannot be negative: %d", ms)
	}
	if ms > maxMillis {
		return fmt.Errorf("timestamp too far in future: %d", ms)
	}
	return nil
}
