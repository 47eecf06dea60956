package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawEnvelope is one telemetry update for one path. Each entry expands into
// at most one record.
type RawEnvelope struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

// Entry holds the identity keys and descriptive fields of one update.
type Entry struct {
	Keys   Values `json:"keys"`
	Fields Values `json:"fields"`
}

// Values is a string-to-string mapping. Collectors emit some leaves as JSON
// numbers or booleans; those are kept in their textual form. Null values are
// dropped.
type Values map[string]string

// UnmarshalJSON decodes an object whose members are JSON scalars.
func (v *Values) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Values, len(raw))
	for key, value := range raw {
		s, ok, err := scalarString(value)
		if err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		if ok {
			out[key] = s
		}
	}
	*v = out
	return nil
}

func scalarString(value json.RawMessage) (string, bool, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return "", false, nil
	}

	switch value[0] {
	case 'n':
		return "", false, nil
	case '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return "", false, err
		}
		return strconv.FormatBool(b), true, nil
	case '{', '[':
		return "", false, fmt.Errorf("expected scalar, got %s", value[:1])
	default:
		var n json.Number
		if err := json.Unmarshal(value, &n); err != nil {
			return "", false, err
		}
		return n.String(), true, nil
	}
}
