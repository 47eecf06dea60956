package engine

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/telemetry"
)

// envelopeSchema describes one envelope. Arrays around envelopes are
// unwrapped before validation, so each envelope is judged on its own.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "$ref": "#/definitions/envelope",
  "definitions": {
    "scalars": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
    },
    "envelope": {
      "type": "object",
      "required": ["path", "entries"],
      "properties": {
        "path": {"type": "string"},
        "entries": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "keys": {"$ref": "#/definitions/scalars"},
              "fields": {"$ref": "#/definitions/scalars"}
            }
          }
        }
      }
    }
  }
}`

// Decoded is the outcome of decoding one message payload.
type Decoded struct {
	// Envelopes that passed validation, in document order
	Envelopes []telemetry.RawEnvelope
	// Rejected holds one error per item that is not a valid envelope
	Rejected []error
}

// Decoder turns input message payloads into envelopes.
type Decoder struct {
	schema *gojsonschema.Schema
}

// NewDecoder compiles the envelope schema.
func NewDecoder() (*Decoder, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		return nil, errors.WrapFatal(err, "Decoder", "NewDecoder", "compile envelope schema")
	}
	return &Decoder{schema: schema}, nil
}

// Decode splits data into envelopes. Nested arrays are flattened and every
// item is validated separately: an invalid item is reported in Rejected
// without affecting its siblings. The error is set only when data is empty
// or not JSON at all. An empty array yields no envelopes.
func (d *Decoder) Decode(data []byte) (Decoded, error) {
	var out Decoded
	if len(bytes.TrimSpace(data)) == 0 {
		return out, errors.WrapInvalid(errors.ErrInvalidData, "Decoder", "Decode", "empty payload")
	}
	if !json.Valid(data) {
		return out, errors.WrapInvalid(fmt.Errorf("%w: payload is not JSON", errors.ErrInvalidData),
			"Decoder", "Decode", "parse payload")
	}

	d.walk(json.RawMessage(data), "", &out)
	return out, nil
}

// walk descends into arrays and decodes every other value as an envelope.
func (d *Decoder) walk(item json.RawMessage, at string, out *Decoded) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(item, &items); err != nil {
			out.Rejected = append(out.Rejected, rejection(at, err))
			return
		}
		for i, child := range items {
			d.walk(child, itemPath(at, i), out)
		}
		return
	}

	env, err := d.envelope(item)
	if err != nil {
		out.Rejected = append(out.Rejected, rejection(at, err))
		return
	}
	out.Envelopes = append(out.Envelopes, env)
}

func (d *Decoder) envelope(item json.RawMessage) (telemetry.RawEnvelope, error) {
	var env telemetry.RawEnvelope

	result, err := d.schema.Validate(gojsonschema.NewBytesLoader(item))
	if err != nil {
		return env, err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return env, stderrors.New(strings.Join(msgs, "; "))
	}

	err = json.Unmarshal(item, &env)
	return env, err
}

func itemPath(parent string, i int) string {
	if parent == "" {
		return strconv.Itoa(i)
	}
	return parent + "." + strconv.Itoa(i)
}

func rejection(at string, err error) error {
	where := "payload"
	if at != "" {
		where = "item " + at
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s: %w", errors.ErrInvalidData, where, err),
		"Decoder", "Decode", "validate envelope")
}
