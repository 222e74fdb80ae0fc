package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ParseError is returned when a document payload cannot be decoded
type ParseError struct {
	Err     error
	Message string
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is, or wraps, a ParseError
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// Parse decodes a document payload. The payload is either a JSON object or a
// JSON string whose content is itself a serialized JSON object.
func Parse(payload []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, &ParseError{Message: "empty document payload"}
	}

	if trimmed[0] == '"' {
		var blob string
		if err := json.Unmarshal(trimmed, &blob); err != nil {
			return nil, &ParseError{Err: err, Message: "invalid serialized document"}
		}
		trimmed = bytes.TrimSpace([]byte(blob))
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, &ParseError{Err: err, Message: "document is not a JSON object"}
	}
	if data == nil {
		return nil, &ParseError{Message: "document is null"}
	}
	if dec.More() {
		return nil, &ParseError{Message: "trailing data after document"}
	}

	return New(data), nil
}

// FromValue converts an already-decoded payload (a map, or a string blob) to
// a Snapshot
func FromValue(v any) (*Snapshot, error) {
	switch val := v.(type) {
	case nil:
		return nil, &ParseError{Message: "document is null"}
	case *Snapshot:
		return val, nil
	case map[string]any:
		return New(val), nil
	case string:
		return Parse([]byte(val))
	case []byte:
		return Parse(val)
	case json.RawMessage:
		return Parse(val)
	default:
		normalized, ok := Normalize(val).(map[string]any)
		if !ok {
			return nil, &ParseError{Message: fmt.Sprintf("unsupported document type %T", v)}
		}
		return New(normalized), nil
	}
}
