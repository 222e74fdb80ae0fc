package docstore

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/stacklok/poolsync/internal/snapshot"
)

// DecodeDocument turns a document payload into a Snapshot. It accepts a
// document resource with typed "fields", a plain JSON object, or a JSON string
// holding a serialized object. Failures are *snapshot.ParseError.
func DecodeDocument(payload []byte) (*snapshot.Snapshot, error) {
	if !gjson.ValidBytes(payload) {
		return nil, &snapshot.ParseError{Message: "document payload is not valid JSON"}
	}

	doc := gjson.ParseBytes(payload)
	if !isDocumentResource(doc) {
		return snapshot.Parse(payload)
	}

	// an empty document carries no "fields" member
	data := map[string]any{}
	if fields := doc.Get("fields"); fields.Exists() {
		decoded, err := decodeFields(fields)
		if err != nil {
			return nil, &snapshot.ParseError{Err: err, Message: "invalid document fields"}
		}
		data = decoded
	}
	return snapshot.New(data), nil
}

// isDocumentResource reports whether the payload looks like a store document
// ({"name": ..., "fields": {...}}) rather than a plain value
func isDocumentResource(doc gjson.Result) bool {
	if !doc.IsObject() {
		return false
	}
	return doc.Get("fields").IsObject() || (doc.Get("name").Type == gjson.String && doc.Get("updateTime").Exists())
}

func decodeFields(fields gjson.Result) (map[string]any, error) {
	if !fields.IsObject() {
		return nil, fmt.Errorf("fields must be an object, got %s", fields.Type)
	}

	out := make(map[string]any)
	var err error
	fields.ForEach(func(key, value gjson.Result) bool {
		var v any
		v, err = decodeValue(value)
		if err != nil {
			err = fmt.Errorf("%s: %w", key.String(), err)
			return false
		}
		out[key.String()] = v
		return true
	})
	return out, err
}

// decodeValue decodes one typed value such as {"integerValue": "42"}
func decodeValue(value gjson.Result) (any, error) {
	if !value.IsObject() {
		return nil, fmt.Errorf("typed value must be an object, got %s", value.Type)
	}

	var (
		out   any
		err   error
		kinds int
	)
	value.ForEach(func(kind, v gjson.Result) bool {
		kinds++
		out, err = decodeKind(kind.String(), v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	if kinds != 1 {
		return nil, fmt.Errorf("typed value must have exactly one member, got %d", kinds)
	}
	return out, nil
}

func decodeKind(kind string, v gjson.Result) (any, error) {
	switch kind {
	case "nullValue":
		return nil, nil
	case "booleanValue":
		return v.Bool(), nil
	case "integerValue":
		// 64-bit integers travel as decimal strings
		n, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integerValue %q: %w", v.String(), err)
		}
		return n, nil
	case "doubleValue":
		if v.Type == gjson.Number {
			return v.Float(), nil
		}
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid doubleValue %q: %w", v.String(), err)
		}
		return f, nil
	case "stringValue", "timestampValue", "bytesValue", "referenceValue":
		return v.String(), nil
	case "geoPointValue":
		return map[string]any{
			"latitude":  v.Get("latitude").Float(),
			"longitude": v.Get("longitude").Float(),
		}, nil
	case "arrayValue":
		values := v.Get("values")
		out := []any{}
		if !values.Exists() {
			return out, nil
		}
		var err error
		values.ForEach(func(_, item gjson.Result) bool {
			var decoded any
			decoded, err = decodeValue(item)
			if err != nil {
				return false
			}
			out = append(out, decoded)
			return true
		})
		return out, err
	case "mapValue":
		fields := v.Get("fields")
		if !fields.Exists() {
			return map[string]any{}, nil
		}
		return decodeFields(fields)
	default:
		return nil, fmt.Errorf("unknown value kind %q", kind)
	}
}
