// Package snapshot provides the immutable, point-in-time copy of the remote
// device document that every reader consults.
//
// A Snapshot is built once from a decoded document and never mutated
// afterwards. Numbers are normalized to float64 on construction so that a
// document decoded from the push channel compares equal to the same document
// decoded from a full fetch.
package snapshot

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// PathSeparator separates the segments of a dotted value path
const PathSeparator = "."

// Snapshot is an immutable copy of the remote document
type Snapshot struct {
	data map[string]any
}

// New builds a Snapshot from a decoded document. The input is deep-copied, so
// the caller may keep mutating its own map afterwards.
func New(data map[string]any) *Snapshot {
	normalized, _ := Normalize(data).(map[string]any)
	if normalized == nil {
		normalized = map[string]any{}
	}
	return &Snapshot{data: normalized}
}

// Lookup returns the value at a dotted path such as "main.temperature".
// Sequence elements are addressed by their index ("form.names.0.name").
func (s *Snapshot) Lookup(path string) (any, bool) {
	if s == nil || path == "" {
		return nil, false
	}
	return lookupSegments(s.data, SplitPath(path))
}

// Get returns the value at path, or nil when it is absent
func (s *Snapshot) Get(path string) any {
	v, _ := s.Lookup(path)
	return v
}

// Data returns a deep copy of the document
func (s *Snapshot) Data() map[string]any {
	if s == nil {
		return nil
	}
	data, _ := Normalize(s.data).(map[string]any)
	return data
}

// Equal reports whether two snapshots hold the same document
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return reflect.DeepEqual(s.data, other.data)
}

// MarshalJSON encodes the document
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.data)
}

// SplitPath splits a dotted path into its segments
func SplitPath(path string) []string {
	return strings.Split(path, PathSeparator)
}

// ValuesEqual compares two leaf values after normalization, so that an int
// target and the float64 observed in a snapshot compare equal.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// Truthy reports whether a document value counts as "on": true, a non-zero
// number or a non-empty string
func Truthy(v any) bool {
	switch val := Normalize(v).(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	default:
		return false
	}
}

// Normalize returns a deep copy of v where every number is a float64, every
// mapping is a map[string]any and every sequence is a []any. NaN and infinite
// numbers become nil.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case bool, string:
		return val
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return finite(f)
		}
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return normalizeReflect(val)
	}
}

// finite maps NaN and the infinities to nil. They have no JSON form and
// NaN never equals itself.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// normalizeReflect handles typed maps and slices (map[string]int, []string ...)
func normalizeReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Sprint(v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	default:
		return fmt.Sprint(v)
	}
}

func lookupSegments(node any, segments []string) (any, bool) {
	current := node
	for _, seg := range segments {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, ok := parseIndex(seg)
			if !ok || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func parseIndex(seg string) (int, bool) {
	if seg == "" || strings.TrimLeft(seg, "0123456789") != "" {
		return 0, false
	}
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
