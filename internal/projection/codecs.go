package projection

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/stacklok/poolsync/internal/snapshot"
)

var errNotNumber = errors.New("not a number")

// toFloat accepts numbers and numeric strings
func toFloat(v any) (float64, bool) {
	switch val := snapshot.Normalize(v).(type) {
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool decodes any truthy document value
func Bool() DecodeFunc {
	return func(raw any) (any, bool) {
		return snapshot.Truthy(raw), true
	}
}

// Float decodes a number divided by scale
func Float(scale float64) DecodeFunc {
	return func(raw any) (any, bool) {
		f, ok := toFloat(raw)
		if !ok {
			return nil, false
		}
		return f / scale, true
	}
}

// ScaledInt decodes an integer setpoint stored multiplied by scale
func ScaledInt(scale float64) DecodeFunc {
	return func(raw any) (any, bool) {
		f, ok := toFloat(raw)
		if !ok {
			return nil, false
		}
		return math.Trunc(f) / scale, true
	}
}

// Int decodes a whole number
func Int() DecodeFunc {
	return func(raw any) (any, bool) {
		f, ok := toFloat(raw)
		if !ok {
			return nil, false
		}
		return int(f), true
	}
}

// Text decodes a string value
func Text() DecodeFunc {
	return func(raw any) (any, bool) {
		switch val := raw.(type) {
		case nil:
			return nil, false
		case string:
			return val, true
		default:
			return fmt.Sprint(val), true
		}
	}
}

// Option decodes an index into its option label
func Option(options []string) DecodeFunc {
	return func(raw any) (any, bool) {
		f, ok := toFloat(raw)
		if !ok {
			return nil, false
		}
		i := int(f)
		if i < 0 || i >= len(options) {
			return nil, false
		}
		return options[i], true
	}
}

// Label decodes an index into its label, or "Unknown"
func Label(labels []string) DecodeFunc {
	option := Option(labels)
	return func(raw any) (any, bool) {
		if label, ok := option(raw); ok {
			return label, true
		}
		return "Unknown", true
	}
}

// Hours decodes a duration stored in minutes
func Hours() DecodeFunc {
	return Float(60)
}

// ClockTime decodes seconds since midnight as "HH:MM", adding "(+Nd)" past
// the first day
func ClockTime() DecodeFunc {
	return func(raw any) (any, bool) {
		f, ok := toFloat(raw)
		if !ok {
			return nil, false
		}
		seconds := int(f)
		hours := seconds / 3600
		minutes := (seconds % 3600) / 60
		if hours < 24 {
			return fmt.Sprintf("%02d:%02d", hours, minutes), true
		}
		return fmt.Sprintf("%02d:%02d (+%dd)", hours%24, minutes, hours/24), true
	}
}

// EncodeBool writes 1 or 0
func EncodeBool() EncodeFunc {
	return func(value any) (any, error) {
		if s, ok := value.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "on", "true":
				return 1, nil
			case "off", "false":
				return 0, nil
			}
		}
		f, ok := toFloat(value)
		if !ok {
			return nil, errors.New("expected a boolean")
		}
		if f != 0 {
			return 1, nil
		}
		return 0, nil
	}
}

// EncodeScaled writes int(value * scale)
func EncodeScaled(scale float64) EncodeFunc {
	return func(value any) (any, error) {
		f, ok := toFloat(value)
		if !ok {
			return nil, errNotNumber
		}
		return int(f * scale), nil
	}
}

// EncodeOption writes the index of an option label. A numeric index is
// accepted as well.
func EncodeOption(options []string) EncodeFunc {
	return func(value any) (any, error) {
		if s, ok := value.(string); ok {
			if i := slices.Index(options, s); i >= 0 {
				return i, nil
			}
		}
		if f, ok := toFloat(value); ok && f == math.Trunc(f) && f >= 0 && int(f) < len(options) {
			return int(f), nil
		}
		return nil, fmt.Errorf("expected one of %s", strings.Join(options, ", "))
	}
}
