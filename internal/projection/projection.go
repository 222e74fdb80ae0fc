// Package projection exposes typed views of single document values: the
// controls and readings of the pool. A Projection is a dotted path plus a
// decoder, and an encoder when the value can be written.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/poolsync/internal/snapshot"
)

// Kind is the user-facing shape of a projection
type Kind string

const (
	KindLight        Kind = "light"
	KindSwitch       Kind = "switch"
	KindNumber       Kind = "number"
	KindSelect       Kind = "select"
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
)

var (
	// ErrNotFound is returned for an unknown projection name
	ErrNotFound = errors.New("projection not found")

	// ErrReadOnly is returned when writing a projection without an encoder
	ErrReadOnly = errors.New("projection is read-only")

	// ErrUnavailable is returned when the device lacks the module behind a projection
	ErrUnavailable = errors.New("projection is unavailable on this device")

	// ErrNotReady is returned before the first snapshot is loaded
	ErrNotReady = errors.New("no snapshot loaded yet")
)

// InvalidValueError is returned when a written value cannot be encoded
type InvalidValueError struct {
	Name    string
	Value   any
	Message string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %v for %s: %s", e.Value, e.Name, e.Message)
}

// IsInvalidValue reports whether err is, or wraps, an InvalidValueError
func IsInvalidValue(err error) bool {
	var invalid *InvalidValueError
	return errors.As(err, &invalid)
}

// Source is the read/write surface projections are evaluated against
//
//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=projection.go Source
type Source interface {
	// Snapshot returns the current snapshot, or nil before the first load
	Snapshot() *snapshot.Snapshot

	// Display returns the value to show at path, honoring unconfirmed writes
	Display(path string) any

	// ApplyCommand writes value at path
	ApplyCommand(ctx context.Context, path string, value any) error
}

// DecodeFunc converts a raw document value. ok is false when the value is
// missing or malformed.
type DecodeFunc func(raw any) (value any, ok bool)

// EncodeFunc converts a user value into the raw document value to write
type EncodeFunc func(value any) (any, error)

// Projection is a typed view of one document value
type Projection struct {
	// Name is the stable identifier used by the HTTP surface
	Name  string
	Title string
	Kind  Kind

	// Path is the value read
	Path string
	// WritePath receives writes; empty for read-only projections
	WritePath string

	Unit    string
	Options []string
	Min     *float64
	Max     *float64

	Decode DecodeFunc
	Encode EncodeFunc

	// Read replaces the plain lookup of Path
	Read func(src Source) any
	// Available hides the projection when the device lacks a module
	Available func(snap *snapshot.Snapshot) bool
	// Limits replaces Min and Max when they depend on the document
	Limits func(snap *snapshot.Snapshot) (minValue, maxValue float64)
	// TitleFrom replaces Title when it depends on the document
	TitleFrom func(snap *snapshot.Snapshot) string
	// Attributes adds extra document values to the view
	Attributes func(snap *snapshot.Snapshot) map[string]any
}

// Value is the evaluated view of a projection
type Value struct {
	Name       string         `json:"name"`
	Title      string         `json:"title"`
	Kind       Kind           `json:"kind"`
	Path       string         `json:"path"`
	Value      any            `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	Writable   bool           `json:"writable"`
	Options    []string       `json:"options,omitempty"`
	Min        *float64       `json:"min,omitempty"`
	Max        *float64       `json:"max,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Writable reports whether the projection accepts writes
func (p *Projection) Writable() bool {
	return p.Encode != nil && p.WritePath != ""
}

// IsAvailable reports whether the projection applies to the device described by snap
func (p *Projection) IsAvailable(snap *snapshot.Snapshot) bool {
	if snap == nil {
		return false
	}
	return p.Available == nil || p.Available(snap)
}

// Evaluate reads the projection from src
func (p *Projection) Evaluate(src Source) Value {
	snap := src.Snapshot()

	var raw any
	if p.Read != nil {
		raw = p.Read(src)
	} else {
		raw = src.Display(p.Path)
	}

	var value any
	if p.Decode != nil {
		if decoded, ok := p.Decode(raw); ok {
			value = decoded
		}
	} else {
		value = raw
	}

	v := Value{
		Name:     p.Name,
		Title:    p.Title,
		Kind:     p.Kind,
		Path:     p.Path,
		Value:    value,
		Unit:     p.Unit,
		Writable: p.Writable(),
		Options:  p.Options,
		Min:      p.Min,
		Max:      p.Max,
	}
	if p.TitleFrom != nil {
		v.Title = p.TitleFrom(snap)
	}
	if p.Limits != nil {
		lo, hi := p.Limits(snap)
		v.Min, v.Max = &lo, &hi
	}
	if p.Attributes != nil {
		v.Attributes = p.Attributes(snap)
	}
	return v
}

// Write encodes value and applies it through src
func (p *Projection) Write(ctx context.Context, src Source, value any) error {
	if !p.Writable() {
		return ErrReadOnly
	}

	snap := src.Snapshot()
	if snap == nil {
		return ErrNotReady
	}
	if !p.IsAvailable(snap) {
		return ErrUnavailable
	}

	if err := p.checkRange(snap, value); err != nil {
		return err
	}

	raw, err := p.Encode(value)
	if err != nil {
		return &InvalidValueError{Name: p.Name, Value: value, Message: err.Error()}
	}
	return src.ApplyCommand(ctx, p.WritePath, raw)
}

func (p *Projection) checkRange(snap *snapshot.Snapshot, value any) error {
	lo, hi := p.Min, p.Max
	if p.Limits != nil {
		minValue, maxValue := p.Limits(snap)
		lo, hi = &minValue, &maxValue
	}
	if lo == nil && hi == nil {
		return nil
	}

	f, ok := toFloat(value)
	if !ok {
		return &InvalidValueError{Name: p.Name, Value: value, Message: "not a number"}
	}
	if (lo != nil && f < *lo) || (hi != nil && f > *hi) {
		return &InvalidValueError{Name: p.Name, Value: value, Message: "out of range"}
	}
	return nil
}
