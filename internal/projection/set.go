package projection

import (
	"context"
	"fmt"
	"log/slog"
)

// Set evaluates a fixed list of projections against one Source
type Set struct {
	src         Source
	projections []Projection
	byName      map[string]int
}

// NewSet indexes projections by name. Names must be unique.
func NewSet(src Source, projections []Projection) (*Set, error) {
	byName := make(map[string]int, len(projections))
	for i, p := range projections {
		if p.Name == "" {
			return nil, fmt.Errorf("projection %d has no name", i)
		}
		if _, exists := byName[p.Name]; exists {
			return nil, fmt.Errorf("duplicate projection name %q", p.Name)
		}
		byName[p.Name] = i
	}
	return &Set{src: src, projections: projections, byName: byName}, nil
}

// Values evaluates every projection available on the device, in order.
// It returns an empty list before the first snapshot.
func (s *Set) Values() []Value {
	snap := s.src.Snapshot()
	values := make([]Value, 0, len(s.projections))
	for i := range s.projections {
		p := &s.projections[i]
		if !p.IsAvailable(snap) {
			continue
		}
		values = append(values, p.Evaluate(s.src))
	}
	return values
}

// Value evaluates one projection
func (s *Set) Value(name string) (Value, error) {
	p, err := s.lookup(name)
	if err != nil {
		return Value{}, err
	}
	snap := s.src.Snapshot()
	if snap == nil {
		return Value{}, ErrNotReady
	}
	if !p.IsAvailable(snap) {
		return Value{}, ErrUnavailable
	}
	return p.Evaluate(s.src), nil
}

// Write sets the projection called name to value
func (s *Set) Write(ctx context.Context, name string, value any) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := p.Write(ctx, s.src, value); err != nil {
		return err
	}
	slog.Debug("Projection written", "name", name, "path", p.WritePath, "value", value)
	return nil
}

func (s *Set) lookup(name string) (*Projection, error) {
	i, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &s.projections[i], nil
}
