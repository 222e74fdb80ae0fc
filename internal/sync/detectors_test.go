package sync

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/poolsync/internal/snapshot"
)

func TestDefaultDriftDetector_Diff(t *testing.T) {
	t.Parallel()

	base := map[string]any{
		"main":  map[string]any{"temperature": 26.5},
		"light": map[string]any{"status": 0},
	}

	tests := []struct {
		name     string
		current  *snapshot.Snapshot
		fetched  *snapshot.Snapshot
		expected []string
	}{
		{
			name:     "identical documents",
			current:  snapshot.New(base),
			fetched:  snapshot.New(base),
			expected: nil,
		},
		{
			name:     "int and float compare equal",
			current:  snapshot.New(map[string]any{"light": map[string]any{"status": 1}}),
			fetched:  snapshot.New(map[string]any{"light": map[string]any{"status": 1.0}}),
			expected: nil,
		},
		{
			name:    "nested value changed",
			current: snapshot.New(base),
			fetched: snapshot.New(map[string]any{
				"main":  map[string]any{"temperature": 27.0},
				"light": map[string]any{"status": 0},
			}),
			expected: []string{"main"},
		},
		{
			name:    "keys added and removed",
			current: snapshot.New(base),
			fetched: snapshot.New(map[string]any{
				"main":       map[string]any{"temperature": 26.5},
				"filtration": map[string]any{"status": 1},
			}),
			expected: []string{"filtration", "light"},
		},
		{
			name:     "NaN readings do not count as drift",
			current:  snapshot.New(map[string]any{"main": map[string]any{"orp": math.NaN()}}),
			fetched:  snapshot.New(map[string]any{"main": map[string]any{"orp": math.NaN()}}),
			expected: nil,
		},
		{
			name:     "nothing stored yet",
			current:  nil,
			fetched:  snapshot.New(base),
			expected: []string{"light", "main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, DefaultDriftDetector{}.Diff(tt.current, tt.fetched))
		})
	}
}
