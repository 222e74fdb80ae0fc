package sync

import (
	"slices"

	"github.com/stacklok/poolsync/internal/snapshot"
)

// DriftDetector compares the stored snapshot with a freshly fetched one
type DriftDetector interface {
	// Diff returns the top-level keys whose values differ, or nil when both
	// snapshots hold the same document
	Diff(current, fetched *snapshot.Snapshot) []string
}

// DefaultDriftDetector implements DriftDetector with deep equality
type DefaultDriftDetector struct{}

// Diff checks the whole document first and only walks the top-level keys
// when it changed
func (DefaultDriftDetector) Diff(current, fetched *snapshot.Snapshot) []string {
	if current.Equal(fetched) {
		return nil
	}

	before, after := current.Data(), fetched.Data()
	changed := make([]string, 0, len(after))
	for key, value := range before {
		if other, ok := after[key]; !ok || !snapshot.ValuesEqual(value, other) {
			changed = append(changed, key)
		}
	}
	for key := range after {
		if _, ok := before[key]; !ok {
			changed = append(changed, key)
		}
	}
	slices.Sort(changed)
	return changed
}
