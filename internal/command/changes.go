package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stacklok/poolsync/internal/snapshot"
)

// ElectrolysisBoostPath is the one control whose write also rewrites its
// sibling fields
const ElectrolysisBoostPath = "hidro.cloration_enabled"

// BuildChanges returns the serialized "changes" tree for writing value at
// path. The tree is a copy of the snapshot subtree rooted at the first two
// segments of path (first segment for two-segment paths, the whole key for
// one-segment paths), wrapped back under its keys, with value set at path.
func BuildChanges(snap *snapshot.Snapshot, path string, value any) (string, error) {
	tree, err := changeTree(snap, path, value)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return "", &CommandDispatchError{Path: path, Message: "failed to serialize changes", Err: err}
	}
	return string(data), nil
}

func changeTree(snap *snapshot.Snapshot, path string, value any) (map[string]any, error) {
	keys := snapshot.SplitPath(path)
	for _, key := range keys {
		if key == "" {
			return nil, &CommandDispatchError{Path: path, Message: "path has an empty segment"}
		}
	}
	if snap == nil {
		return nil, &CommandDispatchError{Path: path, Message: "no snapshot loaded"}
	}

	prefix := subtreePrefix(keys)
	subtree, err := lookupPrefix(snap, prefix)
	if err != nil {
		return nil, &CommandDispatchError{Path: path, Message: err.Error()}
	}

	var node any = snapshot.Normalize(subtree)
	for i := len(prefix) - 1; i >= 0; i-- {
		node = map[string]any{prefix[i]: node}
	}
	tree := node.(map[string]any)

	setIn(tree, keys, snapshot.Normalize(value))

	if path == ElectrolysisBoostPath {
		hidro := tree["hidro"].(map[string]any)
		if snapshot.Truthy(value) {
			hidro["cloration_enabled"] = 1.0
			hidro["reduction"] = 1.0
		} else {
			hidro["cloration_enabled"] = 0.0
			hidro["reduction"] = 0.0
		}
		hidro["disable"] = 1.0
	}
	return tree, nil
}

func subtreePrefix(keys []string) []string {
	switch {
	case len(keys) > 2:
		return keys[:2]
	case len(keys) == 2:
		return keys[:1]
	default:
		return keys
	}
}

// lookupPrefix walks mappings only; sequences are not addressable here
func lookupPrefix(snap *snapshot.Snapshot, prefix []string) (any, error) {
	for i := range prefix {
		partial := strings.Join(prefix[:i+1], snapshot.PathSeparator)
		v, ok := snap.Lookup(partial)
		if !ok {
			return nil, fmt.Errorf("key %q not found in snapshot", prefix[i])
		}
		if i < len(prefix)-1 {
			if _, isMap := v.(map[string]any); !isMap {
				return nil, fmt.Errorf("unexpected data structure at %q", partial)
			}
		}
	}
	return snap.Get(strings.Join(prefix, snapshot.PathSeparator)), nil
}

// setIn stores value at keys, replacing missing or non-mapping intermediates
// with empty mappings
func setIn(tree map[string]any, keys []string, value any) {
	current := tree
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value
}
