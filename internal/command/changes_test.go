package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/poolsync/internal/snapshot"
)

const poolDoc = `{
  "wifi": "gw-42",
  "light": {"status": 0, "mode": 2},
  "hidro": {"level": 150, "cloration_enabled": 0, "reduction": 0, "disable": 0, "cover_enabled": 1},
  "relays": {"relay1": {"info": {"onoff": 0, "name": "Fountain"}, "status": 0}, "relay2": {"info": {"onoff": 1}}},
  "filtration": {"mode": 1, "intel": {"temp": 26}},
  "present": true,
  "form": {"names": [{"name": "Backyard"}]}
}`

func mustSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.Parse([]byte(poolDoc))
	require.NoError(t, err)
	return snap
}

func TestBuildChanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		value any
		want  string
	}{
		{
			name:  "two segments copy the top-level subtree",
			path:  "light.status",
			value: 1,
			want:  `{"light":{"status":1,"mode":2}}`,
		},
		{
			name:  "deep paths copy two levels",
			path:  "relays.relay1.info.onoff",
			value: 1,
			want:  `{"relays":{"relay1":{"info":{"onoff":1,"name":"Fountain"},"status":0}}}`,
		},
		{
			name:  "single key replaces the whole value",
			path:  "present",
			value: false,
			want:  `{"present":false}`,
		},
		{
			name:  "missing leaf is created",
			path:  "filtration.intel.time",
			value: 30,
			want:  `{"filtration":{"intel":{"temp":26,"time":30}}}`,
		},
		{
			name:  "missing intermediate is created",
			path:  "relays.relay2.timer.from",
			value: "08:00",
			want:  `{"relays":{"relay2":{"info":{"onoff":1},"timer":{"from":"08:00"}}}}`,
		},
		{
			name:  "boost on sets reduction",
			path:  ElectrolysisBoostPath,
			value: 1,
			want:  `{"hidro":{"level":150,"cloration_enabled":1,"reduction":1,"disable":1,"cover_enabled":1}}`,
		},
		{
			name:  "boost off clears reduction",
			path:  ElectrolysisBoostPath,
			value: false,
			want:  `{"hidro":{"level":150,"cloration_enabled":0,"reduction":0,"disable":1,"cover_enabled":1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildChanges(mustSnapshot(t), tt.path, tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestBuildChanges_LeavesSnapshotUntouched(t *testing.T) {
	t.Parallel()

	snap := mustSnapshot(t)
	before := snap.Data()

	_, err := BuildChanges(snap, "relays.relay1.info.onoff", 1)
	require.NoError(t, err)

	assert.Equal(t, before, snap.Data())
	assert.Equal(t, 0.0, snap.Get("relays.relay1.info.onoff"))
}

func TestBuildChanges_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap *snapshot.Snapshot
		path string
	}{
		{name: "no snapshot", path: "light.status"},
		{name: "missing top-level key", snap: mustSnapshot(t), path: "backwash.status"},
		{name: "missing second-level key", snap: mustSnapshot(t), path: "relays.relay9.info.onoff"},
		{name: "scalar on the prefix", snap: mustSnapshot(t), path: "present.flag.value"},
		{name: "empty segment", snap: mustSnapshot(t), path: "light..status"},
		{name: "empty path", snap: mustSnapshot(t), path: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := BuildChanges(tt.snap, tt.path, 1)
			require.Error(t, err)
			assert.True(t, IsCommandDispatchError(err))
		})
	}
}
