package projection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/poolsync/internal/projection"
	"github.com/stacklok/poolsync/internal/projection/mocks"
	"github.com/stacklok/poolsync/internal/snapshot"
)

// newSource serves data as both the snapshot and the displayed values
func newSource(ctrl *gomock.Controller, data map[string]any) *mocks.MockSource {
	var snap *snapshot.Snapshot
	if data != nil {
		snap = snapshot.New(data)
	}
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Snapshot().Return(snap).AnyTimes()
	src.EXPECT().Display(gomock.Any()).DoAndReturn(func(path string) any {
		return snap.Get(path)
	}).AnyTimes()
	return src
}

func poolDocument() map[string]any {
	return map[string]any{
		"present": true,
		"form": map[string]any{
			"names": []any{map[string]any{"name": "Backyard"}},
			"city":  "Valencia",
		},
		"main": map[string]any{
			"temperature": 27.5,
			"hasPH":       true,
			"hasCL":       true,
			"hasRX":       true,
			"hasHidro":    true,
		},
		"modules": map[string]any{
			"ph": map[string]any{
				"current": 725,
				"status":  map[string]any{"low_value": 720, "high_value": 760},
			},
			"rx": map[string]any{"current": 650, "status": map[string]any{"value": 700}},
			"cl": map[string]any{"current": 150, "tank": 1},
		},
		"hidro": map[string]any{
			"current":         125,
			"level":           100,
			"maxAllowedValue": 250,
		},
		"filtration": map[string]any{
			"mode":      3,
			"manVel":    7,
			"timerVel1": 9,
			"timerVel2": 1,
			"interval1": map[string]any{"from": 30600, "to": 90000},
			"intel":     map[string]any{"time": 90},
		},
		"relays": map[string]any{
			"relay1": map[string]any{"info": map[string]any{"onoff": 0, "status": 1, "name": "Garden"}},
			"relay2": map[string]any{"info": map[string]any{"onoff": 0, "status": 0}},
		},
		"light": map[string]any{"status": 1},
	}
}

func TestCatalog_NamesAreUnique(t *testing.T) {
	t.Parallel()

	_, err := projection.NewSet(nil, projection.Catalog())
	require.NoError(t, err)
}

func TestNewSet_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	p := projection.Projection{Name: "temperature", Path: "main.temperature"}
	_, err := projection.NewSet(nil, []projection.Projection{p, p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestSet_Value(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(data map[string]any)
		want      any
		wantTitle string
		wantErr   error
	}{
		{name: "temperature", want: 27.5},
		{name: "ph", want: 7.25},
		{name: "rx", want: 650},
		{name: "cl", want: 1.5},
		{name: "hidro", want: 12.5, wantTitle: "Hidrolysis"},
		{
			name: "hidro",
			mutate: func(data map[string]any) {
				data["hidro"].(map[string]any)["is_electrolysis"] = true
			},
			want:      12.5,
			wantTitle: "Electrolysis",
		},
		{name: "ph_low", want: 7.2},
		{name: "redox_setpoint", want: 700.0},
		{name: "electrolysis_setpoint", want: 10.0},
		{name: "pump_mode", want: "Smart"},
		{name: "pump_speed", want: nil},
		{name: "filtration_timer_speed_1", want: "Unknown"},
		{name: "filtration_timer_speed_2", want: "Medium"},
		{name: "filtration_interval_1_from", want: "08:30"},
		{name: "filtration_interval_1_to", want: "01:00 (+1d)"},
		{name: "filtration_intel_time", want: 1.5},
		{name: "relay1", want: true},
		{name: "relay2", want: false},
		{name: "light", want: true},
		{name: "connected", want: true},
		{name: "acid_tank", want: true},
		{name: "pool_name", want: "Backyard"},
		{name: "location_city", want: "Valencia"},
		{name: "uv", wantErr: projection.ErrUnavailable},
		{
			name: "acid_tank",
			mutate: func(data map[string]any) {
				data["main"] = map[string]any{}
			},
			wantErr: projection.ErrUnavailable,
		},
		{name: "no_such_thing", wantErr: projection.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			data := poolDocument()
			if tt.mutate != nil {
				tt.mutate(data)
			}
			set, err := projection.NewSet(newSource(ctrl, data), projection.Catalog())
			require.NoError(t, err)

			got, err := set.Value(tt.name)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
			if tt.wantTitle != "" {
				assert.Equal(t, tt.wantTitle, got.Title)
			}
		})
	}
}

func TestSet_ValueExtras(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	set, err := projection.NewSet(newSource(ctrl, poolDocument()), projection.Catalog())
	require.NoError(t, err)

	relay, err := set.Value("relay1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Garden"}, relay.Attributes)
	assert.True(t, relay.Writable)

	setpoint, err := set.Value("electrolysis_setpoint")
	require.NoError(t, err)
	require.NotNil(t, setpoint.Max)
	assert.InDelta(t, 25.0, *setpoint.Max, 0.0001)
	assert.Equal(t, projection.UnitGramsPerHour, setpoint.Unit)

	mode, err := set.Value("pump_mode")
	require.NoError(t, err)
	assert.Equal(t, projection.PumpModes, mode.Options)

	temperature, err := set.Value("temperature")
	require.NoError(t, err)
	assert.False(t, temperature.Writable)
}

func TestSet_Values(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	set, err := projection.NewSet(newSource(ctrl, poolDocument()), projection.Catalog())
	require.NoError(t, err)

	names := map[string]bool{}
	for _, v := range set.Values() {
		names[v.Name] = true
	}
	assert.True(t, names["temperature"])
	assert.True(t, names["ph"])
	assert.True(t, names["hidro_fl2_status"])
	assert.False(t, names["uv"], "module not installed")
	assert.False(t, names["cd"], "module not installed")
}

func TestSet_BeforeFirstSnapshot(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	set, err := projection.NewSet(newSource(ctrl, nil), projection.Catalog())
	require.NoError(t, err)

	assert.Empty(t, set.Values())

	_, err = set.Value("temperature")
	require.ErrorIs(t, err, projection.ErrNotReady)

	err = set.Write(context.Background(), "light", true)
	require.ErrorIs(t, err, projection.ErrNotReady)
}

func TestSet_Write(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		projection  string
		value       any
		wantPath    string
		wantRaw     any
		wantErr     error
		wantInvalid bool
	}{
		{name: "light on", projection: "light", value: true, wantPath: "light.status", wantRaw: 1},
		{name: "light off by name", projection: "light", value: "off", wantPath: "light.status", wantRaw: 0},
		{name: "relay writes onoff", projection: "relay2", value: 1.0, wantPath: "relays.relay2.info.onoff", wantRaw: 1},
		{name: "boost", projection: "electrolysis_boost", value: true, wantPath: "hidro.cloration_enabled", wantRaw: 1},
		{name: "ph setpoint is scaled", projection: "ph_low", value: 7.5, wantPath: "modules.ph.status.low_value", wantRaw: 750},
		{name: "redox setpoint", projection: "redox_setpoint", value: 650.0, wantPath: "modules.rx.status.value", wantRaw: 650},
		{name: "redox out of range", projection: "redox_setpoint", value: 900.0, wantInvalid: true},
		{name: "ph not a number", projection: "ph_low", value: "acid", wantInvalid: true},
		{name: "electrolysis within device max", projection: "electrolysis_setpoint", value: 12.5, wantPath: "hidro.level", wantRaw: 125},
		{name: "electrolysis above device max", projection: "electrolysis_setpoint", value: 30.0, wantInvalid: true},
		{name: "pump mode by label", projection: "pump_mode", value: "Heat", wantPath: "filtration.mode", wantRaw: 2},
		{name: "pump speed by index", projection: "pump_speed", value: 2.0, wantPath: "filtration.manVel", wantRaw: 2},
		{name: "pump mode unknown label", projection: "pump_mode", value: "Turbo", wantInvalid: true},
		{name: "sensor is read-only", projection: "temperature", value: 20.0, wantErr: projection.ErrReadOnly},
		{name: "unknown projection", projection: "jacuzzi", value: true, wantErr: projection.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			src := newSource(ctrl, poolDocument())
			if tt.wantPath != "" {
				src.EXPECT().ApplyCommand(gomock.Any(), tt.wantPath, tt.wantRaw).Return(nil)
			}
			set, err := projection.NewSet(src, projection.Catalog())
			require.NoError(t, err)

			err = set.Write(context.Background(), tt.projection, tt.value)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantInvalid:
				require.Error(t, err)
				assert.True(t, projection.IsInvalidValue(err))
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestProjection_WritePropagatesCommandErrors(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	failure := errors.New("dispatch failed")
	src := newSource(ctrl, poolDocument())
	src.EXPECT().ApplyCommand(gomock.Any(), "light.status", 1).Return(failure)

	set, err := projection.NewSet(src, projection.Catalog())
	require.NoError(t, err)

	err = set.Write(context.Background(), "light", "on")
	require.ErrorIs(t, err, failure)
}

func TestProjection_WriteUnavailable(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	p := projection.Projection{
		Name:      "uv_boost",
		Path:      "modules.uv.boost",
		WritePath: "modules.uv.boost",
		Encode:    projection.EncodeBool(),
		Available: func(snap *snapshot.Snapshot) bool {
			return snapshot.Truthy(snap.Get("main.hasUV"))
		},
	}
	err := p.Write(context.Background(), newSource(ctrl, poolDocument()), true)
	require.ErrorIs(t, err, projection.ErrUnavailable)
}

func TestCodecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		run    func() (any, bool)
		want   any
		wantOK bool
	}{
		{
			name:   "float from numeric string",
			run:    func() (any, bool) { return projection.Float(10)("125") },
			want:   12.5,
			wantOK: true,
		},
		{
			name:   "float from garbage",
			run:    func() (any, bool) { return projection.Float(10)("n/a") },
			wantOK: false,
		},
		{
			name:   "scaled int truncates before scaling",
			run:    func() (any, bool) { return projection.ScaledInt(10)(125.9) },
			want:   12.5,
			wantOK: true,
		},
		{
			name:   "option out of range",
			run:    func() (any, bool) { return projection.Option(projection.PumpModes)(-1) },
			wantOK: false,
		},
		{
			name:   "clock time two days ahead",
			run:    func() (any, bool) { return projection.ClockTime()(2*86400 + 3600 + 60) },
			want:   "01:01 (+2d)",
			wantOK: true,
		},
		{
			name:   "text from nil",
			run:    func() (any, bool) { return projection.Text()(nil) },
			wantOK: false,
		},
		{
			name:   "text from number",
			run:    func() (any, bool) { return projection.Text()(39.47) },
			want:   "39.47",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := tt.run()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEncoders(t *testing.T) {
	t.Parallel()

	raw, err := projection.EncodeBool()("ON")
	require.NoError(t, err)
	assert.Equal(t, 1, raw)

	_, err = projection.EncodeBool()(map[string]any{})
	require.Error(t, err)

	raw, err = projection.EncodeScaled(100)("6.5")
	require.NoError(t, err)
	assert.Equal(t, 650, raw)

	_, err = projection.EncodeOption(projection.PumpSpeeds)(1.5)
	require.Error(t, err)

	_, err = projection.EncodeOption(projection.PumpSpeeds)(3.0)
	require.Error(t, err)
}
