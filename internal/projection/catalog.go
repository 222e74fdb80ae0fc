package projection

import (
	"fmt"

	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/snapshot"
)

// Units
const (
	UnitCelsius      = "°C"
	UnitMillivolt    = "mV"
	UnitPH           = "pH"
	UnitGramsPerHour = "gr/h"
	UnitHours        = "h"
)

var (
	// PumpModes are the filtration.mode options, by index
	PumpModes = []string{"Manual", "Auto", "Heat", "Smart", "Intel"}

	// PumpSpeeds are the filtration.manVel options, by index
	PumpSpeeds = []string{"Slow", "Medium", "High"}
)

// Catalog returns the projections of a pool controller document, in display order
func Catalog() []Projection {
	var all []Projection
	all = append(all, lights()...)
	all = append(all, switches()...)
	all = append(all, numbers()...)
	all = append(all, selects()...)
	all = append(all, sensors()...)
	all = append(all, binarySensors()...)
	return all
}

func lights() []Projection {
	return []Projection{
		control("light", "Light", KindLight, "light.status"),
	}
}

func switches() []Projection {
	list := []Projection{
		control("electrolysis_cover", "Electrolysis Cover", KindSwitch, "hidro.cover_enabled"),
		control("electrolysis_boost", "Electrolysis Boost", KindSwitch, "hidro.cloration_enabled"),
	}
	for n := 1; n <= 4; n++ {
		list = append(list, relay(n))
	}
	return append(list, control("filtration_status", "Filtration Status", KindSwitch, "filtration.status"))
}

// relay is on when either its manual switch or its schedule has it running
func relay(n int) Projection {
	base := fmt.Sprintf("relays.relay%d.info", n)
	p := control(fmt.Sprintf("relay%d", n), fmt.Sprintf("Relay%d", n), KindSwitch, base+".onoff")
	p.Read = func(src Source) any {
		return snapshot.Truthy(src.Display(base+".onoff")) || snapshot.Truthy(src.Display(base+".status"))
	}
	p.Attributes = func(snap *snapshot.Snapshot) map[string]any {
		if name, ok := snap.Lookup(base + ".name"); ok {
			return map[string]any{"name": name}
		}
		return nil
	}
	return p
}

func numbers() []Projection {
	hidroMax := func(snap *snapshot.Snapshot) (float64, float64) {
		f, _ := toFloat(snap.Get("hidro.maxAllowedValue"))
		return 0, f / 10
	}

	setpoint := number("electrolysis_setpoint", "Electrolysis Setpoint", "hidro.level", UnitGramsPerHour, 10, 0, 0)
	setpoint.Min, setpoint.Max = nil, nil
	setpoint.Limits = hidroMax

	return []Projection{
		number("redox_setpoint", "Redox Setpoint", "modules.rx.status.value", UnitMillivolt, 1, 500, 800),
		number("ph_low", "pH Low", "modules.ph.status.low_value", UnitPH, 100, 6, 8),
		number("ph_max", "pH Max", "modules.ph.status.high_value", UnitPH, 100, 6, 8),
		setpoint,
	}
}

func selects() []Projection {
	return []Projection{
		selection("pump_mode", "Pump Mode", "filtration.mode", PumpModes),
		selection("pump_speed", "Pump Speed", "filtration.manVel", PumpSpeeds),
	}
}

func sensors() []Projection {
	list := []Projection{
		reading("pool_name", "Pool Name", "form.names.0.name", "", Text()),
		reading("temperature", "Temperature", "main.temperature", UnitCelsius, Float(1)),
		reading("filtration_intel_temperature", "Filtration Intel Temperature", "filtration.intel.temp", UnitCelsius, Float(1)),
		reading("filtration_smart_min_temp", "Filtration Smart Min Temp", "filtration.smart.tempMin", UnitCelsius, Float(1)),
		reading("filtration_smart_high_temp", "Filtration Smart High Temp", "filtration.smart.tempHigh", UnitCelsius, Float(1)),
		onlyWith("main.hasCD", reading("cd", "CD", "modules.cd.current", "", Float(100))),
		onlyWith("main.hasCL", reading("cl", "Cl", "modules.cl.current", "", Float(100))),
		onlyWith("main.hasPH", reading("ph", "pH", "modules.ph.current", UnitPH, Float(100))),
		onlyWith("main.hasUV", reading("uv", "UV", "modules.uv.current", "", Float(100))),
		onlyWith("main.hasRX", reading("rx", "Rx", "modules.rx.current", UnitMillivolt, Int())),
		electrolysisReading(),
		reading("filtration_intel_time", "Filtration Intel Time", "filtration.intel.time", UnitHours, Hours()),
	}

	list[0].Read = func(src Source) any {
		return docstore.PoolName(src.Snapshot())
	}

	for n := 1; n <= 3; n++ {
		list = append(list,
			reading(fmt.Sprintf("filtration_interval_%d_from", n), fmt.Sprintf("Filtration Interval %d From", n),
				fmt.Sprintf("filtration.interval%d.from", n), "", ClockTime()),
			reading(fmt.Sprintf("filtration_interval_%d_to", n), fmt.Sprintf("Filtration Interval %d To", n),
				fmt.Sprintf("filtration.interval%d.to", n), "", ClockTime()),
		)
	}
	for n := 1; n <= 3; n++ {
		list = append(list, reading(fmt.Sprintf("filtration_timer_speed_%d", n), fmt.Sprintf("Filtration Timer Speed %d", n),
			fmt.Sprintf("filtration.timerVel%d", n), "", Label(PumpSpeeds)))
	}
	location := []struct{ field, title string }{
		{"city", "City"},
		{"street", "Street"},
		{"zipcode", "Zip Code"},
		{"country", "Country"},
		{"lat", "Latitude"},
		{"lng", "Longitude"},
	}
	for _, l := range location {
		list = append(list, reading("location_"+l.field, "Location "+l.title, "form."+l.field, "", Text()))
	}
	return list
}

func electrolysisReading() Projection {
	p := onlyWith("main.hasHidro", reading("hidro", "Electrolysis", "hidro.current", UnitGramsPerHour, Float(10)))
	p.TitleFrom = electrolysisTitle("")
	return p
}

// electrolysisTitle names the cell after the installed technology
func electrolysisTitle(suffix string) func(*snapshot.Snapshot) string {
	return func(snap *snapshot.Snapshot) string {
		if snapshot.Truthy(snap.Get("hidro.is_electrolysis")) {
			return "Electrolysis" + suffix
		}
		return "Hidrolysis" + suffix
	}
}

func binarySensors() []Projection {
	list := []Projection{
		flag("hidro_flow_status", "Hidro Flow Status", "hidro.fl1"),
		flag("filtration_running", "Filtration Status", "filtration.status"),
		flag("backwash_status", "Backwash Status", "backwash.status"),
		flag("hidro_cover_reduction", "Hidro Cover Reduction", "hidro.cover"),
		flag("ph_pump_alarm", "pH Pump Alarm", "modules.ph.al3"),
		flag("cd_module_installed", "CD Module Installed", "main.hasCD"),
		flag("cl_module_installed", "CL Module Installed", "main.hasCL"),
		flag("rx_module_installed", "RX Module Installed", "main.hasRX"),
		flag("ph_module_installed", "pH Module Installed", "main.hasPH"),
		flag("io_module_installed", "IO Module Installed", "main.hasIO"),
		flag("hidro_module_installed", "Hidro Module Installed", "main.hasHidro"),
		flag("ph_acid_pump", "pH Acid Pump", "modules.ph.pump_high_on"),
		flag("heating_status", "Heating Status", "relays.filtration.heating.status"),
		flag("connected", "Connected", "present"),
		onlyWith("main.hasCL", flag("hidro_fl2_status", "Hidro FL2 Status", "hidro.fl2")),
		acidTank(),
	}

	low := flag("hidro_low", "Electrolysis Low", "hidro.low")
	low.TitleFrom = electrolysisTitle(" Low")
	return append(list, low)
}

// acidTank reports an empty tank on any dosing module
func acidTank() Projection {
	tanks := []string{"modules.ph.tank", "modules.rx.tank", "modules.cl.tank", "modules.cd.tank"}
	modules := []string{"main.hasCD", "main.hasCL", "main.hasPH", "main.hasRX"}

	p := flag("acid_tank", "Acid Tank", tanks[0])
	p.Read = func(src Source) any {
		for _, path := range tanks {
			if snapshot.Truthy(src.Display(path)) {
				return true
			}
		}
		return false
	}
	p.Available = func(snap *snapshot.Snapshot) bool {
		for _, path := range modules {
			if snapshot.Truthy(snap.Get(path)) {
				return true
			}
		}
		return false
	}
	return p
}

func control(name, title string, kind Kind, path string) Projection {
	return Projection{
		Name:      name,
		Title:     title,
		Kind:      kind,
		Path:      path,
		WritePath: path,
		Decode:    Bool(),
		Encode:    EncodeBool(),
	}
}

func number(name, title, path, unit string, scale, minValue, maxValue float64) Projection {
	return Projection{
		Name:      name,
		Title:     title,
		Kind:      KindNumber,
		Path:      path,
		WritePath: path,
		Unit:      unit,
		Min:       &minValue,
		Max:       &maxValue,
		Decode:    ScaledInt(scale),
		Encode:    EncodeScaled(scale),
	}
}

func selection(name, title, path string, options []string) Projection {
	return Projection{
		Name:      name,
		Title:     title,
		Kind:      KindSelect,
		Path:      path,
		WritePath: path,
		Options:   options,
		Decode:    Option(options),
		Encode:    EncodeOption(options),
	}
}

func reading(name, title, path, unit string, decode DecodeFunc) Projection {
	return Projection{
		Name:   name,
		Title:  title,
		Kind:   KindSensor,
		Path:   path,
		Unit:   unit,
		Decode: decode,
	}
}

func flag(name, title, path string) Projection {
	return Projection{
		Name:   name,
		Title:  title,
		Kind:   KindBinarySensor,
		Path:   path,
		Decode: Bool(),
	}
}

// onlyWith hides p unless the module flag at path is set
func onlyWith(path string, p Projection) Projection {
	p.Available = func(snap *snapshot.Snapshot) bool {
		return snapshot.Truthy(snap.Get(path))
	}
	return p
}
