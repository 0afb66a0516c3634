package pinmap_test

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/nerrad567/pinforge-core/internal/catalog"
	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

type builtinFixture struct {
	cat      *catalog.Catalog
	defaults []pinmap.PinConstraint
}

func loadBuiltin(t *testing.T) builtinFixture {
	t.Helper()
	c, err := catalog.Builtin()
	if err != nil {
		t.Fatalf("catalog.Builtin() error = %v", err)
	}
	return builtinFixture{cat: c, defaults: c.PinConstraints()}
}

func (f builtinFixture) mcu(t *testing.T, id string) *pinmap.MCU {
	t.Helper()
	m, ok := f.cat.MCU(id)
	if !ok {
		t.Fatalf("MCU %q not in builtin catalog", id)
	}
	return m
}

func (f builtinFixture) sensor(t *testing.T, catalogID, instanceID, name string) pinmap.Sensor {
	t.Helper()
	rec, ok := f.cat.Sensor(catalogID)
	if !ok {
		t.Fatalf("sensor %q not in builtin catalog", catalogID)
	}
	s, err := rec.ToSensor()
	if err != nil {
		t.Fatalf("ToSensor(%s) error = %v", catalogID, err)
	}
	s.ID, s.Name = instanceID, name
	return s
}

func TestScenario_SingleI2CSensor(t *testing.T) {
	f := loadBuiltin(t)
	sensors := []pinmap.Sensor{{ID: "env", Name: "Env", Interface: pinmap.I2C{}}}

	res := pinmap.Allocate(f.mcu(t, "stm32f103c8"), sensors, nil, f.defaults)

	if len(res.Allocations) != 1 || len(res.Conflicts) != 0 {
		t.Fatalf("allocations %d conflicts %d, want 1 and 0", len(res.Allocations), len(res.Conflicts))
	}
	a := res.Allocations[0]
	if a.BusID != "I2C1" || a.AssignedPins["SCL"] != "PB6" || a.AssignedPins["SDA"] != "PB7" {
		t.Errorf("allocation = %+v, want I2C1 PB6/PB7", a)
	}
	if len(res.Buses.I2C) != 1 || res.Buses.I2C[0].ID != "I2C1" {
		t.Errorf("Buses.I2C = %+v, want one I2C1 record", res.Buses.I2C)
	}
	if got := res.PinUsage["PB6"]; got.Status != pinmap.StatusBus || got.Label != "I2C1 SCL" {
		t.Errorf("PB6 usage = %+v", got)
	}
}

func TestScenario_LockedI2CSensor(t *testing.T) {
	f := loadBuiltin(t)
	sensors := []pinmap.Sensor{{ID: "env", Name: "Env", Interface: pinmap.I2C{}}}
	locks := pinmap.PinLocks{"env": {"SCL": "PB8", "SDA": "PB9"}}

	res := pinmap.Allocate(f.mcu(t, "stm32f103c8"), sensors, locks, f.defaults)

	a, ok := res.Allocation("env")
	if !ok {
		t.Fatalf("env not allocated: %+v", res.Conflicts)
	}
	if a.AssignedPins["SCL"] != "PB8" || a.AssignedPins["SDA"] != "PB9" {
		t.Errorf("AssignedPins = %v, want PB8/PB9", a.AssignedPins)
	}
	if got := res.PinUsage["PB8"].Label; got != "I2C1 SCL (Locked)" {
		t.Errorf("PB8 label = %q", got)
	}
	if got := res.PinUsage["PB9"].Label; got != "I2C1 SDA (Locked)" {
		t.Errorf("PB9 label = %q", got)
	}
	if got := res.PinUsage["PB6"].Status; got != pinmap.StatusAvailable {
		t.Errorf("PB6 status = %q, want available", got)
	}
}

func TestScenario_UARTExhaustion(t *testing.T) {
	f := loadBuiltin(t)
	var sensors []pinmap.Sensor
	for i := 1; i <= 5; i++ {
		sensors = append(sensors, pinmap.Sensor{ID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("U%d", i), Interface: pinmap.UART{}})
	}

	res := pinmap.Allocate(f.mcu(t, "stm32f103c8"), sensors, nil, f.defaults)

	if len(res.Allocations) != 3 {
		t.Fatalf("len(Allocations) = %d, want 3", len(res.Allocations))
	}
	wantBuses := []string{"USART1", "USART2", "USART3"}
	for i, a := range res.Allocations {
		if a.BusID != wantBuses[i] {
			t.Errorf("allocation %d bus = %q, want %q", i, a.BusID, wantBuses[i])
		}
	}
	if len(res.Conflicts) != 2 {
		t.Fatalf("len(Conflicts) = %d, want 2", len(res.Conflicts))
	}
	for _, c := range res.Conflicts {
		if c.Reason != pinmap.ReasonNoUART {
			t.Errorf("%s reason = %q, want no_uart", c.SensorID, c.Reason)
		}
	}
}

func TestScenario_LockOnSWDPin(t *testing.T) {
	f := loadBuiltin(t)
	sensors := []pinmap.Sensor{{ID: "btn", Name: "Button", Interface: pinmap.GPIO{}}}
	locks := pinmap.PinLocks{"btn": {"GPIO": "PA13"}}

	res := pinmap.Allocate(f.mcu(t, "stm32f103c8"), sensors, locks, f.defaults)

	if len(res.Conflicts) != 1 || res.Conflicts[0].Reason != pinmap.ReasonConstraintReserved {
		t.Fatalf("Conflicts = %+v, want one constraint_reserved", res.Conflicts)
	}
	want := "Button GPIO -> PA13 (SWD Debug - Keep debug pins free for SWD programming.)"
	if res.Conflicts[0].Detail != want {
		t.Errorf("Detail = %q, want %q", res.Conflicts[0].Detail, want)
	}
}

func TestScenario_I2CAddressCollision(t *testing.T) {
	f := loadBuiltin(t)
	sensors := []pinmap.Sensor{
		f.sensor(t, "bme280", "bme280", "BME280"),
		f.sensor(t, "bme280", "bme280_2", "BME280 #2"),
		f.sensor(t, "sht31", "sht31", "SHT31"),
	}

	res := pinmap.Allocate(f.mcu(t, "stm32f103c8"), sensors, nil, f.defaults)

	if len(res.Allocations) != 3 {
		t.Fatalf("len(Allocations) = %d, want 3", len(res.Allocations))
	}
	collisions := res.WarningsFor(pinmap.ReasonI2CAddrCollision)
	if len(collisions) != 1 {
		t.Fatalf("len(collisions) = %d, want 1: %+v", len(collisions), res.Warnings)
	}
	w := collisions[0]
	if w.SensorID != "i2c:I2C1:118" || w.SensorName != "I2C1" || w.Detail != "0x76 -> BME280, BME280 #2" {
		t.Errorf("warning = %+v", w)
	}
}

func TestScenario_UARTRequiredBusExclusive(t *testing.T) {
	f := loadBuiltin(t)
	sensors := []pinmap.Sensor{
		{ID: "gps", Name: "GPS", Interface: pinmap.UART{RequiredBusID: "USART1"}},
		{ID: "co2", Name: "CO2", Interface: pinmap.UART{RequiredBusID: "USART1"}},
	}

	res := pinmap.Allocate(f.mcu(t, "stm32f103c8"), sensors, nil, f.defaults)

	if a, ok := res.Allocation("gps"); !ok || a.BusID != "USART1" {
		t.Fatalf("gps allocation = %+v, %v", a, ok)
	}
	c, ok := res.Conflict("co2")
	if !ok || c.Reason != pinmap.ReasonUARTExclusive {
		t.Fatalf("co2 conflict = %+v, %v", c, ok)
	}
	if c.Detail != "USART1 already used by GPS" {
		t.Errorf("Detail = %q", c.Detail)
	}
}

func TestScenario_DefaultConstraintsPerSeries(t *testing.T) {
	f := loadBuiltin(t)

	// F4 parts have no BOOT0 pin in the catalog and the boot constraint
	// is not scoped to F4.
	f4 := pinmap.Allocate(f.mcu(t, "stm32f407vg"), nil, nil, f.defaults)
	if got := f4.PinUsage["NRST"]; got.Status != pinmap.StatusReserved || got.Label != "Reset" {
		t.Errorf("F4 NRST = %+v", got)
	}
	if got := f4.PinUsage["PC14"]; got.Label != "Constraint: LSE Oscillator" {
		t.Errorf("F4 PC14 = %+v", got)
	}
	if got := f4.PinUsage["VDDA"]; got.Status != pinmap.StatusPower || got.Label != "Analog 3.3V" {
		t.Errorf("F4 VDDA = %+v", got)
	}

	g0 := pinmap.Allocate(f.mcu(t, "stm32g071rb"), nil, nil, f.defaults)
	if got := g0.PinUsage["PA13"]; got.Label != "Constraint: SWD Debug" {
		t.Errorf("G0 PA13 = %+v", got)
	}
}

// randomWorkload builds a deterministic mix of sensors and locks for mcu.
func randomWorkload(t *testing.T, rng *rand.Rand, f builtinFixture, mcu *pinmap.MCU) ([]pinmap.Sensor, pinmap.PinLocks) {
	ids := []string{"bme280", "sht31", "ssd1306", "w25q32", "max31855", "neo6m", "mhz19",
		"potentiometer", "servo", "button", "led", "ds18b20"}
	n := 4 + rng.IntN(20)
	sensors := make([]pinmap.Sensor, 0, n)
	locks := pinmap.PinLocks{}
	for i := 0; i < n; i++ {
		catalogID := ids[rng.IntN(len(ids))]
		id := fmt.Sprintf("%s_%d", catalogID, i)
		s := f.sensor(t, catalogID, id, id)
		if s.Kind() == pinmap.KindUART && rng.IntN(3) == 0 {
			s.Interface = pinmap.UART{RequiredBusID: mcu.Buses.UART[rng.IntN(len(mcu.Buses.UART))].ID}
		}
		if rng.IntN(5) == 0 {
			signals := pinmap.SignalsFor(s.Kind())
			pin := mcu.Pins[rng.IntN(len(mcu.Pins))].ID
			locks.Set(id, signals[rng.IntN(len(signals))], pin)
		}
		sensors = append(sensors, s)
	}
	return sensors, locks
}

func TestProperties_BuiltinMCUs(t *testing.T) {
	f := loadBuiltin(t)
	rng := rand.New(rand.NewPCG(42, 7))

	for _, mcu := range f.cat.MCUs {
		for round := 0; round < 25; round++ {
			sensors, locks := randomWorkload(t, rng, f, mcu)
			name := fmt.Sprintf("%s/%d", mcu.ID, round)

			first := pinmap.Allocate(mcu, sensors, locks, f.defaults)
			second := pinmap.Allocate(mcu, sensors, locks, f.defaults)

			a, _ := json.Marshal(first)
			b, _ := json.Marshal(second)
			if string(a) != string(b) {
				t.Fatalf("%s: results differ between identical calls", name)
			}

			if err := first.Validate(mcu, sensors); err != nil {
				t.Fatalf("%s: Validate() error = %v", name, err)
			}

			hard := make(map[string]bool)
			for _, c := range f.defaults {
				if c.Level == pinmap.LevelHard && c.IsEnabled() && c.AppliesTo(mcu) {
					for _, p := range c.Pins {
						hard[p] = true
					}
				}
			}
			for _, alloc := range first.Allocations {
				for sig, pin := range alloc.AssignedPins {
					if hard[pin] {
						t.Errorf("%s: %s %s bound to hard-constrained %s", name, alloc.SensorID, sig, pin)
					}
				}
				for sig, pin := range locks.For(alloc.SensorID) {
					if got, bound := alloc.AssignedPins[sig]; bound && got != pin {
						t.Errorf("%s: %s %s = %s, locked to %s", name, alloc.SensorID, sig, got, pin)
					}
				}
			}
			for _, c := range first.Conflicts {
				if c.Reason != pinmap.ReasonConstraintReserved {
					continue
				}
				hit := false
				for _, pin := range locks.For(c.SensorID) {
					hit = hit || hard[pin]
				}
				if !hit {
					t.Errorf("%s: %s constraint_reserved without a hard-constrained lock", name, c.SensorID)
				}
			}

			owners := make(map[string]string)
			for _, s := range sensors {
				u, ok := s.Interface.(pinmap.UART)
				if !ok || u.RequiredBusID == "" {
					continue
				}
				if _, taken := owners[u.RequiredBusID]; taken {
					if _, allocated := first.Allocation(s.ID); allocated {
						t.Errorf("%s: %s shares required bus %s", name, s.ID, u.RequiredBusID)
					}
					continue
				}
				if alloc, ok := first.Allocation(s.ID); ok {
					owners[u.RequiredBusID] = alloc.SensorID
				}
			}
		}
	}
}

func TestProperty_LockHonouring(t *testing.T) {
	f := loadBuiltin(t)
	mcu := f.mcu(t, "stm32h743zi")

	for _, pin := range []string{"PE0", "PD3", "PF15", "PC0"} {
		sensors := []pinmap.Sensor{{ID: "btn", Name: "Button", Interface: pinmap.GPIO{}}}
		locks := pinmap.PinLocks{"btn": {"GPIO": pin}}
		res := pinmap.Allocate(mcu, sensors, locks, f.defaults)
		a, ok := res.Allocation("btn")
		if !ok || a.AssignedPins["GPIO"] != pin {
			t.Errorf("lock %s: allocation = %+v, %v", pin, a, ok)
		}
		if got := res.PinUsage[pin].Label; got != "Button GPIO (Locked)" {
			t.Errorf("lock %s: label = %q", pin, got)
		}
	}
}
