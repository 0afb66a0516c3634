package pinmap

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrInvalidResult is returned by Result.Validate when a result breaks one
// of the engine's guarantees.
var ErrInvalidResult = errors.New("pinmap: invalid result")

// Reason is the machine-readable code of a conflict or warning.
type Reason string

// Conflict reasons. Each is terminal for the sensor it is attached to.
const (
	ReasonConstraintReserved Reason = "constraint_reserved"
	ReasonLockedDuplicate    Reason = "locked_duplicate"
	ReasonLockedMismatch     Reason = "locked_mismatch"
	ReasonLockedUnavailable  Reason = "locked_unavailable"
	ReasonNoI2C              Reason = "no_i2c"
	ReasonNoSPI              Reason = "no_spi"
	ReasonNoSPICS            Reason = "no_spi_cs"
	ReasonNoUART             Reason = "no_uart"
	ReasonUARTExclusive      Reason = "uart_exclusive"
	ReasonNoADC              Reason = "no_adc"
	ReasonNoPWM              Reason = "no_pwm"
	ReasonNoGPIO             Reason = "no_gpio"
)

// Warning reasons. These never block an allocation.
const (
	ReasonSoftConstraint   Reason = "soft_constraint"
	ReasonI2CAddrCollision Reason = "i2c_addr_collision"
)

// AllReasons returns every reason code.
func AllReasons() []Reason {
	return []Reason{
		ReasonConstraintReserved, ReasonLockedDuplicate, ReasonLockedMismatch,
		ReasonLockedUnavailable, ReasonNoI2C, ReasonNoSPI, ReasonNoSPICS,
		ReasonNoUART, ReasonUARTExclusive, ReasonNoADC, ReasonNoPWM, ReasonNoGPIO,
		ReasonSoftConstraint, ReasonI2CAddrCollision,
	}
}

// IsWarning reports whether r is an informational warning code.
func (r Reason) IsWarning() bool {
	return r == ReasonSoftConstraint || r == ReasonI2CAddrCollision
}

// PinStatus is the final state of a pin after allocation.
type PinStatus string

// PinStatus constants.
const (
	StatusAvailable PinStatus = "available"
	StatusReserved  PinStatus = "reserved"
	StatusPower     PinStatus = "power"
	StatusBus       PinStatus = "bus"
	StatusSensor    PinStatus = "sensor"
)

// AllPinStatuses returns all pin status values.
func AllPinStatuses() []PinStatus {
	return []PinStatus{StatusAvailable, StatusReserved, StatusPower, StatusBus, StatusSensor}
}

// PinUsage is the status and display label of one pin.
type PinUsage struct {
	Status PinStatus `json:"status"`
	Label  string    `json:"label,omitempty"`
}

// Allocation is a successful binding of one sensor.
type Allocation struct {
	SensorID     string            `json:"sensorId"`
	SensorName   string            `json:"sensorName"`
	Interface    InterfaceKind     `json:"interface"`
	BusID        string            `json:"busId,omitempty"`
	AssignedPins map[string]string `json:"assignedPins"`
}

// Signals returns the bound signal names in canonical order for the
// interface kind.
func (a Allocation) Signals() []string {
	out := make([]string, 0, len(a.AssignedPins))
	for _, s := range SignalsFor(a.Interface) {
		if _, ok := a.AssignedPins[s]; ok {
			out = append(out, s)
		}
	}
	if len(out) == len(a.AssignedPins) {
		return out
	}
	var extra []string
	for s := range a.AssignedPins {
		if !slices.Contains(out, s) {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Conflict records a sensor that could not be placed.
type Conflict struct {
	SensorID   string `json:"sensorId"`
	SensorName string `json:"sensorName"`
	Reason     Reason `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// Warning is an advisory attached to a successful allocation. For address
// collisions SensorID is the synthetic key "i2c:<bus>:<address>".
type Warning struct {
	SensorID   string `json:"sensorId"`
	SensorName string `json:"sensorName"`
	Reason     Reason `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// I2CBus is a realised I2C bus and the sensors sharing it.
type I2CBus struct {
	ID      string   `json:"id"`
	SCL     string   `json:"scl"`
	SDA     string   `json:"sda"`
	Sensors []string `json:"sensors"`
}

// SPIBus is a realised SPI bus. CSPins holds one pin per attached sensor.
type SPIBus struct {
	ID      string   `json:"id"`
	SCK     string   `json:"sck"`
	MISO    string   `json:"miso"`
	MOSI    string   `json:"mosi"`
	CSPins  []string `json:"csPins"`
	Sensors []string `json:"sensors"`
}

// UARTBus is a realised UART bus owned by exactly one sensor.
type UARTBus struct {
	ID     string `json:"id"`
	TX     string `json:"tx"`
	RX     string `json:"rx"`
	Sensor string `json:"sensor"`
}

// BusUsage lists the realised buses in the order they were first used.
type BusUsage struct {
	I2C  []I2CBus  `json:"i2c"`
	SPI  []SPIBus  `json:"spi"`
	UART []UARTBus `json:"uart"`
}

// Result is the complete output of one Allocate call.
type Result struct {
	Allocations []Allocation        `json:"allocations"`
	Conflicts   []Conflict          `json:"conflicts"`
	Warnings    []Warning           `json:"warnings"`
	Buses       BusUsage            `json:"buses"`
	PinUsage    map[string]PinUsage `json:"pinUsage"`
}

// OK reports whether every sensor was placed.
func (r Result) OK() bool {
	return len(r.Conflicts) == 0
}

// Allocation returns the binding of a sensor.
func (r Result) Allocation(sensorID string) (Allocation, bool) {
	for _, a := range r.Allocations {
		if a.SensorID == sensorID {
			return a, true
		}
	}
	return Allocation{}, false
}

// Conflict returns the conflict recorded for a sensor.
func (r Result) Conflict(sensorID string) (Conflict, bool) {
	for _, c := range r.Conflicts {
		if c.SensorID == sensorID {
			return c, true
		}
	}
	return Conflict{}, false
}

// WarningsFor returns the warnings with the given reason.
func (r Result) WarningsFor(reason Reason) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Reason == reason {
			out = append(out, w)
		}
	}
	return out
}

// CountByStatus counts pins per status.
func (r Result) CountByStatus() map[PinStatus]int {
	counts := make(map[PinStatus]int, len(AllPinStatuses()))
	for _, u := range r.PinUsage {
		counts[u.Status]++
	}
	return counts
}

// Validate checks the result against the inputs it was computed from:
// every sensor is either allocated or in conflict, every MCU pin has a
// status, and no pin is bound to two sensors unless both share it as the
// same bus line.
func (r Result) Validate(mcu *MCU, sensors []Sensor) error {
	allocated := make(map[string]int, len(r.Allocations))
	for _, a := range r.Allocations {
		allocated[a.SensorID]++
	}
	conflicted := make(map[string]int, len(r.Conflicts))
	for _, c := range r.Conflicts {
		conflicted[c.SensorID]++
	}
	for _, s := range sensors {
		n := allocated[s.ID] + conflicted[s.ID]
		if n != 1 {
			return fmt.Errorf("%w: sensor %q appears %d times in allocations and conflicts", ErrInvalidResult, s.ID, n)
		}
	}

	if mcu != nil {
		for _, p := range mcu.Pins {
			if _, ok := r.PinUsage[p.ID]; !ok {
				return fmt.Errorf("%w: pin %s has no status", ErrInvalidResult, p.ID)
			}
		}
	}

	type binding struct {
		sensorID string
		busID    string
		signal   string
	}
	owners := make(map[string]binding)
	for _, a := range r.Allocations {
		for signal, pin := range a.AssignedPins {
			if u, ok := r.PinUsage[pin]; ok && u.Status == StatusAvailable {
				return fmt.Errorf("%w: pin %s bound to %q but marked available", ErrInvalidResult, pin, a.SensorID)
			}
			prev, seen := owners[pin]
			if !seen {
				owners[pin] = binding{sensorID: a.SensorID, busID: a.BusID, signal: signal}
				continue
			}
			shared := prev.busID != "" && prev.busID == a.BusID && prev.signal == signal && signal != SignalCS
			if !shared {
				return fmt.Errorf("%w: pin %s bound to both %q and %q", ErrInvalidResult, pin, prev.sensorID, a.SensorID)
			}
		}
	}
	return nil
}
