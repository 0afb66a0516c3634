package pinmap

import (
	"fmt"
	"slices"
)

// allocator holds the working state of a single Allocate call.
type allocator struct {
	mcu   *MCU
	locks PinLocks

	usage  map[string]PinUsage // claimed pins; absent means free
	gpio   *pinPool
	analog *pinPool
	pwm    *pinPool

	constraints constraintTable

	i2cBuses  []*I2CBus
	spiBuses  []*SPIBus
	uartBuses []UARTBus
	uartOwner map[string]string // bus id -> owning sensor name

	allocations []Allocation
	conflicts   []Conflict
}

// Allocate assigns pins and buses to sensors, in input order, on mcu.
//
// Power pins and reserved pins are claimed first, then every enabled
// constraint scoped to mcu is registered and hard ones claim their pins.
// Each sensor then either receives a complete binding or a Conflict; the
// call never fails and never panics. A nil mcu behaves like an MCU with no
// pins or buses.
//
// The result depends only on the arguments, which are not modified.
func Allocate(mcu *MCU, sensors []Sensor, locks PinLocks, constraints []PinConstraint) Result {
	if mcu == nil {
		mcu = &MCU{}
	}
	a := newAllocator(mcu, locks)
	a.applyConstraints(constraints)

	for _, s := range sensors {
		a.place(s)
	}

	return a.finish(sensors)
}

func newAllocator(mcu *MCU, locks PinLocks) *allocator {
	a := &allocator{
		mcu:         mcu,
		locks:       locks,
		usage:       make(map[string]PinUsage, len(mcu.Pins)),
		constraints: make(constraintTable),
		uartOwner:   make(map[string]string),
	}

	var gpio []string
	for _, p := range mcu.Pins {
		switch {
		case p.Power:
			a.usage[p.ID] = PinUsage{Status: StatusPower, Label: orDefault(p.Notes, "Power")}
		case p.Reserved || slices.Contains(mcu.ReservedPins, p.ID):
			a.usage[p.ID] = PinUsage{Status: StatusReserved, Label: orDefault(p.Notes, "Reserved")}
		}
		if p.Port != SysPort && !p.Reserved && !p.Power {
			gpio = append(gpio, p.ID)
		}
	}

	a.gpio = newPinPool(gpio)
	a.analog = newPinPool(mcu.AnalogPins)
	a.pwm = newPinPool(mcu.PWMPins)
	for id := range a.usage {
		a.dropFromPools(id)
	}
	return a
}

// applyConstraints registers every enabled, in-scope constraint against the
// pins it names that exist on the MCU. Hard constraints claim unclaimed pins.
func (a *allocator) applyConstraints(constraints []PinConstraint) {
	for _, c := range constraints {
		if !c.IsEnabled() || !c.AppliesTo(a.mcu) {
			continue
		}
		for _, pinID := range c.Pins {
			if !a.mcu.HasPin(pinID) {
				continue
			}
			a.constraints.register(pinID, c)
			if c.Level == LevelHard && a.isFree(pinID) {
				a.reserve(pinID, StatusReserved, "Constraint: "+c.Label)
			}
		}
	}
}

func (a *allocator) isFree(pinID string) bool {
	_, used := a.usage[pinID]
	return !used
}

// reserve claims a pin and removes it from every pool.
func (a *allocator) reserve(pinID string, status PinStatus, label string) {
	a.usage[pinID] = PinUsage{Status: status, Label: label}
	a.dropFromPools(pinID)
}

func (a *allocator) dropFromPools(pinID string) {
	a.gpio.remove(pinID)
	a.analog.remove(pinID)
	a.pwm.remove(pinID)
}

// firstFree returns the first unclaimed pin of candidates.
func (a *allocator) firstFree(candidates []string) string {
	for _, id := range candidates {
		if a.isFree(id) {
			return id
		}
	}
	return ""
}

func (a *allocator) conflict(s Sensor, reason Reason, detail string) {
	a.conflicts = append(a.conflicts, Conflict{
		SensorID:   s.ID,
		SensorName: s.Name,
		Reason:     reason,
		Detail:     detail,
	})
}

func (a *allocator) bind(s Sensor, busID string, pins map[string]string) {
	a.allocations = append(a.allocations, Allocation{
		SensorID:     s.ID,
		SensorName:   s.Name,
		Interface:    s.Kind(),
		BusID:        busID,
		AssignedPins: pins,
	})
}

// hardLocked returns the conflict detail for the first signal, in the given
// order, that is locked to a hard-constrained pin.
func (a *allocator) hardLocked(s Sensor, locks map[string]string, signals ...string) (string, bool) {
	for _, signal := range signals {
		pinID := locks[signal]
		if c, ok := a.constraints.hard(pinID); ok {
			return fmt.Sprintf("%s %s -> %s (%s)", s.Name, signal, pinID, c.Describe()), true
		}
	}
	return "", false
}

func (a *allocator) place(s Sensor) {
	locks := a.locks.For(s.ID)
	switch s.Kind() {
	case KindI2C:
		a.placeI2C(s, locks)
	case KindSPI:
		a.placeSPI(s, locks)
	case KindUART:
		a.placeUART(s, locks)
	case KindADC:
		a.placeSingle(s, locks, singlePinRule{
			signal: SignalAIN, lockKeys: []string{SignalAIN}, pool: a.analog, exhausted: ReasonNoADC,
		})
	case KindPWM:
		a.placeSingle(s, locks, singlePinRule{
			signal: SignalPWM, lockKeys: []string{SignalPWM}, pool: a.pwm, exhausted: ReasonNoPWM,
		})
	case KindOneWire:
		a.placeSingle(s, locks, singlePinRule{
			signal: SignalDQ, lockKeys: []string{SignalDQ, SignalGPIO}, pool: a.gpio, exhausted: ReasonNoGPIO,
		})
	default:
		a.placeSingle(s, locks, singlePinRule{
			signal: SignalGPIO, lockKeys: []string{SignalGPIO, SignalDQ}, pool: a.gpio, exhausted: ReasonNoGPIO,
		})
	}
}

// singlePinRule describes the one-pin interfaces.
type singlePinRule struct {
	signal    string
	lockKeys  []string // lock entries consulted, first non-empty wins
	pool      *pinPool
	exhausted Reason
}

func (a *allocator) placeSingle(s Sensor, locks map[string]string, rule singlePinRule) {
	var locked string
	for _, key := range rule.lockKeys {
		if locks[key] != "" {
			locked = locks[key]
			break
		}
	}

	if c, ok := a.constraints.hard(locked); ok {
		a.conflict(s, ReasonConstraintReserved,
			fmt.Sprintf("%s %s -> %s (%s)", s.Name, rule.signal, locked, c.Describe()))
		return
	}

	pinID, ok := a.takeFromPool(rule.pool, s.Name+" "+rule.signal, locked)
	if !ok {
		reason := rule.exhausted
		if locked != "" {
			reason = ReasonLockedUnavailable
		}
		a.conflict(s, reason, "")
		return
	}
	a.bind(s, "", map[string]string{rule.signal: pinID})
}

// takeFromPool claims the locked pin, or the lowest free pin of pool when
// locked is empty. A locked pin must still be in the pool.
func (a *allocator) takeFromPool(pool *pinPool, label, locked string) (string, bool) {
	pinID := locked
	if pinID == "" {
		var ok bool
		if pinID, ok = pool.lowest(); !ok {
			return "", false
		}
	} else if !pool.has(pinID) {
		return "", false
	}
	if !a.isFree(pinID) {
		return "", false
	}
	if locked != "" {
		label = lockedLabel(label)
	}
	a.reserve(pinID, StatusSensor, label)
	return pinID, true
}

// finish marks the remaining pins available and runs post-analysis.
func (a *allocator) finish(sensors []Sensor) Result {
	for _, p := range a.mcu.Pins {
		if _, ok := a.usage[p.ID]; !ok {
			a.usage[p.ID] = PinUsage{Status: StatusAvailable}
		}
	}

	res := Result{
		Allocations: a.allocations,
		Conflicts:   a.conflicts,
		Buses: BusUsage{
			I2C:  make([]I2CBus, 0, len(a.i2cBuses)),
			SPI:  make([]SPIBus, 0, len(a.spiBuses)),
			UART: make([]UARTBus, 0, len(a.uartBuses)),
		},
		PinUsage: a.usage,
	}
	if res.Allocations == nil {
		res.Allocations = []Allocation{}
	}
	if res.Conflicts == nil {
		res.Conflicts = []Conflict{}
	}
	for _, b := range a.i2cBuses {
		res.Buses.I2C = append(res.Buses.I2C, *b)
	}
	for _, b := range a.spiBuses {
		res.Buses.SPI = append(res.Buses.SPI, *b)
	}
	res.Buses.UART = append(res.Buses.UART, a.uartBuses...)

	res.Warnings = append(a.softConstraintWarnings(res.Allocations), addressCollisionWarnings(res.Allocations, sensors)...)
	if res.Warnings == nil {
		res.Warnings = []Warning{}
	}
	return res
}

func lockedLabel(label string) string {
	return label + " (Locked)"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
