package pinmap

import "slices"

// Series is the MCU family tag used to scope constraints.
type Series string

// Series constants for the built-in STM32 families.
// Custom catalogs may use any other tag; the engine treats it as opaque.
const (
	SeriesF1 Series = "F1"
	SeriesF4 Series = "F4"
	SeriesG0 Series = "G0"
	SeriesH7 Series = "H7"
)

// AllSeries returns the built-in series values.
func AllSeries() []Series {
	return []Series{SeriesF1, SeriesF4, SeriesG0, SeriesH7}
}

// SysPort is the port label given to supply, reset and boot pins.
// Pins on this port never enter the GPIO pool.
const SysPort = "SYS"

// PinFunction is one declared capability of a pin.
type PinFunction struct {
	Name      string        `json:"name"`
	Interface InterfaceKind `json:"interface,omitempty"`
	Signal    string        `json:"signal,omitempty"`
	Bus       string        `json:"bus,omitempty"`
}

// Pin is a physical MCU pin. Pins are catalog data and are never created
// or destroyed by the engine.
type Pin struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	Port      string        `json:"port"`
	Index     int           `json:"index"`
	Functions []PinFunction `json:"functions"`
	Reserved  bool          `json:"reserved,omitempty"`
	Power     bool          `json:"power,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

// HasFunction reports whether the pin declares a function of the given kind.
func (p Pin) HasFunction(kind InterfaceKind) bool {
	for _, f := range p.Functions {
		if f.Interface == kind {
			return true
		}
	}
	return false
}

// BusDefinition lists the candidate pins per signal role of one bus
// instance. Only the roles relevant to the bus kind are populated.
type BusDefinition struct {
	ID   string   `json:"id"`
	SCL  []string `json:"scl,omitempty"`
	SDA  []string `json:"sda,omitempty"`
	SCK  []string `json:"sck,omitempty"`
	MISO []string `json:"miso,omitempty"`
	MOSI []string `json:"mosi,omitempty"`
	TX   []string `json:"tx,omitempty"`
	RX   []string `json:"rx,omitempty"`
}

// Buses groups the bus definitions of an MCU by kind, in declared order.
type Buses struct {
	I2C  []BusDefinition `json:"i2c"`
	SPI  []BusDefinition `json:"spi"`
	UART []BusDefinition `json:"uart"`
}

// MCU is the immutable topology of one microcontroller.
type MCU struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Series       Series   `json:"series"`
	Package      string   `json:"package"`
	Pins         []Pin    `json:"pins"`
	Buses        Buses    `json:"buses"`
	AnalogPins   []string `json:"analogPins"`
	PWMPins      []string `json:"pwmPins"`
	ReservedPins []string `json:"reservedPins"`
	Notes        string   `json:"notes,omitempty"`
}

// Pin returns the pin with the given id.
func (m *MCU) Pin(id string) (Pin, bool) {
	for _, p := range m.Pins {
		if p.ID == id {
			return p, true
		}
	}
	return Pin{}, false
}

// HasPin reports whether the MCU has a pin with the given id.
func (m *MCU) HasPin(id string) bool {
	_, ok := m.Pin(id)
	return ok
}

// DeepCopy returns an independent copy of the MCU.
func (m *MCU) DeepCopy() *MCU {
	if m == nil {
		return nil
	}
	cpy := *m
	cpy.Pins = make([]Pin, len(m.Pins))
	for i, p := range m.Pins {
		p.Functions = slices.Clone(p.Functions)
		cpy.Pins[i] = p
	}
	cpy.Buses = Buses{
		I2C:  cloneBusDefinitions(m.Buses.I2C),
		SPI:  cloneBusDefinitions(m.Buses.SPI),
		UART: cloneBusDefinitions(m.Buses.UART),
	}
	cpy.AnalogPins = slices.Clone(m.AnalogPins)
	cpy.PWMPins = slices.Clone(m.PWMPins)
	cpy.ReservedPins = slices.Clone(m.ReservedPins)
	return &cpy
}

func cloneBusDefinitions(defs []BusDefinition) []BusDefinition {
	if defs == nil {
		return nil
	}
	out := make([]BusDefinition, len(defs))
	for i, d := range defs {
		out[i] = BusDefinition{
			ID:   d.ID,
			SCL:  slices.Clone(d.SCL),
			SDA:  slices.Clone(d.SDA),
			SCK:  slices.Clone(d.SCK),
			MISO: slices.Clone(d.MISO),
			MOSI: slices.Clone(d.MOSI),
			TX:   slices.Clone(d.TX),
			RX:   slices.Clone(d.RX),
		}
	}
	return out
}

// Sensor is one peripheral to place on the MCU.
type Sensor struct {
	ID          string
	Name        string
	Description string

	// Interface selects the allocation rule. A nil Interface is treated as GPIO.
	Interface Interface

	// Signals is informational; the pins actually bound are decided by the
	// interface kind (see Interface.Signals).
	Signals []string
}

// Kind returns the sensor's interface kind.
func (s Sensor) Kind() InterfaceKind {
	return s.iface().Kind()
}

func (s Sensor) iface() Interface {
	if s.Interface == nil {
		return GPIO{}
	}
	return s.Interface
}

// PinLocks fixes pins per sensor and signal: sensor id -> signal -> pin id.
// Entries may be partial or absent.
type PinLocks map[string]map[string]string

// For returns the locks of one sensor. The result is never nil.
func (l PinLocks) For(sensorID string) map[string]string {
	if m, ok := l[sensorID]; ok && m != nil {
		return m
	}
	return map[string]string{}
}

// Set records a lock, creating the sensor entry if needed.
func (l PinLocks) Set(sensorID, signal, pinID string) {
	m, ok := l[sensorID]
	if !ok || m == nil {
		m = make(map[string]string)
		l[sensorID] = m
	}
	m[signal] = pinID
}

// Clone returns a deep copy of the lock map.
func (l PinLocks) Clone() PinLocks {
	if l == nil {
		return nil
	}
	out := make(PinLocks, len(l))
	for id, signals := range l {
		m := make(map[string]string, len(signals))
		for k, v := range signals {
			m[k] = v
		}
		out[id] = m
	}
	return out
}
