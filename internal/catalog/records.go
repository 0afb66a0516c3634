package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// SchemaVersion is the catalog document version written by this package.
// Documents without a version (0) are read as version 1.
const SchemaVersion = 1

// Document is the on-disk shape of a catalog file.
type Document struct {
	SchemaVersion int                `json:"schema_version" yaml:"schema_version"`
	Kind          string             `json:"kind,omitempty" yaml:"kind,omitempty"`
	GeneratedAt   string             `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
	MCUs          []MCURecord        `json:"mcus,omitempty" yaml:"mcus,omitempty"`
	Sensors       []SensorRecord     `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	Constraints   []ConstraintRecord `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// MCURecord describes one MCU as written in a catalog file.
type MCURecord struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Series       string       `json:"series" yaml:"series"`
	Package      string       `json:"package" yaml:"package"`
	Ports        []PortRecord `json:"ports,omitempty" yaml:"ports,omitempty"`
	Pins         []PinRecord  `json:"pins,omitempty" yaml:"pins,omitempty"`
	Buses        BusesRecord  `json:"buses" yaml:"buses"`
	AnalogPins   []string     `json:"analog_pins,omitempty" yaml:"analog_pins,omitempty"`
	PWMPins      []string     `json:"pwm_pins,omitempty" yaml:"pwm_pins,omitempty"`
	ReservedPins []string     `json:"reserved_pins,omitempty" yaml:"reserved_pins,omitempty"`
	Notes        string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// PortRecord expands into GPIO pins. Indexes wins over Count when both are set.
type PortRecord struct {
	Name    string `json:"name" yaml:"name"`
	Count   int    `json:"count,omitempty" yaml:"count,omitempty"`
	Indexes []int  `json:"indexes,omitempty" yaml:"indexes,omitempty,flow"`
}

// BusesRecord lists bus definitions by kind. Keys within a definition are
// id, scl, sda, sck, miso, mosi, tx and rx.
type BusesRecord struct {
	I2C  []pinmap.BusDefinition `json:"i2c,omitempty" yaml:"i2c,omitempty"`
	SPI  []pinmap.BusDefinition `json:"spi,omitempty" yaml:"spi,omitempty"`
	UART []pinmap.BusDefinition `json:"uart,omitempty" yaml:"uart,omitempty"`
}

// PinRecord is a pin entry: either a bare id ("PA0", "VDD") or a mapping.
type PinRecord struct {
	ID        string           `json:"id" yaml:"id"`
	GPIO      *bool            `json:"gpio,omitempty" yaml:"gpio,omitempty"`
	Functions []FunctionRecord `json:"functions,omitempty" yaml:"functions,omitempty,flow"`
	Reserved  *bool            `json:"reserved,omitempty" yaml:"reserved,omitempty"`
	Power     bool             `json:"power,omitempty" yaml:"power,omitempty"`
	Notes     string           `json:"notes,omitempty" yaml:"notes,omitempty"`

	// bare is set when the entry was written as a plain id.
	bare bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PinRecord) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*p = PinRecord{ID: strings.ToUpper(strings.TrimSpace(value.Value)), bare: true}
		return nil
	}
	type plain PinRecord
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = PinRecord(raw)
	p.ID = strings.TrimSpace(p.ID)
	return nil
}

// supplyPinName matches supply pins written as bare ids (VDD, VDDA, VSS, ...).
var supplyPinName = regexp.MustCompile(`(?i)^(VD|VSS)`)

// toPin converts the entry. sysIndex numbers SYS pins in declaration order.
func (p PinRecord) toPin(sysIndex *int) pinmap.Pin {
	pin := pinmap.Pin{
		ID:    p.ID,
		Label: p.ID,
		Notes: strings.TrimSpace(p.Notes),
		Power: p.Power,
	}

	if port, index, ok := pinmap.ParsePinID(p.ID); ok {
		pin.Port, pin.Index = port, index
		pin.Functions = make([]pinmap.PinFunction, 0, len(p.Functions)+1)
		if p.GPIO == nil || *p.GPIO {
			pin.Functions = append(pin.Functions, gpioFunction())
		}
		for _, f := range p.Functions {
			fn := pinmap.PinFunction(f)
			if fn == gpioFunction() && len(pin.Functions) > 0 && pin.Functions[0] == fn {
				continue
			}
			pin.Functions = append(pin.Functions, fn)
		}
		if p.Reserved != nil {
			pin.Reserved = *p.Reserved
		}
		return pin
	}

	pin.Port, pin.Index = pinmap.SysPort, *sysIndex
	*sysIndex++
	if p.bare {
		pin.Power = supplyPinName.MatchString(p.ID)
		pin.Notes = p.ID
	}
	pin.Reserved = !pin.Power
	if p.Reserved != nil {
		pin.Reserved = *p.Reserved
	}
	if len(p.Functions) == 0 {
		pin.Functions = []pinmap.PinFunction{{Name: p.ID}}
	} else {
		for _, f := range p.Functions {
			pin.Functions = append(pin.Functions, pinmap.PinFunction(f))
		}
	}
	return pin
}

// ToMCU expands the record into a validated MCU.
func (r MCURecord) ToMCU() (*pinmap.MCU, error) {
	m := &pinmap.MCU{
		ID:      strings.TrimSpace(r.ID),
		Name:    strings.TrimSpace(r.Name),
		Series:  pinmap.Series(strings.ToUpper(strings.TrimSpace(r.Series))),
		Package: strings.TrimSpace(r.Package),
		Buses: pinmap.Buses{
			I2C:  normalizeBuses(r.Buses.I2C),
			SPI:  normalizeBuses(r.Buses.SPI),
			UART: normalizeBuses(r.Buses.UART),
		},
		AnalogPins:   normalizePinList(r.AnalogPins),
		PWMPins:      normalizePinList(r.PWMPins),
		ReservedPins: normalizePinList(r.ReservedPins),
		Notes:        strings.TrimSpace(r.Notes),
	}

	position := make(map[string]int)
	for _, port := range r.Ports {
		name := strings.ToUpper(strings.TrimSpace(port.Name))
		if !portName.MatchString(name) {
			return nil, fmt.Errorf("%w: %s: port %q must look like PA..PZ", ErrInvalidMCU, m.ID, port.Name)
		}
		indexes := port.Indexes
		if len(indexes) == 0 {
			for i := 0; i < port.Count; i++ {
				indexes = append(indexes, i)
			}
		}
		for _, i := range indexes {
			if i < 0 {
				return nil, fmt.Errorf("%w: %s: negative index on port %s", ErrInvalidMCU, m.ID, name)
			}
			id := name + strconv.Itoa(i)
			if _, dup := position[id]; dup {
				return nil, fmt.Errorf("%w: %s: duplicate pin %s", ErrInvalidMCU, m.ID, id)
			}
			position[id] = len(m.Pins)
			m.Pins = append(m.Pins, pinmap.Pin{
				ID:        id,
				Label:     id,
				Port:      name,
				Index:     i,
				Functions: []pinmap.PinFunction{gpioFunction()},
			})
		}
	}

	declared := make(map[string]struct{}, len(r.Pins))
	sysIndex := 0
	for _, rec := range r.Pins {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: %s: pin without id", ErrInvalidMCU, m.ID)
		}
		if _, dup := declared[rec.ID]; dup {
			return nil, fmt.Errorf("%w: %s: pin %s declared twice", ErrInvalidMCU, m.ID, rec.ID)
		}
		declared[rec.ID] = struct{}{}

		pin := rec.toPin(&sysIndex)
		if i, ok := position[rec.ID]; ok {
			m.Pins[i] = pin
			continue
		}
		position[rec.ID] = len(m.Pins)
		m.Pins = append(m.Pins, pin)
	}

	if err := ValidateMCU(m); err != nil {
		return nil, err
	}
	return m, nil
}

// MCURecordFrom converts an MCU back into its file form. Every pin is
// written explicitly; ports are not reconstructed.
func MCURecordFrom(m *pinmap.MCU) MCURecord {
	cp := m.DeepCopy()
	rec := MCURecord{
		ID:           cp.ID,
		Name:         cp.Name,
		Series:       string(cp.Series),
		Package:      cp.Package,
		Buses:        BusesRecord{I2C: cp.Buses.I2C, SPI: cp.Buses.SPI, UART: cp.Buses.UART},
		AnalogPins:   cp.AnalogPins,
		PWMPins:      cp.PWMPins,
		ReservedPins: cp.ReservedPins,
		Notes:        cp.Notes,
	}
	for _, p := range cp.Pins {
		pr := PinRecord{ID: p.ID, Power: p.Power, Notes: p.Notes}
		fns := p.Functions
		if p.Port == pinmap.SysPort {
			if len(fns) == 1 && fns[0] == (pinmap.PinFunction{Name: p.ID}) {
				fns = nil
			}
			if p.Reserved == p.Power {
				pr.Reserved = pinmap.Bool(p.Reserved)
			}
		} else {
			if len(fns) > 0 && fns[0] == gpioFunction() {
				fns = fns[1:]
			} else {
				pr.GPIO = pinmap.Bool(false)
			}
			if p.Reserved {
				pr.Reserved = pinmap.Bool(true)
			}
		}
		for _, f := range fns {
			pr.Functions = append(pr.Functions, FunctionRecord(f))
		}
		rec.Pins = append(rec.Pins, pr)
	}
	return rec
}

// MarshalYAML writes a function as its bare name when the name alone
// parses back to the same function.
func (f FunctionRecord) MarshalYAML() (any, error) {
	if ParseFunction(f.Name) == pinmap.PinFunction(f) {
		return f.Name, nil
	}
	return struct {
		Name      string `yaml:"name"`
		Interface string `yaml:"interface,omitempty"`
		Signal    string `yaml:"signal,omitempty"`
		Bus       string `yaml:"bus,omitempty"`
	}{f.Name, string(f.Interface), f.Signal, f.Bus}, nil
}

func normalizeBuses(defs []pinmap.BusDefinition) []pinmap.BusDefinition {
	if defs == nil {
		return nil
	}
	out := make([]pinmap.BusDefinition, len(defs))
	for i, d := range defs {
		out[i] = pinmap.BusDefinition{
			ID:   strings.TrimSpace(d.ID),
			SCL:  normalizePinList(d.SCL),
			SDA:  normalizePinList(d.SDA),
			SCK:  normalizePinList(d.SCK),
			MISO: normalizePinList(d.MISO),
			MOSI: normalizePinList(d.MOSI),
			TX:   normalizePinList(d.TX),
			RX:   normalizePinList(d.RX),
		}
	}
	return out
}

func normalizePinList(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.ToUpper(strings.TrimSpace(id)); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// SensorRecord is the flat, serialisable form of a sensor definition.
type SensorRecord struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Interface     string      `json:"interface" yaml:"interface"`
	Signals       []string    `json:"signals,omitempty" yaml:"signals,omitempty,flow"`
	Description   string      `json:"description,omitempty" yaml:"description,omitempty"`
	I2CAddress    *I2CAddress `json:"i2c_address,omitempty" yaml:"i2c_address,omitempty"`
	RequiredBusID string      `json:"required_bus_id,omitempty" yaml:"required_bus_id,omitempty"`
}

// Normalize returns a cleaned copy of the record: the id defaults to a slug
// of the name, the interface is canonical and signals default to those of
// the interface. Options that do not apply to the interface are rejected.
func (r SensorRecord) Normalize() (SensorRecord, error) {
	out := SensorRecord{
		ID:            strings.TrimSpace(r.ID),
		Name:          strings.TrimSpace(r.Name),
		Description:   strings.TrimSpace(r.Description),
		RequiredBusID: strings.TrimSpace(r.RequiredBusID),
	}
	if r.I2CAddress != nil {
		addr := *r.I2CAddress
		out.I2CAddress = &addr
	}
	if out.Name == "" {
		return SensorRecord{}, fmt.Errorf("%w: name is required", ErrInvalidSensor)
	}
	if out.ID == "" {
		out.ID = Slug(out.Name)
	}
	if err := validateID(out.ID); err != nil {
		return SensorRecord{}, fmt.Errorf("%w: %s: %v", ErrInvalidSensor, out.Name, err)
	}

	kind, err := pinmap.ParseInterfaceKind(r.Interface)
	if err != nil {
		return SensorRecord{}, fmt.Errorf("%w: %s: %v", ErrInvalidSensor, out.ID, err)
	}
	out.Interface = string(kind)

	for _, s := range r.Signals {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out.Signals = append(out.Signals, s)
		}
	}
	if len(out.Signals) == 0 {
		out.Signals = pinmap.SignalsFor(kind)
	}

	if _, err := pinmap.NewInterface(kind, out.I2CAddress.value(), out.RequiredBusID); err != nil {
		return SensorRecord{}, fmt.Errorf("%w: %s: %v", ErrInvalidSensor, out.ID, err)
	}
	return out, nil
}

// ToSensor converts the record into an engine sensor.
func (r SensorRecord) ToSensor() (pinmap.Sensor, error) {
	n, err := r.Normalize()
	if err != nil {
		return pinmap.Sensor{}, err
	}
	iface, err := pinmap.NewInterface(pinmap.InterfaceKind(n.Interface), n.I2CAddress.value(), n.RequiredBusID)
	if err != nil {
		return pinmap.Sensor{}, fmt.Errorf("%w: %s: %v", ErrInvalidSensor, n.ID, err)
	}
	return pinmap.Sensor{
		ID:          n.ID,
		Name:        n.Name,
		Description: n.Description,
		Interface:   iface,
		Signals:     n.Signals,
	}, nil
}

// Clone returns a copy that shares no memory with r.
func (r SensorRecord) Clone() SensorRecord {
	out := r
	out.Signals = append([]string(nil), r.Signals...)
	if r.I2CAddress != nil {
		addr := *r.I2CAddress
		out.I2CAddress = &addr
	}
	return out
}

// I2CAddress is a 7-bit device address. In files it may be written as a
// decimal integer or as a hex string such as "0x76".
type I2CAddress uint8

// ParseI2CAddress parses "0x76", "0X3C" or "118".
func ParseI2CAddress(s string) (I2CAddress, error) {
	s = strings.TrimSpace(s)
	digits, base := s, 10
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		digits, base = s[2:], 16
	}
	v, err := strconv.ParseUint(digits, base, 8)
	if err != nil || v > 0x7f {
		return 0, fmt.Errorf("invalid I2C address %q", s)
	}
	return I2CAddress(v), nil
}

// String returns the address in 0xNN form.
func (a I2CAddress) String() string {
	return fmt.Sprintf("0x%02X", uint8(a))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *I2CAddress) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: i2c_address must be a scalar", value.Line)
	}
	v, err := ParseI2CAddress(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*a = v
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *I2CAddress) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	v, err := ParseI2CAddress(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalYAML writes the address as a hex string.
func (a I2CAddress) MarshalYAML() (any, error) {
	return a.String(), nil
}

func (a *I2CAddress) value() *uint8 {
	if a == nil {
		return nil
	}
	return pinmap.I2CAddress(uint8(*a))
}

var _ json.Unmarshaler = (*I2CAddress)(nil)

// ConstraintRecord is the file form of a pin constraint.
type ConstraintRecord struct {
	ID      string   `json:"id" yaml:"id"`
	Label   string   `json:"label" yaml:"label"`
	Pins    []string `json:"pins" yaml:"pins,flow"`
	Level   string   `json:"level,omitempty" yaml:"level,omitempty"`
	Enabled *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Source  string   `json:"source,omitempty" yaml:"source,omitempty"`
	Reason  string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Series  []string `json:"series,omitempty" yaml:"series,omitempty,flow"`
	MCUIDs  []string `json:"mcu_ids,omitempty" yaml:"mcu_ids,omitempty,flow"`
}

// ToConstraint validates the record and converts it. An empty level means
// hard; an empty source takes defaultSource.
func (r ConstraintRecord) ToConstraint(defaultSource pinmap.ConstraintSource) (pinmap.PinConstraint, error) {
	c := pinmap.PinConstraint{
		ID:     strings.TrimSpace(r.ID),
		Label:  strings.TrimSpace(r.Label),
		Pins:   normalizePinList(r.Pins),
		Level:  pinmap.ConstraintLevel(strings.ToLower(strings.TrimSpace(r.Level))),
		Source: pinmap.ConstraintSource(strings.ToLower(strings.TrimSpace(r.Source))),
		Reason: strings.TrimSpace(r.Reason),
		MCUIDs: trimList(r.MCUIDs),
	}
	if r.Enabled != nil {
		c.Enabled = pinmap.Bool(*r.Enabled)
	}
	if c.Level == "" {
		c.Level = pinmap.LevelHard
	}
	if c.Source == "" {
		c.Source = defaultSource
	}
	if r.Series != nil {
		c.Series = make([]pinmap.Series, 0, len(r.Series))
		for _, s := range r.Series {
			c.Series = append(c.Series, pinmap.Series(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	if err := ValidateConstraint(c); err != nil {
		return pinmap.PinConstraint{}, err
	}
	return c, nil
}

// ConstraintRecordFrom converts a constraint into its file form.
func ConstraintRecordFrom(c pinmap.PinConstraint) ConstraintRecord {
	rec := ConstraintRecord{
		ID:     c.ID,
		Label:  c.Label,
		Pins:   append([]string(nil), c.Pins...),
		Level:  string(c.Level),
		Source: string(c.Source),
		Reason: c.Reason,
	}
	if c.Enabled != nil {
		rec.Enabled = pinmap.Bool(*c.Enabled)
	}
	if c.Series != nil {
		rec.Series = make([]string, len(c.Series))
		for i, s := range c.Series {
			rec.Series[i] = string(s)
		}
	}
	if c.MCUIDs != nil {
		rec.MCUIDs = append([]string{}, c.MCUIDs...)
	}
	return rec
}

func trimList(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
