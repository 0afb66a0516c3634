package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// Validation constants.
const (
	maxIDLength   = 64
	maxNameLength = 100
	maxPins       = 512
	idPattern     = `^[A-Za-z0-9][A-Za-z0-9_.:-]*$`
	seriesPattern = `^[A-Z][A-Z0-9]{0,7}$`
)

var (
	idRegex     = regexp.MustCompile(idPattern)
	seriesRegex = regexp.MustCompile(seriesPattern)
	portName    = regexp.MustCompile(`^P[A-Z]$`)
	slugStrip   = regexp.MustCompile(`[^a-z0-9]+`)
)

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("id %q exceeds %d characters", id, maxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("id %q contains invalid characters", id)
	}
	return nil
}

// Slug derives an id from a display name: "MH-Z19 CO2" becomes "mh_z19_co2".
func Slug(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(s, "_")
}

// ValidateMCU checks an expanded MCU: identity fields, unique pin ids, and
// that every bus candidate and pin list entry names an existing pin.
// Returns an error describing the first failure found.
func ValidateMCU(m *pinmap.MCU) error {
	if m == nil {
		return ErrInvalidMCU
	}
	if err := validateID(m.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMCU, err)
	}
	if m.Name == "" || len(m.Name) > maxNameLength {
		return fmt.Errorf("%w: %s: name must be 1-%d characters", ErrInvalidMCU, m.ID, maxNameLength)
	}
	if !seriesRegex.MatchString(string(m.Series)) {
		return fmt.Errorf("%w: %s: invalid series %q", ErrInvalidMCU, m.ID, m.Series)
	}
	if m.Package == "" {
		return fmt.Errorf("%w: %s: package is required", ErrInvalidMCU, m.ID)
	}
	if len(m.Pins) == 0 {
		return fmt.Errorf("%w: %s: no pins", ErrInvalidMCU, m.ID)
	}
	if len(m.Pins) > maxPins {
		return fmt.Errorf("%w: %s: more than %d pins", ErrInvalidMCU, m.ID, maxPins)
	}

	pins := make(map[string]struct{}, len(m.Pins))
	for _, p := range m.Pins {
		if p.ID == "" {
			return fmt.Errorf("%w: %s: pin without id", ErrInvalidMCU, m.ID)
		}
		if _, dup := pins[p.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate pin %s", ErrInvalidMCU, m.ID, p.ID)
		}
		pins[p.ID] = struct{}{}
	}

	checkList := func(what string, ids []string) error {
		for _, id := range ids {
			if _, ok := pins[id]; !ok {
				return fmt.Errorf("%w: %s: %s references unknown pin %s", ErrInvalidMCU, m.ID, what, id)
			}
		}
		return nil
	}
	if err := checkList("analog_pins", m.AnalogPins); err != nil {
		return err
	}
	if err := checkList("pwm_pins", m.PWMPins); err != nil {
		return err
	}
	if err := checkList("reserved_pins", m.ReservedPins); err != nil {
		return err
	}

	type role struct {
		name string
		ids  []string
	}
	kinds := []struct {
		kind  pinmap.InterfaceKind
		defs  []pinmap.BusDefinition
		roles func(pinmap.BusDefinition) []role
	}{
		{pinmap.KindI2C, m.Buses.I2C, func(d pinmap.BusDefinition) []role {
			return []role{{"scl", d.SCL}, {"sda", d.SDA}}
		}},
		{pinmap.KindSPI, m.Buses.SPI, func(d pinmap.BusDefinition) []role {
			return []role{{"sck", d.SCK}, {"miso", d.MISO}, {"mosi", d.MOSI}}
		}},
		{pinmap.KindUART, m.Buses.UART, func(d pinmap.BusDefinition) []role {
			return []role{{"tx", d.TX}, {"rx", d.RX}}
		}},
	}
	for _, k := range kinds {
		seen := make(map[string]struct{}, len(k.defs))
		for _, def := range k.defs {
			if def.ID == "" {
				return fmt.Errorf("%w: %s: %s bus without id", ErrInvalidMCU, m.ID, k.kind)
			}
			if _, dup := seen[def.ID]; dup {
				return fmt.Errorf("%w: %s: duplicate %s bus %s", ErrInvalidMCU, m.ID, k.kind, def.ID)
			}
			seen[def.ID] = struct{}{}
			for _, r := range k.roles(def) {
				if len(r.ids) == 0 {
					return fmt.Errorf("%w: %s: bus %s has no %s candidates", ErrInvalidMCU, m.ID, def.ID, r.name)
				}
				if err := checkList(def.ID+"."+r.name, r.ids); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ValidateConstraint checks a converted constraint.
func ValidateConstraint(c pinmap.PinConstraint) error {
	if err := validateID(c.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConstraint, err)
	}
	if c.Label == "" || len(c.Label) > maxNameLength {
		return fmt.Errorf("%w: %s: label must be 1-%d characters", ErrInvalidConstraint, c.ID, maxNameLength)
	}
	if len(c.Pins) == 0 {
		return fmt.Errorf("%w: %s: no pins", ErrInvalidConstraint, c.ID)
	}
	switch c.Level {
	case pinmap.LevelHard, pinmap.LevelSoft:
	default:
		return fmt.Errorf("%w: %s: level must be hard or soft, got %q", ErrInvalidConstraint, c.ID, c.Level)
	}
	switch c.Source {
	case "", pinmap.SourceDefault, pinmap.SourceImport, pinmap.SourceCustom, pinmap.SourceProject:
	default:
		return fmt.Errorf("%w: %s: unknown source %q", ErrInvalidConstraint, c.ID, c.Source)
	}
	for _, s := range c.Series {
		if !seriesRegex.MatchString(string(s)) {
			return fmt.Errorf("%w: %s: invalid series %q", ErrInvalidConstraint, c.ID, s)
		}
	}
	return nil
}
