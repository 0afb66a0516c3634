package catalog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the active catalog: the built-ins plus any custom MCUs,
// sensors and constraints added at runtime. A custom entry replaces a
// built-in one with the same id and keeps its position.
//
// All public methods are thread-safe. Returned values are deep copies.
type Registry struct {
	mu sync.RWMutex

	mcus     map[string]*pinmap.MCU
	mcuOrder []string

	sensors     map[string]SensorRecord
	sensorOrder []string

	constraints []pinmap.PinConstraint

	logger Logger
}

// NewRegistry creates a registry seeded with the built-in catalog.
func NewRegistry() (*Registry, error) {
	r := NewEmptyRegistry()
	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}
	if err := r.Merge(builtin); err != nil {
		return nil, err
	}
	return r, nil
}

// NewEmptyRegistry creates a registry with no entries.
func NewEmptyRegistry() *Registry {
	return &Registry{
		mcus:    make(map[string]*pinmap.MCU),
		sensors: make(map[string]SensorRecord),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Merge adds every entry of c, replacing entries with the same id.
func (r *Registry) Merge(c *Catalog) error {
	if c == nil {
		return nil
	}
	for _, m := range c.MCUs {
		if err := r.AddMCU(m); err != nil {
			return err
		}
	}
	for _, s := range c.Sensors {
		if err := r.AddSensor(s); err != nil {
			return err
		}
	}
	for _, pc := range c.Constraints {
		if err := r.AddConstraint(pc); err != nil {
			return err
		}
	}
	return nil
}

// LoadFiles parses each catalog file and merges it in order.
func (r *Registry) LoadFiles(paths ...string) error {
	for _, p := range paths {
		c, err := LoadFile(p)
		if err != nil {
			return err
		}
		if err := r.Merge(c); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		r.log().Info("catalog file loaded", "path", p,
			"mcus", len(c.MCUs), "sensors", len(c.Sensors), "constraints", len(c.Constraints))
	}
	return nil
}

// AddMCU validates and stores an MCU.
func (r *Registry) AddMCU(m *pinmap.MCU) error {
	if err := ValidateMCU(m); err != nil {
		return err
	}
	cp := m.DeepCopy()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mcus[cp.ID]; exists {
		r.logger.Debug("mcu replaced", "id", cp.ID)
	} else {
		r.mcuOrder = append(r.mcuOrder, cp.ID)
	}
	r.mcus[cp.ID] = cp
	return nil
}

// AddSensor normalises and stores a sensor record.
func (r *Registry) AddSensor(rec SensorRecord) error {
	n, err := rec.Normalize()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sensors[n.ID]; exists {
		r.logger.Debug("sensor replaced", "id", n.ID)
	} else {
		r.sensorOrder = append(r.sensorOrder, n.ID)
	}
	r.sensors[n.ID] = n
	return nil
}

// AddConstraint validates and stores a constraint.
func (r *Registry) AddConstraint(c pinmap.PinConstraint) error {
	if err := ValidateConstraint(c); err != nil {
		return err
	}
	c = cloneConstraint(c)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.constraints {
		if r.constraints[i].ID == c.ID {
			r.constraints[i] = c
			r.logger.Debug("constraint replaced", "id", c.ID)
			return nil
		}
	}
	r.constraints = append(r.constraints, c)
	return nil
}

// MCU returns the MCU with the given id.
// Returns ErrMCUNotFound if it does not exist.
func (r *Registry) MCU(id string) (*pinmap.MCU, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mcus[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMCUNotFound, id)
	}
	return m.DeepCopy(), nil
}

// MCUs returns all MCUs in registration order.
func (r *Registry) MCUs() []*pinmap.MCU {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*pinmap.MCU, 0, len(r.mcuOrder))
	for _, id := range r.mcuOrder {
		out = append(out, r.mcus[id].DeepCopy())
	}
	return out
}

// MCUsBySeries returns the MCUs of one series. Matching ignores case.
func (r *Registry) MCUsBySeries(series pinmap.Series) []*pinmap.MCU {
	want := pinmap.Series(strings.ToUpper(string(series)))
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*pinmap.MCU
	for _, id := range r.mcuOrder {
		if m := r.mcus[id]; m.Series == want {
			out = append(out, m.DeepCopy())
		}
	}
	return out
}

// Sensor returns the sensor record with the given id.
// Returns ErrSensorNotFound if it does not exist.
func (r *Registry) Sensor(id string) (SensorRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sensors[id]
	if !ok {
		return SensorRecord{}, fmt.Errorf("%w: %s", ErrSensorNotFound, id)
	}
	return s.Clone(), nil
}

// Sensors returns all sensor records in registration order.
func (r *Registry) Sensors() []SensorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SensorRecord, 0, len(r.sensorOrder))
	for _, id := range r.sensorOrder {
		out = append(out, r.sensors[id].Clone())
	}
	return out
}

// Constraints returns every registered constraint in registration order.
func (r *Registry) Constraints() []pinmap.PinConstraint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]pinmap.PinConstraint, len(r.constraints))
	for i, c := range r.constraints {
		out[i] = cloneConstraint(c)
	}
	return out
}

// DefaultConstraints returns the constraints whose source is default.
func (r *Registry) DefaultConstraints() []pinmap.PinConstraint {
	var out []pinmap.PinConstraint
	for _, c := range r.Constraints() {
		if c.Source == pinmap.SourceDefault {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns the full registry content as a Catalog.
func (r *Registry) Snapshot() *Catalog {
	return &Catalog{
		MCUs:        r.MCUs(),
		Sensors:     r.Sensors(),
		Constraints: r.Constraints(),
	}
}

// Stats returns the number of MCUs, sensors and constraints.
func (r *Registry) Stats() (mcus, sensors, constraints int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mcus), len(r.sensors), len(r.constraints)
}

func (r *Registry) log() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func cloneConstraint(c pinmap.PinConstraint) pinmap.PinConstraint {
	out := c
	if c.Pins != nil {
		out.Pins = append([]string{}, c.Pins...)
	}
	if c.Series != nil {
		out.Series = append([]pinmap.Series{}, c.Series...)
	}
	if c.MCUIDs != nil {
		out.MCUIDs = append([]string{}, c.MCUIDs...)
	}
	if c.Enabled != nil {
		out.Enabled = pinmap.Bool(*c.Enabled)
	}
	return out
}
