package project

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nerrad567/pinforge-core/internal/catalog"
	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// Plan is a Spec resolved against the catalog into engine inputs.
type Plan struct {
	MCU         *pinmap.MCU
	Sensors     []pinmap.Sensor
	Locks       pinmap.PinLocks
	Constraints []pinmap.PinConstraint
}

// Allocate runs the engine on the plan.
func (p *Plan) Allocate() pinmap.Result {
	return pinmap.Allocate(p.MCU, p.Sensors, p.Locks, p.Constraints)
}

// Planner resolves specs against a catalog registry.
type Planner struct {
	catalog *catalog.Registry
}

// NewPlanner creates a planner backed by reg.
func NewPlanner(reg *catalog.Registry) *Planner {
	return &Planner{catalog: reg}
}

// Catalog returns the registry the planner resolves against.
func (p *Planner) Catalog() *catalog.Registry {
	return p.catalog
}

// Plan resolves spec. Unknown MCUs or sensors and invalid custom records
// are reported as ErrInvalidProject wrapping the catalog error.
func (p *Planner) Plan(spec Spec) (*Plan, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}

	mcu, err := p.catalog.MCU(strings.TrimSpace(spec.MCUID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}

	sensors, err := p.sensors(spec)
	if err != nil {
		return nil, err
	}

	constraints, err := p.constraints(spec)
	if err != nil {
		return nil, err
	}

	return &Plan{
		MCU:         mcu,
		Sensors:     sensors,
		Locks:       spec.Locks.Clone(),
		Constraints: constraints,
	}, nil
}

// sensors expands catalog references into instances, then appends the
// custom sensors. Instance ids must be unique.
func (p *Planner) sensors(spec Spec) ([]pinmap.Sensor, error) {
	out := make([]pinmap.Sensor, 0, len(spec.SensorIDs)+len(spec.CustomSensors))
	seen := make(map[string]struct{})

	for _, inst := range Instances(spec.SensorIDs) {
		rec, err := p.catalog.Sensor(inst.CatalogID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
		}
		s, err := rec.ToSensor()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
		}
		s.ID = inst.ID
		if inst.Ordinal > 1 {
			s.Name = s.Name + " #" + strconv.Itoa(inst.Ordinal)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: sensor id %s used twice", ErrInvalidProject, s.ID)
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}

	for _, rec := range spec.CustomSensors {
		s, err := rec.ToSensor()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: sensor id %s used twice", ErrInvalidProject, s.ID)
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// constraints returns the enabled catalog defaults followed by the
// project's own constraints.
func (p *Planner) constraints(spec Spec) ([]pinmap.PinConstraint, error) {
	var out []pinmap.PinConstraint
	if spec.UseDefaultConstraints {
		for _, c := range p.catalog.DefaultConstraints() {
			if slices.Contains(spec.DisabledConstraints, c.ID) {
				continue
			}
			out = append(out, c)
		}
	}
	for _, rec := range spec.Constraints {
		c, err := rec.ToConstraint(pinmap.SourceProject)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Instance is one placement of a catalog sensor.
type Instance struct {
	ID        string // unique within the project
	CatalogID string
	Ordinal   int // 1 for the first use of CatalogID
}

// Instances numbers repeated catalog ids: bme280, bme280 becomes bme280 and
// bme280_2.
func Instances(catalogIDs []string) []Instance {
	counts := make(map[string]int, len(catalogIDs))
	out := make([]Instance, 0, len(catalogIDs))
	for _, raw := range catalogIDs {
		id := strings.TrimSpace(raw)
		counts[id]++
		n := counts[id]
		inst := Instance{ID: id, CatalogID: id, Ordinal: n}
		if n > 1 {
			inst.ID = id + "_" + strconv.Itoa(n)
		}
		out = append(out, inst)
	}
	return out
}
