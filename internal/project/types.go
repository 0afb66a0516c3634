package project

import (
	"time"

	"github.com/nerrad567/pinforge-core/internal/catalog"
	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// Spec is everything needed to run one allocation: the target MCU, the
// sensors to place, pin locks and constraints.
type Spec struct {
	// MCUID references an MCU in the catalog.
	MCUID string `json:"mcu_id" yaml:"mcu_id"`

	// SensorIDs reference catalog sensors, in placement order. An id may
	// repeat; each repeat becomes its own instance (see Instances).
	SensorIDs []string `json:"sensor_ids" yaml:"sensor_ids"`

	// CustomSensors are project-local definitions placed after SensorIDs.
	CustomSensors []catalog.SensorRecord `json:"custom_sensors,omitempty" yaml:"custom_sensors,omitempty"`

	// Locks are keyed by instance id.
	Locks pinmap.PinLocks `json:"locks,omitempty" yaml:"locks,omitempty"`

	// Constraints are project-specific and follow the catalog defaults.
	Constraints []catalog.ConstraintRecord `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	// UseDefaultConstraints applies the catalog's default constraints.
	UseDefaultConstraints bool `json:"use_default_constraints" yaml:"use_default_constraints"`

	// DisabledConstraints lists default constraint ids to skip.
	DisabledConstraints []string `json:"disabled_constraints,omitempty" yaml:"disabled_constraints,omitempty"`
}

// Project is a saved, named Spec.
type Project struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Spec `yaml:",inline"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// DeepCopy returns an independent copy of the project.
func (p *Project) DeepCopy() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Spec = p.Spec.DeepCopy()
	return &cp
}

// DeepCopy returns an independent copy of the spec.
func (s Spec) DeepCopy() Spec {
	cp := s
	cp.SensorIDs = cloneStrings(s.SensorIDs)
	cp.DisabledConstraints = cloneStrings(s.DisabledConstraints)
	cp.Locks = s.Locks.Clone()
	if s.CustomSensors != nil {
		cp.CustomSensors = make([]catalog.SensorRecord, len(s.CustomSensors))
		for i, r := range s.CustomSensors {
			cp.CustomSensors[i] = r.Clone()
		}
	}
	if s.Constraints != nil {
		cp.Constraints = make([]catalog.ConstraintRecord, len(s.Constraints))
		for i, c := range s.Constraints {
			c.Pins = cloneStrings(c.Pins)
			c.Series = cloneStrings(c.Series)
			c.MCUIDs = cloneStrings(c.MCUIDs)
			if c.Enabled != nil {
				c.Enabled = pinmap.Bool(*c.Enabled)
			}
			cp.Constraints[i] = c
		}
	}
	return cp
}

// Run is one recorded allocation of a project.
type Run struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	MCUID     string        `json:"mcu_id"`
	Allocated int           `json:"allocated"`
	Conflicts int           `json:"conflicts"`
	Warnings  int           `json:"warnings"`
	Result    pinmap.Result `json:"result"`
	Spec      Spec          `json:"spec"` // as planned; exports require it to match the project
	CreatedAt time.Time     `json:"created_at"`
}

// NewRun summarises result as a run of projectID.
func NewRun(projectID, mcuID string, result pinmap.Result, at time.Time) *Run {
	return &Run{
		ID:        GenerateID(),
		ProjectID: projectID,
		MCUID:     mcuID,
		Allocated: len(result.Allocations),
		Conflicts: len(result.Conflicts),
		Warnings:  len(result.Warnings),
		Result:    result,
		CreatedAt: at.UTC(),
	}
}

// OK reports whether every sensor was placed.
func (r *Run) OK() bool {
	return r.Conflicts == 0
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
