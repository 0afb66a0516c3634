package project

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
	maxSensors           = 256
	maxConstraints       = 128
)

// GenerateID returns a new project or run identifier.
func GenerateID() string {
	return uuid.NewString()
}

// ValidateName checks that a name is non-empty and within length limits.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateProject checks the fields that do not need the catalog.
// Catalog references are checked by the Planner.
func ValidateProject(p *Project) error {
	if p == nil {
		return ErrInvalidProject
	}
	if p.ID != "" {
		if _, err := uuid.Parse(p.ID); err != nil {
			return fmt.Errorf("%w: id must be a UUID", ErrInvalidProject)
		}
	}
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if len(p.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidProject, maxDescriptionLength)
	}
	return ValidateSpec(p.Spec)
}

// ValidateSpec checks sizes and required fields of a spec.
func ValidateSpec(s Spec) error {
	if strings.TrimSpace(s.MCUID) == "" {
		return fmt.Errorf("%w: mcu_id is required", ErrInvalidProject)
	}
	if n := len(s.SensorIDs) + len(s.CustomSensors); n > maxSensors {
		return fmt.Errorf("%w: %d sensors exceeds limit of %d", ErrInvalidProject, n, maxSensors)
	}
	if len(s.Constraints) > maxConstraints {
		return fmt.Errorf("%w: %d constraints exceeds limit of %d", ErrInvalidProject, len(s.Constraints), maxConstraints)
	}
	for _, id := range s.SensorIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty sensor id", ErrInvalidProject)
		}
	}
	return nil
}
