package catalog

import "errors"

// Domain errors for the catalog package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, catalog.ErrMCUNotFound) {
//	    // handle unknown MCU
//	}
var (
	// ErrMCUNotFound is returned when an MCU id is not in the catalog.
	ErrMCUNotFound = errors.New("catalog: mcu not found")

	// ErrSensorNotFound is returned when a sensor id is not in the catalog.
	ErrSensorNotFound = errors.New("catalog: sensor not found")

	// ErrInvalidMCU is returned when an MCU record fails validation.
	ErrInvalidMCU = errors.New("catalog: invalid mcu")

	// ErrInvalidSensor is returned when a sensor record fails validation.
	ErrInvalidSensor = errors.New("catalog: invalid sensor")

	// ErrInvalidConstraint is returned when a constraint record fails validation.
	ErrInvalidConstraint = errors.New("catalog: invalid constraint")

	// ErrUnsupportedSchema is returned for a schema_version this build cannot read.
	ErrUnsupportedSchema = errors.New("catalog: unsupported schema version")
)
