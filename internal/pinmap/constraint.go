package pinmap

import "slices"

// ConstraintLevel is the strength of a pin constraint.
type ConstraintLevel string

// ConstraintLevel constants.
const (
	// LevelHard makes a pin unusable.
	LevelHard ConstraintLevel = "hard"
	// LevelSoft allows use but flags it with a warning.
	LevelSoft ConstraintLevel = "soft"
)

// ConstraintSource records where a constraint came from.
type ConstraintSource string

// ConstraintSource constants.
const (
	SourceDefault ConstraintSource = "default"
	SourceImport  ConstraintSource = "import"
	SourceCustom  ConstraintSource = "custom"
	SourceProject ConstraintSource = "project"
)

// PinConstraint is a declarative rule covering a set of pins.
type PinConstraint struct {
	ID     string           `json:"id"`
	Label  string           `json:"label"`
	Pins   []string         `json:"pins"`
	Level  ConstraintLevel  `json:"level"`
	Source ConstraintSource `json:"source,omitempty"`
	Reason string           `json:"reason"`

	// Enabled defaults to true when nil.
	Enabled *bool `json:"enabled,omitempty"`

	// Series and MCUIDs scope the constraint. A nil list does not restrict;
	// a non-nil list must contain the MCU's series or id respectively.
	Series []Series `json:"series,omitempty"`
	MCUIDs []string `json:"mcuIds,omitempty"`
}

// IsEnabled reports whether the constraint is active.
func (c PinConstraint) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AppliesTo reports whether the constraint's scope includes mcu.
func (c PinConstraint) AppliesTo(mcu *MCU) bool {
	if c.MCUIDs != nil && !slices.Contains(c.MCUIDs, mcu.ID) {
		return false
	}
	if c.Series != nil && !slices.Contains(c.Series, mcu.Series) {
		return false
	}
	return true
}

// Describe returns "<label> - <reason>", or the label alone without a reason.
func (c PinConstraint) Describe() string {
	if c.Reason == "" {
		return c.Label
	}
	return c.Label + " - " + c.Reason
}

// Bool returns a pointer to v, for PinConstraint.Enabled.
func Bool(v bool) *bool {
	return &v
}

// constraintTable maps pin id to the constraints registered against it,
// in registration order.
type constraintTable map[string][]PinConstraint

func (t constraintTable) register(pinID string, c PinConstraint) {
	t[pinID] = append(t[pinID], c)
}

// hard returns the first enabled hard constraint registered on pinID.
func (t constraintTable) hard(pinID string) (PinConstraint, bool) {
	if pinID == "" {
		return PinConstraint{}, false
	}
	for _, c := range t[pinID] {
		if c.Level == LevelHard && c.IsEnabled() {
			return c, true
		}
	}
	return PinConstraint{}, false
}

// soft returns the enabled soft constraints registered on pinID.
func (t constraintTable) soft(pinID string) []PinConstraint {
	var out []PinConstraint
	for _, c := range t[pinID] {
		if c.Level == LevelSoft && c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}
