package report

import (
	"strings"
	"time"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// MCUSummary identifies the MCU a document was produced for.
type MCUSummary struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Series  pinmap.Series `json:"series"`
	Package string        `json:"package"`
}

// Summarize returns the summary of mcu.
func Summarize(mcu *pinmap.MCU) MCUSummary {
	return MCUSummary{ID: mcu.ID, Name: mcu.Name, Series: mcu.Series, Package: mcu.Package}
}

// PinmapDocument is the full allocation result with its MCU.
type PinmapDocument struct {
	GeneratedAt time.Time                  `json:"generatedAt"`
	MCU         MCUSummary                 `json:"mcu"`
	Allocations []pinmap.Allocation        `json:"allocations"`
	Conflicts   []pinmap.Conflict          `json:"conflicts"`
	Warnings    []pinmap.Warning           `json:"warnings"`
	Buses       pinmap.BusUsage            `json:"buses"`
	PinUsage    map[string]pinmap.PinUsage `json:"pinUsage"`
}

// NewPinmapDocument builds the pinmap document for result.
func NewPinmapDocument(mcu *pinmap.MCU, result pinmap.Result, generatedAt time.Time) PinmapDocument {
	return PinmapDocument{
		GeneratedAt: generatedAt.UTC(),
		MCU:         Summarize(mcu),
		Allocations: nonNil(result.Allocations),
		Conflicts:   nonNil(result.Conflicts),
		Warnings:    nonNil(result.Warnings),
		Buses:       result.Buses,
		PinUsage:    result.PinUsage,
	}
}

// HardwareDocument is the hand-off for board design: pin table, wiring,
// bill of materials and the problems left open.
type HardwareDocument struct {
	GeneratedAt   time.Time         `json:"generatedAt"`
	MCU           MCUSummary        `json:"mcu"`
	PinUsageTable []PinUsageRow     `json:"pinUsageTable"`
	WiringList    []WiringRow       `json:"wiringList"`
	BOMSummary    []BOMRow          `json:"bomSummary"`
	Warnings      []pinmap.Warning  `json:"warnings"`
	Conflicts     []pinmap.Conflict `json:"conflicts"`
}

// NewHardwareDocument builds the hardware document. sensors is the input
// sensor list, so the BOM includes sensors that could not be placed.
func NewHardwareDocument(mcu *pinmap.MCU, result pinmap.Result, sensors []pinmap.Sensor, generatedAt time.Time) HardwareDocument {
	return HardwareDocument{
		GeneratedAt:   generatedAt.UTC(),
		MCU:           Summarize(mcu),
		PinUsageTable: PinUsageRows(mcu, result),
		WiringList:    WiringRows(result),
		BOMSummary:    BOMRows(sensors),
		Warnings:      nonNil(result.Warnings),
		Conflicts:     nonNil(result.Conflicts),
	}
}

// FileName returns the download name for an export of mcu, such as
// "stm32f103c8_pinmap.csv".
func FileName(mcu *pinmap.MCU, suffix string) string {
	return strings.ToLower(mcu.Name) + "_" + suffix
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
