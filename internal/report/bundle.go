package report

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// Kind names one file of an export bundle.
type Kind string

// Bundle file kinds.
const (
	KindPinmapJSON   Kind = "pinmap_json"
	KindPinmapCSV    Kind = "pinmap_csv"
	KindHardwareJSON Kind = "hardware_json"
	KindPinUsageCSV  Kind = "hardware_pin_usage_csv"
	KindWiringCSV    Kind = "hardware_wiring_csv"
	KindBOMCSV       Kind = "hardware_bom_csv"
)

// AllKinds returns every bundle file kind in bundle order.
func AllKinds() []Kind {
	return []Kind{KindPinmapJSON, KindPinmapCSV, KindHardwareJSON, KindPinUsageCSV, KindWiringCSV, KindBOMCSV}
}

// Input is everything a report needs.
type Input struct {
	MCU         *pinmap.MCU
	Sensors     []pinmap.Sensor
	Result      pinmap.Result
	GeneratedAt time.Time
}

// Render produces one file of the given kind, returning its suggested name
// and content.
func Render(kind Kind, in Input) (string, []byte, error) {
	var (
		suffix string
		data   []byte
		err    error
	)
	switch kind {
	case KindPinmapJSON:
		suffix = "pinmap.json"
		data, err = marshalIndent(NewPinmapDocument(in.MCU, in.Result, in.GeneratedAt))
	case KindPinmapCSV:
		suffix = "pinmap.csv"
		data, err = PinmapCSV(in.MCU, in.Result)
	case KindHardwareJSON:
		suffix = "hardware.json"
		data, err = marshalIndent(NewHardwareDocument(in.MCU, in.Result, in.Sensors, in.GeneratedAt))
	case KindPinUsageCSV:
		suffix = "hardware_pin_usage.csv"
		data, err = PinUsageCSV(in.MCU, in.Result)
	case KindWiringCSV:
		suffix = "hardware_wiring.csv"
		data, err = WiringCSV(in.Result)
	case KindBOMCSV:
		suffix = "hardware_bom.csv"
		data, err = BOMCSV(in.Sensors)
	default:
		return "", nil, fmt.Errorf("report: unknown kind %q", kind)
	}
	if err != nil {
		return "", nil, err
	}
	return FileName(in.MCU, suffix), data, nil
}

// Manifest describes the files of a bundle.
type Manifest struct {
	SchemaVersion int            `json:"schemaVersion"`
	Kind          string         `json:"kind"`
	GeneratedAt   time.Time      `json:"generatedAt"`
	MCU           MCUSummary     `json:"mcu"`
	Files         []ManifestFile `json:"files"`
}

// ManifestFile is one entry of a Manifest.
type ManifestFile struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// WriteBundle writes a zip archive holding the requested kinds plus a
// manifest.json. With no kinds every kind is included.
func WriteBundle(w io.Writer, in Input, kinds ...Kind) error {
	if len(kinds) == 0 {
		kinds = AllKinds()
	}

	manifest := Manifest{
		SchemaVersion: 1,
		Kind:          "export_bundle",
		GeneratedAt:   in.GeneratedAt.UTC(),
		MCU:           Summarize(in.MCU),
	}

	zw := zip.NewWriter(w)
	for _, kind := range kinds {
		name, data, err := Render(kind, in)
		if err != nil {
			return err
		}
		if err := writeEntry(zw, name, data, in.GeneratedAt); err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, ManifestFile{Name: name, Kind: kind})
	}

	data, err := marshalIndent(manifest)
	if err != nil {
		return err
	}
	if err := writeEntry(zw, "manifest.json", data, in.GeneratedAt); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing bundle: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return fmt.Errorf("adding %s to bundle: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s to bundle: %w", name, err)
	}
	return nil
}

func marshalIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling report: %w", err)
	}
	return data, nil
}
