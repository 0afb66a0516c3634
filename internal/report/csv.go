package report

import (
	"bytes"
	"cmp"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

// PinmapCSV lists every MCU pin with its status and label under the header
// pin,status,label.
func PinmapCSV(mcu *pinmap.MCU, result pinmap.Result) ([]byte, error) {
	return pinTable(mcu, result, []string{"pin", "status", "label"})
}

// PinUsageCSV is PinmapCSV with the hardware header pin_id,status,label.
func PinUsageCSV(mcu *pinmap.MCU, result pinmap.Result) ([]byte, error) {
	return pinTable(mcu, result, []string{"pin_id", "status", "label"})
}

func pinTable(mcu *pinmap.MCU, result pinmap.Result, header []string) ([]byte, error) {
	rows := [][]string{header}
	for _, row := range PinUsageRows(mcu, result) {
		rows = append(rows, []string{row.PinID, string(row.Status), row.Label})
	}
	return writeCSV(rows)
}

// WiringCSV lists one row per bound signal under the header
// sensor_name,interface,bus_id,signal,pin_id. Signals follow the canonical
// order of each interface.
func WiringCSV(result pinmap.Result) ([]byte, error) {
	rows := [][]string{{"sensor_name", "interface", "bus_id", "signal", "pin_id"}}
	for _, w := range WiringRows(result) {
		rows = append(rows, []string{w.SensorName, string(w.Interface), w.BusID, w.Signal, w.PinID})
	}
	return writeCSV(rows)
}

// BOMCSV counts sensors by name and interface under the header
// name,interface,count.
func BOMCSV(sensors []pinmap.Sensor) ([]byte, error) {
	rows := [][]string{{"name", "interface", "count"}}
	for _, b := range BOMRows(sensors) {
		rows = append(rows, []string{b.Name, string(b.Interface), strconv.Itoa(b.Count)})
	}
	return writeCSV(rows)
}

// PinUsageRow is one line of the pin usage table.
type PinUsageRow struct {
	PinID  string           `json:"pinId"`
	Status pinmap.PinStatus `json:"status"`
	Label  string           `json:"label"`
}

// WiringRow is one sensor signal and the pin it is wired to.
type WiringRow struct {
	SensorName string               `json:"sensorName"`
	Interface  pinmap.InterfaceKind `json:"interface"`
	BusID      string               `json:"busId"`
	Signal     string               `json:"signal"`
	PinID      string               `json:"pinId"`
}

// BOMRow is one bill of materials entry.
type BOMRow struct {
	Name      string               `json:"name"`
	Interface pinmap.InterfaceKind `json:"interface"`
	Count     int                  `json:"count"`
}

// PinUsageRows returns every MCU pin ordered by port, then index. Pins the
// result does not mention are reported as available.
func PinUsageRows(mcu *pinmap.MCU, result pinmap.Result) []PinUsageRow {
	pins := slices.Clone(mcu.Pins)
	slices.SortStableFunc(pins, func(a, b pinmap.Pin) int {
		return cmp.Or(cmp.Compare(a.Port, b.Port), cmp.Compare(a.Index, b.Index))
	})

	out := make([]PinUsageRow, 0, len(pins))
	for _, p := range pins {
		row := PinUsageRow{PinID: p.ID, Status: pinmap.StatusAvailable}
		if u, ok := result.PinUsage[p.ID]; ok {
			row.Status = u.Status
			row.Label = u.Label
		}
		out = append(out, row)
	}
	return out
}

// WiringRows flattens the allocations into one row per signal.
func WiringRows(result pinmap.Result) []WiringRow {
	out := []WiringRow{}
	for _, a := range result.Allocations {
		for _, signal := range a.Signals() {
			out = append(out, WiringRow{
				SensorName: a.SensorName,
				Interface:  a.Interface,
				BusID:      a.BusID,
				Signal:     signal,
				PinID:      a.AssignedPins[signal],
			})
		}
	}
	return out
}

// BOMRows groups sensors by (name, interface) and sorts by name. Groups
// with the same name keep first-seen order.
func BOMRows(sensors []pinmap.Sensor) []BOMRow {
	out := []BOMRow{}
	index := make(map[string]int)
	for _, s := range sensors {
		key := s.Name + "::" + string(s.Kind())
		if i, ok := index[key]; ok {
			out[i].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, BOMRow{Name: s.Name, Interface: s.Kind(), Count: 1})
	}
	slices.SortStableFunc(out, func(a, b BOMRow) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}
