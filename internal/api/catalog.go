package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pinforge-core/internal/catalog"
	"github.com/nerrad567/pinforge-core/internal/pinmap"
	"github.com/nerrad567/pinforge-core/internal/report"
)

// mcuListEntry is the catalog listing form of an MCU.
type mcuListEntry struct {
	report.MCUSummary
	PinCount  int `json:"pin_count"`
	GPIOCount int `json:"gpio_count"`
	I2CBuses  int `json:"i2c_buses"`
	SPIBuses  int `json:"spi_buses"`
	UARTBuses int `json:"uart_buses"`
}

func (s *Server) catalog() *catalog.Registry {
	return s.service.Planner().Catalog()
}

// handleListMCUs returns the MCUs of the catalog.
//
// Query parameters:
//   - series: filter by family (F1, F4, G0, H7; case-insensitive)
func (s *Server) handleListMCUs(w http.ResponseWriter, r *http.Request) {
	var mcus []*pinmap.MCU
	if series := r.URL.Query().Get("series"); series != "" {
		mcus = s.catalog().MCUsBySeries(pinmap.Series(series))
	} else {
		mcus = s.catalog().MCUs()
	}

	entries := make([]mcuListEntry, 0, len(mcus))
	for _, m := range mcus {
		gpio := 0
		for _, p := range m.Pins {
			if p.HasFunction(pinmap.KindGPIO) && !p.Reserved && !p.Power {
				gpio++
			}
		}
		entries = append(entries, mcuListEntry{
			MCUSummary: report.Summarize(m),
			PinCount:   len(m.Pins),
			GPIOCount:  gpio,
			I2CBuses:   len(m.Buses.I2C),
			SPIBuses:   len(m.Buses.SPI),
			UARTBuses:  len(m.Buses.UART),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"mcus": entries, "count": len(entries)})
}

// handleGetMCU returns a single MCU with its full pin table.
func (s *Server) handleGetMCU(w http.ResponseWriter, r *http.Request) {
	m, err := s.catalog().MCU(chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "get mcu")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleListSensors returns the sensor definitions of the catalog.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	sensors := s.catalog().Sensors()
	if sensors == nil {
		sensors = []catalog.SensorRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
}

// handleListConstraints returns the catalog's constraints, marking the
// ones projects get by default.
func (s *Server) handleListConstraints(w http.ResponseWriter, _ *http.Request) {
	defaults := make(map[string]struct{})
	for _, c := range s.catalog().DefaultConstraints() {
		defaults[c.ID] = struct{}{}
	}

	type entry struct {
		catalog.ConstraintRecord
		Default bool `json:"default"`
	}
	all := s.catalog().Constraints()
	out := make([]entry, 0, len(all))
	for _, c := range all {
		_, def := defaults[c.ID]
		out = append(out, entry{ConstraintRecord: catalog.ConstraintRecordFrom(c), Default: def})
	}
	writeJSON(w, http.StatusOK, map[string]any{"constraints": out, "count": len(out)})
}
