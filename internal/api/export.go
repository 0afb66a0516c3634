package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pinforge-core/internal/report"
)

// bundleFile is the export name of the zip archive holding every report.
const bundleFile = "bundle.zip"

// exportFiles maps export names to report kinds.
var exportFiles = map[string]report.Kind{
	"pinmap.json":   report.KindPinmapJSON,
	"pinmap.csv":    report.KindPinmapCSV,
	"hardware.json": report.KindHardwareJSON,
	"pins.csv":      report.KindPinUsageCSV,
	"wiring.csv":    report.KindWiringCSV,
	"bom.csv":       report.KindBOMCSV,
}

// handleExport renders one report, or the zip bundle, for the latest run
// of a project. A run made before the project was last edited is refused.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	kind, known := exportFiles[file]
	if !known && file != bundleFile {
		writeNotFound(w, "unknown export "+file)
		return
	}

	plan, run, err := s.service.ExportPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "export project")
		return
	}

	in := report.Input{
		MCU:         plan.MCU,
		Sensors:     plan.Sensors,
		Result:      run.Result,
		GeneratedAt: run.CreatedAt,
	}

	var (
		name, contentType string
		data              []byte
	)
	if file == bundleFile {
		var buf bytes.Buffer
		if err := report.WriteBundle(&buf, in); err != nil {
			s.writeServiceError(w, err, "export project")
			return
		}
		name, contentType, data = report.FileName(plan.MCU, bundleFile), "application/zip", buf.Bytes()
	} else {
		name, data, err = report.Render(kind, in)
		if err != nil {
			s.writeServiceError(w, err, "export project")
			return
		}
		contentType = contentTypeFor(file)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}

func contentTypeFor(file string) string {
	if strings.HasSuffix(file, ".json") {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}
