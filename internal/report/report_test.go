package report

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

func testMCU() *pinmap.MCU {
	return &pinmap.MCU{
		ID:      "demo",
		Name:    "DEMO48",
		Series:  pinmap.SeriesF1,
		Package: "LQFP48",
		Pins: []pinmap.Pin{
			{ID: "PB10", Port: "PB", Index: 10},
			{ID: "VDD", Port: pinmap.SysPort, Index: 0, Power: true},
			{ID: "PA2", Port: "PA", Index: 2},
			{ID: "PB2", Port: "PB", Index: 2},
			{ID: "PA10", Port: "PA", Index: 10},
		},
	}
}

func testResult() pinmap.Result {
	return pinmap.Result{
		Allocations: []pinmap.Allocation{
			{
				SensorID:     "env",
				SensorName:   "BME280, outdoor",
				Interface:    pinmap.KindI2C,
				BusID:        "I2C1",
				AssignedPins: map[string]string{pinmap.SignalSDA: "PB2", pinmap.SignalSCL: "PB10"},
			},
			{
				SensorID:     "btn",
				SensorName:   "Button",
				Interface:    pinmap.KindGPIO,
				AssignedPins: map[string]string{pinmap.SignalGPIO: "PA2"},
			},
		},
		PinUsage: map[string]pinmap.PinUsage{
			"PB10": {Status: pinmap.StatusBus, Label: "I2C1 SCL"},
			"PB2":  {Status: pinmap.StatusBus, Label: "I2C1 SDA"},
			"PA2":  {Status: pinmap.StatusSensor, Label: `Button "big" GPIO`},
			"VDD":  {Status: pinmap.StatusPower, Label: "3.3V"},
		},
	}
}

func testSensors() []pinmap.Sensor {
	return []pinmap.Sensor{
		{ID: "env", Name: "BME280, outdoor", Interface: pinmap.I2C{}},
		{ID: "btn", Name: "Button", Interface: pinmap.GPIO{}},
		{ID: "btn_2", Name: "Button", Interface: pinmap.GPIO{}},
		{ID: "gps", Name: "GPS", Interface: pinmap.UART{}},
	}
}

func TestPinmapCSV(t *testing.T) {
	got, err := PinmapCSV(testMCU(), testResult())
	if err != nil {
		t.Fatalf("PinmapCSV() error = %v", err)
	}
	want := "pin,status,label\n" +
		"PA2,sensor,\"Button \"\"big\"\" GPIO\"\n" +
		"PA10,available,\n" +
		"PB2,bus,I2C1 SDA\n" +
		"PB10,bus,I2C1 SCL\n" +
		"VDD,power,3.3V\n"
	if string(got) != want {
		t.Errorf("PinmapCSV() =\n%s\nwant\n%s", got, want)
	}
}

func TestPinUsageCSV_Header(t *testing.T) {
	got, err := PinUsageCSV(testMCU(), testResult())
	if err != nil {
		t.Fatalf("PinUsageCSV() error = %v", err)
	}
	if first, _, _ := strings.Cut(string(got), "\n"); first != "pin_id,status,label" {
		t.Errorf("header = %q, want %q", first, "pin_id,status,label")
	}
}

func TestWiringCSV(t *testing.T) {
	got, err := WiringCSV(testResult())
	if err != nil {
		t.Fatalf("WiringCSV() error = %v", err)
	}
	want := "sensor_name,interface,bus_id,signal,pin_id\n" +
		"\"BME280, outdoor\",I2C,I2C1,SCL,PB10\n" +
		"\"BME280, outdoor\",I2C,I2C1,SDA,PB2\n" +
		"Button,GPIO,,GPIO,PA2\n"
	if string(got) != want {
		t.Errorf("WiringCSV() =\n%s\nwant\n%s", got, want)
	}
}

func TestBOMCSV(t *testing.T) {
	got, err := BOMCSV(testSensors())
	if err != nil {
		t.Fatalf("BOMCSV() error = %v", err)
	}
	want := "name,interface,count\n" +
		"\"BME280, outdoor\",I2C,1\n" +
		"Button,GPIO,2\n" +
		"GPS,UART,1\n"
	if string(got) != want {
		t.Errorf("BOMCSV() =\n%s\nwant\n%s", got, want)
	}
}

func TestBOMRows_SameNameDifferentInterface(t *testing.T) {
	rows := BOMRows([]pinmap.Sensor{
		{Name: "Probe", Interface: pinmap.ADC{}},
		{Name: "Probe", Interface: pinmap.OneWire{}},
		{Name: "Probe", Interface: pinmap.ADC{}},
	})
	if len(rows) != 2 {
		t.Fatalf("len(BOMRows()) = %d, want 2", len(rows))
	}
	if rows[0].Interface != pinmap.KindADC || rows[0].Count != 2 {
		t.Errorf("rows[0] = %+v, want ADC x2", rows[0])
	}
	if rows[1].Interface != pinmap.KindOneWire || rows[1].Count != 1 {
		t.Errorf("rows[1] = %+v, want ONE_WIRE x1", rows[1])
	}
}

func TestNewHardwareDocument(t *testing.T) {
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	doc := NewHardwareDocument(testMCU(), testResult(), testSensors(), at)

	if doc.MCU.ID != "demo" || doc.MCU.Package != "LQFP48" {
		t.Errorf("MCU = %+v, want demo LQFP48", doc.MCU)
	}
	if len(doc.PinUsageTable) != 5 {
		t.Errorf("len(PinUsageTable) = %d, want 5", len(doc.PinUsageTable))
	}
	if len(doc.WiringList) != 3 {
		t.Errorf("len(WiringList) = %d, want 3", len(doc.WiringList))
	}
	if len(doc.BOMSummary) != 3 {
		t.Errorf("len(BOMSummary) = %d, want 3", len(doc.BOMSummary))
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, key := range []string{`"pinUsageTable"`, `"wiringList"`, `"bomSummary"`, `"warnings":[]`, `"conflicts":[]`, `"generatedAt":"2026-02-01T09:30:00Z"`} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("hardware JSON missing %s: %s", key, data)
		}
	}
}

func TestNewPinmapDocument(t *testing.T) {
	doc := NewPinmapDocument(testMCU(), testResult(), time.Now())
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"generatedAt", "mcu", "allocations", "conflicts", "warnings", "buses", "pinUsage"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("pinmap JSON missing key %q", key)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(testMCU(), "pinmap.csv"); got != "demo48_pinmap.csv" {
		t.Errorf("FileName() = %q, want %q", got, "demo48_pinmap.csv")
	}
}

func TestRender_UnknownKind(t *testing.T) {
	if _, _, err := Render("spl_c", Input{MCU: testMCU()}); err == nil {
		t.Error("Render(spl_c) should fail")
	}
}

func TestWriteBundle(t *testing.T) {
	in := Input{
		MCU:         testMCU(),
		Sensors:     testSensors(),
		Result:      testResult(),
		GeneratedAt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	if err := WriteBundle(&buf, in, KindPinmapCSV, KindBOMCSV); err != nil {
		t.Fatalf("WriteBundle() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	var names []string
	files := make(map[string]*zip.File)
	for _, f := range zr.File {
		names = append(names, f.Name)
		files[f.Name] = f
	}
	want := []string{"demo48_pinmap.csv", "demo48_hardware_bom.csv", "manifest.json"}
	if strings.Join(names, " ") != strings.Join(want, " ") {
		t.Fatalf("bundle files = %v, want %v", names, want)
	}

	rc, err := files["manifest.json"].Open()
	if err != nil {
		t.Fatalf("Open(manifest.json) error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal(manifest) error = %v", err)
	}
	if m.Kind != "export_bundle" || len(m.Files) != 2 || m.Files[1].Kind != KindBOMCSV {
		t.Errorf("manifest = %+v, want export_bundle with 2 files", m)
	}
}

func TestWriteBundle_AllKinds(t *testing.T) {
	in := Input{MCU: testMCU(), Sensors: testSensors(), Result: testResult(), GeneratedAt: time.Now()}
	var buf bytes.Buffer
	if err := WriteBundle(&buf, in); err != nil {
		t.Fatalf("WriteBundle() error = %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	if got, want := len(zr.File), len(AllKinds())+1; got != want {
		t.Errorf("len(bundle files) = %d, want %d", got, want)
	}
}
