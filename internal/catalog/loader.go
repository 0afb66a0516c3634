package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Catalog is the validated content of one or more catalog documents.
type Catalog struct {
	MCUs        []*pinmap.MCU
	Sensors     []SensorRecord
	Constraints []pinmap.PinConstraint
}

// MCU returns the MCU with the given id.
func (c *Catalog) MCU(id string) (*pinmap.MCU, bool) {
	for _, m := range c.MCUs {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Sensor returns the sensor record with the given id.
func (c *Catalog) Sensor(id string) (SensorRecord, bool) {
	for _, s := range c.Sensors {
		if s.ID == id {
			return s, true
		}
	}
	return SensorRecord{}, false
}

// PinConstraints returns the constraints in declaration order.
func (c *Catalog) PinConstraints() []pinmap.PinConstraint {
	return c.Constraints
}

// Builtin returns the catalog compiled into the binary: the STM32 MCUs,
// the default constraints and the stock sensor library. Each call returns
// a fresh copy.
func Builtin() (*Catalog, error) {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("reading builtin catalog: %w", err)
	}
	out := &Catalog{}
	for _, e := range entries {
		data, err := builtinFS.ReadFile(path.Join("builtin", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading builtin %s: %w", e.Name(), err)
		}
		part, err := parse(data, pinmap.SourceDefault)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", e.Name(), err)
		}
		out.MCUs = append(out.MCUs, part.MCUs...)
		out.Sensors = append(out.Sensors, part.Sensors...)
		out.Constraints = append(out.Constraints, part.Constraints...)
	}
	return out, nil
}

// LoadFile reads and parses a catalog document from disk.
// Constraints without a source are tagged as imported.
func LoadFile(filename string) (*Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// Parse decodes a YAML or JSON catalog document. Unknown keys are rejected.
// Constraints without a source are tagged as imported.
func Parse(data []byte) (*Catalog, error) {
	return parse(data, pinmap.SourceImport)
}

func parse(data []byte, defaultSource pinmap.ConstraintSource) (*Catalog, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if doc.SchemaVersion != 0 && doc.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedSchema, doc.SchemaVersion, SchemaVersion)
	}

	out := &Catalog{}
	for _, rec := range doc.MCUs {
		m, err := rec.ToMCU()
		if err != nil {
			return nil, err
		}
		if _, dup := out.MCU(m.ID); dup {
			return nil, fmt.Errorf("%w: %s defined twice", ErrInvalidMCU, m.ID)
		}
		out.MCUs = append(out.MCUs, m)
	}
	for _, rec := range doc.Sensors {
		s, err := rec.Normalize()
		if err != nil {
			return nil, err
		}
		if _, dup := out.Sensor(s.ID); dup {
			return nil, fmt.Errorf("%w: %s defined twice", ErrInvalidSensor, s.ID)
		}
		out.Sensors = append(out.Sensors, s)
	}
	seen := make(map[string]struct{}, len(doc.Constraints))
	for _, rec := range doc.Constraints {
		c, err := rec.ToConstraint(defaultSource)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: %s defined twice", ErrInvalidConstraint, c.ID)
		}
		seen[c.ID] = struct{}{}
		out.Constraints = append(out.Constraints, c)
	}
	return out, nil
}

// Export writes the catalog as a YAML document stamped with generatedAt.
func Export(c *Catalog, generatedAt time.Time) ([]byte, error) {
	doc := Document{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt.UTC().Format(time.RFC3339),
	}
	for _, m := range c.MCUs {
		doc.MCUs = append(doc.MCUs, MCURecordFrom(m))
	}
	for _, s := range c.Sensors {
		doc.Sensors = append(doc.Sensors, s.Clone())
	}
	for _, pc := range c.Constraints {
		doc.Constraints = append(doc.Constraints, ConstraintRecordFrom(pc))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return buf.Bytes(), nil
}
