// Package manifest describes a scan as data: the table, its schema, the
// projection and the ordered work units. Manifests are stored as JSON or
// YAML and can be planned from the segments of a blob store.
package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/packscan/pkg/json"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/schema"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// Format is a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Column is one projection entry. Type may be left empty to take the type
// from the table schema.
type Column struct {
	Path string           `json:"path" yaml:"path"`
	Type segment.DataType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Manifest is a serialized scan.
type Manifest struct {
	Table      string             `json:"table" yaml:"table"`
	Schema     segment.Catalog    `json:"schema" yaml:"schema"`
	Projection []Column           `json:"projection" yaml:"projection"`
	Segments   []string           `json:"segments,omitempty" yaml:"segments,omitempty"`
	Units      []segment.WorkUnit `json:"units,omitempty" yaml:"units,omitempty"`
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", scanerrors.Newf(scanerrors.ErrorTypeConfig, "unknown manifest extension %q", filepath.Ext(path))
	}
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path is supplied by the operator
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "read manifest")
	}
	return Decode(data, format)
}

// Decode parses and validates a manifest.
func Decode(data []byte, format Format) (*Manifest, error) {
	m := &Manifest{}
	var err error
	switch format {
	case FormatJSON:
		err = json.UnmarshalStrict(data, m)
	case FormatYAML:
		err = yaml.Unmarshal(data, m)
	default:
		return nil, scanerrors.Newf(scanerrors.ErrorTypeConfig, "unknown manifest format %q", format)
	}
	if err != nil {
		if scanerrors.HasType(err, scanerrors.ErrorTypeUnsupportedType) {
			return nil, err
		}
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "parse manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes m.
func (m *Manifest) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(m, "", "  ")
	case FormatYAML:
		return yaml.Marshal(m)
	default:
		return nil, scanerrors.Newf(scanerrors.ErrorTypeConfig, "unknown manifest format %q", format)
	}
}

// Save writes m to path in the format implied by its extension.
func (m *Manifest) Save(path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := m.Encode(format)
	if err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeInternal, "encode manifest")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "write manifest")
	}
	return nil
}

// Validate checks the schema, the projection and the work units.
func (m *Manifest) Validate() error {
	if err := m.Schema.Validate(); err != nil {
		return err
	}
	for i, c := range m.Projection {
		if c.Path == "" {
			return scanerrors.Newf(scanerrors.ErrorTypeValidation, "projection entry %d has no path", i)
		}
	}
	for i, u := range m.Units {
		if u.SegmentID == "" {
			return scanerrors.Newf(scanerrors.ErrorTypeValidation, "work unit %d has no segment", i)
		}
		if u.PackID < 0 || u.PrecedingRowCount < 0 {
			return scanerrors.Newf(scanerrors.ErrorTypeValidation, "work unit %d (%s) has negative position", i, u)
		}
	}
	return nil
}

// Paths returns the projection paths in order.
func (m *Manifest) Paths() []string {
	paths := make([]string, len(m.Projection))
	for i, c := range m.Projection {
		paths[i] = c.Path
	}
	return paths
}

// TypedProjection returns the projection with every missing type filled
// in from the table schema. Wildcards are left untyped.
func (m *Manifest) TypedProjection() ([]Column, error) {
	out := make([]Column, len(m.Projection))
	for i, c := range m.Projection {
		out[i] = c
		if c.Type != 0 || schema.IsStar([]string{c.Path}) {
			continue
		}
		d, _, err := schema.ResolvePath(m.Table, m.Schema, c.Path)
		if err != nil {
			return nil, err
		}
		out[i].Type = d.Type
	}
	return out, nil
}
