// Package segment defines the physical storage model a pack scan reads:
// column data types, per-segment catalogs, work units and the interfaces a
// segment implementation exposes to the reader.
package segment

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// MaxPackRows is the upper bound on the number of rows stored in one pack.
const MaxPackRows = 65536

// DataType is the closed set of column types a segment can store.
type DataType uint8

const (
	// Int32 is a 32-bit signed integer column
	Int32 DataType = iota + 1
	// Int64 is a 64-bit signed integer column
	Int64
	// Float32 is a 32-bit IEEE 754 column
	Float32
	// Float64 is a 64-bit IEEE 754 column
	Float64
	// String is a variable-length UTF-8 byte column
	String
)

// DataTypes lists every supported type in declaration order.
var DataTypes = []DataType{Int32, Int64, Float32, Float64, String}

func (t DataType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case String:
		return "string"
	default:
		return fmt.Sprintf("datatype(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the supported types.
func (t DataType) Valid() bool {
	switch t {
	case Int32, Int64, Float32, Float64, String:
		return true
	default:
		return false
	}
}

// FixedWidth returns the byte width of a numeric type, 0 for String.
func (t DataType) FixedWidth() int {
	switch t {
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// ParseDataType maps a type name (and the common SQL aliases) to a DataType.
func ParseDataType(name string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int32", "int", "integer":
		return Int32, nil
	case "int64", "long", "bigint":
		return Int64, nil
	case "float32", "float", "real":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "string", "varchar", "text":
		return String, nil
	default:
		return 0, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType, "unsupported type %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType, "unsupported type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ColumnDescriptor names one physical column and its type.
type ColumnDescriptor struct {
	Name string   `json:"name" yaml:"name"`
	Type DataType `json:"type" yaml:"type"`
}

func (d ColumnDescriptor) String() string {
	return d.Name + ":" + d.Type.String()
}

// Catalog is the ordered column list of one segment. Segments of the same
// logical table may carry different catalogs.
type Catalog []ColumnDescriptor

func (c Catalog) String() string {
	parts := make([]string, len(c))
	for i, d := range c {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Names returns the column names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, d := range c {
		names[i] = d.Name
	}
	return names
}

// Validate checks that every descriptor has a name and a supported type.
func (c Catalog) Validate() error {
	for i, d := range c {
		if d.Name == "" {
			return scanerrors.Newf(scanerrors.ErrorTypeValidation, "column %d has no name", i)
		}
		if !d.Type.Valid() {
			return scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType, "column %q has unsupported type %d", d.Name, uint8(d.Type))
		}
	}
	return nil
}

// WorkUnit identifies one pack of rows inside one segment.
type WorkUnit struct {
	SegmentID         string `json:"segment" yaml:"segment"`
	PackID            int    `json:"pack" yaml:"pack"`
	PrecedingRowCount int64  `json:"preceding_rows" yaml:"preceding_rows"`
}

func (w WorkUnit) String() string {
	return fmt.Sprintf("%s#%d", w.SegmentID, w.PackID)
}

// Segment is an opened segment handle. It is owned by whoever opened it and
// must be closed exactly once.
type Segment interface {
	// Schema returns the segment's column catalog.
	Schema() Catalog
	// PackCount returns the number of packs in the segment.
	PackCount() int
	// Column returns the accessor of the column at index.
	Column(index int) (Column, error)
	// Close releases the resources held by the segment.
	Close() error
}

// Column gives access to the packs of one column.
type Column interface {
	Pack(packID int) (Pack, error)
}

// Pack is a bounded run of one column's values. Only the visitor matching
// the pack's Type succeeds; the others return an unsupported type error.
type Pack interface {
	Type() DataType
	Count() int
	VisitInt32(from, count int, fn func(row int, v int32)) error
	VisitInt64(from, count int, fn func(row int, v int64)) error
	VisitFloat32(from, count int, fn func(row int, v float32)) error
	VisitFloat64(from, count int, fn func(row int, v float64)) error
	// VisitBytes passes each value as a span over the pack's memory. The
	// span is only valid until fn returns.
	VisitBytes(from, count int, fn func(row int, span ByteSpan)) error
	// Release returns the pack's memory. The pack must not be used after.
	Release()
}

// Opener opens segments by identifier.
type Opener interface {
	Open(ctx context.Context, segmentID string) (Segment, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, segmentID string) (Segment, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, segmentID string) (Segment, error) {
	return f(ctx, segmentID)
}

// CheckRange validates a visitor's [from, from+count) window against a pack
// of size n.
func CheckRange(from, count, n int) error {
	if from < 0 || count < 0 || from+count > n {
		return scanerrors.Newf(scanerrors.ErrorTypeData, "rows [%d, %d) out of pack range [0, %d)", from, from+count, n)
	}
	return nil
}

// TypeMismatch builds the error a pack returns from a visitor that does not
// match its type.
func TypeMismatch(have, want DataType) error {
	return scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType, "pack of type %s visited as %s", have, want)
}
