// Package vector provides the typed output vectors a pack scan writes into.
//
// A vector is allocated once per scan and reused for every pack: Reset
// keeps the backing memory when it is large enough, the typed setters grow
// it on demand, and SetValueCount declares how many leading rows are valid.
// Vectors can be exported as Apache Arrow arrays for downstream operators.
package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// Vector is the type-independent half of an output vector.
type Vector interface {
	// Type returns the column type the vector stores.
	Type() segment.DataType
	// Reset discards the values and makes room for at least capacity rows.
	Reset(capacity int)
	// SetValueCount declares the first n rows valid.
	SetValueCount(n int)
	// ValueCount returns the number of valid rows.
	ValueCount() int
	// Capacity returns the number of rows that fit without growing.
	Capacity() int
}

// Sink is a vector accepting fixed-width values of type T. Set grows the
// vector when i is past its capacity.
type Sink[T Numeric] interface {
	Vector
	Set(i int, v T)
}

type (
	Int32Sink   = Sink[int32]
	Int64Sink   = Sink[int64]
	Float32Sink = Sink[float32]
	Float64Sink = Sink[float64]
)

// BytesSink is a vector accepting variable-length values. SetBytes copies b.
type BytesSink interface {
	Vector
	SetBytes(i int, b []byte) error
}

// Exporter is implemented by vectors that can hand their valid rows to Arrow.
type Exporter interface {
	ToArrow(mem memory.Allocator) arrow.Array
}

// New allocates an empty vector for dt.
func New(dt segment.DataType) (Vector, error) {
	switch dt {
	case segment.Int32:
		return NewInt32(), nil
	case segment.Int64:
		return NewInt64(), nil
	case segment.Float32:
		return NewFloat32(), nil
	case segment.Float64:
		return NewFloat64(), nil
	case segment.String:
		return NewVarChar(), nil
	default:
		return nil, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType, "no vector for type %s", dt)
	}
}

// ArrowType maps a column type to its Arrow type.
func ArrowType(dt segment.DataType) (arrow.DataType, error) {
	switch dt {
	case segment.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case segment.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case segment.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case segment.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case segment.String:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType, "no arrow type for %s", dt)
	}
}

func growLen(have, need int) int {
	n := have * 2
	if n < need {
		n = need
	}
	if n < 64 {
		n = 64
	}
	return n
}
