package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/packscan/pkg/segment"
)

// Numeric is the set of fixed-width value types.
type Numeric interface {
	int32 | int64 | float32 | float64
}

// Fixed is a vector of fixed-width values.
type Fixed[T Numeric] struct {
	dt     segment.DataType
	values []T
	count  int
}

// Int32Vector stores Int32 columns.
type Int32Vector = Fixed[int32]

// Int64Vector stores Int64 columns.
type Int64Vector = Fixed[int64]

// Float32Vector stores Float32 columns.
type Float32Vector = Fixed[float32]

// Float64Vector stores Float64 columns.
type Float64Vector = Fixed[float64]

// NewInt32 creates an empty Int32 vector.
func NewInt32() *Int32Vector { return &Int32Vector{dt: segment.Int32} }

// NewInt64 creates an empty Int64 vector.
func NewInt64() *Int64Vector { return &Int64Vector{dt: segment.Int64} }

// NewFloat32 creates an empty Float32 vector.
func NewFloat32() *Float32Vector { return &Float32Vector{dt: segment.Float32} }

// NewFloat64 creates an empty Float64 vector.
func NewFloat64() *Float64Vector { return &Float64Vector{dt: segment.Float64} }

func (v *Fixed[T]) Type() segment.DataType { return v.dt }
func (v *Fixed[T]) ValueCount() int        { return v.count }
func (v *Fixed[T]) Capacity() int          { return len(v.values) }

// Reset drops the values. The backing array is kept when it already holds
// capacity rows.
func (v *Fixed[T]) Reset(capacity int) {
	if capacity > cap(v.values) {
		v.values = make([]T, capacity)
	} else {
		v.values = v.values[:cap(v.values)]
	}
	v.count = 0
}

// Set stores x at row i, growing the vector if needed.
func (v *Fixed[T]) Set(i int, x T) {
	if i >= len(v.values) {
		v.grow(i + 1)
	}
	v.values[i] = x
}

// SetValueCount declares rows [0, n) valid.
func (v *Fixed[T]) SetValueCount(n int) {
	if n > len(v.values) {
		v.grow(n)
	}
	v.count = n
}

func (v *Fixed[T]) grow(need int) {
	if need <= cap(v.values) {
		v.values = v.values[:cap(v.values)]
		return
	}
	grown := make([]T, growLen(len(v.values), need))
	copy(grown, v.values)
	v.values = grown
}

// Value returns row i.
func (v *Fixed[T]) Value(i int) T { return v.values[i] }

// Values returns the valid rows. The slice aliases the vector and is
// overwritten by the next pack.
func (v *Fixed[T]) Values() []T { return v.values[:v.count] }

// ToArrow copies the valid rows into a new Arrow array.
func (v *Fixed[T]) ToArrow(mem memory.Allocator) arrow.Array {
	switch vals := any(v.values[:v.count]).(type) {
	case []int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray()
	case []int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray()
	case []float32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray()
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(vals, nil)
		return b.NewArray()
	default:
		panic("vector: unreachable element type")
	}
}
