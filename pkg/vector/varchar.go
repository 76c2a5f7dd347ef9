package vector

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// maxDataSize bounds the value bytes of one vector so that offsets fit in
// int32, the Arrow string offset width.
var maxDataSize = math.MaxInt32

// VarCharVector stores variable-length values as one data buffer plus
// offsets. Rows are written in increasing order; skipped rows become empty
// values.
type VarCharVector struct {
	offsets []int32 // offsets[i]..offsets[i+1] is row i
	data    []byte
	written int // rows with a final offset
	count   int
	rowCap  int
}

// NewVarChar creates an empty string vector.
func NewVarChar() *VarCharVector {
	return &VarCharVector{offsets: []int32{0}}
}

func (v *VarCharVector) Type() segment.DataType { return segment.String }
func (v *VarCharVector) ValueCount() int        { return v.count }
func (v *VarCharVector) Capacity() int          { return v.rowCap }

// Reset drops the values, keeping the offset and data buffers.
func (v *VarCharVector) Reset(capacity int) {
	if capacity+1 > cap(v.offsets) {
		v.offsets = make([]int32, 1, capacity+1)
	}
	v.offsets = v.offsets[:1]
	v.offsets[0] = 0
	v.data = v.data[:0]
	v.written = 0
	v.count = 0
	if capacity > v.rowCap {
		v.rowCap = capacity
	}
}

// SetBytes copies b into row i. Rows between the last written row and i are
// filled with empty values. Writing a row at or before the last written row
// is an error because the data buffer is append-only.
func (v *VarCharVector) SetBytes(i int, b []byte) error {
	if i < v.written {
		return scanerrors.Newf(scanerrors.ErrorTypeInternal,
			"varchar row %d written out of order, next row is %d", i, v.written)
	}
	if len(b) > maxDataSize-len(v.data) {
		return scanerrors.Newf(scanerrors.ErrorTypeData,
			"varchar row %d of %d bytes exceeds %d data bytes", i, len(b), maxDataSize)
	}
	v.fill(i)
	v.data = append(v.data, b...)
	v.offsets = append(v.offsets, int32(len(v.data)))
	v.written++
	if v.written > v.rowCap {
		v.rowCap = growLen(v.rowCap, v.written)
	}
	return nil
}

// fill appends empty rows until row n is the next one to be written.
func (v *VarCharVector) fill(n int) {
	end := int32(len(v.data))
	for v.written < n {
		v.offsets = append(v.offsets, end)
		v.written++
	}
}

// SetValueCount declares rows [0, n) valid, padding with empty values or
// truncating as needed.
func (v *VarCharVector) SetValueCount(n int) {
	if n > v.written {
		v.fill(n)
	} else if n < v.written {
		v.offsets = v.offsets[:n+1]
		v.data = v.data[:v.offsets[n]]
		v.written = n
	}
	if n > v.rowCap {
		v.rowCap = n
	}
	v.count = n
}

// Value returns row i. The slice aliases the vector.
func (v *VarCharVector) Value(i int) []byte {
	return v.data[v.offsets[i]:v.offsets[i+1]]
}

// String returns row i as a string.
func (v *VarCharVector) String(i int) string {
	return string(v.Value(i))
}

// Strings returns a copy of the valid rows.
func (v *VarCharVector) Strings() []string {
	out := make([]string, v.count)
	for i := range out {
		out[i] = v.String(i)
	}
	return out
}

// DataSize returns the number of value bytes held.
func (v *VarCharVector) DataSize() int { return len(v.data) }

// ToArrow copies the valid rows into a new Arrow string array.
func (v *VarCharVector) ToArrow(mem memory.Allocator) arrow.Array {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.Reserve(v.count)
	b.ReserveData(int(v.offsets[v.count]))
	for i := 0; i < v.count; i++ {
		b.BinaryBuilder.Append(v.Value(i))
	}
	return b.NewArray()
}
