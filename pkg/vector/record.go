package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// NewRecord copies the valid rows of vecs into an Arrow record whose fields
// are named by names. All vectors must hold the same number of rows.
func NewRecord(mem memory.Allocator, names []string, vecs []Vector) (arrow.Record, error) {
	if len(names) != len(vecs) {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation,
			"%d names for %d vectors", len(names), len(vecs))
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, len(vecs))
	cols := make([]arrow.Array, 0, len(vecs))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	rows := -1
	for i, v := range vecs {
		if rows >= 0 && v.ValueCount() != rows {
			return nil, scanerrors.Newf(scanerrors.ErrorTypeData,
				"vector %q has %d rows, want %d", names[i], v.ValueCount(), rows)
		}
		rows = v.ValueCount()

		at, err := ArrowType(v.Type())
		if err != nil {
			return nil, err
		}
		exp, ok := v.(Exporter)
		if !ok {
			return nil, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType,
				"vector %q cannot be exported", names[i])
		}
		fields[i] = arrow.Field{Name: names[i], Type: at, Nullable: false}
		cols = append(cols, exp.ToArrow(mem))
	}
	if rows < 0 {
		rows = 0
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), cols, int64(rows)), nil
}
