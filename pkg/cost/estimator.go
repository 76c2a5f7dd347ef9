// Package cost estimates the bytes a scan reads per row, the figure a
// planner compares between scan strategies.
package cost

import (
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/schema"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// DefaultRowCost is returned when the projection is unknown: 8 bytes for
// each of 20 assumed columns.
const DefaultRowCost = 8 * 20

// FieldCost returns the expected byte cost of reading one value of type dt.
func FieldCost(dt segment.DataType, compressed bool) (float64, error) {
	switch dt {
	case segment.Int32:
		return pick(compressed, 4, 4*0.2), nil
	case segment.Int64:
		return pick(compressed, 8, 8*0.2), nil
	case segment.Float32:
		return pick(compressed, 4, 4*0.5), nil
	case segment.Float64:
		return pick(compressed, 8, 8*0.5), nil
	case segment.String:
		return pick(compressed, 100, 100*0.75), nil
	default:
		return 0, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType, "no cost for type %s", dt)
	}
}

func pick(compressed bool, c, u float64) float64 {
	if compressed {
		return c
	}
	return u
}

// RowCost returns the byte cost of one row. A nil projection yields
// DefaultRowCost, a wildcard sums the whole catalog, and otherwise each
// path is resolved against catalog (after stripping the table prefix).
func RowCost(table string, columns []string, catalog segment.Catalog, compressed bool) (float64, error) {
	if columns == nil {
		return DefaultRowCost, nil
	}

	if schema.IsStar(columns) {
		var total float64
		for _, d := range catalog {
			c, err := FieldCost(d.Type, compressed)
			if err != nil {
				return 0, err
			}
			total += c
		}
		return total, nil
	}

	var total float64
	for _, path := range columns {
		d, _, err := schema.ResolvePath(table, catalog, path)
		if err != nil {
			return 0, err
		}
		c, err := FieldCost(d.Type, compressed)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// Estimator binds the cost functions to one table.
type Estimator struct {
	Table      string
	Catalog    segment.Catalog
	Compressed bool
}

// RowCost returns the per-row cost of projecting columns.
func (e Estimator) RowCost(columns []string) (float64, error) {
	return RowCost(e.Table, columns, e.Catalog, e.Compressed)
}

// ScanCost returns the total byte cost of reading rowCount rows.
func (e Estimator) ScanCost(rowCount int64, columns []string) (float64, error) {
	if rowCount < 0 {
		return 0, scanerrors.Newf(scanerrors.ErrorTypeValidation, "negative row count %d", rowCount)
	}
	perRow, err := e.RowCost(columns)
	if err != nil {
		return 0, err
	}
	return float64(rowCount) * perRow, nil
}
