package scan

import (
	"errors"

	"github.com/ajitpratap0/packscan/pkg/metrics"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/schema"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/vector"
)

// ProjectedColumn is one output column of a scan: the table column it
// reads and the vector its values are copied into. The vector is reused
// for every work unit.
type ProjectedColumn struct {
	// Path is the table column name once the projection is resolved.
	Path   string
	Type   segment.DataType
	Vector vector.Vector
}

func (c ProjectedColumn) descriptor() segment.ColumnDescriptor {
	return segment.ColumnDescriptor{Name: c.Path, Type: c.Type}
}

// Decoder copies packs into projected vectors. It memoizes where each
// projected column lives in every segment it has seen.
type Decoder struct {
	resolver *schema.Resolver
}

// NewDecoder creates a decoder with an empty resolution cache.
func NewDecoder() *Decoder {
	return &Decoder{resolver: schema.NewResolver()}
}

// Resolver exposes the decoder's resolution cache.
func (d *Decoder) Resolver() *schema.Resolver { return d.resolver }

// DecodePack copies pack packID of every projected column of seg into the
// column's vector, starting at row 0. It returns the number of rows read,
// which every column must agree on, or -1 when columns is empty. Each pack
// is released as soon as its values are copied.
func (d *Decoder) DecodePack(segmentID string, seg segment.Segment, packID int, columns []ProjectedColumn) (int, error) {
	if len(columns) == 0 {
		return -1, nil
	}
	timer := metrics.NewTimer()
	count := -1
	catalog := seg.Schema()

	for _, col := range columns {
		index, ok := d.resolver.Lookup(segmentID, catalog, col.descriptor())
		if !ok {
			return 0, scanerrors.Newf(scanerrors.ErrorTypeColumnNotFound,
				"[%s] not found in %s", col.descriptor(), catalog).
				WithDetail("segment", segmentID).
				WithDetail("column", col.Path)
		}

		n, err := decodeColumn(seg, index, packID, col, 0)
		if err != nil {
			var se *scanerrors.Error
			if errors.As(err, &se) {
				return 0, scanerrors.Wrap(err, se.Type, "failed to decode pack").
					WithDetail("segment", segmentID).
					WithDetail("pack", packID).
					WithDetail("column", col.Path)
			}
			return 0, err
		}
		if count >= 0 && n != count {
			return 0, scanerrors.Newf(scanerrors.ErrorTypeData,
				"column %q has %d rows in pack %d, other columns have %d", col.Path, n, packID, count).
				WithDetail("segment", segmentID)
		}
		count = n
		metrics.PacksDecoded.WithLabelValues(col.Type.String()).Inc()
	}

	metrics.ObserveDecode(timer.Stop(), count)
	return count, nil
}

// decodeColumn copies one pack into col.Vector at offset and returns the
// pack's row count.
func decodeColumn(seg segment.Segment, index, packID int, col ProjectedColumn, offset int) (int, error) {
	column, err := seg.Column(index)
	if err != nil {
		return 0, err
	}
	pack, err := column.Pack(packID)
	if err != nil {
		return 0, err
	}
	defer pack.Release()

	count := pack.Count()
	switch col.Type {
	case segment.Int32:
		err = visitFixed[int32](col, pack.VisitInt32, offset, count)
	case segment.Int64:
		err = visitFixed[int64](col, pack.VisitInt64, offset, count)
	case segment.Float32:
		err = visitFixed[float32](col, pack.VisitFloat32, offset, count)
	case segment.Float64:
		err = visitFixed[float64](col, pack.VisitFloat64, offset, count)
	case segment.String:
		err = visitBytes(col, pack, offset, count)
	default:
		err = scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType,
			"no decode path for column %q of type %s", col.Path, col.Type)
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func visitFixed[T vector.Numeric](col ProjectedColumn, visit func(from, count int, fn func(row int, v T)) error, offset, count int) error {
	sink, ok := col.Vector.(vector.Sink[T])
	if !ok {
		return sinkMismatch(col)
	}
	return visit(0, count, func(row int, v T) {
		sink.Set(offset+row, v)
	})
}

func visitBytes(col ProjectedColumn, pack segment.Pack, offset, count int) error {
	sink, ok := col.Vector.(vector.BytesSink)
	if !ok {
		return sinkMismatch(col)
	}
	var copyErr error
	err := pack.VisitBytes(0, count, func(row int, span segment.ByteSpan) {
		if copyErr != nil {
			return
		}
		b, err := span.View()
		if err != nil {
			copyErr = err
			return
		}
		copyErr = sink.SetBytes(offset+row, b)
	})
	if err != nil {
		return err
	}
	return copyErr
}

func sinkMismatch(col ProjectedColumn) error {
	return scanerrors.Newf(scanerrors.ErrorTypeInternal,
		"vector of column %q does not accept %s values", col.Path, col.Type)
}
