// Package scan turns an ordered list of (segment, pack) work units into
// decoded column vectors.
//
// A PackReader resolves a projection against the table schema once, then
// each Next call reads one work unit: it looks the segment up in its
// SegmentCache, resolves every projected column in that segment's own
// catalog and copies the column packs into the reused vectors.
//
//	r, err := scan.NewPackReader(opener, "orders", tableSchema, projection, units)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    n, err := r.Next(ctx)
//	    if err != nil || n == 0 {
//	        return err
//	    }
//	    consume(r.Columns(), n)
//	}
package scan

import (
	"context"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/packscan/pkg/logger"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/schema"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/vector"
)

// ErrReaderClosed is returned by Next and Batch after Close.
var ErrReaderClosed = scanerrors.New(scanerrors.ErrorTypeInternal, "pack reader is closed")

// Option configures a PackReader.
type Option func(*PackReader)

// WithLogger sets the reader's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *PackReader) { r.logger = l }
}

// WithPackCapacity sets the row capacity vectors are reset to before each
// pack. It defaults to segment.MaxPackRows.
func WithPackCapacity(rows int) Option {
	return func(r *PackReader) { r.capacity = rows }
}

// WithPreOpen makes the first Next open every segment of the work list
// before reading.
func WithPreOpen(enabled bool) Option {
	return func(r *PackReader) { r.preOpen = enabled }
}

// PackReader reads work units one pack at a time. It is not safe for
// concurrent use; run one reader per fragment instead.
type PackReader struct {
	table    string
	columns  []ProjectedColumn
	units    []segment.WorkUnit
	next     int
	cache    *SegmentCache
	decoder  *Decoder
	capacity int
	preOpen  bool
	prepared bool
	last     segment.WorkUnit
	hasLast  bool
	closed   bool
	logger   *zap.Logger
}

// NewPackReader validates projection against tableSchema and returns a
// reader over units. A projection entry's Path may carry a "table." prefix
// and is matched case-insensitively; a "*" or "**" entry expands to every
// table column. Entries without a Type take the schema's, entries without a
// Vector get a new one. Any unresolvable or mismatched entry fails setup.
func NewPackReader(opener segment.Opener, table string, tableSchema segment.Catalog,
	projection []ProjectedColumn, units []segment.WorkUnit, opts ...Option) (*PackReader, error) {
	if opener == nil {
		return nil, scanerrors.New(scanerrors.ErrorTypeValidation, "opener is required")
	}

	r := &PackReader{
		table:    table,
		units:    units,
		capacity: segment.MaxPackRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.With(zap.String("component", "pack-reader"), zap.String("table", table))
	}
	if r.capacity <= 0 || r.capacity > segment.MaxPackRows {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation,
			"pack capacity %d outside [1, %d]", r.capacity, segment.MaxPackRows)
	}

	columns, err := resolveProjection(table, tableSchema, projection)
	if err != nil {
		return nil, err
	}
	r.columns = columns
	r.cache = NewSegmentCache(opener, r.logger)
	r.decoder = NewDecoder()

	r.logger.Debug("pack reader created",
		zap.Int("columns", len(columns)),
		zap.Int("units", len(units)),
		zap.Bool("pre_open", r.preOpen))
	return r, nil
}

func resolveProjection(table string, tableSchema segment.Catalog, projection []ProjectedColumn) ([]ProjectedColumn, error) {
	if err := tableSchema.Validate(); err != nil {
		return nil, err
	}
	if len(projection) == 0 {
		return nil, scanerrors.New(scanerrors.ErrorTypeValidation, "projection is empty")
	}

	var columns []ProjectedColumn
	for _, p := range projection {
		if schema.IsStar([]string{p.Path}) {
			for _, desc := range tableSchema {
				v, err := vector.New(desc.Type)
				if err != nil {
					return nil, err
				}
				columns = append(columns, ProjectedColumn{Path: desc.Name, Type: desc.Type, Vector: v})
			}
			continue
		}

		desc, _, err := schema.ResolvePath(table, tableSchema, p.Path)
		if err != nil {
			return nil, err
		}
		if p.Type != 0 && p.Type != desc.Type {
			return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation,
				"column %q is declared %s but the table stores %s", p.Path, p.Type, desc.Type).
				WithDetail("column", p.Path)
		}
		v := p.Vector
		if v == nil {
			if v, err = vector.New(desc.Type); err != nil {
				return nil, err
			}
		} else if v.Type() != desc.Type {
			return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation,
				"column %q is %s but its vector holds %s", p.Path, desc.Type, v.Type()).
				WithDetail("column", p.Path)
		}
		columns = append(columns, ProjectedColumn{Path: desc.Name, Type: desc.Type, Vector: v})
	}
	if len(columns) == 0 {
		return nil, scanerrors.New(scanerrors.ErrorTypeValidation, "projection selects no columns")
	}
	return columns, nil
}

// Next reads the next work unit into the projected vectors and returns its
// row count. It returns 0 once the work list is exhausted.
func (r *PackReader) Next(ctx context.Context) (int, error) {
	if r.closed {
		return 0, ErrReaderClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !r.prepared {
		r.prepared = true
		if r.preOpen {
			if err := r.cache.OpenAll(ctx, r.units); err != nil {
				return 0, err
			}
			r.logger.Debug("segments pre-opened", zap.Int("segments", r.cache.Len()))
		}
	}
	if r.next >= len(r.units) {
		return 0, nil
	}

	unit := r.units[r.next]
	for _, col := range r.columns {
		col.Vector.Reset(r.capacity)
	}

	seg, err := r.cache.EnsureOpen(ctx, unit.SegmentID)
	if err != nil {
		return 0, err
	}
	n, err := r.decoder.DecodePack(unit.SegmentID, seg, unit.PackID, r.columns)
	if err != nil {
		r.logger.Debug("pack decode failed", zap.Stringer("unit", unit), zap.Error(err))
		return 0, err
	}
	for _, col := range r.columns {
		col.Vector.SetValueCount(n)
	}

	r.next++
	r.last, r.hasLast = unit, true
	return n, nil
}

// Close releases every segment handle the reader opened. Close failures
// are logged, not returned. The reader cannot be used afterwards; a second
// Close does nothing.
func (r *PackReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cache.CloseAll()
	r.decoder.Resolver().Reset()
	r.units = nil
	r.cache = nil
	return nil
}

// Columns returns the resolved projection in output order.
func (r *PackReader) Columns() []ProjectedColumn {
	out := make([]ProjectedColumn, len(r.columns))
	copy(out, r.columns)
	return out
}

// Vector returns the vector of the projected column name, matched like a
// projection path.
func (r *PackReader) Vector(name string) (vector.Vector, bool) {
	name = schema.StripTablePrefix(name, r.table)
	for _, col := range r.columns {
		if strings.EqualFold(col.Path, name) {
			return col.Vector, true
		}
	}
	return nil, false
}

// LastUnit returns the work unit read by the last successful Next.
func (r *PackReader) LastUnit() (segment.WorkUnit, bool) {
	return r.last, r.hasLast
}

// Remaining returns the number of work units not yet read.
func (r *PackReader) Remaining() int {
	if r.closed {
		return 0
	}
	return len(r.units) - r.next
}

// Batch copies the current vectors into an Arrow record. The caller owns
// the record and must release it.
func (r *PackReader) Batch(mem memory.Allocator) (arrow.Record, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	names := make([]string, len(r.columns))
	vecs := make([]vector.Vector, len(r.columns))
	for i, col := range r.columns {
		names[i] = col.Path
		vecs[i] = col.Vector
	}
	return vector.NewRecord(mem, names, vecs)
}
