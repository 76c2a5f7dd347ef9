package scan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/testutil"
	"github.com/ajitpratap0/packscan/pkg/vector"
)

// trackingSegment counts pack releases and can serve columns from other
// segments, which lets a test build packs of unequal length.
type trackingSegment struct {
	segment.Segment
	catalog  segment.Catalog
	columns  []segment.Column
	released int
}

func (s *trackingSegment) Schema() segment.Catalog {
	if s.catalog != nil {
		return s.catalog
	}
	return s.Segment.Schema()
}

func (s *trackingSegment) Column(index int) (segment.Column, error) {
	var (
		col segment.Column
		err error
	)
	if s.columns != nil {
		col = s.columns[index]
	} else if col, err = s.Segment.Column(index); err != nil {
		return nil, err
	}
	return trackingColumn{Column: col, seg: s}, nil
}

type trackingColumn struct {
	segment.Column
	seg *trackingSegment
}

func (c trackingColumn) Pack(packID int) (segment.Pack, error) {
	p, err := c.Column.Pack(packID)
	if err != nil {
		return nil, err
	}
	return trackingPack{Pack: p, seg: c.seg}, nil
}

type trackingPack struct {
	segment.Pack
	seg *trackingSegment
}

func (p trackingPack) Release() {
	p.seg.released++
	p.Pack.Release()
}

func driftSegment(t *testing.T) *segment.MemorySegment {
	return testutil.MemorySegment(t, segment.Catalog{
		{Name: "B", Type: segment.String},
		{Name: "c", Type: segment.Float64},
		{Name: "A", Type: segment.Int32},
	}, 2, []string{"x", "yy", "zzz"}, []float64{0.5, 1.5, 2.5}, []int32{1, 2, 3})
}

func projected(t *testing.T, specs ...segment.ColumnDescriptor) []ProjectedColumn {
	cols := make([]ProjectedColumn, len(specs))
	for i, d := range specs {
		v, err := vector.New(d.Type)
		require.NoError(t, err)
		cols[i] = ProjectedColumn{Path: d.Name, Type: d.Type, Vector: v}
	}
	return cols
}

func TestDecodePackNoColumns(t *testing.T) {
	n, err := NewDecoder().DecodePack("s1", driftSegment(t), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
}

func TestDecodePackResolvesPerSegment(t *testing.T) {
	seg := &trackingSegment{Segment: driftSegment(t)}
	cols := projected(t,
		segment.ColumnDescriptor{Name: "a", Type: segment.Int32},
		segment.ColumnDescriptor{Name: "b", Type: segment.String})
	d := NewDecoder()

	n, err := d.DecodePack("s1", seg, 1, cols)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	for _, c := range cols {
		c.Vector.SetValueCount(n)
	}
	assert.Equal(t, []int32{3}, cols[0].Vector.(*vector.Int32Vector).Values())
	assert.Equal(t, []string{"zzz"}, cols[1].Vector.(*vector.VarCharVector).Strings())
	assert.Equal(t, 2, seg.released)

	for _, c := range cols {
		c.Vector.Reset(4)
	}
	n, err = d.DecodePack("s1", seg, 0, cols)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	for _, c := range cols {
		c.Vector.SetValueCount(n)
	}
	assert.Equal(t, []int32{1, 2}, cols[0].Vector.(*vector.Int32Vector).Values())
	assert.Equal(t, []string{"x", "yy"}, cols[1].Vector.(*vector.VarCharVector).Strings())

	hits, misses := d.Resolver().Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 2, misses)
}

func TestDecodePackColumnMissing(t *testing.T) {
	tests := []struct {
		name string
		desc segment.ColumnDescriptor
	}{
		{"absent", segment.ColumnDescriptor{Name: "d", Type: segment.Int32}},
		{"type changed", segment.ColumnDescriptor{Name: "a", Type: segment.Int64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder().DecodePack("s1", driftSegment(t), 0, projected(t, tt.desc))
			assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeColumnNotFound))
		})
	}
}

func TestDecodePackCountMismatch(t *testing.T) {
	long := testutil.MemorySegment(t, intCatalog, 4, []int32{1, 2, 3})
	short := testutil.MemorySegment(t, segment.Catalog{{Name: "b", Type: segment.Int64}}, 4, []int64{7, 8})
	longCol, err := long.Column(0)
	require.NoError(t, err)
	shortCol, err := short.Column(0)
	require.NoError(t, err)

	seg := &trackingSegment{
		Segment: long,
		catalog: segment.Catalog{{Name: "a", Type: segment.Int32}, {Name: "b", Type: segment.Int64}},
		columns: []segment.Column{longCol, shortCol},
	}
	cols := projected(t,
		segment.ColumnDescriptor{Name: "a", Type: segment.Int32},
		segment.ColumnDescriptor{Name: "b", Type: segment.Int64})

	_, err = NewDecoder().DecodePack("spliced", seg, 0, cols)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeData))
	assert.Equal(t, 2, seg.released)
}

func TestDecodePackSinkMismatch(t *testing.T) {
	cols := []ProjectedColumn{{Path: "a", Type: segment.Int32, Vector: vector.NewFloat64()}}
	_, err := NewDecoder().DecodePack("s1", driftSegment(t), 0, cols)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeInternal))
}

func TestDecodePackBadPackID(t *testing.T) {
	cols := projected(t, segment.ColumnDescriptor{Name: "a", Type: segment.Int32})
	_, err := NewDecoder().DecodePack("s1", driftSegment(t), 9, cols)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeData))
}

type failingColumn struct {
	segment.Column
	err error
}

func (c failingColumn) Pack(int) (segment.Pack, error) { return nil, c.err }

func TestDecodePackLeavesCauseUntouched(t *testing.T) {
	shared := scanerrors.New(scanerrors.ErrorTypeData, "chunk unreadable")
	base := testutil.MemorySegment(t, intCatalog, 4, []int32{1, 2, 3})
	col, err := base.Column(0)
	require.NoError(t, err)
	seg := &trackingSegment{Segment: base, columns: []segment.Column{failingColumn{Column: col, err: shared}}}
	cols := projected(t, segment.ColumnDescriptor{Name: "a", Type: segment.Int32})

	_, err = NewDecoder().DecodePack("s1", seg, 0, cols)
	require.Error(t, err)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeData))
	assert.True(t, errors.Is(err, shared))

	var se *scanerrors.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "s1", se.Details["segment"])
	assert.Equal(t, 0, se.Details["pack"])
	assert.Empty(t, shared.Details)
}
