package segment

import (
	"context"
	"os"
	"sync"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// MemorySegment is an immutable segment held entirely in memory. It is
// used by tests, by the generate command and as a reference implementation
// of the Segment contract.
type MemorySegment struct {
	catalog Catalog
	packs   [][]*memoryPack // [pack][column]
}

// NewMemorySegment splits the given column values into packs of at most
// packRows rows. Each element of columns must be a []int32, []int64,
// []float32, []float64 or []string matching the catalog entry at the same
// position, and all columns must have the same length.
func NewMemorySegment(catalog Catalog, packRows int, columns ...interface{}) (*MemorySegment, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if len(columns) != len(catalog) {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation,
			"catalog has %d columns, got %d value slices", len(catalog), len(columns))
	}
	if packRows <= 0 || packRows > MaxPackRows {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation,
			"pack rows must be in [1, %d], got %d", MaxPackRows, packRows)
	}

	rows := -1
	for i, values := range columns {
		n, err := valuesLen(catalog[i], values)
		if err != nil {
			return nil, err
		}
		if rows >= 0 && n != rows {
			return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation,
				"column %q has %d rows, expected %d", catalog[i].Name, n, rows)
		}
		rows = n
	}

	seg := &MemorySegment{catalog: catalog}
	for start := 0; start < rows; start += packRows {
		end := start + packRows
		if end > rows {
			end = rows
		}
		pack := make([]*memoryPack, len(columns))
		for i, values := range columns {
			pack[i] = newMemoryPack(catalog[i].Type, values, start, end)
		}
		seg.packs = append(seg.packs, pack)
	}
	return seg, nil
}

func valuesLen(desc ColumnDescriptor, values interface{}) (int, error) {
	var (
		n  int
		dt DataType
	)
	switch v := values.(type) {
	case []int32:
		n, dt = len(v), Int32
	case []int64:
		n, dt = len(v), Int64
	case []float32:
		n, dt = len(v), Float32
	case []float64:
		n, dt = len(v), Float64
	case []string:
		n, dt = len(v), String
	default:
		return 0, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType,
			"column %q: unsupported value slice %T", desc.Name, values)
	}
	if dt != desc.Type {
		return 0, scanerrors.Newf(scanerrors.ErrorTypeValidation,
			"column %q is %s but values are %s", desc.Name, desc.Type, dt)
	}
	return n, nil
}

// Schema returns the segment catalog.
func (s *MemorySegment) Schema() Catalog { return s.catalog }

// PackCount returns the number of packs.
func (s *MemorySegment) PackCount() int { return len(s.packs) }

// PackRows returns the row count of the given pack.
func (s *MemorySegment) PackRows(packID int) int {
	if packID < 0 || packID >= len(s.packs) || len(s.packs[packID]) == 0 {
		return 0
	}
	return s.packs[packID][0].Count()
}

// Column returns the column at index.
func (s *MemorySegment) Column(index int) (Column, error) {
	if index < 0 || index >= len(s.catalog) {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeColumnNotFound,
			"column index %d out of range [0, %d)", index, len(s.catalog))
	}
	return memoryColumn{seg: s, index: index}, nil
}

// Close is a no-op; the data is garbage collected.
func (s *MemorySegment) Close() error { return nil }

type memoryColumn struct {
	seg   *MemorySegment
	index int
}

func (c memoryColumn) Pack(packID int) (Pack, error) {
	if packID < 0 || packID >= len(c.seg.packs) {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData,
			"pack %d out of range [0, %d)", packID, len(c.seg.packs))
	}
	return c.seg.packs[packID][c.index], nil
}

// memoryPack keeps numerics as typed slices and strings as one byte arena
// with offsets, the same layout a decoded on-disk pack has.
type memoryPack struct {
	dt      DataType
	count   int
	i32     []int32
	i64     []int64
	f32     []float32
	f64     []float64
	offsets []int
	data    []byte
}

func newMemoryPack(dt DataType, values interface{}, start, end int) *memoryPack {
	p := &memoryPack{dt: dt, count: end - start}
	switch v := values.(type) {
	case []int32:
		p.i32 = append([]int32(nil), v[start:end]...)
	case []int64:
		p.i64 = append([]int64(nil), v[start:end]...)
	case []float32:
		p.f32 = append([]float32(nil), v[start:end]...)
	case []float64:
		p.f64 = append([]float64(nil), v[start:end]...)
	case []string:
		p.offsets = make([]int, 0, p.count+1)
		p.offsets = append(p.offsets, 0)
		for _, s := range v[start:end] {
			p.data = append(p.data, s...)
			p.offsets = append(p.offsets, len(p.data))
		}
	}
	return p
}

func (p *memoryPack) Type() DataType { return p.dt }
func (p *memoryPack) Count() int     { return p.count }
func (p *memoryPack) Release()       {}

func (p *memoryPack) VisitInt32(from, count int, fn func(row int, v int32)) error {
	if p.dt != Int32 {
		return TypeMismatch(p.dt, Int32)
	}
	if err := CheckRange(from, count, p.count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, p.i32[i])
	}
	return nil
}

func (p *memoryPack) VisitInt64(from, count int, fn func(row int, v int64)) error {
	if p.dt != Int64 {
		return TypeMismatch(p.dt, Int64)
	}
	if err := CheckRange(from, count, p.count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, p.i64[i])
	}
	return nil
}

func (p *memoryPack) VisitFloat32(from, count int, fn func(row int, v float32)) error {
	if p.dt != Float32 {
		return TypeMismatch(p.dt, Float32)
	}
	if err := CheckRange(from, count, p.count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, p.f32[i])
	}
	return nil
}

func (p *memoryPack) VisitFloat64(from, count int, fn func(row int, v float64)) error {
	if p.dt != Float64 {
		return TypeMismatch(p.dt, Float64)
	}
	if err := CheckRange(from, count, p.count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, p.f64[i])
	}
	return nil
}

func (p *memoryPack) VisitBytes(from, count int, fn func(row int, span ByteSpan)) error {
	if p.dt != String {
		return TypeMismatch(p.dt, String)
	}
	if err := CheckRange(from, count, p.count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, ByteSpan{Base: p.data, Offset: p.offsets[i], Length: p.offsets[i+1] - p.offsets[i]})
	}
	return nil
}

// MemoryOpener serves MemorySegments by identifier. Every Open call returns
// a new handle and is counted, which makes it the reference opener for
// checking handle lifetimes.
type MemoryOpener struct {
	mu       sync.Mutex
	segments map[string]*MemorySegment
	opens    map[string]int
	live     int
}

// NewMemoryOpener creates an empty opener.
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{
		segments: make(map[string]*MemorySegment),
		opens:    make(map[string]int),
	}
}

// Add registers seg under id, replacing any previous registration.
func (o *MemoryOpener) Add(id string, seg *MemorySegment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.segments[id] = seg
}

// Open returns a new handle on the segment registered under id. Unknown
// identifiers fail with an error wrapping os.ErrNotExist.
func (o *MemoryOpener) Open(_ context.Context, id string) (Segment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	seg, ok := o.segments[id]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: id, Err: os.ErrNotExist}
	}
	o.opens[id]++
	o.live++
	return &memoryHandle{MemorySegment: seg, owner: o}, nil
}

// Opens returns how many times id was opened.
func (o *MemoryOpener) Opens(id string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[id]
}

// Live returns the number of handles opened and not yet closed.
func (o *MemoryOpener) Live() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.live
}

type memoryHandle struct {
	*MemorySegment
	owner  *MemoryOpener
	closed bool
}

func (h *memoryHandle) Close() error {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if h.closed {
		return scanerrors.New(scanerrors.ErrorTypeInternal, "segment handle closed twice")
	}
	h.closed = true
	h.owner.live--
	return nil
}
