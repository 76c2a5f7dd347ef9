package packfile

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/ajitpratap0/packscan/pkg/blobstore"
	"github.com/ajitpratap0/packscan/pkg/compression"
	"github.com/ajitpratap0/packscan/pkg/pool"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

var defaultBuffers = pool.NewBufferPool()

// Segment is an opened pack file. It implements segment.Segment.
type Segment struct {
	blob    blobstore.Blob
	mapped  []byte // whole file when the blob is Mappable
	footer  *Footer
	codec   compression.Compressor
	buffers *pool.BufferPool

	mu     sync.Mutex
	closed bool
}

var _ segment.Segment = (*Segment)(nil)

// Open reads the footer of blob and returns the segment. The segment owns
// blob from then on, also when Open fails.
func Open(blob blobstore.Blob, buffers *pool.BufferPool) (*Segment, error) {
	s, err := open(blob, buffers)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return s, nil
}

func open(blob blobstore.Blob, buffers *pool.BufferPool) (*Segment, error) {
	if buffers == nil {
		buffers = defaultBuffers
	}
	s := &Segment{blob: blob, buffers: buffers}
	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "map segment")
		}
		s.mapped = data
	}

	size := blob.Size()
	if size < int64(len(BeginMagic)+trailerSize) {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData, "segment of %d bytes is too short", size)
	}

	head, err := s.read(0, uint64(len(BeginMagic)))
	if err != nil {
		return nil, err
	}
	if string(head) != BeginMagic {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData, "invalid magic %q", head)
	}

	trailer, err := s.read(uint64(size)-uint64(trailerSize), uint64(trailerSize))
	if err != nil {
		return nil, err
	}
	if string(trailer[8:]) != EndMagic {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData, "invalid end magic %q", trailer[8:])
	}
	footerOffset := binary.LittleEndian.Uint64(trailer[:8])
	footerEnd := uint64(size) - uint64(trailerSize)
	if footerOffset < uint64(len(BeginMagic)) || footerOffset > footerEnd {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData, "invalid footer offset %d", footerOffset)
	}

	raw, err := s.read(footerOffset, footerEnd-footerOffset)
	if err != nil {
		return nil, err
	}
	footer, err := decodeFooter(raw)
	if err != nil {
		return nil, err
	}
	for pi, p := range footer.Packs {
		for ci, c := range p.Chunks {
			if c.Offset < uint64(len(BeginMagic)) || c.Offset+c.Stored > footerOffset || c.Offset+c.Stored < c.Offset {
				return nil, scanerrors.Newf(scanerrors.ErrorTypeData, "pack %d column %d chunk outside data region", pi, ci)
			}
			if err := checkRaw(footer.Columns[ci].Type, p.Rows, c.Raw); err != nil {
				return nil, err.WithDetail("pack", pi).WithDetail("column", ci)
			}
		}
	}

	codec, err := compression.ForAlgorithm(footer.Codec)
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeData, "segment codec")
	}
	s.footer = footer
	s.codec = codec
	return s, nil
}

// checkRaw bounds the raw size of a chunk. Numeric chunks have an exact
// size; string chunks hold rows+1 u32 offsets and at most MaxUint32 value
// bytes.
func checkRaw(dt segment.DataType, rows int, raw uint64) *scanerrors.Error {
	if want := rawSize(dt, rows); want >= 0 {
		if uint64(want) != raw {
			return scanerrors.Newf(scanerrors.ErrorTypeData, "raw size %d, want %d", raw, want)
		}
		return nil
	}
	head := uint64(4 * (rows + 1))
	if raw < head || raw-head > math.MaxUint32 || raw > math.MaxInt {
		return scanerrors.Newf(scanerrors.ErrorTypeData,
			"string raw size %d outside [%d, %d]", raw, head, head+math.MaxUint32)
	}
	return nil
}

// read returns n bytes at off. Mapped files are sliced, others read into a
// fresh buffer.
func (s *Segment) read(off, n uint64) ([]byte, error) {
	if s.mapped != nil {
		if off+n > uint64(len(s.mapped)) {
			return nil, scanerrors.Newf(scanerrors.ErrorTypeData, "read [%d, %d) past end of segment", off, off+n)
		}
		return s.mapped[off : off+n], nil
	}
	buf := make([]byte, n)
	if _, err := s.blob.ReadAt(buf, int64(off)); err != nil && !(err == io.EOF && n == 0) {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "read segment")
	}
	return buf, nil
}

// Footer returns the decoded metadata.
func (s *Segment) Footer() *Footer { return s.footer }

func (s *Segment) Schema() segment.Catalog { return s.footer.Columns }
func (s *Segment) PackCount() int          { return len(s.footer.Packs) }

// PackRows returns the row count of a pack, 0 when packID is out of range.
func (s *Segment) PackRows(packID int) int {
	if packID < 0 || packID >= len(s.footer.Packs) {
		return 0
	}
	return s.footer.Packs[packID].Rows
}

// Column returns the accessor for the column at index.
func (s *Segment) Column(index int) (segment.Column, error) {
	if index < 0 || index >= len(s.footer.Columns) {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeColumnNotFound,
			"column index %d outside %d columns", index, len(s.footer.Columns))
	}
	return &column{seg: s, index: index, dt: s.footer.Columns[index].Type}, nil
}

// Close closes the underlying blob. Closing twice is an error.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return scanerrors.New(scanerrors.ErrorTypeInternal, "segment already closed")
	}
	s.closed = true
	s.mapped = nil
	return s.blob.Close()
}

type column struct {
	seg   *Segment
	index int
	dt    segment.DataType
}

// Pack decompresses the chunk into a pooled buffer.
func (c *column) Pack(packID int) (segment.Pack, error) {
	s := c.seg
	if packID < 0 || packID >= len(s.footer.Packs) {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData,
			"pack %d outside %d packs", packID, len(s.footer.Packs))
	}
	meta := s.footer.Packs[packID]
	chunk := meta.Chunks[c.index]

	stored, err := s.read(chunk.Offset, chunk.Stored)
	if err != nil {
		return nil, err
	}
	buf := s.buffers.Get(int(chunk.Raw))
	if err := s.codec.Decompress(buf, stored); err != nil {
		s.buffers.Put(buf)
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeData, "decompress pack").
			WithDetail("pack", packID).WithDetail("column", s.footer.Columns[c.index].Name)
	}

	p := &pack{dt: c.dt, rows: meta.Rows, raw: buf, buffers: s.buffers}
	if c.dt == segment.String {
		if err := p.splitStrings(); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

type pack struct {
	dt      segment.DataType
	rows    int
	raw     []byte
	offsets []byte // string packs: rows+1 u32 offsets
	data    []byte // string packs: value bytes
	buffers *pool.BufferPool
}

func (p *pack) splitStrings() error {
	head := 4 * (p.rows + 1)
	if len(p.raw) < head {
		return scanerrors.Newf(scanerrors.ErrorTypeData, "string pack of %d bytes too short for %d rows", len(p.raw), p.rows)
	}
	p.offsets = p.raw[:head]
	p.data = p.raw[head:]
	if last := binary.LittleEndian.Uint32(p.offsets[head-4:]); int(last) != len(p.data) {
		return scanerrors.Newf(scanerrors.ErrorTypeData, "string pack ends at %d, has %d bytes", last, len(p.data))
	}
	return nil
}

func (p *pack) Type() segment.DataType { return p.dt }
func (p *pack) Count() int             { return p.rows }

func (p *pack) Release() {
	if p.raw != nil {
		p.buffers.Put(p.raw)
		p.raw, p.offsets, p.data = nil, nil, nil
	}
}

func (p *pack) check(want segment.DataType, from, count int) error {
	if p.raw == nil && p.rows > 0 {
		return scanerrors.New(scanerrors.ErrorTypeInternal, "pack used after release")
	}
	if p.dt != want {
		return segment.TypeMismatch(p.dt, want)
	}
	return segment.CheckRange(from, count, p.rows)
}

func (p *pack) VisitInt32(from, count int, fn func(row int, v int32)) error {
	if err := p.check(segment.Int32, from, count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, int32(binary.LittleEndian.Uint32(p.raw[4*i:])))
	}
	return nil
}

func (p *pack) VisitInt64(from, count int, fn func(row int, v int64)) error {
	if err := p.check(segment.Int64, from, count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, int64(binary.LittleEndian.Uint64(p.raw[8*i:])))
	}
	return nil
}

func (p *pack) VisitFloat32(from, count int, fn func(row int, v float32)) error {
	if err := p.check(segment.Float32, from, count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, math.Float32frombits(binary.LittleEndian.Uint32(p.raw[4*i:])))
	}
	return nil
}

func (p *pack) VisitFloat64(from, count int, fn func(row int, v float64)) error {
	if err := p.check(segment.Float64, from, count); err != nil {
		return err
	}
	for i := from; i < from+count; i++ {
		fn(i, math.Float64frombits(binary.LittleEndian.Uint64(p.raw[8*i:])))
	}
	return nil
}

func (p *pack) VisitBytes(from, count int, fn func(row int, span segment.ByteSpan)) error {
	if err := p.check(segment.String, from, count); err != nil {
		return err
	}
	le := binary.LittleEndian
	for i := from; i < from+count; i++ {
		start := int(le.Uint32(p.offsets[4*i:]))
		end := int(le.Uint32(p.offsets[4*i+4:]))
		fn(i, segment.ByteSpan{Base: p.data, Offset: start, Length: end - start})
	}
	return nil
}
