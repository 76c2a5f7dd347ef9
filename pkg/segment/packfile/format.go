// Package packfile implements an on-disk segment format made of packs.
//
// A file starts with the magic "PKS1" and is followed by the column chunks
// of every pack, column-major within a pack and each compressed on its
// own. The footer records the codec, the column catalog and for every pack
// its row count plus the offset, stored size and raw size of each chunk.
// The last twelve bytes are the footer offset (u64 little endian) and the
// magic "PKSE".
//
// Raw chunks hold little-endian fixed-width values for numeric columns.
// String chunks hold count+1 u32 offsets followed by the concatenated
// value bytes.
package packfile

import (
	"encoding/binary"

	"github.com/ajitpratap0/packscan/pkg/compression"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

const (
	BeginMagic = "PKS1"
	EndMagic   = "PKSE"

	// Ext is the file extension used for segment files.
	Ext = ".pks"

	trailerSize = 8 + len(EndMagic)
)

// Footer is the decoded file metadata.
type Footer struct {
	Codec   compression.Algorithm `json:"codec"`
	Columns segment.Catalog       `json:"columns"`
	Packs   []PackMeta            `json:"packs"`
}

// PackMeta locates the chunks of one pack.
type PackMeta struct {
	Rows   int         `json:"rows"`
	Chunks []ChunkMeta `json:"chunks"` // one per column, in catalog order
}

// ChunkMeta locates one compressed column chunk.
type ChunkMeta struct {
	Offset uint64 `json:"offset"`
	Stored uint64 `json:"stored"`
	Raw    uint64 `json:"raw"`
}

// Rows returns the total row count over all packs.
func (f *Footer) Rows() int64 {
	var n int64
	for _, p := range f.Packs {
		n += int64(p.Rows)
	}
	return n
}

func (f *Footer) encode() []byte {
	buf := make([]byte, 0, 64+len(f.Packs)*len(f.Columns)*24)
	buf = appendString(buf, string(f.Codec))

	buf = binary.AppendUvarint(buf, uint64(len(f.Columns)))
	for _, c := range f.Columns {
		buf = appendString(buf, c.Name)
		buf = append(buf, byte(c.Type))
	}

	buf = binary.AppendUvarint(buf, uint64(len(f.Packs)))
	for _, p := range f.Packs {
		buf = binary.AppendUvarint(buf, uint64(p.Rows))
		for _, c := range p.Chunks {
			buf = binary.LittleEndian.AppendUint64(buf, c.Offset)
			buf = binary.AppendUvarint(buf, c.Stored)
			buf = binary.AppendUvarint(buf, c.Raw)
		}
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// footerDecoder walks an encoded footer. The first failure sticks.
type footerDecoder struct {
	b   []byte
	err error
}

func (d *footerDecoder) fail(what string) {
	if d.err == nil {
		d.err = scanerrors.Newf(scanerrors.ErrorTypeData, "corrupt footer: %s", what)
	}
}

func (d *footerDecoder) uvarint(what string) uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.b)
	if n <= 0 {
		d.fail(what)
		return 0
	}
	d.b = d.b[n:]
	return v
}

func (d *footerDecoder) bytes(n uint64, what string) []byte {
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.b)) {
		d.fail(what)
		return nil
	}
	out := d.b[:n]
	d.b = d.b[n:]
	return out
}

func (d *footerDecoder) string(what string) string {
	return string(d.bytes(d.uvarint(what), what))
}

func (d *footerDecoder) u64(what string) uint64 {
	b := d.bytes(8, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// count reads a length prefix and rejects counts that could not fit in the
// remaining bytes at minSize bytes per entry.
func (d *footerDecoder) count(minSize int, what string) int {
	n := d.uvarint(what)
	if d.err == nil && n > uint64(len(d.b)/minSize) {
		d.fail(what)
		return 0
	}
	return int(n)
}

func decodeFooter(b []byte) (*Footer, error) {
	d := &footerDecoder{b: b}
	f := &Footer{Codec: compression.Algorithm(d.string("codec"))}

	ncols := d.count(2, "column count")
	f.Columns = make(segment.Catalog, 0, ncols)
	for i := 0; i < ncols && d.err == nil; i++ {
		name := d.string("column name")
		tb := d.bytes(1, "column type")
		if tb == nil {
			break
		}
		dt := segment.DataType(tb[0])
		if !dt.Valid() {
			return nil, scanerrors.Newf(scanerrors.ErrorTypeUnsupportedType,
				"column %q has unknown type %d", name, tb[0])
		}
		f.Columns = append(f.Columns, segment.ColumnDescriptor{Name: name, Type: dt})
	}

	npacks := d.count(1+ncols*10, "pack count")
	f.Packs = make([]PackMeta, 0, npacks)
	for i := 0; i < npacks && d.err == nil; i++ {
		p := PackMeta{Rows: int(d.uvarint("pack rows")), Chunks: make([]ChunkMeta, ncols)}
		if p.Rows < 0 || p.Rows > segment.MaxPackRows {
			d.fail("pack rows")
		}
		for c := range p.Chunks {
			p.Chunks[c] = ChunkMeta{
				Offset: d.u64("chunk offset"),
				Stored: d.uvarint("chunk size"),
				Raw:    d.uvarint("chunk raw size"),
			}
		}
		f.Packs = append(f.Packs, p)
	}

	if d.err != nil {
		return nil, d.err
	}
	if len(d.b) != 0 {
		return nil, scanerrors.Newf(scanerrors.ErrorTypeData, "corrupt footer: %d trailing bytes", len(d.b))
	}
	return f, nil
}

// rawSize returns the expected raw chunk size for a numeric column, or -1
// for variable width.
func rawSize(dt segment.DataType, rows int) int {
	w := dt.FixedWidth()
	if w == 0 {
		return -1
	}
	return w * rows
}
