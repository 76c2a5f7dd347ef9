package packfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/packscan/pkg/blobstore"
	"github.com/ajitpratap0/packscan/pkg/compression"
	"github.com/ajitpratap0/packscan/pkg/pool"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

var catalog = segment.Catalog{
	{Name: "id", Type: segment.Int64},
	{Name: "qty", Type: segment.Int32},
	{Name: "ratio", Type: segment.Float32},
	{Name: "price", Type: segment.Float64},
	{Name: "name", Type: segment.String},
}

func sampleColumns() []interface{} {
	return []interface{}{
		[]int64{10, 20, 30, 40, 50},
		[]int32{1, 2, 3, 4, 5},
		[]float32{0.5, 1.5, 2.5, 3.5, 4.5},
		[]float64{9.99, 19.99, 29.99, 39.99, 49.99},
		[]string{"a", "", "ccc", "dddd", "é"},
	}
}

func readColumn(t *testing.T, s segment.Segment, col int) []interface{} {
	t.Helper()
	c, err := s.Column(col)
	require.NoError(t, err)
	var out []interface{}
	for p := 0; p < s.PackCount(); p++ {
		pk, err := c.Pack(p)
		require.NoError(t, err)
		switch pk.Type() {
		case segment.Int32:
			require.NoError(t, pk.VisitInt32(0, pk.Count(), func(_ int, v int32) { out = append(out, v) }))
		case segment.Int64:
			require.NoError(t, pk.VisitInt64(0, pk.Count(), func(_ int, v int64) { out = append(out, v) }))
		case segment.Float32:
			require.NoError(t, pk.VisitFloat32(0, pk.Count(), func(_ int, v float32) { out = append(out, v) }))
		case segment.Float64:
			require.NoError(t, pk.VisitFloat64(0, pk.Count(), func(_ int, v float64) { out = append(out, v) }))
		case segment.String:
			require.NoError(t, pk.VisitBytes(0, pk.Count(), func(_ int, span segment.ByteSpan) {
				b, err := span.View()
				require.NoError(t, err)
				out = append(out, string(b))
			}))
		}
		pk.Release()
	}
	return out
}

func TestRoundTripPerCodec(t *testing.T) {
	ctx := context.Background()
	for _, algo := range compression.Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			store := blobstore.NewLocalStore(t.TempDir())
			codec, err := compression.ForAlgorithm(algo)
			require.NoError(t, err)

			require.NoError(t, WriteSegment(ctx, store, "orders/seg-0.pks", catalog, 2, codec, sampleColumns()...))

			seg, err := NewOpener(store, nil).Open(ctx, "orders/seg-0")
			require.NoError(t, err)
			defer func() { assert.NoError(t, seg.Close()) }()

			assert.Equal(t, catalog, seg.Schema())
			assert.Equal(t, 3, seg.PackCount())
			assert.Equal(t, algo, seg.(*Segment).Footer().Codec)
			assert.Equal(t, int64(5), seg.(*Segment).Footer().Rows())

			assert.Equal(t, []interface{}{int64(10), int64(20), int64(30), int64(40), int64(50)}, readColumn(t, seg, 0))
			assert.Equal(t, []interface{}{int32(1), int32(2), int32(3), int32(4), int32(5)}, readColumn(t, seg, 1))
			assert.Equal(t, []interface{}{float32(0.5), float32(1.5), float32(2.5), float32(3.5), float32(4.5)}, readColumn(t, seg, 2))
			assert.Equal(t, []interface{}{9.99, 19.99, 29.99, 39.99, 49.99}, readColumn(t, seg, 3))
			assert.Equal(t, []interface{}{"a", "", "ccc", "dddd", "é"}, readColumn(t, seg, 4))
		})
	}
}

func TestReadWithoutMapping(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, catalog[:1])
	require.NoError(t, err)
	require.NoError(t, w.WritePack([]int64{7, 8, 9}))
	require.NoError(t, w.Close())

	seg, err := Open(&readerAtBlob{r: bytes.NewReader(buf.Bytes())}, pool.NewBufferPool())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(7), int64(8), int64(9)}, readColumn(t, seg, 0))
	require.NoError(t, seg.Close())
	assert.Error(t, seg.Close())
}

func TestVisitorErrors(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, WriteSegment(ctx, store, "s.pks", catalog, 5, nil, sampleColumns()...))

	seg, err := NewOpener(store, nil).Open(ctx, "s")
	require.NoError(t, err)
	defer seg.Close()

	c, err := seg.Column(1)
	require.NoError(t, err)
	pk, err := c.Pack(0)
	require.NoError(t, err)
	defer pk.Release()

	err = pk.VisitInt64(0, 1, func(int, int64) {})
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeUnsupportedType))
	err = pk.VisitInt32(3, 5, func(int, int32) {})
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeData))

	_, err = c.Pack(1)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeData))
	_, err = seg.Column(9)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeColumnNotFound))
}

func TestWriterValidation(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, catalog[:2])
	require.NoError(t, err)

	err = w.WritePack([]int64{1})
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeValidation))
	err = w.WritePack([]int64{1, 2}, []int32{1})
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeValidation))
	err = w.WritePack([]int32{1}, []int32{1})
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeValidation))

	require.NoError(t, w.Close())
	err = w.WritePack([]int64{1}, []int32{1})
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeInternal))

	_, err = NewWriter(&buf, segment.Catalog{{Name: "", Type: segment.Int32}})
	assert.Error(t, err)
}

func TestCorruptFiles(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, segment.Catalog{catalog[0], catalog[4]})
	require.NoError(t, err)
	require.NoError(t, w.WritePack([]int64{1, 2}, []string{"ab", "c"}))
	require.NoError(t, w.Close())
	good := buf.Bytes()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:6] }},
		{"begin magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"end magic", func(b []byte) []byte { b[len(b)-1] = 'X'; return b }},
		{"footer offset", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[len(b)-12:], uint64(len(b)))
			return b
		}},
		{"truncated footer", func(b []byte) []byte {
			off := binary.LittleEndian.Uint64(b[len(b)-12:])
			binary.LittleEndian.PutUint64(b[len(b)-12:], off+3)
			return b
		}},
		{"string raw size overflow", func(b []byte) []byte {
			return rewriteFooter(t, b, func(f *Footer) { f.Packs[0].Chunks[1].Raw = 1 << 63 })
		}},
		{"string raw size below offsets", func(b []byte) []byte {
			return rewriteFooter(t, b, func(f *Footer) { f.Packs[0].Chunks[1].Raw = 11 })
		}},
		{"string raw size above u32 offsets", func(b []byte) []byte {
			return rewriteFooter(t, b, func(f *Footer) { f.Packs[0].Chunks[1].Raw = 12 + 1<<32 })
		}},
		{"numeric raw size", func(b []byte) []byte {
			return rewriteFooter(t, b, func(f *Footer) { f.Packs[0].Chunks[0].Raw = 1 << 63 })
		}},
		{"negative pack rows", func(b []byte) []byte {
			return rewriteFooter(t, b, func(f *Footer) { f.Packs[0].Rows = -1 })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), good...))
			store := blobstore.NewMemoryStore()
			store.Put("bad.pks", data)

			_, err := NewOpener(store, nil).Open(context.Background(), "bad")
			require.Error(t, err)
			assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeData), err.Error())
		})
	}
}

// rewriteFooter replaces the footer of a valid file with the result of edit.
func rewriteFooter(t *testing.T, b []byte, edit func(*Footer)) []byte {
	t.Helper()
	off := binary.LittleEndian.Uint64(b[len(b)-trailerSize:])
	f, err := decodeFooter(b[off : len(b)-trailerSize])
	require.NoError(t, err)
	edit(f)

	out := append([]byte(nil), b[:off]...)
	out = append(out, f.encode()...)
	out = binary.LittleEndian.AppendUint64(out, off)
	return append(out, EndMagic...)
}

func TestOpenMissingSegment(t *testing.T) {
	_, err := NewOpener(blobstore.NewMemoryStore(), nil).Open(context.Background(), "nope")
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
}

func TestBlobName(t *testing.T) {
	assert.Equal(t, "a/b.pks", BlobName("a/b"))
	assert.Equal(t, "a/b.pks", BlobName("a/b.pks"))
	assert.Equal(t, "a/b", SegmentID("a/b.pks"))
}

type readerAtBlob struct {
	r *bytes.Reader
}

func (b *readerAtBlob) ReadAt(p []byte, off int64) (int, error) { return b.r.ReadAt(p, off) }
func (b *readerAtBlob) Close() error                            { return nil }
func (b *readerAtBlob) Size() int64                             { return b.r.Size() }
