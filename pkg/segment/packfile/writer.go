package packfile

import (
	"context"
	"encoding/binary"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/ajitpratap0/packscan/pkg/blobstore"
	"github.com/ajitpratap0/packscan/pkg/compression"
	"github.com/ajitpratap0/packscan/pkg/logger"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// Writer appends packs to a segment file. Close writes the footer; the
// underlying writer is not closed.
type Writer struct {
	w       io.Writer
	codec   compression.Compressor
	footer  Footer
	offset  uint64
	scratch []byte
	closed  bool
	logger  *zap.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCodec sets the chunk codec. The default is zstd.
func WithCodec(c compression.Compressor) WriterOption {
	return func(w *Writer) { w.codec = c }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter writes the file header for catalog and returns a Writer.
func NewWriter(w io.Writer, catalog segment.Catalog, opts ...WriterOption) (*Writer, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	pw := &Writer{w: w}
	for _, opt := range opts {
		opt(pw)
	}
	if pw.codec == nil {
		codec, err := compression.NewCompressor(nil)
		if err != nil {
			return nil, err
		}
		pw.codec = codec
	}
	if pw.logger == nil {
		pw.logger = logger.With(zap.String("component", "packfile_writer"))
	}
	pw.footer = Footer{Codec: pw.codec.Algorithm(), Columns: append(segment.Catalog(nil), catalog...)}

	if err := pw.write([]byte(BeginMagic)); err != nil {
		return nil, err
	}
	return pw, nil
}

func (w *Writer) write(b []byte) error {
	n, err := w.w.Write(b)
	w.offset += uint64(n)
	if err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "write segment")
	}
	return nil
}

// WritePack appends one pack. columns holds one slice per catalog column
// ([]int32, []int64, []float32, []float64 or []string), all the same
// length and at most segment.MaxPackRows long.
func (w *Writer) WritePack(columns ...interface{}) error {
	if w.closed {
		return scanerrors.New(scanerrors.ErrorTypeInternal, "write to closed segment writer")
	}
	if len(columns) != len(w.footer.Columns) {
		return scanerrors.Newf(scanerrors.ErrorTypeValidation,
			"got %d columns, catalog has %d", len(columns), len(w.footer.Columns))
	}

	rows := -1
	meta := PackMeta{Chunks: make([]ChunkMeta, len(columns))}
	for i, col := range columns {
		desc := w.footer.Columns[i]
		raw, n, err := encodeChunk(w.scratch[:0], desc, col)
		if err != nil {
			return err
		}
		w.scratch = raw
		if rows >= 0 && n != rows {
			return scanerrors.Newf(scanerrors.ErrorTypeValidation,
				"column %q has %d rows, want %d", desc.Name, n, rows)
		}
		rows = n

		packed, err := w.codec.Compress(raw)
		if err != nil {
			return err
		}
		meta.Chunks[i] = ChunkMeta{Offset: w.offset, Stored: uint64(len(packed)), Raw: uint64(len(raw))}
		if err := w.write(packed); err != nil {
			return err
		}
	}
	if rows < 0 {
		rows = 0
	}
	if rows > segment.MaxPackRows {
		return scanerrors.Newf(scanerrors.ErrorTypeValidation, "pack of %d rows exceeds %d", rows, segment.MaxPackRows)
	}
	meta.Rows = rows
	w.footer.Packs = append(w.footer.Packs, meta)
	return nil
}

// Close writes the footer and trailer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	footerOffset := w.offset
	if err := w.write(w.footer.encode()); err != nil {
		return err
	}
	trailer := binary.LittleEndian.AppendUint64(make([]byte, 0, trailerSize), footerOffset)
	trailer = append(trailer, EndMagic...)
	if err := w.write(trailer); err != nil {
		return err
	}
	w.logger.Debug("segment written",
		zap.Int("packs", len(w.footer.Packs)),
		zap.Int64("rows", w.footer.Rows()),
		zap.Uint64("bytes", w.offset),
		zap.String("codec", string(w.footer.Codec)))
	return nil
}

func encodeChunk(buf []byte, desc segment.ColumnDescriptor, col interface{}) ([]byte, int, error) {
	le := binary.LittleEndian
	switch desc.Type {
	case segment.Int32:
		vals, ok := col.([]int32)
		if !ok {
			break
		}
		for _, v := range vals {
			buf = le.AppendUint32(buf, uint32(v))
		}
		return buf, len(vals), nil
	case segment.Int64:
		vals, ok := col.([]int64)
		if !ok {
			break
		}
		for _, v := range vals {
			buf = le.AppendUint64(buf, uint64(v))
		}
		return buf, len(vals), nil
	case segment.Float32:
		vals, ok := col.([]float32)
		if !ok {
			break
		}
		for _, v := range vals {
			buf = le.AppendUint32(buf, math.Float32bits(v))
		}
		return buf, len(vals), nil
	case segment.Float64:
		vals, ok := col.([]float64)
		if !ok {
			break
		}
		for _, v := range vals {
			buf = le.AppendUint64(buf, math.Float64bits(v))
		}
		return buf, len(vals), nil
	case segment.String:
		vals, ok := col.([]string)
		if !ok {
			break
		}
		var end uint32
		buf = le.AppendUint32(buf, 0)
		for _, v := range vals {
			end += uint32(len(v))
			buf = le.AppendUint32(buf, end)
		}
		for _, v := range vals {
			buf = append(buf, v...)
		}
		return buf, len(vals), nil
	}
	return nil, 0, scanerrors.Newf(scanerrors.ErrorTypeValidation,
		"column %q of type %s got %T", desc.Name, desc.Type, col)
}

// WriteSegment writes a whole segment to store under name, splitting the
// columns into packs of packRows rows.
func WriteSegment(ctx context.Context, store blobstore.Store, name string, catalog segment.Catalog,
	packRows int, codec compression.Compressor, columns ...interface{}) error {
	if packRows <= 0 || packRows > segment.MaxPackRows {
		return scanerrors.Newf(scanerrors.ErrorTypeValidation, "pack rows %d outside [1, %d]", packRows, segment.MaxPackRows)
	}
	rows, err := columnRows(catalog, columns)
	if err != nil {
		return err
	}

	blob, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	w, err := NewWriter(blob, catalog, WithCodec(codec))
	if err != nil {
		_ = blob.Close()
		return err
	}
	for start := 0; start < rows; start += packRows {
		end := start + packRows
		if end > rows {
			end = rows
		}
		if err := w.WritePack(sliceColumns(columns, start, end)...); err != nil {
			_ = blob.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		_ = blob.Close()
		return err
	}
	return blob.Close()
}

func columnRows(catalog segment.Catalog, columns []interface{}) (int, error) {
	if len(columns) != len(catalog) {
		return 0, scanerrors.Newf(scanerrors.ErrorTypeValidation,
			"got %d columns, catalog has %d", len(columns), len(catalog))
	}
	rows := -1
	for i, col := range columns {
		n := -1
		switch v := col.(type) {
		case []int32:
			n = len(v)
		case []int64:
			n = len(v)
		case []float32:
			n = len(v)
		case []float64:
			n = len(v)
		case []string:
			n = len(v)
		default:
			return 0, scanerrors.Newf(scanerrors.ErrorTypeValidation, "column %q: unsupported slice %T", catalog[i].Name, col)
		}
		if rows >= 0 && n != rows {
			return 0, scanerrors.Newf(scanerrors.ErrorTypeValidation,
				"column %q has %d rows, want %d", catalog[i].Name, n, rows)
		}
		rows = n
	}
	if rows < 0 {
		rows = 0
	}
	return rows, nil
}

func sliceColumns(columns []interface{}, start, end int) []interface{} {
	out := make([]interface{}, len(columns))
	for i, col := range columns {
		switch v := col.(type) {
		case []int32:
			out[i] = v[start:end]
		case []int64:
			out[i] = v[start:end]
		case []float32:
			out[i] = v[start:end]
		case []float64:
			out[i] = v[start:end]
		case []string:
			out[i] = v[start:end]
		}
	}
	return out
}
