// Package compression provides the block codecs used for pack column
// chunks.
//
// Each chunk is compressed independently, so a codec only needs block
// operations: Compress returns a new buffer and Decompress fills a
// caller-supplied buffer whose length is the chunk's known raw size. That
// lets readers decompress straight into pooled memory.
//
//	codec, err := compression.NewCompressor(&compression.Config{Algorithm: compression.Zstd})
//	packed, err := codec.Compress(raw)
//	buf := make([]byte, len(raw))
//	err = codec.Decompress(buf, packed)
package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// Algorithm names a compression algorithm. The name is stored in pack file
// footers.
type Algorithm string

const (
	None   Algorithm = "none"
	Snappy Algorithm = "snappy"
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
	// S2 is the Snappy-compatible extension from klauspost/compress.
	S2 Algorithm = "s2"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{None, Snappy, LZ4, Zstd, S2}

// Level trades compression speed against ratio.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

// Compressor compresses and decompresses whole blocks. Implementations are
// safe for concurrent use.
type Compressor interface {
	// Compress returns the compressed form of src. src is not modified.
	Compress(src []byte) ([]byte, error)
	// Decompress decodes src into dst. The decoded size must equal len(dst).
	Decompress(dst, src []byte) error
	// Algorithm returns the algorithm implemented.
	Algorithm() Algorithm
}

// Config selects a codec.
type Config struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm" mapstructure:"algorithm"`
	Level     Level     `yaml:"level" json:"level" mapstructure:"level"`
}

// DefaultConfig returns zstd at the default level.
func DefaultConfig() *Config {
	return &Config{Algorithm: Zstd, Level: Default}
}

// NewCompressor returns the codec for config. A nil config means
// DefaultConfig.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Algorithm {
	case None, "":
		return noneCompressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	case S2:
		return s2Compressor{}, nil
	case LZ4:
		return &lz4Compressor{level: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(config)
	default:
		return nil, scanerrors.Newf(scanerrors.ErrorTypeConfig, "unsupported compression algorithm %q", config.Algorithm)
	}
}

// ForAlgorithm returns a default-level codec for a, as recorded in a file.
func ForAlgorithm(a Algorithm) (Compressor, error) {
	return NewCompressor(&Config{Algorithm: a, Level: Default})
}

func sizeMismatch(a Algorithm, got, want int) error {
	return scanerrors.Newf(scanerrors.ErrorTypeData,
		"%s block decoded to %d bytes, want %d", a, got, want)
}

type noneCompressor struct{}

func (noneCompressor) Algorithm() Algorithm { return None }

func (noneCompressor) Compress(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func (noneCompressor) Decompress(dst, src []byte) error {
	if len(src) != len(dst) {
		return sizeMismatch(None, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

type snappyCompressor struct{}

func (snappyCompressor) Algorithm() Algorithm { return Snappy }

func (snappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCompressor) Decompress(dst, src []byte) error {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeData, "snappy header")
	}
	if n != len(dst) {
		return sizeMismatch(Snappy, n, len(dst))
	}
	if _, err := snappy.Decode(dst, src); err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeData, "snappy decode")
	}
	return nil
}

type s2Compressor struct{}

func (s2Compressor) Algorithm() Algorithm { return S2 }

func (s2Compressor) Compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (s2Compressor) Decompress(dst, src []byte) error {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeData, "s2 header")
	}
	if n != len(dst) {
		return sizeMismatch(S2, n, len(dst))
	}
	if _, err := s2.Decode(dst, src); err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeData, "s2 decode")
	}
	return nil
}

type lz4Compressor struct {
	level lz4.CompressionLevel
}

func (lc *lz4Compressor) Algorithm() Algorithm { return LZ4 }

func (lc *lz4Compressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lc.level)); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "lz4 level")
	}
	if _, err := w.Write(src); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeInternal, "lz4 compress")
	}
	if err := w.Close(); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeInternal, "lz4 compress")
	}
	return buf.Bytes(), nil
}

func (lc *lz4Compressor) Decompress(dst, src []byte) error {
	r := lz4.NewReader(bytes.NewReader(src))
	n, err := io.ReadFull(r, dst)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return sizeMismatch(LZ4, n, len(dst))
		}
		return scanerrors.Wrap(err, scanerrors.ErrorTypeData, "lz4 decode")
	}
	var probe [1]byte
	if m, _ := r.Read(probe[:]); m != 0 {
		return sizeMismatch(LZ4, len(dst)+m, len(dst))
	}
	return nil
}

type zstdCompressor struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(config *Config) (*zstdCompressor, error) {
	level := mapZstdLevel(config.Level)

	// Fail early on bad options rather than inside a pool constructor.
	probe, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "zstd encoder")
	}

	zc := &zstdCompressor{}
	zc.encoderPool.Put(probe)
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	return zc, nil
}

func (zc *zstdCompressor) Algorithm() Algorithm { return Zstd }

func (zc *zstdCompressor) Compress(src []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(src, nil), nil
}

func (zc *zstdCompressor) Decompress(dst, src []byte) error {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	out, err := dec.DecodeAll(src, dst[:0])
	if err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeData, "zstd decode")
	}
	if len(out) != len(dst) {
		return sizeMismatch(Zstd, len(out), len(dst))
	}
	copy(dst, out)
	return nil
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
