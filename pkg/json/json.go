// Package json wraps github.com/goccy/go-json for manifests and row output.
package json

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"
)

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// UnmarshalStrict decodes data and rejects unknown object keys.
func UnmarshalStrict(data []byte, v interface{}) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// StreamingEncoder writes values as a JSON array or as line-delimited JSON.
type StreamingEncoder struct {
	writer  io.Writer
	encoder *gojson.Encoder
	first   bool
	isArray bool
	err     error
}

// NewStreamingEncoder creates an encoder on w. With isArray the output is a
// single array, otherwise one value per line.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	se := &StreamingEncoder{writer: w, encoder: enc, first: true, isArray: isArray}
	if isArray {
		se.write([]byte{'['})
	}
	return se
}

func (se *StreamingEncoder) write(b []byte) {
	if se.err == nil {
		_, se.err = se.writer.Write(b)
	}
}

// Encode writes one value.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray && !se.first {
		se.write([]byte{','})
	}
	se.first = false
	if se.err != nil {
		return se.err
	}
	se.err = se.encoder.Encode(v)
	return se.err
}

// Close terminates the array, if any, and reports the first write error.
func (se *StreamingEncoder) Close() error {
	if se.isArray {
		se.write([]byte{']'})
	}
	return se.err
}
