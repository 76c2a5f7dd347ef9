package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(row{A: 1, B: "<x>"})
	require.NoError(t, err)

	var out row
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, row{A: 1, B: "<x>"}, out)
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, false)
	require.NoError(t, enc.Encode(row{A: 1, B: "x"}))
	require.NoError(t, enc.Encode(row{A: 2, B: "yy"}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "{\"a\":1,\"b\":\"x\"}\n{\"a\":2,\"b\":\"yy\"}\n", buf.String())
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, true)
	require.NoError(t, enc.Encode(row{A: 1, B: "<"}))
	require.NoError(t, enc.Encode(row{A: 2}))
	require.NoError(t, enc.Close())

	var out []row
	require.NoError(t, Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, []row{{1, "<"}, {2, ""}}, out)
	assert.Contains(t, buf.String(), `"<"`)
}

func TestUnmarshalStrict(t *testing.T) {
	var out row
	require.NoError(t, UnmarshalStrict([]byte(`{"a":3}`), &out))
	assert.Equal(t, 3, out.A)
	assert.Error(t, UnmarshalStrict([]byte(`{"a":3,"c":1}`), &out))
}
