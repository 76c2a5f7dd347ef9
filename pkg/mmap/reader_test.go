package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.pks")
	require.NoError(t, os.WriteFile(path, []byte("hello packs"), 0o600))

	r, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, int64(11), r.Size())
	assert.Equal(t, "hello packs", string(r.Bytes()))

	buf := make([]byte, 5)
	n, err := r.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "packs", string(buf))

	n, err = r.ReadAt(buf, 9)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), os.ErrClosed)

	_, err = r.ReadAt(buf, 0)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, r.Bytes())
	assert.NoError(t, r.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
