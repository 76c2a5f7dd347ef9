// Package mmap maps segment files read-only so pack chunks can be read
// without copying.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// Reader is a read-only memory mapping of a whole file. The mapped bytes
// stay valid until Close.
type Reader struct {
	mu     sync.RWMutex
	file   *os.File
	data   []byte
	size   int64
	closed bool
}

var _ io.ReaderAt = (*Reader)(nil)

// Open maps path. Empty files are valid and map to zero bytes.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // caller controls the segment path
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "stat "+path)
	}

	r := &Reader{file: file, size: stat.Size()}
	if r.size == 0 {
		return r, nil
	}

	data, err := mmap(int(file.Fd()), 0, int(r.size), ProtRead, MapShared)
	if err != nil {
		_ = file.Close()
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "mmap "+path)
	}
	_ = madvise(data, MadvWillneed)

	r.data = data
	return r, nil
}

// Bytes returns the mapped file. The slice must not be used after Close.
func (r *Reader) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 { return r.size }

// ReadAt copies from the mapping at off.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, scanerrors.Newf(scanerrors.ErrorTypeValidation, "negative offset %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file and closes it. A second Close returns
// os.ErrClosed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return os.ErrClosed
	}
	r.closed = true

	var unmapErr error
	if r.data != nil {
		unmapErr = munmap(r.data)
		r.data = nil
	}
	closeErr := r.file.Close()
	if unmapErr != nil {
		return scanerrors.Wrap(unmapErr, scanerrors.ErrorTypeFile, "munmap")
	}
	return closeErr
}
