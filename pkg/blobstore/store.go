// Package blobstore abstracts where segment files live. Segments are
// immutable blobs read with random access; writers produce a blob in one
// pass and publish it on Close.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It matches
// os.ErrNotExist under errors.Is.
var ErrNotFound = os.ErrNotExist

// Store opens, creates and lists blobs.
type Store interface {
	Open(ctx context.Context, name string) (Blob, error)
	Create(ctx context.Context, name string) (WritableBlob, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the blob size in bytes.
	Size() int64
}

// Mappable is implemented by blobs whose whole content is addressable in
// memory. The slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// WritableBlob is a blob being written. The blob becomes visible to Open
// only after Close returns nil.
type WritableBlob interface {
	io.Writer
	io.Closer
}

// ReadAll returns the content of b, without copying when b is Mappable.
func ReadAll(b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		return m.Bytes()
	}
	buf := make([]byte, b.Size())
	if _, err := b.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}
