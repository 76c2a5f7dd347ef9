package blobstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ajitpratap0/packscan/pkg/mmap"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// LocalStore keeps blobs as files under a root directory. Reads are served
// from a memory mapping.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the directory the store reads from.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps the named file.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create writes to a temporary file in the target directory and renames it
// into place on Close.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := s.path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "create blob directory")
	}
	f, err := os.CreateTemp(filepath.Dir(target), ".tmp-"+filepath.Base(target)+"-*")
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "create blob")
	}
	return &localWritableBlob{f: f, target: target}, nil
}

// List returns the slash-separated names of all files under prefix,
// sorted.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "list "+s.root)
	}
	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	m *mmap.Reader
}

func (b *localBlob) ReadAt(p []byte, off int64) (int, error) { return b.m.ReadAt(p, off) }
func (b *localBlob) Close() error                            { return b.m.Close() }
func (b *localBlob) Size() int64                             { return b.m.Size() }
func (b *localBlob) Bytes() ([]byte, error)                  { return b.m.Bytes(), nil }

type localWritableBlob struct {
	f      *os.File
	target string
	done   bool
}

func (b *localWritableBlob) Write(p []byte) (int, error) {
	if b.done {
		return 0, os.ErrClosed
	}
	return b.f.Write(p)
}

func (b *localWritableBlob) Close() error {
	if b.done {
		return os.ErrClosed
	}
	b.done = true

	tmp := b.f.Name()
	if err := b.f.Sync(); err != nil {
		_ = b.f.Close()
		_ = os.Remove(tmp)
		return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "sync blob")
	}
	if err := b.f.Close(); err != nil {
		_ = os.Remove(tmp)
		return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "close blob")
	}
	if err := os.Rename(tmp, b.target); err != nil {
		_ = os.Remove(tmp)
		return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "publish blob")
	}
	return nil
}
