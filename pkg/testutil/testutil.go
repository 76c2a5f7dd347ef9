// Package testutil provides testing utilities for packscan
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/packscan/pkg/segment"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// MemorySegment builds an in-memory segment, failing the test on error.
func MemorySegment(t testing.TB, catalog segment.Catalog, packRows int, columns ...interface{}) *segment.MemorySegment {
	t.Helper()
	seg, err := segment.NewMemorySegment(catalog, packRows, columns...)
	require.NoError(t, err)
	return seg
}

// Opener returns a MemoryOpener serving segments by ID.
func Opener(segments map[string]*segment.MemorySegment) *segment.MemoryOpener {
	o := segment.NewMemoryOpener()
	for id, seg := range segments {
		o.Add(id, seg)
	}
	return o
}

// Units lists every pack of seg as work units, starting the row count at
// preceding.
func Units(id string, seg *segment.MemorySegment, preceding int64) []segment.WorkUnit {
	units := make([]segment.WorkUnit, 0, seg.PackCount())
	for p := 0; p < seg.PackCount(); p++ {
		units = append(units, segment.WorkUnit{SegmentID: id, PackID: p, PrecedingRowCount: preceding})
		preceding += int64(seg.PackRows(p))
	}
	return units
}

// FailingCloseOpener wraps an opener so that every handle it returns
// reports Err from Close, after closing the underlying handle.
type FailingCloseOpener struct {
	segment.Opener
	Err error
}

// Open opens through the wrapped opener.
func (o FailingCloseOpener) Open(ctx context.Context, id string) (segment.Segment, error) {
	seg, err := o.Opener.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return failingClose{Segment: seg, err: o.Err}, nil
}

type failingClose struct {
	segment.Segment
	err error
}

func (f failingClose) Close() error {
	_ = f.Segment.Close()
	return f.err
}
