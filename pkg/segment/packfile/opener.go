package packfile

import (
	"context"
	"strings"

	"github.com/ajitpratap0/packscan/pkg/blobstore"
	"github.com/ajitpratap0/packscan/pkg/pool"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// Opener opens pack files from a blob store by segment ID. It implements
// segment.Opener.
type Opener struct {
	store   blobstore.Store
	buffers *pool.BufferPool
}

var _ segment.Opener = (*Opener)(nil)

// NewOpener returns an Opener reading from store. A nil buffers uses a
// process-wide pool.
func NewOpener(store blobstore.Store, buffers *pool.BufferPool) *Opener {
	if buffers == nil {
		buffers = defaultBuffers
	}
	return &Opener{store: store, buffers: buffers}
}

// BlobName maps a segment ID to its blob name by appending Ext when the ID
// does not already carry it.
func BlobName(segmentID string) string {
	if strings.HasSuffix(segmentID, Ext) {
		return segmentID
	}
	return segmentID + Ext
}

// SegmentID strips Ext from a blob name.
func SegmentID(blobName string) string {
	return strings.TrimSuffix(blobName, Ext)
}

// Open opens and validates the segment.
func (o *Opener) Open(ctx context.Context, segmentID string) (segment.Segment, error) {
	blob, err := o.store.Open(ctx, BlobName(segmentID))
	if err != nil {
		return nil, err
	}
	return Open(blob, o.buffers)
}
