package scan

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/packscan/pkg/metrics"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// ErrCacheClosed is returned by EnsureOpen after CloseAll.
var ErrCacheClosed = scanerrors.New(scanerrors.ErrorTypeInternal, "segment cache is closed")

// SegmentCache owns the segment handles of one scan. Every segment ID is
// opened at most once and each handle is closed exactly once by CloseAll.
// It is not safe for concurrent use.
type SegmentCache struct {
	opener  segment.Opener
	handles map[string]segment.Segment
	order   []string
	closed  bool
	logger  *zap.Logger
}

// NewSegmentCache creates an empty cache opening segments through opener.
func NewSegmentCache(opener segment.Opener, logger *zap.Logger) *SegmentCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SegmentCache{
		opener:  opener,
		handles: make(map[string]segment.Segment),
		logger:  logger,
	}
}

// EnsureOpen returns the handle of segmentID, opening it on first use. A
// failed open leaves the cache unchanged, so a later call retries.
func (c *SegmentCache) EnsureOpen(ctx context.Context, segmentID string) (segment.Segment, error) {
	if c.closed {
		return nil, ErrCacheClosed
	}
	if seg, ok := c.handles[segmentID]; ok {
		return seg, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seg, err := c.opener.Open(ctx, segmentID)
	metrics.ObserveOpen(err)
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeSegmentOpen, "failed to open segment").
			WithDetail("segment", segmentID)
	}
	if seg == nil {
		return nil, scanerrors.New(scanerrors.ErrorTypeInternal, "opener returned no segment").
			WithDetail("segment", segmentID)
	}

	c.handles[segmentID] = seg
	c.order = append(c.order, segmentID)
	metrics.CachedSegments.Inc()
	c.logger.Debug("segment opened",
		zap.String("segment", segmentID),
		zap.Int("packs", seg.PackCount()),
		zap.Int("columns", len(seg.Schema())))
	return seg, nil
}

// OpenAll opens every distinct segment referenced by units in work order.
// The first failure is returned; handles opened before it stay cached
// until CloseAll.
func (c *SegmentCache) OpenAll(ctx context.Context, units []segment.WorkUnit) error {
	for _, u := range units {
		if _, err := c.EnsureOpen(ctx, u.SegmentID); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes every handle in open order. Close failures are logged
// and counted but never returned, and do not stop the remaining closes.
// After CloseAll the cache is empty and refuses new opens. Calling it again
// does nothing.
func (c *SegmentCache) CloseAll() {
	if c.closed {
		return
	}
	c.closed = true

	for _, id := range c.order {
		seg := c.handles[id]
		delete(c.handles, id)
		metrics.CachedSegments.Dec()
		if err := seg.Close(); err != nil {
			metrics.SegmentCloseFailures.Inc()
			c.logger.Warn("failed to close segment",
				zap.String("segment", id),
				zap.Error(scanerrors.Wrap(err, scanerrors.ErrorTypeSegmentClose, "close segment")))
		}
	}
	c.order = nil
	c.opener = nil
}

// Len returns the number of open handles.
func (c *SegmentCache) Len() int {
	return len(c.handles)
}

// Contains reports whether segmentID has an open handle.
func (c *SegmentCache) Contains(segmentID string) bool {
	_, ok := c.handles[segmentID]
	return ok
}
