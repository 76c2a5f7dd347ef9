package manifest

import (
	"context"
	"strings"

	"github.com/ajitpratap0/packscan/pkg/blobstore"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/segment/packfile"
)

type packSizer interface {
	PackRows(packID int) int
}

// Plan opens every segment in order and emits one work unit per non-empty
// pack. PrecedingRowCount accumulates across segments so it is the row id
// of the pack's first row within the whole table. Segments are closed
// before Plan returns.
func Plan(ctx context.Context, opener segment.Opener, segmentIDs []string) ([]segment.WorkUnit, error) {
	var (
		units     []segment.WorkUnit
		preceding int64
	)
	for _, id := range segmentIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seg, err := opener.Open(ctx, id)
		if err != nil {
			return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeSegmentOpen, "open "+id).WithDetail("segment", id)
		}
		for p := 0; p < seg.PackCount(); p++ {
			rows, err := packRows(seg, p)
			if err != nil {
				_ = seg.Close()
				return nil, err
			}
			if rows == 0 {
				continue
			}
			units = append(units, segment.WorkUnit{SegmentID: id, PackID: p, PrecedingRowCount: preceding})
			preceding += int64(rows)
		}
		if err := seg.Close(); err != nil {
			return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeSegmentClose, "close "+id)
		}
	}
	return units, nil
}

func packRows(seg segment.Segment, packID int) (int, error) {
	if s, ok := seg.(packSizer); ok {
		return s.PackRows(packID), nil
	}
	if len(seg.Schema()) == 0 {
		return 0, nil
	}
	col, err := seg.Column(0)
	if err != nil {
		return 0, err
	}
	pk, err := col.Pack(packID)
	if err != nil {
		return 0, err
	}
	defer pk.Release()
	return pk.Count(), nil
}

// Split cuts units into at most n contiguous fragments of near-equal size.
func Split(units []segment.WorkUnit, n int) [][]segment.WorkUnit {
	if n <= 0 {
		n = 1
	}
	if n > len(units) {
		n = len(units)
	}
	fragments := make([][]segment.WorkUnit, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + (len(units)-start)/(n-i)
		fragments = append(fragments, units[start:end])
		start = end
	}
	return fragments
}

// DiscoverSegments lists the pack files under prefix and returns their
// segment IDs in name order.
func DiscoverSegments(ctx context.Context, store blobstore.Store, prefix string) ([]string, error) {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, name := range names {
		if strings.HasSuffix(name, packfile.Ext) {
			ids = append(ids, packfile.SegmentID(name))
		}
	}
	return ids, nil
}
