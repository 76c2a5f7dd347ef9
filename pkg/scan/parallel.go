package scan

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/packscan/pkg/logger"
	"github.com/ajitpratap0/packscan/pkg/observability"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// ReaderFactory builds the reader of one fragment.
type ReaderFactory func(fragment int, units []segment.WorkUnit) (*PackReader, error)

// BatchFunc receives every non-empty batch a fragment reads. It is called
// from one goroutine per fragment and must be safe for concurrent use. The
// reader's vectors are only valid until the call returns.
type BatchFunc func(fragment int, r *PackReader, rows int) error

// RunParallel reads every fragment with its own reader, concurrently, and
// returns the total number of rows delivered to sink. The first failure
// cancels the other fragments. Every reader is closed before RunParallel
// returns.
func RunParallel(ctx context.Context, fragments [][]segment.WorkUnit, newReader ReaderFactory, sink BatchFunc) (int64, error) {
	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)

	for i, units := range fragments {
		g.Go(func() error {
			rows, err := runFragment(gctx, i, units, newReader, sink)
			total.Add(rows)
			return err
		})
	}

	err := g.Wait()
	return total.Load(), err
}

func runFragment(ctx context.Context, fragment int, units []segment.WorkUnit,
	newReader ReaderFactory, sink BatchFunc) (rows int64, err error) {
	ctx, span := observability.StartSpan(ctx, "packscan.fragment",
		attribute.Int("fragment", fragment),
		attribute.Int("units", len(units)))
	defer func() {
		span.SetAttributes(attribute.Int64("rows", rows))
		observability.EndSpan(span, err)
	}()

	log := logger.WithContext(context.WithValue(ctx, logger.FragmentKey, fragment))

	r, err := newReader(fragment, units)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	for {
		n, err := r.Next(ctx)
		if err != nil {
			log.Error("fragment failed", zap.Int64("rows", rows), zap.Error(err))
			return rows, err
		}
		if n == 0 && r.Remaining() == 0 {
			break
		}
		rows += int64(n)
		if n == 0 {
			continue
		}
		if err := sink(fragment, r, n); err != nil {
			return rows, err
		}
	}

	log.Debug("fragment finished", zap.Int64("rows", rows), zap.Int("units", len(units)))
	return rows, nil
}
