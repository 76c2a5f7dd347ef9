package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/packscan/pkg/cost"
	"github.com/ajitpratap0/packscan/pkg/manifest"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/segment/packfile"
)

func newPlanCmd(opts *globalOptions) *cobra.Command {
	var (
		manifestPath, prefix string
		discover             bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the work units of a manifest",
		Long: `Plan opens the manifest's segments, emits one work unit per non-empty
pack and writes the units back into the manifest. With --discover the
segment list is replaced by every pack file found under --prefix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := opts.loadManifest(manifestPath)
			if err != nil {
				return err
			}
			store, err := opts.store(ctx)
			if err != nil {
				return err
			}
			if discover || len(m.Segments) == 0 {
				if m.Segments, err = manifest.DiscoverSegments(ctx, store, prefix); err != nil {
					return err
				}
			}

			m.Units, err = manifest.Plan(ctx, packfile.NewOpener(store, nil), m.Segments)
			if err != nil {
				return err
			}
			opts.log.Info("work units planned",
				zap.Int("segments", len(m.Segments)),
				zap.Int("units", len(m.Units)))
			return m.Save(manifestPath)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file to update (required)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Blob prefix searched by --discover")
	cmd.Flags().BoolVar(&discover, "discover", false, "Replace the segment list with the pack files found in the store")
	return cmd
}

func newCostCmd(opts *globalOptions) *cobra.Command {
	var (
		manifestPath, columns string
		rows                  int64
		uncompressed          bool
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Estimate the byte cost of a scan",
		Long: `Cost prints the per-row and total byte cost of reading the manifest's
projection, or of --columns when given. The row count is taken from the
manifest's segments unless --rows is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := opts.loadManifest(manifestPath)
			if err != nil {
				return err
			}

			paths := m.Paths()
			if columns != "" {
				paths = strings.Split(columns, ",")
			}
			est := cost.Estimator{
				Table:      m.Table,
				Catalog:    m.Schema,
				Compressed: opts.cfg.Compressed && !uncompressed,
			}
			perRow, err := est.RowCost(paths)
			if err != nil {
				return err
			}

			if rows < 0 {
				store, err := opts.store(ctx)
				if err != nil {
					return err
				}
				if rows, err = countRows(ctx, packfile.NewOpener(store, nil), m.Segments); err != nil {
					return err
				}
			}
			total, err := est.ScanCost(rows, paths)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "table=%s columns=%s rows=%d row_cost=%.1f scan_cost=%.0f\n",
				m.Table, strings.Join(paths, ","), rows, perRow, total)
			return err
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (required)")
	cmd.Flags().StringVar(&columns, "columns", "", "Comma separated projection overriding the manifest")
	cmd.Flags().Int64Var(&rows, "rows", -1, "Row count to estimate for")
	cmd.Flags().BoolVar(&uncompressed, "uncompressed", false, "Use the uncompressed cost column")
	return cmd
}

// countRows sums the row counts of the given segments' packs.
func countRows(ctx context.Context, opener segment.Opener, ids []string) (int64, error) {
	units, err := manifest.Plan(ctx, opener, ids)
	if err != nil || len(units) == 0 {
		return 0, err
	}
	last := units[len(units)-1]
	seg, err := opener.Open(ctx, last.SegmentID)
	if err != nil {
		return 0, err
	}
	defer seg.Close()
	return last.PrecedingRowCount + int64(seg.(*packfile.Segment).PackRows(last.PackID)), nil
}
