package main

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/packscan/pkg/compression"
	"github.com/ajitpratap0/packscan/pkg/manifest"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/segment/packfile"
)

// sampleSchema is the table schema of generated segments.
var sampleSchema = segment.Catalog{
	{Name: "id", Type: segment.Int64},
	{Name: "quantity", Type: segment.Int32},
	{Name: "price", Type: segment.Float64},
	{Name: "discount", Type: segment.Float32},
	{Name: "sku", Type: segment.String},
}

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var (
		segments, rows, packRows int
		prefix, manifestPath     string
		drift                    bool
		seed                     int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write sample segment files and a scan manifest",
		Long: `Generate writes synthetic pack files for a five column table and a
manifest selecting every column. With --drift every other segment stores its
columns in reverse order, which exercises per-segment schema resolution.

Example:
  packscan generate --root ./data --segments 4 --rows 200000 --manifest scan.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.store(ctx)
			if err != nil {
				return err
			}
			codec, err := compression.NewCompressor(&opts.cfg.Compression)
			if err != nil {
				return err
			}

			table := opts.cfg.Table
			if table == "" {
				table = "orders"
			}
			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // sample data only

			ids := make([]string, 0, segments)
			var next int64
			for s := 0; s < segments; s++ {
				id := fmt.Sprintf("%sseg-%04d", prefix, s)
				catalog, columns := sampleColumns(rng, next, rows)
				if drift && s%2 == 1 {
					catalog, columns = reverseColumns(catalog, columns)
				}
				if err := packfile.WriteSegment(ctx, store, packfile.BlobName(id), catalog, packRows, codec, columns...); err != nil {
					return err
				}
				opts.log.Info("segment written",
					zap.String("segment", id),
					zap.Int("rows", rows),
					zap.Stringer("schema", catalog))
				ids = append(ids, id)
				next += int64(rows)
			}

			units, err := manifest.Plan(ctx, packfile.NewOpener(store, nil), ids)
			if err != nil {
				return err
			}
			m := &manifest.Manifest{
				Table:      table,
				Schema:     sampleSchema,
				Projection: []manifest.Column{{Path: "*"}},
				Segments:   ids,
				Units:      units,
			}
			if manifestPath == "" {
				data, err := m.Encode(manifest.FormatYAML)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return m.Save(manifestPath)
		},
	}

	cmd.Flags().IntVar(&segments, "segments", 2, "Number of segments to write")
	cmd.Flags().IntVar(&rows, "rows", 100000, "Rows per segment")
	cmd.Flags().IntVar(&packRows, "pack-rows", segment.MaxPackRows, "Rows per pack")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix of generated segment IDs")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Write the manifest to this .yaml or .json file instead of stdout")
	cmd.Flags().BoolVar(&drift, "drift", false, "Reverse the column order of every other segment")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	return cmd
}

func sampleColumns(rng *rand.Rand, firstID int64, rows int) (segment.Catalog, []interface{}) {
	ids := make([]int64, rows)
	qty := make([]int32, rows)
	price := make([]float64, rows)
	discount := make([]float32, rows)
	sku := make([]string, rows)
	for i := 0; i < rows; i++ {
		ids[i] = firstID + int64(i)
		qty[i] = int32(rng.Intn(100))
		price[i] = float64(rng.Intn(100000)) / 100
		discount[i] = float32(rng.Intn(30)) / 100
		sku[i] = "SKU-" + strconv.Itoa(rng.Intn(5000))
	}
	return sampleSchema, []interface{}{ids, qty, price, discount, sku}
}

func reverseColumns(catalog segment.Catalog, columns []interface{}) (segment.Catalog, []interface{}) {
	rc := make(segment.Catalog, len(catalog))
	rv := make([]interface{}, len(columns))
	for i := range catalog {
		rc[len(catalog)-1-i] = catalog[i]
		rv[len(columns)-1-i] = columns[i]
	}
	return rc, rv
}
