package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pjson "github.com/ajitpratap0/packscan/pkg/json"
	"github.com/ajitpratap0/packscan/pkg/manifest"
	"github.com/ajitpratap0/packscan/pkg/metrics"
	"github.com/ajitpratap0/packscan/pkg/observability"
	"github.com/ajitpratap0/packscan/pkg/pool"
	"github.com/ajitpratap0/packscan/pkg/scan"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/segment/packfile"
	"github.com/ajitpratap0/packscan/pkg/vector"
)

// Output formats of the scan command.
const (
	formatSummary = "summary"
	formatJSONL   = "jsonl"
	formatArrow   = "arrow"
)

func newScanCmd(opts *globalOptions) *cobra.Command {
	var (
		manifestPath, format, outPath, metricsAddr string
		fragments                                  int
		preOpen, trace                             bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the projection of a manifest",
		Long: `Scan reads every work unit of the manifest, split into independent
fragments, and writes the projected rows as line-delimited JSON, as an
Arrow IPC stream, or only counts them.

Example:
  packscan scan --root ./data --manifest scan.yaml --fragments 4 --format jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("fragments") {
				cfg.Fragments = fragments
			}
			if cmd.Flags().Changed("pre-open") {
				cfg.PreOpen = preOpen
			}
			if metricsAddr != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Addr = metricsAddr
			}
			if trace {
				cfg.Tracing.Enabled = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}

			if cfg.Metrics.Enabled {
				stop := serveMetrics(cfg.Metrics.Addr, opts.log)
				defer stop()
			}
			if cfg.Tracing.Enabled {
				shutdown, err := observability.InitTracing(observability.TracingConfig{
					ServiceName:    cfg.Tracing.ServiceName,
					ServiceVersion: version,
					SamplingRate:   cfg.Tracing.SampleRate,
					Output:         os.Stderr,
				})
				if err != nil {
					return err
				}
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						opts.log.Warn("failed to flush traces", zap.Error(err))
					}
				}()
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath) //nolint:gosec // G304: path is supplied by the operator
				if err != nil {
					return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "failed to create output file")
				}
				defer f.Close()
				out = f
			}
			w, err := newBatchWriter(format, out)
			if err != nil {
				return err
			}

			rows, err := runScan(ctx, opts, manifestPath, w)
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			opts.log.Info("scan completed", zap.Int64("rows", rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (required)")
	cmd.Flags().StringVarP(&format, "format", "f", formatSummary, "Output format: summary, jsonl or arrow")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write output to this file instead of stdout")
	cmd.Flags().IntVar(&fragments, "fragments", 1, "Number of parallel fragments")
	cmd.Flags().BoolVar(&preOpen, "pre-open", false, "Open every segment of a fragment before reading")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the scan")
	cmd.Flags().BoolVar(&trace, "trace", false, "Export fragment spans to stderr")
	return cmd
}

func runScan(ctx context.Context, opts *globalOptions, manifestPath string, w batchWriter) (int64, error) {
	cfg := opts.cfg
	m, err := opts.loadManifest(manifestPath)
	if err != nil {
		return 0, err
	}
	columns, err := m.TypedProjection()
	if err != nil {
		return 0, err
	}
	store, err := opts.store(ctx)
	if err != nil {
		return 0, err
	}
	opener := packfile.NewOpener(store, pool.NewBufferPool())

	units := m.Units
	if len(units) == 0 {
		if units, err = manifest.Plan(ctx, opener, m.Segments); err != nil {
			return 0, err
		}
	}
	fragments := manifest.Split(units, cfg.Fragments)
	opts.log.Info("starting scan",
		zap.String("table", m.Table),
		zap.Strings("columns", m.Paths()),
		zap.Int("units", len(units)),
		zap.Int("fragments", len(fragments)),
		zap.Bool("pre_open", cfg.PreOpen))

	newReader := func(fragment int, units []segment.WorkUnit) (*scan.PackReader, error) {
		projection := make([]scan.ProjectedColumn, len(columns))
		for i, c := range columns {
			projection[i] = scan.ProjectedColumn{Path: c.Path, Type: c.Type}
		}
		return scan.NewPackReader(opener, m.Table, m.Schema, projection, units,
			scan.WithPackCapacity(cfg.PackCapacity),
			scan.WithPreOpen(cfg.PreOpen),
			scan.WithLogger(opts.log.With(zap.Int("fragment", fragment))))
	}

	tracker := metrics.NewThroughputTracker(m.Table)
	var mu sync.Mutex
	start := time.Now()
	rows, err := scan.RunParallel(ctx, fragments, newReader, func(_ int, r *scan.PackReader, n int) error {
		tracker.Increment(int64(n))
		mu.Lock()
		defer mu.Unlock()
		return w.Write(r, n)
	})
	opts.log.Info("scan throughput",
		zap.Duration("duration", time.Since(start)),
		zap.Float64("rows_per_second", tracker.GetAndReset()))
	return rows, err
}

// serveMetrics exposes /metrics on addr until the returned stop is called.
func serveMetrics(addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// batchWriter receives the batches of every fragment, one call at a time.
type batchWriter interface {
	Write(r *scan.PackReader, rows int) error
	Close() error
}

func newBatchWriter(format string, w io.Writer) (batchWriter, error) {
	switch format {
	case formatSummary, "":
		return summaryWriter{}, nil
	case formatJSONL:
		return &jsonlWriter{enc: pjson.NewStreamingEncoder(w, false)}, nil
	case formatArrow:
		return &arrowWriter{out: w, mem: memory.NewGoAllocator()}, nil
	default:
		return nil, scanerrors.Newf(scanerrors.ErrorTypeValidation, "unknown output format %q", format)
	}
}

type summaryWriter struct{}

func (summaryWriter) Write(*scan.PackReader, int) error { return nil }
func (summaryWriter) Close() error                       { return nil }

type jsonlWriter struct {
	enc *pjson.StreamingEncoder
}

func (j *jsonlWriter) Write(r *scan.PackReader, rows int) error {
	cols := r.Columns()
	for i := 0; i < rows; i++ {
		row := make(map[string]interface{}, len(cols))
		for _, c := range cols {
			row[c.Path] = cellValue(c.Vector, i)
		}
		if err := j.enc.Encode(row); err != nil {
			return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "failed to write row")
		}
	}
	return nil
}

func (j *jsonlWriter) Close() error { return j.enc.Close() }

func cellValue(v vector.Vector, i int) interface{} {
	switch vec := v.(type) {
	case *vector.Int32Vector:
		return vec.Value(i)
	case *vector.Int64Vector:
		return vec.Value(i)
	case *vector.Float32Vector:
		return vec.Value(i)
	case *vector.Float64Vector:
		return vec.Value(i)
	case *vector.VarCharVector:
		return vec.String(i)
	default:
		return nil
	}
}

type arrowWriter struct {
	out io.Writer
	mem memory.Allocator
	ipc *ipc.Writer
}

func (a *arrowWriter) Write(r *scan.PackReader, _ int) error {
	rec, err := r.Batch(a.mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	if a.ipc == nil {
		a.ipc = ipc.NewWriter(a.out, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(a.mem))
	}
	if err := a.ipc.Write(rec); err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "failed to write arrow record")
	}
	return nil
}

func (a *arrowWriter) Close() error {
	if a.ipc == nil {
		return nil
	}
	return a.ipc.Close()
}
