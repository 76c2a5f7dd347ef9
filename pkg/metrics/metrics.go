// Package metrics exposes the Prometheus metrics of pack scans.
//
// All metrics are registered with the default registry through promauto and
// carry the "packscan_" prefix.
//
//	timer := metrics.NewTimer()
//	rows, err := decode()
//	metrics.ObserveDecode(timer.Stop(), rows)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// SegmentsOpened counts segment open attempts by status.
	SegmentsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packscan_segments_opened_total",
			Help: "Segment open attempts",
		},
		[]string{"status"},
	)

	// SegmentCloseFailures counts segment handles whose Close failed.
	SegmentCloseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "packscan_segment_close_failures_total",
			Help: "Segment handles that failed to close",
		},
	)

	// CachedSegments is the number of open segment handles held by caches.
	CachedSegments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "packscan_cached_segments",
			Help: "Open segment handles held by segment caches",
		},
	)

	// PacksDecoded counts decoded column packs by column type.
	PacksDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packscan_packs_decoded_total",
			Help: "Column packs decoded",
		},
		[]string{"type"},
	)

	// RowsDecoded counts rows delivered to output vectors.
	RowsDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "packscan_rows_decoded_total",
			Help: "Rows delivered by pack reads",
		},
	)

	// PackDecodeLatency observes the time to decode one work unit in
	// seconds.
	PackDecodeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "packscan_pack_decode_seconds",
			Help: "Time to decode one work unit",
			Buckets: []float64{
				1e-5, // 10μs
				1e-4,
				1e-3, // 1ms
				1e-2,
				1e-1, // 100ms
				1,
			},
		},
	)

	// ScanThroughput is the last measured rows per second of a table scan.
	ScanThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "packscan_scan_rows_per_second",
			Help: "Rows per second of the last completed scan",
		},
		[]string{"table"},
	)
)

// ObserveOpen records a segment open attempt.
func ObserveOpen(err error) {
	if err != nil {
		SegmentsOpened.WithLabelValues(StatusFailure).Inc()
		return
	}
	SegmentsOpened.WithLabelValues(StatusSuccess).Inc()
}

// ObserveDecode records one decoded work unit of rows rows.
func ObserveDecode(elapsed time.Duration, rows int) {
	PackDecodeLatency.Observe(elapsed.Seconds())
	if rows > 0 {
		RowsDecoded.Add(float64(rows))
	}
}

// Timer measures elapsed time from its creation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since NewTimer. It may be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker accumulates rows and reports rows per second for one
// table. It is safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	table     string
}

// NewThroughputTracker creates a tracker for table.
func NewThroughputTracker(table string) *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), table: table}
}

// Increment adds n rows.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// Count returns the rows added since the last reset.
func (t *ThroughputTracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// GetAndReset returns rows per second since the last reset, publishes it to
// ScanThroughput and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()
	ScanThroughput.WithLabelValues(t.table).Set(throughput)
	return throughput
}
