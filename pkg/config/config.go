// Package config holds the configuration of a pack scan.
//
// The configuration is organized into sections:
//   - Scan: table, pack capacity, pre-open, cost model, fragments
//   - Storage: where segments are read from (local directory or S3)
//   - Compression: codec used when writing segments
//   - Logging, Metrics and Tracing
//
// Example usage:
//
//	cfg := config.NewScanConfig("orders")
//	cfg.Fragments = 4
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"github.com/ajitpratap0/packscan/pkg/compression"
	"github.com/ajitpratap0/packscan/pkg/logger"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// ScanConfig is the complete configuration of one scan run.
type ScanConfig struct {
	// Table is the logical table name, also stripped from projection paths
	Table string `yaml:"table" json:"table" mapstructure:"table"`
	// PackCapacity is the row capacity vectors are reset to before every pack
	PackCapacity int `yaml:"pack_capacity" json:"pack_capacity" mapstructure:"pack_capacity"`
	// PreOpen opens every segment before the first pack is read
	PreOpen bool `yaml:"pre_open" json:"pre_open" mapstructure:"pre_open"`
	// Compressed selects the compressed column of the cost model
	Compressed bool `yaml:"compressed" json:"compressed" mapstructure:"compressed"`
	// Fragments is the number of independent readers a scan is split into
	Fragments int `yaml:"fragments" json:"fragments" mapstructure:"fragments"`
	// Timeout bounds a whole scan (0 = none)
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`

	Storage     StorageConfig      `yaml:"storage" json:"storage" mapstructure:"storage"`
	Compression compression.Config `yaml:"compression" json:"compression" mapstructure:"compression"`
	Logging     logger.Config      `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Tracing     TracingConfig      `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// StorageConfig selects the blob store holding segment files.
type StorageConfig struct {
	Backend string `yaml:"backend" json:"backend" mapstructure:"backend"`
	// Root is the directory of the local backend
	Root   string `yaml:"root" json:"root" mapstructure:"root"`
	Bucket string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	Region string `yaml:"region" json:"region" mapstructure:"region"`
	// Endpoint overrides the S3 endpoint, e.g. for MinIO
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" json:"addr" mapstructure:"addr"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
}

// NewScanConfig returns a configuration with defaults for table.
func NewScanConfig(table string) *ScanConfig {
	return &ScanConfig{
		Table:        table,
		PackCapacity: segment.MaxPackRows,
		PreOpen:      false,
		Compressed:   true,
		Fragments:    1,
		Storage: StorageConfig{
			Backend: BackendLocal,
			Root:    ".",
		},
		Compression: *compression.DefaultConfig(),
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "packscan",
			SampleRate:  1.0,
		},
	}
}

// Validate checks the configuration for values a scan cannot run with.
func (c *ScanConfig) Validate() error {
	if c.PackCapacity <= 0 || c.PackCapacity > segment.MaxPackRows {
		return scanerrors.Newf(scanerrors.ErrorTypeConfig,
			"pack_capacity must be in [1, %d], got %d", segment.MaxPackRows, c.PackCapacity)
	}
	if c.Fragments <= 0 {
		return scanerrors.Newf(scanerrors.ErrorTypeConfig, "fragments must be positive, got %d", c.Fragments)
	}
	if c.Timeout < 0 {
		return scanerrors.New(scanerrors.ErrorTypeConfig, "timeout cannot be negative")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Root == "" {
			return scanerrors.New(scanerrors.ErrorTypeConfig, "storage.root is required for the local backend")
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			return scanerrors.New(scanerrors.ErrorTypeConfig, "storage.bucket is required for the s3 backend")
		}
	default:
		return scanerrors.Newf(scanerrors.ErrorTypeConfig, "unknown storage backend %q", c.Storage.Backend)
	}
	if _, err := compression.NewCompressor(&c.Compression); err != nil {
		return err
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return scanerrors.Newf(scanerrors.ErrorTypeConfig, "tracing.sample_rate must be in [0, 1], got %v", c.Tracing.SampleRate)
	}
	return nil
}
