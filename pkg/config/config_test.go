package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/packscan/pkg/compression"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewScanConfig("orders")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 65536, cfg.PackCapacity)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, compression.Zstd, cfg.Compression.Algorithm)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScanConfig)
	}{
		{"pack capacity zero", func(c *ScanConfig) { c.PackCapacity = 0 }},
		{"pack capacity too large", func(c *ScanConfig) { c.PackCapacity = 65537 }},
		{"fragments", func(c *ScanConfig) { c.Fragments = 0 }},
		{"timeout", func(c *ScanConfig) { c.Timeout = -time.Second }},
		{"backend", func(c *ScanConfig) { c.Storage.Backend = "ftp" }},
		{"local root", func(c *ScanConfig) { c.Storage.Root = "" }},
		{"s3 bucket", func(c *ScanConfig) { c.Storage.Backend = BackendS3 }},
		{"codec", func(c *ScanConfig) { c.Compression.Algorithm = "brotli" }},
		{"sample rate", func(c *ScanConfig) { c.Tracing.SampleRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewScanConfig("t")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeConfig))
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	content := `
table: orders
pack_capacity: 1024
pre_open: true
timeout: 30s
storage:
  backend: s3
  bucket: ${TEST_PACKSCAN_BUCKET}
  prefix: warehouse
compression:
  algorithm: lz4
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TEST_PACKSCAN_BUCKET", "lake")
	t.Setenv("PACKSCAN_FRAGMENTS", "3")
	t.Setenv("PACKSCAN_STORAGE_REGION", "eu-west-1")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "orders", cfg.Table)
	assert.Equal(t, 1024, cfg.PackCapacity)
	assert.True(t, cfg.PreOpen)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Fragments)
	assert.Equal(t, "lake", cfg.Storage.Bucket)
	assert.Equal(t, "warehouse", cfg.Storage.Prefix)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, compression.LZ4, cfg.Compression.Algorithm)
	assert.Equal(t, compression.Default, cfg.Compression.Level)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Encoding)
	assert.True(t, cfg.Compressed)
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewScanConfig("").PackCapacity, cfg.PackCapacity)
	assert.Equal(t, ".", cfg.Storage.Root)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewScanConfig("events")
	cfg.Fragments = 2
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "events", loaded.Table)
	assert.Equal(t, 2, loaded.Fragments)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_PACKSCAN_SELF", "${TEST_PACKSCAN_SELF}")
	t.Setenv("TEST_PACKSCAN_NESTED", "${TEST_PACKSCAN_HOST}")
	t.Setenv("TEST_PACKSCAN_HOST", "minio")

	tests := []struct {
		in, want string
	}{
		{"bucket: ${TEST_PACKSCAN_HOST}", "bucket: minio"},
		{"a: ${TEST_PACKSCAN_SELF}", "a: ${TEST_PACKSCAN_SELF}"},
		{"a: ${TEST_PACKSCAN_NESTED}", "a: ${TEST_PACKSCAN_HOST}"},
		{"${TEST_PACKSCAN_HOST}/${TEST_PACKSCAN_HOST}", "minio/minio"},
		{"open ${TEST_PACKSCAN_HOST", "open ${TEST_PACKSCAN_HOST"},
		{"unset: ${TEST_PACKSCAN_UNSET}.", "unset: ."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in), tt.in)
	}
}
