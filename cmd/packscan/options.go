package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/packscan/pkg/blobstore"
	s3store "github.com/ajitpratap0/packscan/pkg/blobstore/s3"
	"github.com/ajitpratap0/packscan/pkg/config"
	"github.com/ajitpratap0/packscan/pkg/logger"
	"github.com/ajitpratap0/packscan/pkg/manifest"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// globalOptions carries the persistent flags and what setup derives from
// them.
type globalOptions struct {
	configFile string
	root       string
	logLevel   string

	cfg *config.ScanConfig
	log *zap.Logger
}

func (o *globalOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	if o.root != "" {
		cfg.Storage.Backend = config.BackendLocal
		cfg.Storage.Root = o.root
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "failed to initialize logger")
	}

	o.cfg = cfg
	o.log = logger.With(zap.String("component", "packscan-cli"), zap.String("command", cmd.Name()))
	return nil
}

func (o *globalOptions) teardown() {
	_ = logger.Sync()
}

// store opens the configured blob store.
func (o *globalOptions) store(ctx context.Context) (blobstore.Store, error) {
	st := o.cfg.Storage
	switch st.Backend {
	case config.BackendS3:
		return s3store.NewFromEnv(ctx, st.Bucket, st.Prefix, st.Region, st.Endpoint)
	case config.BackendLocal, "":
		return blobstore.NewLocalStore(st.Root), nil
	default:
		return nil, scanerrors.Newf(scanerrors.ErrorTypeConfig, "unknown storage backend %q", st.Backend)
	}
}

// loadManifest reads the manifest at path and applies the configured table
// name when the manifest has none.
func (o *globalOptions) loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return nil, scanerrors.New(scanerrors.ErrorTypeValidation, "--manifest is required")
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if m.Table == "" {
		m.Table = o.cfg.Table
	}
	return m, nil
}
