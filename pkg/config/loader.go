package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// EnvPrefix prefixes environment overrides, e.g. PACKSCAN_STORAGE_ROOT.
const EnvPrefix = "PACKSCAN"

// Load reads a YAML file over the defaults of NewScanConfig. ${VAR}
// references in the file are substituted first, then PACKSCAN_* variables
// override individual keys. An empty path loads defaults and environment
// only.
func Load(filePath string) (*ScanConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, NewScanConfig(""))

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is supplied by the operator
		if err != nil {
			return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "failed to read config file")
		}
		content := substituteEnvVars(string(data))
		if err := v.ReadConfig(bytes.NewReader([]byte(content))); err != nil {
			return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "failed to parse YAML")
		}
	}

	cfg := &ScanConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "failed to decode config")
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *ScanConfig) {
	v.SetDefault("table", d.Table)
	v.SetDefault("pack_capacity", d.PackCapacity)
	v.SetDefault("pre_open", d.PreOpen)
	v.SetDefault("compressed", d.Compressed)
	v.SetDefault("fragments", d.Fragments)
	v.SetDefault("timeout", d.Timeout)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.root", d.Storage.Root)
	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.prefix", d.Storage.Prefix)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.endpoint", d.Storage.Endpoint)

	v.SetDefault("compression.algorithm", string(d.Compression.Algorithm))
	v.SetDefault("compression.level", int(d.Compression.Level))

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.output_paths", d.Logging.OutputPaths)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// Save writes cfg as YAML.
func Save(filePath string, cfg *ScanConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return scanerrors.Wrap(err, scanerrors.ErrorTypeFile, "failed to write config file")
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Substituted values are not expanded again.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
