// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all logsift configuration.
type Config struct {
	Version int `yaml:"version"`

	Workdir   WorkdirConfig   `yaml:"workdir"`
	Formats   FormatsConfig   `yaml:"formats"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Sink      SinkConfig      `yaml:"sink"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// WorkdirConfig locates the work directory root. The unprocessed,
// processed and error directories live beneath it.
type WorkdirConfig struct {
	Root string `yaml:"root"`
}

// FormatsConfig points at the two catalog documents. Empty paths keep
// the built-in defaults. Reloading requires a restart.
type FormatsConfig struct {
	LineFormats      string `yaml:"line_formats"`
	TimestampFormats string `yaml:"timestamp_formats"`
}

// PipelineConfig controls the ingestion pass.
type PipelineConfig struct {
	Workers     int           `yaml:"workers"`      // cross-file parallelism, 1 = sequential
	SinkTimeout time.Duration `yaml:"sink_timeout"` // bound on one file's pass, 0 = none
	Fetch       bool          `yaml:"fetch"`        // pull manifest from object storage first
	Manifest    []string      `yaml:"manifest"`     // object keys to fetch
}

// SinkConfig selects the record destination.
type SinkConfig struct {
	Driver string `yaml:"driver"` // counter | duckdb
	Path   string `yaml:"path"`   // duckdb database file
}

// LedgerConfig configures the optional processed-file ledger.
type LedgerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	TTL      time.Duration `yaml:"ttl"`
}

// StorageConfig configures the object-storage collaborator.
type StorageConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	KeyPrefix string `yaml:"key_prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UploadDir string `yaml:"upload_dir"`
}

// TelemetryConfig for optional trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".logsift")

	return &Config{
		Version: 1,
		Workdir: WorkdirConfig{
			Root: filepath.Join(baseDir, "logs"),
		},
		Pipeline: PipelineConfig{
			Workers: 1,
		},
		Sink: SinkConfig{
			Driver: "counter",
			Path:   filepath.Join(baseDir, "logsift.db"),
		},
		Ledger: LedgerConfig{
			Address: "localhost:6379",
			TTL:     7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Region: "us-east-1",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4317",
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	config *Config
	paths  []string
}

// NewManager creates a manager holding the defaults.
func NewManager() *Manager {
	return &Manager{config: Default()}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.config = Default()

	for _, path := range configPaths() {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			continue
		}
		m.paths = append(m.paths, path)
	}

	m.loadEnv()
	return nil
}

// configPaths returns config file paths in priority order.
func configPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/logsift/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".logsift", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".logsift.yaml"))
	}

	return paths
}

func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	m.merge(&partial)
	return nil
}

// merge copies non-zero values from src into the current config.
func (m *Manager) merge(src *Config) {
	if src.Workdir.Root != "" {
		m.config.Workdir.Root = src.Workdir.Root
	}

	if src.Formats.LineFormats != "" {
		m.config.Formats.LineFormats = src.Formats.LineFormats
	}
	if src.Formats.TimestampFormats != "" {
		m.config.Formats.TimestampFormats = src.Formats.TimestampFormats
	}

	if src.Pipeline.Workers != 0 {
		m.config.Pipeline.Workers = src.Pipeline.Workers
	}
	if src.Pipeline.SinkTimeout != 0 {
		m.config.Pipeline.SinkTimeout = src.Pipeline.SinkTimeout
	}
	if src.Pipeline.Fetch {
		m.config.Pipeline.Fetch = true
	}
	if len(src.Pipeline.Manifest) > 0 {
		m.config.Pipeline.Manifest = src.Pipeline.Manifest
	}

	if src.Sink.Driver != "" {
		m.config.Sink.Driver = src.Sink.Driver
	}
	if src.Sink.Path != "" {
		m.config.Sink.Path = src.Sink.Path
	}

	if src.Ledger.Enabled {
		m.config.Ledger.Enabled = true
	}
	if src.Ledger.Address != "" {
		m.config.Ledger.Address = src.Ledger.Address
	}
	if src.Ledger.Password != "" {
		m.config.Ledger.Password = src.Ledger.Password
	}
	if src.Ledger.Database != 0 {
		m.config.Ledger.Database = src.Ledger.Database
	}
	if src.Ledger.TTL != 0 {
		m.config.Ledger.TTL = src.Ledger.TTL
	}

	if src.Storage.Bucket != "" {
		m.config.Storage.Bucket = src.Storage.Bucket
	}
	if src.Storage.Region != "" {
		m.config.Storage.Region = src.Storage.Region
	}
	if src.Storage.Endpoint != "" {
		m.config.Storage.Endpoint = src.Storage.Endpoint
	}
	if src.Storage.PathStyle {
		m.config.Storage.PathStyle = true
	}
	if src.Storage.KeyPrefix != "" {
		m.config.Storage.KeyPrefix = src.Storage.KeyPrefix
	}
	if src.Storage.AccessKey != "" {
		m.config.Storage.AccessKey = src.Storage.AccessKey
	}
	if src.Storage.SecretKey != "" {
		m.config.Storage.SecretKey = src.Storage.SecretKey
	}
	if src.Storage.UploadDir != "" {
		m.config.Storage.UploadDir = src.Storage.UploadDir
	}

	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("LOGSIFT_WORKDIR"); v != "" {
		m.config.Workdir.Root = v
	}
	if v := os.Getenv("LOGSIFT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m.config.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("LOGSIFT_SINK"); v != "" {
		m.config.Sink.Driver = v
	}
	if v := os.Getenv("LOGSIFT_S3_BUCKET"); v != "" {
		m.config.Storage.Bucket = v
	}
	if v := os.Getenv("LOGSIFT_S3_ENDPOINT"); v != "" {
		m.config.Storage.Endpoint = v
	}
	if v := os.Getenv("LOGSIFT_S3_ACCESS_KEY"); v != "" {
		m.config.Storage.AccessKey = v
	}
	if v := os.Getenv("LOGSIFT_S3_SECRET_KEY"); v != "" {
		m.config.Storage.SecretKey = v
	}
	if v := os.Getenv("LOGSIFT_REDIS"); v != "" {
		m.config.Ledger.Enabled = true
		m.config.Ledger.Address = v
	}
	if v := os.Getenv("LOGSIFT_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Enabled = true
		m.config.Telemetry.Endpoint = v
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// Paths returns the config files that were loaded.
func (m *Manager) Paths() []string {
	return m.paths
}
