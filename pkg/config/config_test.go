package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Pipeline.Workers != 1 {
		t.Errorf("default workers = %d, want 1", cfg.Pipeline.Workers)
	}
	if cfg.Sink.Driver != "counter" {
		t.Errorf("default sink driver = %q", cfg.Sink.Driver)
	}
	if cfg.Ledger.Enabled {
		t.Error("ledger enabled by default")
	}
	if cfg.Ledger.TTL != 7*24*time.Hour {
		t.Errorf("default ledger ttl = %v", cfg.Ledger.TTL)
	}
	if cfg.Workdir.Root == "" {
		t.Error("default workdir root empty")
	}
}

func TestMergeKeepsDefaultsForZeroValues(t *testing.T) {
	m := NewManager()

	m.merge(&Config{
		Workdir:  WorkdirConfig{Root: "/var/lib/logsift"},
		Pipeline: PipelineConfig{Workers: 8},
		Sink:     SinkConfig{Driver: "duckdb"},
	})

	cfg := m.Get()
	if cfg.Workdir.Root != "/var/lib/logsift" {
		t.Errorf("workdir = %q", cfg.Workdir.Root)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("workers = %d", cfg.Pipeline.Workers)
	}
	if cfg.Sink.Driver != "duckdb" {
		t.Errorf("driver = %q", cfg.Sink.Driver)
	}
	// Untouched sections keep the defaults.
	if cfg.Ledger.Address != "localhost:6379" {
		t.Errorf("ledger address = %q", cfg.Ledger.Address)
	}
	if cfg.Storage.Region != "us-east-1" {
		t.Errorf("region = %q", cfg.Storage.Region)
	}
}

func TestMergeBoolAndSliceFields(t *testing.T) {
	m := NewManager()

	m.merge(&Config{
		Pipeline: PipelineConfig{Fetch: true, Manifest: []string{"a.log", "b.log"}},
		Storage:  StorageConfig{PathStyle: true, Endpoint: "http://minio:9000"},
	})

	cfg := m.Get()
	if !cfg.Pipeline.Fetch {
		t.Error("fetch not merged")
	}
	if len(cfg.Pipeline.Manifest) != 2 {
		t.Errorf("manifest = %v", cfg.Pipeline.Manifest)
	}
	if !cfg.Storage.PathStyle {
		t.Error("path style not merged")
	}

	// A later layer with zero values must not clear the earlier one.
	m.merge(&Config{})
	if !m.Get().Pipeline.Fetch || !m.Get().Storage.PathStyle {
		t.Error("empty merge cleared earlier values")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOGSIFT_WORKDIR", "/srv/logs")
	t.Setenv("LOGSIFT_WORKERS", "4")
	t.Setenv("LOGSIFT_SINK", "duckdb")
	t.Setenv("LOGSIFT_REDIS", "redis:6379")

	m := NewManager()
	m.loadEnv()

	cfg := m.Get()
	if cfg.Workdir.Root != "/srv/logs" {
		t.Errorf("workdir = %q", cfg.Workdir.Root)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("workers = %d", cfg.Pipeline.Workers)
	}
	if cfg.Sink.Driver != "duckdb" {
		t.Errorf("driver = %q", cfg.Sink.Driver)
	}
	if !cfg.Ledger.Enabled || cfg.Ledger.Address != "redis:6379" {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
}

func TestEnvIgnoresBadWorkerCount(t *testing.T) {
	t.Setenv("LOGSIFT_WORKERS", "many")

	m := NewManager()
	m.loadEnv()

	if m.Get().Pipeline.Workers != 1 {
		t.Errorf("workers = %d, want default 1", m.Get().Pipeline.Workers)
	}
}
