package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal-perf.yaml")
	body := `
wal:
  name: bench
  dir: /tmp/bench
  journal_limit: 4096
  fsync: false
bench:
  goroutines: 4
  ops_each: 1000
  op_size: 128
metrics:
  enabled: true
  port: 9999
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.WAL.Name != "bench" {
		t.Errorf("WAL.Name = %q, want %q", cfg.WAL.Name, "bench")
	}
	if cfg.WAL.JournalLimit != 4096 {
		t.Errorf("WAL.JournalLimit = %d, want 4096", cfg.WAL.JournalLimit)
	}
	if cfg.Bench.Goroutines != 4 {
		t.Errorf("Bench.Goroutines = %d, want 4", cfg.Bench.Goroutines)
	}
	if !cfg.Metrics.Enabled {
		t.Errorf("Metrics.Enabled = false, want true")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error loading missing file, got nil")
	}
}

func TestDefaultHasSaneValues(t *testing.T) {
	cfg := Default()
	if cfg.WAL.JournalLimit <= 0 {
		t.Errorf("Default JournalLimit = %d, want > 0", cfg.WAL.JournalLimit)
	}
	if cfg.Bench.Goroutines <= 0 {
		t.Errorf("Default Bench.Goroutines = %d, want > 0", cfg.Bench.Goroutines)
	}
}
