// Package config loads the wal-perf CLI's YAML configuration file, the way
// the teacher's internal/cli package loads its own Config struct.
package config

// ============================================================================
// wal-perf Configuration
// Purpose: Load the YAML file backing every wal-perf subcommand: the WAL's
// own Config (name/dir/journal_limit/fsync), the bench workload shape, and
// optional metrics server settings
// ============================================================================

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every field the wal-perf CLI reads from its config file.
type Config struct {
	WAL struct {
		Name         string `yaml:"name"`
		Dir          string `yaml:"dir"`
		JournalLimit int64  `yaml:"journal_limit"`
		Fsync        bool   `yaml:"fsync"`
	} `yaml:"wal"`

	Bench struct {
		Goroutines int `yaml:"goroutines"`
		OpsEach    int `yaml:"ops_each"`
		OpSize     int `yaml:"op_size"`
	} `yaml:"bench"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.WAL.Name = "wal-perf"
	cfg.WAL.Dir = "./data"
	cfg.WAL.JournalLimit = 1 << 30
	cfg.WAL.Fsync = true
	cfg.Bench.Goroutines = 8
	cfg.Bench.OpsEach = 10000
	cfg.Bench.OpSize = 64
	cfg.Metrics.Port = 9090
	return cfg
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
