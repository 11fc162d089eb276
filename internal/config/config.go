// Package config loads the YAML process configuration shared by the REPL
// and server entry points: data directory, page size, cache limits, listen
// addresses, and the checkpoint cron schedule.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration document.
type Config struct {
	// DataDir is the directory catalog.json and every table's files live
	// under.
	DataDir string `yaml:"data_dir"`

	// PageSize is the fixed page size in bytes used by every Pager. The
	// core's on-disk layouts assume 4096; overriding this is unsupported
	// but kept configurable for forward compatibility with larger pages.
	PageSize int `yaml:"page_size"`

	// CacheLimit bounds how many pages a future buffer pool may hold in
	// memory at once. The core does not yet implement a buffer pool (it
	// reads/writes pages directly); this field is carried so the ambient
	// config surface matches what a buffer-pooled pager would need.
	CacheLimit int `yaml:"cache_limit"`

	Listen ListenConfig `yaml:"listen"`

	// Checkpoint is the cron expression (robfig/cron/v3 syntax) on which
	// the scheduler flushes every open table. Empty disables checkpointing.
	Checkpoint string `yaml:"checkpoint"`

	Verbose bool `yaml:"verbose"`
}

// ListenConfig holds the server's transport listen addresses.
type ListenConfig struct {
	HTTP string `yaml:"http"`
	GRPC string `yaml:"grpc"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		DataDir:    "./data",
		PageSize:   4096,
		CacheLimit: 1024,
		Listen: ListenConfig{
			HTTP: ":8080",
			GRPC: ":9090",
		},
		Checkpoint: "*/5 * * * *",
	}
}

// Load reads and parses a YAML configuration file at path, filling in any
// field the file omits with Default's value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.PageSize != 4096 {
		return Config{}, fmt.Errorf("config: page_size must be 4096, got %d", cfg.PageSize)
	}
	return cfg, nil
}
