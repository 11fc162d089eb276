package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relic.yaml")
	content := `
data_dir: /var/lib/relic
listen:
  http: ":9999"
  grpc: ":9998"
checkpoint: "*/10 * * * *"
verbose: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/relic" {
		t.Fatalf("DataDir: got %q", cfg.DataDir)
	}
	if cfg.Listen.HTTP != ":9999" || cfg.Listen.GRPC != ":9998" {
		t.Fatalf("Listen: got %+v", cfg.Listen)
	}
	if cfg.Checkpoint != "*/10 * * * *" {
		t.Fatalf("Checkpoint: got %q", cfg.Checkpoint)
	}
	if !cfg.Verbose {
		t.Fatalf("Verbose: want true")
	}
	if cfg.PageSize != 4096 {
		t.Fatalf("PageSize: want default 4096, got %d", cfg.PageSize)
	}
	if cfg.CacheLimit != 1024 {
		t.Fatalf("CacheLimit: want default 1024, got %d", cfg.CacheLimit)
	}
}

func TestLoadRejectsNonDefaultPageSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relic.yaml")
	if err := os.WriteFile(path, []byte("page_size: 8192\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for non-4096 page_size")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
