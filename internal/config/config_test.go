package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.DBPath == "" || cfg.OppDir == "" {
		t.Error("Resolve should fill DBPath and OppDir")
	}
}

func TestResolveDerivesFromDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/seafilter"
	cfg.Resolve()

	if cfg.DBPath != filepath.Join("/var/lib/seafilter", "popcycle.db") {
		t.Errorf("DBPath = %s", cfg.DBPath)
	}
	if cfg.OppDir != filepath.Join("/var/lib/seafilter", "opp") {
		t.Errorf("OppDir = %s", cfg.OppDir)
	}
	if cfg.Storage.CacheDir != "" {
		t.Error("cache dir should stay empty for local storage")
	}

	cfg = DefaultConfig()
	cfg.DataDir = "/var/lib/seafilter"
	cfg.Storage.Type = "s3"
	cfg.Storage.S3.Bucket = "evt"
	cfg.Resolve()
	if cfg.Storage.CacheDir != filepath.Join("/var/lib/seafilter", "cache") {
		t.Errorf("CacheDir = %s", cfg.Storage.CacheDir)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad storage type", func(c *Config) { c.Storage.Type = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }},
		{"zero workers", func(c *Config) { c.Filter.Workers = 0 }},
		{"bad resolution", func(c *Config) { c.Filter.EveryPercent = 150 }},
		{"zero queue", func(c *Config) { c.Filter.QueueSize = 0 }},
		{"zero stall timeout", func(c *Config) { c.Filter.StallTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seafilter.yaml")
	content := `
db_path: /tmp/test.db
opp_dir: /tmp/opp
filter:
  workers: 4
  every_percent: 5
  stall_timeout: 90s
storage:
  type: s3
  s3:
    bucket: evt-archive
    region: us-west-2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %s", cfg.DBPath)
	}
	if cfg.Filter.Workers != 4 || cfg.Filter.EveryPercent != 5 {
		t.Errorf("filter = %+v", cfg.Filter)
	}
	if cfg.Filter.StallTimeout != 90*time.Second {
		t.Errorf("StallTimeout = %v", cfg.Filter.StallTimeout)
	}
	if cfg.Storage.S3.Bucket != "evt-archive" {
		t.Errorf("bucket = %s", cfg.Storage.S3.Bucket)
	}
	// Defaults survive partial files.
	if cfg.Filter.QueueSize != 100 {
		t.Errorf("QueueSize = %d, want default 100", cfg.Filter.QueueSize)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seafilter.json")
	content := `{"db_path": "/tmp/j.db", "filter": {"workers": 2}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/j.db" || cfg.Filter.Workers != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFromFileUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seafilter.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEAFILTER_DB_PATH", "/env/popcycle.db")
	t.Setenv("SEAFILTER_WORKERS", "8")
	t.Setenv("SEAFILTER_STALL_TIMEOUT", "2m")
	t.Setenv("SEAFILTER_SKIP_PROCESSED", "true")
	t.Setenv("SEAFILTER_STORAGE_TYPE", "s3")
	t.Setenv("SEAFILTER_S3_BUCKET", "envbucket")
	t.Setenv("SEAFILTER_S3_PATH_STYLE", "1")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DBPath != "/env/popcycle.db" {
		t.Errorf("DBPath = %s", cfg.DBPath)
	}
	if cfg.Filter.Workers != 8 {
		t.Errorf("Workers = %d", cfg.Filter.Workers)
	}
	if cfg.Filter.StallTimeout != 2*time.Minute {
		t.Errorf("StallTimeout = %v", cfg.Filter.StallTimeout)
	}
	if !cfg.Filter.SkipProcessed {
		t.Error("SkipProcessed should be true")
	}
	if cfg.Storage.Type != "s3" || cfg.Storage.S3.Bucket != "envbucket" || !cfg.Storage.S3.UsePathStyle {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "base")
	cfg.Storage.Type = "s3"
	cfg.Storage.S3.Bucket = "b"
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{cfg.DataDir, cfg.OppDir, cfg.Storage.CacheDir} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", d)
		}
	}
}
