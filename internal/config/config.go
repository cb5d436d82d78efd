// Package config provides unified configuration for the seafilter CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration for a filtering run.
type Config struct {
	// DataDir is the base directory for run outputs and caches
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBPath is the popcycle SQLite database path
	DBPath string `json:"db_path" yaml:"db_path"`

	// OppDir is the output directory for focused particle files.
	// Empty disables OPP file output.
	OppDir string `json:"opp_dir" yaml:"opp_dir"`

	// Filter holds filtering run tuning
	Filter FilterConfig `json:"filter" yaml:"filter"`

	// Storage holds EVT source configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// FilterConfig holds filtering run tuning.
type FilterConfig struct {
	// Workers is the number of parallel file workers
	Workers int `json:"workers" yaml:"workers"`

	// EveryPercent is the progress reporting resolution in (0, 100]
	EveryPercent float64 `json:"every_percent" yaml:"every_percent"`

	// QueueSize bounds the results queue between workers and the saver
	QueueSize int `json:"queue_size" yaml:"queue_size"`

	// StallTimeout aborts the run when no results arrive for this long
	StallTimeout time.Duration `json:"stall_timeout" yaml:"stall_timeout"`

	// AllowPartialOpp writes OPP files even when a quantile is empty
	AllowPartialOpp bool `json:"allow_partial_opp" yaml:"allow_partial_opp"`

	// SkipProcessed skips files that already have results for the
	// current parameter set
	SkipProcessed bool `json:"skip_processed" yaml:"skip_processed"`

	// Prefetch is the concurrency for warming remote files ahead of the
	// workers. Zero disables prefetching.
	Prefetch int `json:"prefetch" yaml:"prefetch"`
}

// StorageConfig holds EVT source configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// CacheDir is the on-disk cache for fetched remote objects.
	// Empty disables caching.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local runs.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/seafilter",
		Filter: FilterConfig{
			Workers:      1,
			EveryPercent: 10,
			QueueSize:    100,
			StallTimeout: 60 * time.Second,
			Prefetch:     0,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve fills derived paths from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/seafilter"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "popcycle.db")
	}
	if c.OppDir == "" {
		c.OppDir = filepath.Join(c.DataDir, "opp")
	}
	if c.Storage.CacheDir == "" && c.Storage.Type == "s3" {
		c.Storage.CacheDir = filepath.Join(c.DataDir, "cache")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Filter.Workers < 1 {
		return fmt.Errorf("filter.workers must be > 0, got %d", c.Filter.Workers)
	}
	if c.Filter.EveryPercent <= 0 || c.Filter.EveryPercent > 100 {
		return fmt.Errorf("filter.every_percent must be > 0 and <= 100, got %v", c.Filter.EveryPercent)
	}
	if c.Filter.QueueSize < 1 {
		return fmt.Errorf("filter.queue_size must be > 0, got %d", c.Filter.QueueSize)
	}
	if c.Filter.StallTimeout <= 0 {
		return fmt.Errorf("filter.stall_timeout must be positive, got %v", c.Filter.StallTimeout)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides configuration from environment variables with the
// SEAFILTER_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SEAFILTER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SEAFILTER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SEAFILTER_OPP_DIR"); v != "" {
		cfg.OppDir = v
	}

	// Filter configuration
	if v := os.Getenv("SEAFILTER_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Filter.Workers)
	}
	if v := os.Getenv("SEAFILTER_EVERY_PERCENT"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Filter.EveryPercent)
	}
	if v := os.Getenv("SEAFILTER_QUEUE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Filter.QueueSize)
	}
	if v := os.Getenv("SEAFILTER_STALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Filter.StallTimeout = d
		}
	}
	if v := os.Getenv("SEAFILTER_SKIP_PROCESSED"); v != "" {
		cfg.Filter.SkipProcessed = v == "true" || v == "1"
	}
	if v := os.Getenv("SEAFILTER_PREFETCH"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Filter.Prefetch)
	}

	// Storage configuration
	if v := os.Getenv("SEAFILTER_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SEAFILTER_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SEAFILTER_CACHE_DIR"); v != "" {
		cfg.Storage.CacheDir = v
	}
	if v := os.Getenv("SEAFILTER_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SEAFILTER_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SEAFILTER_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("SEAFILTER_S3_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.OppDir,
		c.Storage.CacheDir,
		filepath.Dir(c.DBPath),
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
