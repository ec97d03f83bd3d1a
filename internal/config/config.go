// Package config loads and validates the driveindex configuration file.
// Configuration is TOML with a strict unknown-key check: a typo in a key
// name is a fatal error rather than a silently ignored setting.
package config

import (
	"fmt"
	"time"
)

// Config is the full configuration tree as decoded from TOML.
// All duration-valued options are strings in time.ParseDuration syntax
// so the file stays human-editable ("168h", not 604800000000000).
type Config struct {
	StorageConfig `toml:"storage"`
	RemoteConfig  `toml:"remote"`
	IndexConfig   `toml:"index"`
	CacheConfig   `toml:"cache"`
	QueryConfig   `toml:"query"`
	LoggingConfig `toml:"logging"`
}

// StorageConfig controls where local state lives.
type StorageConfig struct {
	DataDir  string `toml:"data_dir"`
	CacheDir string `toml:"cache_dir"`
}

// RemoteConfig controls access to the Drive API.
type RemoteConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
	FetchPageSize   int64  `toml:"fetch_page_size"`
}

// IndexConfig controls crawl/sync commit batching.
type IndexConfig struct {
	CommitBatchCrawl int `toml:"commit_batch_crawl"`
	CommitBatchSync  int `toml:"commit_batch_sync"`
}

// CacheConfig controls snapshot cache validity.
type CacheConfig struct {
	PrimaryTTLQuick string `toml:"primary_cache_ttl_quick"`
	PrimaryTTLFull  string `toml:"primary_cache_ttl_full"`
}

// QueryConfig controls read-side query limits.
type QueryConfig struct {
	DuplicateMinSize int64 `toml:"duplicate_min_size"`
	PathMaxPaths     int   `toml:"path_max_paths"`
	PathMaxDepth     int   `toml:"path_max_depth"`
}

// LoggingConfig controls the slog handler built by the CLI.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // auto, text, json
}

// Validate checks a decoded Config for values that would break the
// pipelines at runtime. Called by Load after decoding.
func Validate(cfg *Config) error {
	if cfg.FetchPageSize < 1 || cfg.FetchPageSize > maxFetchPageSize {
		return fmt.Errorf("config: fetch_page_size %d out of range [1, %d]",
			cfg.FetchPageSize, maxFetchPageSize)
	}

	if cfg.CommitBatchCrawl < 1 {
		return fmt.Errorf("config: commit_batch_crawl must be positive, got %d", cfg.CommitBatchCrawl)
	}

	if cfg.CommitBatchSync < 1 {
		return fmt.Errorf("config: commit_batch_sync must be positive, got %d", cfg.CommitBatchSync)
	}

	if cfg.PathMaxPaths < 1 {
		return fmt.Errorf("config: path_max_paths must be positive, got %d", cfg.PathMaxPaths)
	}

	if cfg.PathMaxDepth < 1 {
		return fmt.Errorf("config: path_max_depth must be positive, got %d", cfg.PathMaxDepth)
	}

	if cfg.DuplicateMinSize < 0 {
		return fmt.Errorf("config: duplicate_min_size must be non-negative, got %d", cfg.DuplicateMinSize)
	}

	for _, d := range []struct{ key, val string }{
		{"primary_cache_ttl_quick", cfg.PrimaryTTLQuick},
		{"primary_cache_ttl_full", cfg.PrimaryTTLFull},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", d.key, d.val, err)
		}
	}

	switch cfg.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("config: log_format must be auto, text, or json, got %q", cfg.LogFormat)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level must be debug, info, warn, or error, got %q", cfg.LogLevel)
	}

	return nil
}

// TTLQuick returns the parsed quick-scan cache TTL.
// Validate guarantees the string parses.
func (c *Config) TTLQuick() time.Duration {
	d, _ := time.ParseDuration(c.PrimaryTTLQuick)
	return d
}

// TTLFull returns the parsed full-scan cache TTL.
func (c *Config) TTLFull() time.Duration {
	d, _ := time.ParseDuration(c.PrimaryTTLFull)
	return d
}
