package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	return path
}

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()

	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[storage]
data_dir = "/srv/driveindex"

[index]
commit_batch_crawl = 250

[logging]
log_level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/srv/driveindex" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}

	if cfg.CommitBatchCrawl != 250 {
		t.Errorf("commit_batch_crawl = %d", cfg.CommitBatchCrawl)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}

	// Untouched sections keep their defaults.
	if cfg.CommitBatchSync != defaultCommitBatchSync {
		t.Errorf("commit_batch_sync = %d, want the default %d", cfg.CommitBatchSync, defaultCommitBatchSync)
	}

	if cfg.FetchPageSize != defaultFetchPageSize {
		t.Errorf("fetch_page_size = %d, want the default %d", cfg.FetchPageSize, defaultFetchPageSize)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[storage]
data_dirr = "typo"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("typoed key accepted")
	}

	if !strings.Contains(err.Error(), "unknown keys") {
		t.Errorf("error = %v, want an unknown-keys complaint", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"oversized page", "[remote]\nfetch_page_size = 5000\n"},
		{"zero batch", "[index]\ncommit_batch_crawl = 0\n"},
		{"bad ttl", "[cache]\nprimary_cache_ttl_quick = \"a week\"\n"},
		{"bad log format", "[logging]\nlog_format = \"xml\"\n"},
		{"bad log level", "[logging]\nlog_level = \"trace\"\n"},
		{"negative min size", "[query]\nduplicate_min_size = -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("invalid value accepted")
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}

	if cfg.DataDir != defaultDataDir {
		t.Errorf("data_dir = %q, want the default", cfg.DataDir)
	}

	path := writeConfig(t, "[storage]\ndata_dir = \"elsewhere\"\n")

	cfg, err = LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}

	if cfg.DataDir != "elsewhere" {
		t.Errorf("data_dir = %q, want the file value", cfg.DataDir)
	}
}

func TestTTLAccessors(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.TTLQuick() != 168*time.Hour {
		t.Errorf("TTLQuick = %v, want 168h", cfg.TTLQuick())
	}

	if cfg.TTLFull() != 720*time.Hour {
		t.Errorf("TTLFull = %v, want 720h", cfg.TTLFull())
	}
}
