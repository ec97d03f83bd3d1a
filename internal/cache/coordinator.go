// Package cache persists scan snapshots and derived analytics as JSON
// files with metadata sidecars. Payload files can be large; the sidecar
// lets status paths read validity metadata without parsing the payload.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Scan types stored by the coordinator.
const (
	ScanQuick         = "quick_scan"
	ScanFull          = "full_scan"
	ScanFullAnalytics = "full_scan_analytics"
)

// Metadata describes a cached snapshot.
type Metadata struct {
	Timestamp    string `json:"timestamp"` // RFC 3339
	FileCount    *int64 `json:"file_count"`
	TotalSize    *int64 `json:"total_size"`
	LastModified string `json:"last_modified,omitempty"`
	CacheVersion int    `json:"cache_version"`

	// ValidatedCount is how many times this cache has been revalidated
	// and confirmed current.
	ValidatedCount int `json:"validated_count"`
}

// AnalyticsMetadata describes a cached analytics bundle and pins it to
// the exact snapshot cache it was computed from.
type AnalyticsMetadata struct {
	ComputedAt           string             `json:"computed_at"` // RFC 3339
	SourceScanType       string             `json:"source_scan_type"`
	SourceCacheTimestamp string             `json:"source_cache_timestamp"`
	SourceCacheVersion   int                `json:"source_cache_version"`
	SourceFileCount      *int64             `json:"source_file_count"`
	SourceTotalSize      *int64             `json:"source_total_size"`
	DerivedVersion       int                `json:"derived_version"`
	TimingsMS            map[string]float64 `json:"timings_ms"`
}

// Envelope is the on-disk cache shape: payload plus metadata in one
// file. Both halves stay raw so callers decode only what they need.
type Envelope struct {
	Data     json.RawMessage `json:"data"`
	Metadata json.RawMessage `json:"metadata"`
}

// Coordinator owns a cache directory.
type Coordinator struct {
	dir    string
	logger *slog.Logger
}

// New builds a coordinator over dir, creating it if missing.
func New(dir string, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating cache directory: %w", err)
	}

	return &Coordinator{dir: dir, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *Coordinator) Dir() string {
	return c.dir
}

// payloadPath is the cache file for a scan type.
func (c *Coordinator) payloadPath(scanType string) string {
	return filepath.Join(c.dir, scanType+"_cache.json")
}

// sidecarPath is the metadata sidecar for a scan type.
func (c *Coordinator) sidecarPath(scanType string) string {
	return filepath.Join(c.dir, scanType+"_cache.meta.json")
}

// Save writes a payload and its metadata. The main file is written via
// a temporary file and rename so readers never observe a partial write.
// The sidecar is best-effort: if it fails the main write still counts.
func (c *Coordinator) Save(scanType string, data, metadata any) error {
	start := time.Now()

	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache: encoding %s payload: %w", scanType, err)
	}

	rawMeta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("cache: encoding %s metadata: %w", scanType, err)
	}

	envelope, err := json.Marshal(Envelope{Data: rawData, Metadata: rawMeta})
	if err != nil {
		return fmt.Errorf("cache: encoding %s envelope: %w", scanType, err)
	}

	if err := atomicWrite(c.payloadPath(scanType), envelope); err != nil {
		return fmt.Errorf("cache: writing %s: %w", scanType, err)
	}

	if err := atomicWrite(c.sidecarPath(scanType), rawMeta); err != nil {
		c.logger.Warn("cache sidecar write failed",
			slog.String("scan_type", scanType),
			slog.String("error", err.Error()),
		)
	}

	c.logger.Info("cache saved",
		slog.String("scan_type", scanType),
		slog.Int("size_bytes", len(envelope)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return nil
}

// tempPath is the staging file for an atomic write: the target's
// extension replaced with .tmp.
func tempPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".tmp"
}

// atomicWrite writes data to path through a temporary file and rename.
func atomicWrite(path string, data []byte) error {
	tmp := tempPath(path)

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}

// Load reads the cache envelope for a scan type. Returns (nil, nil) if
// the cache does not exist. A corrupt cache file is deleted and treated
// as absent.
func (c *Coordinator) Load(scanType string) (*Envelope, error) {
	path := c.payloadPath(scanType)

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("cache: reading %s: %w", scanType, err)
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Error("corrupt cache, deleting",
			slog.String("scan_type", scanType),
			slog.String("error", err.Error()),
		)

		os.Remove(path)
		os.Remove(c.sidecarPath(scanType))

		return nil, nil
	}

	return &envelope, nil
}

// LoadMetadata decodes cache metadata into dest without reading the
// payload when the sidecar is available. Returns false if neither the
// sidecar nor the cache file yields metadata.
func (c *Coordinator) LoadMetadata(scanType string, dest any) (bool, error) {
	raw, err := os.ReadFile(c.sidecarPath(scanType))
	if err == nil {
		if json.Unmarshal(raw, dest) == nil {
			return true, nil
		}
		// Unparsable sidecar: fall through to the envelope.
	}

	envelope, err := c.Load(scanType)
	if err != nil {
		return false, err
	}

	if envelope == nil || len(envelope.Metadata) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(envelope.Metadata, dest); err != nil {
		return false, nil
	}

	return true, nil
}

// UpdateMetadata rewrites the stored metadata of an existing cache,
// keeping the payload. Used to bump the validated count after a
// successful revalidation.
func (c *Coordinator) UpdateMetadata(scanType string, metadata any) error {
	envelope, err := c.Load(scanType)
	if err != nil {
		return err
	}

	if envelope == nil {
		return fmt.Errorf("cache: no %s cache to update", scanType)
	}

	rawMeta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("cache: encoding %s metadata: %w", scanType, err)
	}

	envelope.Metadata = rawMeta

	rawEnvelope, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("cache: encoding %s envelope: %w", scanType, err)
	}

	if err := atomicWrite(c.payloadPath(scanType), rawEnvelope); err != nil {
		return fmt.Errorf("cache: writing %s: %w", scanType, err)
	}

	if err := atomicWrite(c.sidecarPath(scanType), rawMeta); err != nil {
		c.logger.Warn("cache sidecar write failed",
			slog.String("scan_type", scanType),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Clear deletes the cache and sidecar for scanType, or every cache in
// the directory when scanType is "".
func (c *Coordinator) Clear(scanType string) error {
	if scanType != "" {
		for _, path := range []string{c.payloadPath(scanType), c.sidecarPath(scanType)} {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("cache: clearing %s: %w", scanType, err)
			}
		}

		return nil
	}

	for _, pattern := range []string{"*_cache.json", "*_cache.meta.json"} {
		matches, err := filepath.Glob(filepath.Join(c.dir, pattern))
		if err != nil {
			return fmt.Errorf("cache: globbing %s: %w", pattern, err)
		}

		for _, path := range matches {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("cache: clearing %s: %w", path, err)
			}
		}
	}

	return nil
}
