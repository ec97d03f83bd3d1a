package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"
)

// testLogger returns a debug-level logger that writes to t.Log.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(&testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	c, err := New(t.TempDir(), testLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return c
}

func testMetadata(ts string, fileCount int64) *Metadata {
	return &Metadata{
		Timestamp:    ts,
		FileCount:    &fileCount,
		CacheVersion: 1,
	}
}

type testPayload struct {
	Value string `json:"value"`
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	meta := testMetadata("2026-08-24T10:00:00Z", 42)

	if err := c.Save(ScanFull, testPayload{Value: "hello"}, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	envelope, err := c.Load(ScanFull)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if envelope == nil {
		t.Fatal("Load returned nil after Save")
	}

	var payload testPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}

	if payload.Value != "hello" {
		t.Errorf("payload = %+v", payload)
	}

	var got Metadata
	if err := json.Unmarshal(envelope.Metadata, &got); err != nil {
		t.Fatalf("decoding metadata: %v", err)
	}

	if got.Timestamp != meta.Timestamp || *got.FileCount != 42 {
		t.Errorf("metadata = %+v, want %+v", got, meta)
	}
}

func TestLoadMissingIsNil(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)

	envelope, err := c.Load(ScanQuick)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if envelope != nil {
		t.Errorf("got %+v for a missing cache, want nil", envelope)
	}
}

func TestLoadCorruptDeletesAndReportsAbsent(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	path := c.payloadPath(ScanFull)

	if err := os.WriteFile(path, []byte("not json {"), 0o644); err != nil {
		t.Fatalf("writing corrupt cache: %v", err)
	}

	envelope, err := c.Load(ScanFull)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if envelope != nil {
		t.Errorf("corrupt cache returned %+v, want nil", envelope)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt cache file survived the load")
	}
}

func TestLoadMetadataUsesSidecar(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	meta := testMetadata("2026-08-24T10:00:00Z", 7)

	if err := c.Save(ScanFull, testPayload{Value: "x"}, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got Metadata

	ok, err := c.LoadMetadata(ScanFull, &got)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}

	if !ok || got.Timestamp != meta.Timestamp {
		t.Errorf("ok=%v metadata=%+v", ok, got)
	}
}

func TestLoadMetadataFallsBackToEnvelope(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	meta := testMetadata("2026-08-24T10:00:00Z", 7)

	if err := c.Save(ScanFull, testPayload{Value: "x"}, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A lost sidecar must not hide the metadata inside the envelope.
	if err := os.Remove(c.sidecarPath(ScanFull)); err != nil {
		t.Fatalf("removing sidecar: %v", err)
	}

	var got Metadata

	ok, err := c.LoadMetadata(ScanFull, &got)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}

	if !ok || got.Timestamp != meta.Timestamp {
		t.Errorf("ok=%v metadata=%+v", ok, got)
	}
}

func TestLoadMetadataMissing(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)

	var got Metadata

	ok, err := c.LoadMetadata(ScanFull, &got)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}

	if ok {
		t.Error("LoadMetadata reported metadata for a missing cache")
	}
}

func TestUpdateMetadataKeepsPayload(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	meta := testMetadata("2026-08-24T10:00:00Z", 7)

	if err := c.Save(ScanFull, testPayload{Value: "keep-me"}, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	meta.ValidatedCount = 3

	if err := c.UpdateMetadata(ScanFull, meta); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	envelope, err := c.Load(ScanFull)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var payload testPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}

	if payload.Value != "keep-me" {
		t.Errorf("payload changed under a metadata update: %+v", payload)
	}

	var got Metadata
	if err := json.Unmarshal(envelope.Metadata, &got); err != nil {
		t.Fatalf("decoding metadata: %v", err)
	}

	if got.ValidatedCount != 3 {
		t.Errorf("validated count = %d, want 3", got.ValidatedCount)
	}
}

func TestUpdateMetadataMissingCacheFails(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)

	if err := c.UpdateMetadata(ScanFull, testMetadata(time.Now().Format(time.RFC3339), 1)); err == nil {
		t.Error("UpdateMetadata succeeded with no cache on disk")
	}
}

func TestClearOneType(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	meta := testMetadata("2026-08-24T10:00:00Z", 1)

	for _, scanType := range []string{ScanQuick, ScanFull} {
		if err := c.Save(scanType, testPayload{Value: scanType}, meta); err != nil {
			t.Fatalf("Save %s: %v", scanType, err)
		}
	}

	if err := c.Clear(ScanQuick); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if envelope, _ := c.Load(ScanQuick); envelope != nil {
		t.Error("cleared cache still loads")
	}

	if envelope, _ := c.Load(ScanFull); envelope == nil {
		t.Error("clearing one type removed another")
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t)
	meta := testMetadata("2026-08-24T10:00:00Z", 1)

	for _, scanType := range []string{ScanQuick, ScanFull, ScanFullAnalytics} {
		if err := c.Save(scanType, testPayload{Value: scanType}, meta); err != nil {
			t.Fatalf("Save %s: %v", scanType, err)
		}
	}

	if err := c.Clear(""); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	for _, scanType := range []string{ScanQuick, ScanFull, ScanFullAnalytics} {
		if envelope, _ := c.Load(scanType); envelope != nil {
			t.Errorf("%s survived a clear-all", scanType)
		}
	}
}

func TestTempPathReplacesExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"full_scan_cache.json", "full_scan_cache.tmp"},
		{"full_scan_cache.meta.json", "full_scan_cache.meta.tmp"},
		{"/tmp/caches/quick_scan_cache.json", "/tmp/caches/quick_scan_cache.tmp"},
	}

	for _, tt := range tests {
		if got := tempPath(tt.path); got != tt.want {
			t.Errorf("tempPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
