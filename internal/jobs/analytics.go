package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/driveindex/driveindex/internal/analytics"
	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/snapshot"
)

// Analytics compute states.
const (
	AnalyticsMissing = "missing"
	AnalyticsRunning = "running"
	AnalyticsReady   = "ready"
	AnalyticsError   = "error"
)

// AnalyticsStatus is a point-in-time view of the analytics worker.
type AnalyticsStatus struct {
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// AnalyticsRunner computes analytics bundles from the cached snapshot
// in the background. There is at most one compute at a time: starting
// while one runs is a no-op.
type AnalyticsRunner struct {
	caches *cache.Coordinator
	logger *slog.Logger

	mu     sync.Mutex
	status AnalyticsStatus
}

// NewAnalyticsRunner builds a runner over the given cache coordinator.
func NewAnalyticsRunner(caches *cache.Coordinator, logger *slog.Logger) *AnalyticsRunner {
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalyticsRunner{
		caches: caches,
		logger: logger,
		status: AnalyticsStatus{Status: AnalyticsMissing},
	}
}

// Status returns the current worker state.
func (r *AnalyticsRunner) Status() AnalyticsStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// StartIfNeeded kicks off a background compute when the snapshot cache
// exists and the analytics cache is missing or no longer matches it.
// Returns true if a compute was started.
func (r *AnalyticsRunner) StartIfNeeded(ctx context.Context) bool {
	r.mu.Lock()

	if r.status.Status == AnalyticsRunning {
		r.mu.Unlock()
		return false
	}

	valid, sourceMeta, err := r.analyticsUpToDate()
	if err != nil {
		r.logger.Error("analytics validity check failed", slog.String("error", err.Error()))
		r.mu.Unlock()

		return false
	}

	if valid {
		r.status = AnalyticsStatus{Status: AnalyticsReady}
		r.mu.Unlock()

		return false
	}

	if sourceMeta == nil {
		// No snapshot to compute from.
		r.status = AnalyticsStatus{Status: AnalyticsMissing}
		r.mu.Unlock()

		return false
	}

	started := time.Now().UTC()
	r.status = AnalyticsStatus{Status: AnalyticsRunning, StartedAt: &started}
	r.mu.Unlock()

	go r.run(ctx, sourceMeta)

	return true
}

// analyticsUpToDate reports whether a cached bundle matches the current
// snapshot cache, returning the snapshot metadata when one exists.
// Caller holds the mutex.
func (r *AnalyticsRunner) analyticsUpToDate() (bool, *cache.Metadata, error) {
	var sourceMeta cache.Metadata

	haveSource, err := r.caches.LoadMetadata(cache.ScanFull, &sourceMeta)
	if err != nil {
		return false, nil, err
	}

	if !haveSource {
		return false, nil, nil
	}

	var analyticsMeta cache.AnalyticsMetadata

	haveAnalytics, err := r.caches.LoadMetadata(cache.ScanFullAnalytics, &analyticsMeta)
	if err != nil {
		return false, &sourceMeta, err
	}

	if !haveAnalytics || analyticsMeta.DerivedVersion != analytics.DerivedVersion {
		return false, &sourceMeta, nil
	}

	return cache.AnalyticsValid(&analyticsMeta, &sourceMeta), &sourceMeta, nil
}

// run executes one compute: load the snapshot payload, derive all
// views, and persist the bundle pinned to the source metadata.
func (r *AnalyticsRunner) run(ctx context.Context, sourceMeta *cache.Metadata) {
	finish := func(err error) {
		now := time.Now().UTC()

		r.mu.Lock()
		defer r.mu.Unlock()

		r.status.CompletedAt = &now

		if err != nil {
			r.status.Status = AnalyticsError
			r.status.Error = err.Error()
			r.logger.Error("analytics compute failed", slog.String("error", err.Error()))

			return
		}

		r.status.Status = AnalyticsReady
		r.status.Error = ""
	}

	envelope, err := r.caches.Load(cache.ScanFull)
	if err != nil {
		finish(err)
		return
	}

	if envelope == nil {
		finish(fmt.Errorf("jobs: snapshot cache disappeared before analytics compute"))
		return
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(envelope.Data, &snap); err != nil {
		finish(fmt.Errorf("jobs: decoding snapshot payload: %w", err))
		return
	}

	bundle, timings, err := analytics.Compute(ctx, &snap, time.Now().UTC())
	if err != nil {
		finish(err)
		return
	}

	meta := cache.AnalyticsMetadata{
		ComputedAt:           time.Now().UTC().Format(time.RFC3339),
		SourceScanType:       cache.ScanFull,
		SourceCacheTimestamp: sourceMeta.Timestamp,
		SourceCacheVersion:   sourceMeta.CacheVersion,
		SourceFileCount:      sourceMeta.FileCount,
		SourceTotalSize:      sourceMeta.TotalSize,
		DerivedVersion:       bundle.DerivedVersion,
		TimingsMS:            timings,
	}

	if err := r.caches.Save(cache.ScanFullAnalytics, bundle, meta); err != nil {
		finish(err)
		return
	}

	r.logger.Info("analytics compute complete",
		slog.Float64("total_ms", timings["analytics.total"]),
	)

	finish(nil)
}
