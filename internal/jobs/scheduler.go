package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/crawl"
	"github.com/driveindex/driveindex/internal/index"
	"github.com/driveindex/driveindex/internal/sync"
)

// Sync result types returned by SmartSync.
const (
	ResultFullCrawl       = "full_crawl"
	ResultIncrementalSync = "incremental_sync"
)

// SyncResult reports which path SmartSync took and its final progress.
type SyncResult struct {
	Type      string          `json:"type"`
	Crawl     *crawl.Progress `json:"crawl_progress,omitempty"`
	Sync      *sync.Progress  `json:"sync_progress,omitempty"`
	Recovered bool            `json:"recovered,omitempty"`
}

// Scheduler decides between full crawls and incremental syncs, keeps
// the snapshot cache in step with the index, and triggers analytics
// recomputes.
type Scheduler struct {
	store     *index.Store
	crawler   *crawl.Engine
	syncer    *sync.Engine
	caches    *cache.Coordinator
	analytics *AnalyticsRunner
	registry  *Registry
	logger    *slog.Logger
}

// NewScheduler wires the engines together.
func NewScheduler(store *index.Store, crawler *crawl.Engine, syncer *sync.Engine,
	caches *cache.Coordinator, analyticsRunner *AnalyticsRunner,
	registry *Registry, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		store:     store,
		crawler:   crawler,
		syncer:    syncer,
		caches:    caches,
		analytics: analyticsRunner,
		registry:  registry,
		logger:    logger,
	}
}

// SmartSync converges the index with the remote: a full crawl when
// forced or when the index has no baseline, an incremental sync
// otherwise. An expired continuation token during sync falls back to a
// full crawl automatically. After converging, the snapshot cache is
// rebuilt and an analytics recompute is kicked off.
func (s *Scheduler) SmartSync(ctx context.Context, force bool, crawlCB crawl.ProgressFunc, syncCB sync.ProgressFunc) (*SyncResult, error) {
	needsCrawl := force

	if !needsCrawl {
		var err error

		needsCrawl, err = crawl.NeedsFullCrawl(ctx, s.store)
		if err != nil {
			return nil, err
		}
	}

	if needsCrawl {
		s.logger.Info("smart sync: running full crawl")

		progress, err := s.crawler.Run(ctx, false, crawlCB)
		if err != nil {
			return nil, err
		}

		result := &SyncResult{Type: ResultFullCrawl, Crawl: &progress}

		return result, s.afterConverge(ctx)
	}

	s.logger.Info("smart sync: running incremental sync")

	progress, err := s.syncer.Run(ctx, syncCB)
	if err != nil {
		if !errors.Is(err, sync.ErrTokenExpired) {
			return nil, err
		}

		// The stored token aged out on the remote side. The only
		// recovery is rebuilding the baseline.
		s.logger.Warn("continuation token expired, falling back to full crawl")

		crawlProgress, crawlErr := s.crawler.Run(ctx, false, crawlCB)
		if crawlErr != nil {
			return nil, crawlErr
		}

		result := &SyncResult{Type: ResultFullCrawl, Crawl: &crawlProgress, Recovered: true}

		return result, s.afterConverge(ctx)
	}

	result := &SyncResult{Type: ResultIncrementalSync, Sync: &progress}

	return result, s.afterConverge(ctx)
}

// afterConverge refreshes the snapshot cache from the index and starts
// an analytics recompute when needed.
func (s *Scheduler) afterConverge(ctx context.Context) error {
	if err := s.RefreshSnapshotCache(ctx); err != nil {
		return err
	}

	s.analytics.StartIfNeeded(ctx)

	return nil
}

// RefreshSnapshotCache rebuilds the denormalized snapshot from the
// index and stores it as the full-scan cache.
func (s *Scheduler) RefreshSnapshotCache(ctx context.Context) error {
	snap, err := s.store.BuildSnapshot(ctx)
	if err != nil {
		return err
	}

	fileCount := int64(snap.Stats.TotalFiles)
	totalSize := snap.Stats.TotalSize

	meta := cache.Metadata{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		FileCount:    &fileCount,
		TotalSize:    &totalSize,
		CacheVersion: 1,
	}

	return s.caches.Save(cache.ScanFull, snap, meta)
}

// Watch subscribes to cache directory changes and recomputes analytics
// whenever the snapshot cache is rewritten. Blocks until the context is
// canceled.
func (s *Scheduler) Watch(ctx context.Context, watcher *cache.Watcher) {
	go watcher.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case scanType, ok := <-watcher.Events():
			if !ok {
				return
			}

			if scanType != cache.ScanFull {
				continue
			}

			s.logger.Info("snapshot cache changed, checking analytics")
			s.analytics.StartIfNeeded(ctx)
		}
	}
}

// StartBackgroundSync runs SmartSync as a tracked background job. The
// returned job carries live progress. Only one index-writing job runs
// at a time; a second start while one is active returns the running
// job instead of creating a new one.
func (s *Scheduler) StartBackgroundSync(ctx context.Context, force bool) *Job {
	job := s.registry.Create(KindSync)

	holder, ok := s.registry.AcquireWriter(job.ID)
	if !ok {
		s.registry.Fail(job.ID, errors.New("jobs: an index update is already running"))

		if running := s.registry.Get(holder); running != nil {
			return running
		}

		return s.registry.Get(job.ID)
	}

	s.registry.Update(job.ID, func(j *Job) { j.Status = StatusRunning })

	go func() {
		defer s.registry.ReleaseWriter(job.ID)

		result, err := s.SmartSync(ctx, force,
			func(p crawl.Progress) {
				s.registry.Update(job.ID, func(j *Job) { j.Progress = p })
			},
			func(p sync.Progress) {
				s.registry.Update(job.ID, func(j *Job) { j.Progress = p })
			},
		)
		if err != nil {
			s.registry.Fail(job.ID, err)
			return
		}

		s.registry.Complete(job.ID, result)
	}()

	return s.registry.Get(job.ID)
}
