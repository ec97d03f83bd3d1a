// Package service is the transport-agnostic operation surface: every
// exposed operation of the system is a method here. A transport layer
// maps these 1-1; the CLI calls them directly.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	drivev3 "google.golang.org/api/drive/v3"

	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/config"
	"github.com/driveindex/driveindex/internal/crawl"
	"github.com/driveindex/driveindex/internal/drive"
	"github.com/driveindex/driveindex/internal/index"
	"github.com/driveindex/driveindex/internal/jobs"
	"github.com/driveindex/driveindex/internal/snapshot"
	syncengine "github.com/driveindex/driveindex/internal/sync"
)

// Remote is the slice of the drive client the service needs directly.
// The crawl and sync engines hold their own narrower views.
type Remote interface {
	About(ctx context.Context) (*drivev3.About, error)
	ListPage(ctx context.Context, query, fields, pageToken string) (*drive.Page, error)
	CheckRecentlyModified(ctx context.Context, since time.Time, limit int64) (bool, error)
}

// Service bundles the stores, engines, and coordinators behind the
// operation surface.
type Service struct {
	cfg       *config.Config
	store     *index.Store
	remote    Remote
	caches    *cache.Coordinator
	scheduler *jobs.Scheduler
	analytics *jobs.AnalyticsRunner
	registry  *jobs.Registry
	logger    *slog.Logger
}

// New wires a service from its parts.
func New(cfg *config.Config, store *index.Store, remote Remote,
	caches *cache.Coordinator, scheduler *jobs.Scheduler,
	analyticsRunner *jobs.AnalyticsRunner, registry *jobs.Registry,
	logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:       cfg,
		store:     store,
		remote:    remote,
		caches:    caches,
		scheduler: scheduler,
		analytics: analyticsRunner,
		registry:  registry,
		logger:    logger,
	}
}

// Overview is the remote account summary: who the user is and how much
// storage is in use.
type Overview struct {
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
	StorageLimit int64  `json:"storage_limit"`
	StorageUsage int64  `json:"storage_usage"`
	UsageInDrive int64  `json:"usage_in_drive"`
	UsageInTrash int64  `json:"usage_in_trash"`
}

// GetOverview fetches the account quota and user identity.
func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	about, err := s.remote.About(ctx)
	if err != nil {
		return nil, err
	}

	overview := &Overview{}

	if about.User != nil {
		overview.UserName = about.User.DisplayName
		overview.UserEmail = about.User.EmailAddress
	}

	if about.StorageQuota != nil {
		overview.StorageLimit = about.StorageQuota.Limit
		overview.StorageUsage = about.StorageQuota.Usage
		overview.UsageInDrive = about.StorageQuota.UsageInDrive
		overview.UsageInTrash = about.StorageQuota.UsageInDriveTrash
	}

	return overview, nil
}

// StartCrawl begins a full crawl as a background job. Without force, a
// snapshot cache that still passes validation short-circuits: the
// returned job completes immediately with the cached metadata.
func (s *Service) StartCrawl(ctx context.Context, force bool) (*jobs.Job, error) {
	if !force {
		var meta cache.Metadata

		have, err := s.caches.LoadMetadata(cache.ScanFull, &meta)
		if err != nil {
			return nil, err
		}

		if have && cache.ValidateWithRemote(ctx, s.remote, &meta, s.cfg.TTLFull(), time.Now().UTC(), s.logger) {
			s.bumpValidatedCount(cache.ScanFull, &meta)

			job := s.registry.Create(jobs.KindCrawl)
			s.registry.Complete(job.ID, map[string]any{
				"cache_hit": true,
				"metadata":  meta,
			})

			return s.registry.Get(job.ID), nil
		}
	}

	return s.scheduler.StartBackgroundSync(ctx, true), nil
}

// StartSync begins an incremental sync as a background job. Returns
// the sync package's ErrNoContinuationToken when the index has no
// baseline.
func (s *Service) StartSync(ctx context.Context) (*jobs.Job, error) {
	canSync, err := syncengine.CanSync(ctx, s.store)
	if err != nil {
		return nil, err
	}

	if !canSync {
		return nil, syncengine.ErrNoContinuationToken
	}

	return s.scheduler.StartBackgroundSync(ctx, false), nil
}

// GetJobStatus returns a snapshot of a background job.
func (s *Service) GetJobStatus(id string) (*jobs.Job, error) {
	job := s.registry.Get(id)
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	return job, nil
}

// GetCachedSnapshot returns the cached snapshot if it passes validity.
// A validation pass bumps the cache's validated count.
func (s *Service) GetCachedSnapshot(ctx context.Context) (*snapshot.Snapshot, *cache.Metadata, error) {
	envelope, err := s.caches.Load(cache.ScanFull)
	if err != nil {
		return nil, nil, err
	}

	if envelope == nil {
		return nil, nil, fmt.Errorf("snapshot cache: %w", ErrNotFound)
	}

	var meta cache.Metadata
	if err := jsonUnmarshal(envelope.Metadata, &meta); err != nil {
		return nil, nil, err
	}

	if !cache.ValidateWithRemote(ctx, s.remote, &meta, s.cfg.TTLFull(), time.Now().UTC(), s.logger) {
		return nil, nil, fmt.Errorf("snapshot cache stale: %w", ErrNotFound)
	}

	s.bumpValidatedCount(cache.ScanFull, &meta)

	var snap snapshot.Snapshot
	if err := jsonUnmarshal(envelope.Data, &snap); err != nil {
		return nil, nil, err
	}

	return &snap, &meta, nil
}

// GetIndexData builds a snapshot live from the store.
func (s *Service) GetIndexData(ctx context.Context) (*snapshot.Snapshot, error) {
	hasData, err := s.store.HasData(ctx)
	if err != nil {
		return nil, err
	}

	if !hasData {
		return nil, fmt.Errorf("index is empty: %w", ErrNotFound)
	}

	return s.store.BuildSnapshot(ctx)
}

// DuplicatesResult pairs the content-hash duplicate groups with the
// aggregate savings.
type DuplicatesResult struct {
	Groups  []index.DuplicateGroup `json:"groups"`
	Savings index.DuplicateSavings `json:"savings"`
}

// GetDuplicates finds content-hash duplicate groups in the store.
func (s *Service) GetDuplicates(ctx context.Context, limit int, minSize int64) (*DuplicatesResult, error) {
	groups, err := s.store.DuplicateGroups(ctx, minSize, limit)
	if err != nil {
		return nil, err
	}

	savings, err := s.store.TotalDuplicateSavings(ctx)
	if err != nil {
		return nil, err
	}

	return &DuplicatesResult{Groups: groups, Savings: savings}, nil
}

// GetDuplicateDetail expands one duplicate group's files with paths.
func (s *Service) GetDuplicateDetail(ctx context.Context, fileIDs []string) ([]index.DuplicateFileDetail, error) {
	return s.store.DuplicateDetail(ctx, fileIDs)
}

// GetHealth runs the index integrity checks.
func (s *Service) GetHealth(ctx context.Context) (*index.HealthResult, error) {
	return s.store.CheckHealth(ctx)
}

// GetFolderTree builds the folder hierarchy from the store.
func (s *Service) GetFolderTree(ctx context.Context, rootID string, maxDepth int) ([]*index.FolderNode, error) {
	return s.store.FolderTree(ctx, rootID, maxDepth)
}

// GetMimeBreakdown groups live index entries by MIME type.
func (s *Service) GetMimeBreakdown(ctx context.Context) (map[string]index.MimeStat, error) {
	return s.store.MimeBreakdown(ctx)
}

// GetLargeFiles returns the largest files in the store with paths.
func (s *Service) GetLargeFiles(ctx context.Context, limit int, minSize int64) ([]index.LargeFile, error) {
	return s.store.LargeFiles(ctx, limit, minSize)
}

// IndexStatus summarizes the local index state.
type IndexStatus struct {
	Exists            bool   `json:"exists"`
	FileCount         int64  `json:"file_count"`
	ErrorCount        int64  `json:"error_count"`
	LastFullCrawlTime string `json:"last_full_crawl_time,omitempty"`
	LastSyncTime      string `json:"last_sync_time,omitempty"`
	HasToken          bool   `json:"has_token"`
	NeedsFullCrawl    bool   `json:"needs_full_crawl"`
}

// GetIndexStatus reports crawl/sync bookkeeping and counters.
func (s *Service) GetIndexStatus(ctx context.Context) (*IndexStatus, error) {
	status := &IndexStatus{}

	count, err := s.store.FileCount(ctx, false)
	if err != nil {
		return nil, err
	}

	status.FileCount = count
	status.Exists = count > 0

	errorCount, err := s.store.FileErrorCount(ctx)
	if err != nil {
		return nil, err
	}

	status.ErrorCount = errorCount

	syncInfo, err := syncengine.LastSyncInfo(ctx, s.store)
	if err != nil {
		return nil, err
	}

	status.LastSyncTime = syncInfo.LastSyncTime
	status.LastFullCrawlTime = syncInfo.LastFullCrawlTime
	status.HasToken = syncInfo.HasToken
	status.NeedsFullCrawl = !syncInfo.HasToken

	return status, nil
}

// ClearCache removes one cache (payload and sidecar), or all caches
// when kind is empty.
func (s *Service) ClearCache(kind string) error {
	return s.caches.Clear(kind)
}

// ClearIndex truncates the store. Schema and migration bookkeeping
// survive.
func (s *Service) ClearIndex(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// SmartSync converges the index with the remote synchronously, choosing
// crawl or sync per the scheduler policy.
func (s *Service) SmartSync(ctx context.Context, force bool, crawlCB crawl.ProgressFunc, syncCB syncengine.ProgressFunc) (*jobs.SyncResult, error) {
	return s.scheduler.SmartSync(ctx, force, crawlCB, syncCB)
}

// bumpValidatedCount increments the validation counter on a cache that
// just passed revalidation. Best-effort: a failure only loses the
// counter bump.
func (s *Service) bumpValidatedCount(scanType string, meta *cache.Metadata) {
	meta.ValidatedCount++

	if err := s.caches.UpdateMetadata(scanType, meta); err != nil {
		s.logger.Warn("validated count update failed",
			slog.String("scan_type", scanType),
			slog.String("error", err.Error()),
		)
	}
}
