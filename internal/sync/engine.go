// Package sync applies the Drive changes feed to the local index. After
// the initial crawl this is the steady-state update path: only what
// changed crosses the wire.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	drivev3 "google.golang.org/api/drive/v3"

	"github.com/driveindex/driveindex/internal/drive"
	"github.com/driveindex/driveindex/internal/index"
)

// Stage names, in pipeline order.
const (
	StageInitializing = "initializing"
	StageFetching     = "fetching"
	StageProcessing   = "processing"
	StageFinalizing   = "finalizing"
	StageComplete     = "complete"
	StageError        = "error"
)

// ErrNoContinuationToken means the index has never completed a full
// crawl, so there is no baseline to sync from.
var ErrNoContinuationToken = errors.New("sync: no continuation token, run a full crawl first")

// ErrTokenExpired wraps the remote's token rejection: the stored token
// is too old to resume from and only a full crawl recovers.
var ErrTokenExpired = errors.New("sync: continuation token expired")

// Remote is the slice of the drive client the sync engine needs.
type Remote interface {
	ListAllChanges(ctx context.Context, pageToken string) ([]*drivev3.Change, string, error)
}

// Progress is a point-in-time view of a running sync.
type Progress struct {
	Stage            string     `json:"stage"`
	ChangesFetched   int        `json:"changes_fetched"`
	ChangesProcessed int        `json:"changes_processed"`
	TotalChanges     int        `json:"total_changes"`
	FilesAdded       int        `json:"files_added"`
	FilesUpdated     int        `json:"files_updated"`
	FilesRemoved     int        `json:"files_removed"`
	Errors           int        `json:"errors"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	Message          string     `json:"message"`
	ProgressPct      float64    `json:"progress_pct"`
}

// pct maps the stage onto a 0-100 scale: fetching parks at 30 (the
// change count is unknown until the feed drains), processing covers
// 30-90, finalizing parks at 90.
func (p *Progress) pct() float64 {
	switch p.Stage {
	case StageComplete:
		return 100.0
	case StageFetching:
		return 30.0
	case StageProcessing:
		if p.TotalChanges == 0 {
			return 50.0
		}

		return 30.0 + float64(p.ChangesProcessed)/float64(p.TotalChanges)*60
	case StageFinalizing:
		return 90.0
	}

	return 0.0
}

// ProgressFunc receives progress updates during a sync.
type ProgressFunc func(Progress)

// Engine applies change feeds to a store.
type Engine struct {
	remote    Remote
	store     *index.Store
	batchSize int
	logger    *slog.Logger
}

// NewEngine builds a sync engine. batchSize is the number of changes
// committed per transaction.
func NewEngine(remote Remote, store *index.Store, batchSize int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{remote: remote, store: store, batchSize: batchSize, logger: logger}
}

// Run performs one incremental sync: load the stored continuation token,
// drain the changes feed, apply every change (tombstone or upsert), then
// commit the new token. The token commits only after all changes are
// applied, so an interrupted sync replays its changes instead of losing
// them; every change application is idempotent, which makes the replay
// safe.
//
// Returns ErrNoContinuationToken if the index has no baseline and
// ErrTokenExpired if the remote rejected the stored token.
func (e *Engine) Run(ctx context.Context, callback ProgressFunc) (Progress, error) {
	started := time.Now().UTC()
	progress := Progress{Stage: StageInitializing, StartedAt: &started}

	emit := func() {
		progress.ProgressPct = progress.pct()
		if callback != nil {
			callback(progress)
		}
	}

	fail := func(err error) (Progress, error) {
		now := time.Now().UTC()
		progress.Stage = StageError
		progress.CompletedAt = &now
		progress.Message = "Error: " + err.Error()
		emit()

		e.logger.Error("sync failed",
			slog.String("error", err.Error()),
			slog.Int("changes_processed", progress.ChangesProcessed),
		)

		return progress, err
	}

	progress.Message = "Loading sync token..."
	emit()

	token, err := e.store.GetSyncState(ctx, index.KeyStartPageToken)
	if err != nil {
		return fail(fmt.Errorf("sync: %w", err))
	}

	if token == "" {
		return fail(ErrNoContinuationToken)
	}

	progress.Stage = StageFetching
	progress.Message = "Fetching changes from Google Drive..."
	emit()

	changes, newToken, err := e.remote.ListAllChanges(ctx, token)
	if err != nil {
		if errors.Is(err, drive.ErrChangeTokenExpired) {
			return fail(fmt.Errorf("%w: %v", ErrTokenExpired, err))
		}

		return fail(fmt.Errorf("sync: fetching changes: %w", err))
	}

	progress.TotalChanges = len(changes)
	progress.ChangesFetched = len(changes)
	e.logger.Info("sync fetch complete", slog.Int("changes", len(changes)))

	progress.Stage = StageProcessing
	progress.Message = "Processing changes..."
	emit()

	if err := e.processChanges(ctx, changes, newToken, &progress, emit); err != nil {
		return fail(err)
	}

	e.logger.Info("sync processing complete",
		slog.Int("added", progress.FilesAdded),
		slog.Int("updated", progress.FilesUpdated),
		slog.Int("removed", progress.FilesRemoved),
		slog.Int("errors", progress.Errors),
	)

	now := time.Now().UTC()
	progress.Stage = StageComplete
	progress.CompletedAt = &now

	if progress.TotalChanges == 0 {
		progress.Message = "No changes detected"
	} else {
		progress.Message = fmt.Sprintf("Sync complete: %d added, %d updated, %d removed",
			progress.FilesAdded, progress.FilesUpdated, progress.FilesRemoved)
	}

	emit()

	e.logger.Info("sync complete",
		slog.Int64("duration_ms", time.Since(started).Milliseconds()),
		slog.Int("changes", progress.TotalChanges),
		slog.Int("errors", progress.Errors),
	)

	return progress, nil
}

// processChanges applies all changes in commit batches and writes the
// new continuation token in the same transaction as the final batch.
func (e *Engine) processChanges(ctx context.Context, changes []*drivev3.Change, newToken string, progress *Progress, emit func()) error {
	batch, err := e.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	// Closure: batch is reassigned after each intermediate commit.
	defer func() { batch.Rollback() }()

	for i, change := range changes {
		if err := e.applyChange(batch, change, progress); err != nil {
			progress.Errors++

			if logErr := batch.LogFileError(change.FileId, "sync", err.Error()); logErr != nil {
				return fmt.Errorf("sync: %w", logErr)
			}

			e.logger.Error("sync change failed",
				slog.String("file_id", change.FileId),
				slog.String("error", err.Error()),
			)
		}

		progress.ChangesProcessed = i + 1

		if (i+1)%e.batchSize == 0 && i+1 < len(changes) {
			if err := batch.Commit(); err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			progress.Message = fmt.Sprintf("Processed %d/%d changes...", i+1, progress.TotalChanges)
			emit()

			if batch, err = e.store.BeginBatch(ctx); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
		}
	}

	progress.Stage = StageFinalizing
	progress.Message = "Saving sync state..."
	emit()

	if err := batch.SetSyncState(index.KeyStartPageToken, newToken); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := batch.SetSyncState(index.KeyLastSyncTime,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	return nil
}

// applyChange applies one change: a removal tombstones the record and
// drops its edges, anything else upserts. The added/updated split is
// decided by whether the record existed before the upsert.
func (e *Engine) applyChange(batch *index.Batch, change *drivev3.Change, progress *Progress) error {
	if change.Removed {
		if change.FileId == "" {
			return nil
		}

		if err := batch.MarkRemoved(change.FileId); err != nil {
			return err
		}

		progress.FilesRemoved++

		return nil
	}

	if change.File == nil {
		return nil
	}

	existing, err := batch.FileExists(change.FileId)
	if err != nil {
		return err
	}

	rec, err := index.RecordFromAPI(change.File)
	if err != nil {
		return err
	}

	if err := batch.UpsertFile(rec); err != nil {
		return err
	}

	if existing {
		progress.FilesUpdated++
	} else {
		progress.FilesAdded++
	}

	return nil
}

// CanSync reports whether an incremental sync is possible (a
// continuation token exists).
func CanSync(ctx context.Context, store *index.Store) (bool, error) {
	token, err := store.GetSyncState(ctx, index.KeyStartPageToken)
	if err != nil {
		return false, err
	}

	return token != "", nil
}

// Info describes the last sync state.
type Info struct {
	LastSyncTime      string `json:"last_sync_time"`
	LastFullCrawlTime string `json:"last_full_crawl_time"`
	HasToken          bool   `json:"has_token"`
}

// LastSyncInfo returns sync bookkeeping from the store.
func LastSyncInfo(ctx context.Context, store *index.Store) (*Info, error) {
	lastSync, err := store.GetSyncState(ctx, index.KeyLastSyncTime)
	if err != nil {
		return nil, err
	}

	lastCrawl, err := store.GetSyncState(ctx, index.KeyLastFullCrawlTime)
	if err != nil {
		return nil, err
	}

	token, err := store.GetSyncState(ctx, index.KeyStartPageToken)
	if err != nil {
		return nil, err
	}

	return &Info{
		LastSyncTime:      lastSync,
		LastFullCrawlTime: lastCrawl,
		HasToken:          token != "",
	}, nil
}
