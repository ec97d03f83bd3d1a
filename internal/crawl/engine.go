// Package crawl builds the local index from scratch by enumerating the
// whole drive. A crawl is idempotent: re-running converges on the same
// state because every record is an upsert.
package crawl

import (
	"context"
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

// fetchEstimate is the assumed drive size used to scale the fetching
// stage percentage before the true total is known.
const fetchEstimate = 5000

// Remote is the slice of the drive client the crawler needs.
type Remote interface {
	ListAllFiles(ctx context.Context, query, fields string, progress drive.ProgressFunc) ([]*drivev3.File, error)
	GetStartPageToken(ctx context.Context) (string, error)
}

// Progress is a point-in-time view of a running crawl.
type Progress struct {
	Stage          string     `json:"stage"`
	FilesFetched   int        `json:"files_fetched"`
	FilesProcessed int        `json:"files_processed"`
	TotalFiles     int        `json:"total_files"`
	PagesFetched   int        `json:"pages_fetched"`
	Errors         int        `json:"errors"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Message        string     `json:"message"`
	ProgressPct    float64    `json:"progress_pct"`
}

// pct maps the stage and counters onto a 0-100 scale: fetching covers
// 0-40 (scaled against an estimated drive size until the real total is
// known), processing 40-90, finalizing parks at 90.
func (p *Progress) pct() float64 {
	switch p.Stage {
	case StageComplete:
		return 100.0
	case StageFetching:
		return min(40.0, float64(p.FilesFetched)/fetchEstimate*40)
	case StageProcessing:
		if p.TotalFiles == 0 {
			return 50.0
		}

		return 40.0 + float64(p.FilesProcessed)/float64(p.TotalFiles)*50
	case StageFinalizing:
		return 90.0
	}

	return 0.0
}

// ProgressFunc receives progress updates during a crawl. The Progress
// value is a copy; callbacks may retain it.
type ProgressFunc func(Progress)

// Engine runs full crawls against a store.
type Engine struct {
	remote    Remote
	store     *index.Store
	batchSize int
	logger    *slog.Logger
}

// NewEngine builds a crawl engine. batchSize is the number of records
// committed per transaction during the processing stage.
func NewEngine(remote Remote, store *index.Store, batchSize int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{remote: remote, store: store, batchSize: batchSize, logger: logger}
}

// Run performs a full crawl: enumerate every file, upsert all records
// and their parent edges in batches, then fetch and store the changes
// continuation token. The token is fetched after enumeration, so changes
// racing the crawl are replayed by the next sync rather than lost.
//
// Per-record failures are logged to the error table and skipped; they do
// not abort the crawl. The returned Progress carries the final counters
// even when an error is returned.
func (e *Engine) Run(ctx context.Context, includeTrashed bool, callback ProgressFunc) (Progress, error) {
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

		e.logger.Error("crawl failed",
			slog.String("error", err.Error()),
			slog.Int("files_processed", progress.FilesProcessed),
		)

		return progress, err
	}

	progress.Message = "Initializing database..."
	emit()

	progress.Stage = StageFetching
	progress.Message = "Fetching files from Google Drive..."
	emit()

	query := drive.QueryNotTrashed
	if includeTrashed {
		query = ""
	}

	files, err := e.remote.ListAllFiles(ctx, query, drive.FieldsFull,
		func(fileCount, pageCount int) {
			progress.FilesFetched = fileCount
			progress.PagesFetched = pageCount
			progress.Message = fmt.Sprintf("Fetched %d files (%d pages)...", fileCount, pageCount)
			emit()
		})
	if err != nil {
		return fail(fmt.Errorf("crawl: enumerating files: %w", err))
	}

	progress.TotalFiles = len(files)
	e.logger.Info("crawl fetch complete",
		slog.Int("files", len(files)),
		slog.Int("pages", progress.PagesFetched),
	)

	progress.Stage = StageProcessing
	progress.Message = "Processing files into database..."
	emit()

	if err := e.processFiles(ctx, files, &progress, emit); err != nil {
		return fail(err)
	}

	e.logger.Info("crawl processing complete",
		slog.Int("files_processed", progress.FilesProcessed),
		slog.Int("errors", progress.Errors),
	)

	progress.Stage = StageFinalizing
	progress.Message = "Getting sync token..."
	emit()

	token, err := e.remote.GetStartPageToken(ctx)
	if err != nil {
		return fail(fmt.Errorf("crawl: fetching start page token: %w", err))
	}

	if err := e.finalize(ctx, token, progress.TotalFiles); err != nil {
		return fail(err)
	}

	now := time.Now().UTC()
	progress.Stage = StageComplete
	progress.CompletedAt = &now
	progress.Message = fmt.Sprintf("Crawl complete: %d files indexed", progress.TotalFiles)
	emit()

	e.logger.Info("crawl complete",
		slog.Int64("duration_ms", time.Since(started).Milliseconds()),
		slog.Int("files", progress.TotalFiles),
		slog.Int("errors", progress.Errors),
	)

	return progress, nil
}

// processFiles upserts all records in commit batches. A record that
// fails to normalize or write is logged and skipped.
func (e *Engine) processFiles(ctx context.Context, files []*drivev3.File, progress *Progress, emit func()) error {
	batch, err := e.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	// Closure: batch is reassigned after each intermediate commit.
	defer func() { batch.Rollback() }()

	for i, f := range files {
		if err := e.upsertOne(batch, f); err != nil {
			progress.Errors++

			fileID := ""
			if f != nil {
				fileID = f.Id
			}

			if logErr := batch.LogFileError(fileID, "crawl", err.Error()); logErr != nil {
				return fmt.Errorf("crawl: %w", logErr)
			}

			e.logger.Error("crawl record failed",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()),
			)
		}

		progress.FilesProcessed = i + 1

		if (i+1)%e.batchSize == 0 {
			if err := batch.Commit(); err != nil {
				return fmt.Errorf("crawl: %w", err)
			}

			progress.Message = fmt.Sprintf("Processed %d/%d files...", i+1, progress.TotalFiles)
			emit()

			if batch, err = e.store.BeginBatch(ctx); err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	return nil
}

func (e *Engine) upsertOne(batch *index.Batch, f *drivev3.File) error {
	rec, err := index.RecordFromAPI(f)
	if err != nil {
		return err
	}

	return batch.UpsertFile(rec)
}

// finalize stores the continuation token and crawl bookkeeping in one
// transaction.
func (e *Engine) finalize(ctx context.Context, token string, fileCount int) error {
	batch, err := e.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	defer batch.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	for _, kv := range []struct{ key, value string }{
		{index.KeyStartPageToken, token},
		{index.KeyLastFullCrawlTime, now},
		{index.KeyLastSyncTime, now},
		{index.KeyFileCount, fmt.Sprintf("%d", fileCount)},
	} {
		if err := batch.SetSyncState(kv.key, kv.value); err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	return nil
}

// NeedsFullCrawl reports whether the index has never completed a crawl:
// no stored continuation token means incremental sync has no baseline.
func NeedsFullCrawl(ctx context.Context, store *index.Store) (bool, error) {
	token, err := store.GetSyncState(ctx, index.KeyStartPageToken)
	if err != nil {
		return true, err
	}

	return token == "", nil
}

// Info describes the last completed crawl, or nil if none has run.
type Info struct {
	LastFullCrawlTime string `json:"last_full_crawl_time"`
	LastSyncTime      string `json:"last_sync_time"`
	FileCount         int64  `json:"file_count"`
}

// LastCrawlInfo returns bookkeeping from the last completed crawl, or
// (nil, nil) if the index has never been crawled.
func LastCrawlInfo(ctx context.Context, store *index.Store) (*Info, error) {
	lastCrawl, err := store.GetSyncState(ctx, index.KeyLastFullCrawlTime)
	if err != nil {
		return nil, err
	}

	if lastCrawl == "" {
		return nil, nil
	}

	lastSync, err := store.GetSyncState(ctx, index.KeyLastSyncTime)
	if err != nil {
		return nil, err
	}

	count, err := store.FileCount(ctx, false)
	if err != nil {
		return nil, err
	}

	return &Info{
		LastFullCrawlTime: lastCrawl,
		LastSyncTime:      lastSync,
		FileCount:         count,
	}, nil
}
