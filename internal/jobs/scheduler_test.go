package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	drivev3 "google.golang.org/api/drive/v3"

	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/crawl"
	"github.com/driveindex/driveindex/internal/drive"
	"github.com/driveindex/driveindex/internal/index"
	"github.com/driveindex/driveindex/internal/sync"
)

// fakeCrawlRemote serves a fixed enumeration.
type fakeCrawlRemote struct {
	files []*drivev3.File
	token string
	calls int
}

func (r *fakeCrawlRemote) ListAllFiles(_ context.Context, _, _ string, _ drive.ProgressFunc) ([]*drivev3.File, error) {
	r.calls++

	return r.files, nil
}

func (r *fakeCrawlRemote) GetStartPageToken(context.Context) (string, error) {
	return r.token, nil
}

// fakeSyncRemote serves a fixed change feed.
type fakeSyncRemote struct {
	changes  []*drivev3.Change
	newToken string
	err      error
	calls    int
}

func (r *fakeSyncRemote) ListAllChanges(context.Context, string) ([]*drivev3.Change, string, error) {
	r.calls++

	if r.err != nil {
		return nil, "", r.err
	}

	return r.changes, r.newToken, nil
}

type schedulerFixture struct {
	store     *index.Store
	caches    *cache.Coordinator
	crawlRem  *fakeCrawlRemote
	syncRem   *fakeSyncRemote
	runner    *AnalyticsRunner
	scheduler *Scheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	logger := testLogger(t)

	store, err := index.Open(context.Background(), filepath.Join(t.TempDir(), "index.db"), logger)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}

	t.Cleanup(func() { store.Close() })

	caches, err := cache.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	crawlRem := &fakeCrawlRemote{
		files: []*drivev3.File{
			{Id: "root", Name: "My Drive", MimeType: index.MimeFolder},
			{Id: "f1", Name: "a.txt", MimeType: "text/plain", Size: 10, Parents: []string{"root"}},
		},
		token: "tok-1",
	}
	syncRem := &fakeSyncRemote{newToken: "tok-2"}

	registry := NewRegistry()
	runner := NewAnalyticsRunner(caches, logger)
	crawler := crawl.NewEngine(crawlRem, store, 500, logger)
	syncer := sync.NewEngine(syncRem, store, 100, logger)

	return &schedulerFixture{
		store:     store,
		caches:    caches,
		crawlRem:  crawlRem,
		syncRem:   syncRem,
		runner:    runner,
		scheduler: NewScheduler(store, crawler, syncer, caches, runner, registry, logger),
	}
}

// settle waits for any background analytics compute to finish so it
// cannot log into a completed test.
func (f *schedulerFixture) settle(t *testing.T) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		if f.runner.Status().Status != AnalyticsRunning {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("analytics compute never settled")
}

func TestSmartSyncCrawlsWithoutBaseline(t *testing.T) {
	t.Parallel()

	f := newSchedulerFixture(t)
	defer f.settle(t)

	result, err := f.scheduler.SmartSync(context.Background(), false, nil, nil)
	if err != nil {
		t.Fatalf("SmartSync: %v", err)
	}

	if result.Type != ResultFullCrawl || result.Crawl == nil {
		t.Errorf("result = %+v, want a full crawl", result)
	}

	if f.syncRem.calls != 0 {
		t.Error("sync remote consulted before a baseline existed")
	}

	// Converging rebuilds the snapshot cache.
	envelope, err := f.caches.Load(cache.ScanFull)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if envelope == nil {
		t.Error("no snapshot cache after converging")
	}
}

func TestSmartSyncIncrementalWithBaseline(t *testing.T) {
	t.Parallel()

	f := newSchedulerFixture(t)
	defer f.settle(t)

	ctx := context.Background()

	if _, err := f.scheduler.SmartSync(ctx, false, nil, nil); err != nil {
		t.Fatalf("baseline SmartSync: %v", err)
	}

	f.settle(t)

	f.syncRem.changes = []*drivev3.Change{
		{FileId: "f2", File: &drivev3.File{Id: "f2", Name: "b.txt", MimeType: "text/plain", Size: 20}},
	}
	f.syncRem.newToken = "tok-3"

	result, err := f.scheduler.SmartSync(ctx, false, nil, nil)
	if err != nil {
		t.Fatalf("incremental SmartSync: %v", err)
	}

	if result.Type != ResultIncrementalSync || result.Sync == nil {
		t.Fatalf("result = %+v, want an incremental sync", result)
	}

	if result.Sync.FilesAdded != 1 {
		t.Errorf("added = %d, want 1", result.Sync.FilesAdded)
	}

	if f.crawlRem.calls != 1 {
		t.Errorf("crawl remote called %d times, want only the baseline crawl", f.crawlRem.calls)
	}
}

func TestSmartSyncForceRecrawls(t *testing.T) {
	t.Parallel()

	f := newSchedulerFixture(t)
	defer f.settle(t)

	ctx := context.Background()

	if _, err := f.scheduler.SmartSync(ctx, false, nil, nil); err != nil {
		t.Fatalf("baseline SmartSync: %v", err)
	}

	f.settle(t)

	result, err := f.scheduler.SmartSync(ctx, true, nil, nil)
	if err != nil {
		t.Fatalf("forced SmartSync: %v", err)
	}

	if result.Type != ResultFullCrawl {
		t.Errorf("result = %+v, want a forced full crawl", result)
	}

	if f.crawlRem.calls != 2 {
		t.Errorf("crawl remote called %d times, want 2", f.crawlRem.calls)
	}
}

func TestSmartSyncRecoversFromExpiredToken(t *testing.T) {
	t.Parallel()

	f := newSchedulerFixture(t)
	defer f.settle(t)

	ctx := context.Background()

	if _, err := f.scheduler.SmartSync(ctx, false, nil, nil); err != nil {
		t.Fatalf("baseline SmartSync: %v", err)
	}

	f.settle(t)

	f.syncRem.err = &drive.APIError{StatusCode: 410, Message: "expired", Err: drive.ErrChangeTokenExpired}

	result, err := f.scheduler.SmartSync(ctx, false, nil, nil)
	if err != nil {
		t.Fatalf("SmartSync after expiry: %v", err)
	}

	if result.Type != ResultFullCrawl || !result.Recovered {
		t.Errorf("result = %+v, want a recovered full crawl", result)
	}

	if f.crawlRem.calls != 2 {
		t.Errorf("crawl remote called %d times, want the baseline plus the recovery", f.crawlRem.calls)
	}
}
