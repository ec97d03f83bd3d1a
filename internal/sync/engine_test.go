package sync

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	drivev3 "google.golang.org/api/drive/v3"

	"github.com/driveindex/driveindex/internal/drive"
	"github.com/driveindex/driveindex/internal/index"
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

func newTestStore(t *testing.T) *index.Store {
	t.Helper()

	store, err := index.Open(context.Background(), filepath.Join(t.TempDir(), "index.db"), testLogger(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { store.Close() })

	return store
}

// fakeRemote serves a fixed change feed.
type fakeRemote struct {
	changes   []*drivev3.Change
	newToken  string
	err       error
	gotToken  string
	callCount int
}

func (r *fakeRemote) ListAllChanges(_ context.Context, pageToken string) ([]*drivev3.Change, string, error) {
	r.gotToken = pageToken
	r.callCount++

	if r.err != nil {
		return nil, "", r.err
	}

	return r.changes, r.newToken, nil
}

func upsertChange(id, name string, size int64, parents ...string) *drivev3.Change {
	return &drivev3.Change{
		FileId: id,
		File: &drivev3.File{
			Id:       id,
			Name:     name,
			MimeType: "text/plain",
			Size:     size,
			Parents:  parents,
		},
	}
}

func removeChange(id string) *drivev3.Change {
	return &drivev3.Change{FileId: id, Removed: true}
}

// seed puts a file and a token into the store, simulating a completed
// crawl.
func seed(t *testing.T, store *index.Store, token string, ids ...string) {
	t.Helper()

	ctx := context.Background()

	batch, err := store.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}

	for _, id := range ids {
		rec := &index.FileRecord{
			ID:       id,
			Name:     id + ".txt",
			MimeType: "text/plain",
			Size:     1,
			HasSize:  true,
			RawJSON:  "{}",
		}

		if err := batch.UpsertFile(rec); err != nil {
			t.Fatalf("UpsertFile: %v", err)
		}
	}

	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := store.SetSyncState(ctx, index.KeyStartPageToken, token); err != nil {
		t.Fatalf("SetSyncState: %v", err)
	}
}

func TestRunRequiresToken(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	engine := NewEngine(&fakeRemote{}, store, 100, testLogger(t))

	_, err := engine.Run(context.Background(), nil)
	if !errors.Is(err, ErrNoContinuationToken) {
		t.Errorf("err = %v, want ErrNoContinuationToken", err)
	}
}

func TestRunAppliesChanges(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seed(t, store, "tok-1", "existing")

	remote := &fakeRemote{
		changes: []*drivev3.Change{
			upsertChange("existing", "renamed", 5),
			upsertChange("brand-new", "new.txt", 10),
			removeChange("existing"),
		},
		newToken: "tok-2",
	}

	engine := NewEngine(remote, store, 100, testLogger(t))

	progress, err := engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if remote.gotToken != "tok-1" {
		t.Errorf("fed token %q to the remote, want tok-1", remote.gotToken)
	}

	if progress.FilesUpdated != 1 || progress.FilesAdded != 1 || progress.FilesRemoved != 1 {
		t.Errorf("counters = +%d ~%d -%d, want +1 ~1 -1",
			progress.FilesAdded, progress.FilesUpdated, progress.FilesRemoved)
	}

	ctx := context.Background()

	// The removal arrived after the rename, so the record is a tombstone.
	rec, err := store.GetFile(ctx, "existing")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}

	if rec != nil {
		t.Error("removed file still visible")
	}

	rec, err = store.GetFile(ctx, "brand-new")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}

	if rec == nil {
		t.Fatal("added file missing")
	}

	token, err := store.GetSyncState(ctx, index.KeyStartPageToken)
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}

	if token != "tok-2" {
		t.Errorf("token = %q, want tok-2", token)
	}
}

func TestRunEmptyFeedStillAdvancesToken(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seed(t, store, "tok-1")

	remote := &fakeRemote{newToken: "tok-2"}
	engine := NewEngine(remote, store, 100, testLogger(t))

	progress, err := engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if progress.Message != "No changes detected" {
		t.Errorf("message = %q, want the no-changes message", progress.Message)
	}

	token, err := store.GetSyncState(context.Background(), index.KeyStartPageToken)
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}

	if token != "tok-2" {
		t.Errorf("token = %q, want tok-2 even with an empty feed", token)
	}
}

func TestRunExpiredTokenError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seed(t, store, "stale")

	remote := &fakeRemote{
		err: &drive.APIError{StatusCode: 410, Message: "token expired", Err: drive.ErrChangeTokenExpired},
	}
	engine := NewEngine(remote, store, 100, testLogger(t))

	_, err := engine.Run(context.Background(), nil)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}

	// The stale token survives: recovery is the caller's decision.
	token, storeErr := store.GetSyncState(context.Background(), index.KeyStartPageToken)
	if storeErr != nil {
		t.Fatalf("GetSyncState: %v", storeErr)
	}

	if token != "stale" {
		t.Errorf("token = %q, want the untouched stale token", token)
	}
}

func TestRunBatchBoundaryCommitsTokenWithFinalBatch(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seed(t, store, "tok-1")

	// Three changes with batch size 2: one intermediate commit, then the
	// final batch carries the token.
	remote := &fakeRemote{
		changes: []*drivev3.Change{
			upsertChange("a", "a.txt", 1),
			upsertChange("b", "b.txt", 2),
			upsertChange("c", "c.txt", 3),
		},
		newToken: "tok-2",
	}

	engine := NewEngine(remote, store, 2, testLogger(t))

	progress, err := engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if progress.ChangesProcessed != 3 {
		t.Errorf("processed = %d, want 3", progress.ChangesProcessed)
	}

	ctx := context.Background()

	count, err := store.FileCount(ctx, true)
	if err != nil {
		t.Fatalf("FileCount: %v", err)
	}

	if count != 3 {
		t.Errorf("indexed %d files, want 3", count)
	}

	token, err := store.GetSyncState(ctx, index.KeyStartPageToken)
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}

	if token != "tok-2" {
		t.Errorf("token = %q, want tok-2", token)
	}
}

func TestCanSync(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	can, err := CanSync(ctx, store)
	if err != nil {
		t.Fatalf("CanSync: %v", err)
	}

	if can {
		t.Error("fresh index reports syncable")
	}

	seed(t, store, "tok")

	can, err = CanSync(ctx, store)
	if err != nil {
		t.Fatalf("CanSync: %v", err)
	}

	if !can {
		t.Error("index with a token reports unsyncable")
	}
}

func TestLastSyncInfo(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seed(t, store, "tok-1")

	remote := &fakeRemote{newToken: "tok-2"}
	engine := NewEngine(remote, store, 100, testLogger(t))

	if _, err := engine.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	info, err := LastSyncInfo(context.Background(), store)
	if err != nil {
		t.Fatalf("LastSyncInfo: %v", err)
	}

	if !info.HasToken {
		t.Error("HasToken = false after a sync")
	}

	if info.LastSyncTime == "" {
		t.Error("LastSyncTime missing after a sync")
	}
}
