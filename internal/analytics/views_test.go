package analytics

import (
	"testing"
	"time"

	"github.com/driveindex/driveindex/internal/snapshot"
)

func i64(v int64) *int64 { return &v }

func file(id, name, mime string, size int64, parents ...string) *snapshot.File {
	f := &snapshot.File{
		ID:       id,
		Name:     name,
		MimeType: mime,
		Parents:  parents,
	}

	if mime != snapshot.MimeFolder {
		f.Size = i64(size)
	}

	return f
}

func TestComputeDuplicates(t *testing.T) {
	t.Parallel()

	twin1 := file("d1", "report.pdf", "application/pdf", 100, "p")
	twin2 := file("d2", "report.pdf", "application/pdf", 100, "q")
	twin1.CreatedTime = "2026-01-01T00:00:00Z"
	twin2.CreatedTime = "2026-02-02T00:00:00Z"

	files := []*snapshot.File{
		twin1,
		twin2,
		// Triple with matching metadata: two reclaimable copies.
		file("t1", "song.mp3", "audio/mpeg", 50),
		file("t2", "song.mp3", "audio/mpeg", 50),
		file("t3", "song.mp3", "audio/mpeg", 50),
		// Same name, different size: not a group.
		file("x1", "notes.txt", "text/plain", 10),
		file("x2", "notes.txt", "text/plain", 11),
		// Folders never group.
		file("dir1", "stuff", snapshot.MimeFolder, 0),
		file("dir2", "stuff", snapshot.MimeFolder, 0),
	}

	view := computeDuplicates(files)

	if len(view.Groups) != 2 {
		t.Fatalf("got %d groups, want 2: %+v", len(view.Groups), view.Groups)
	}

	// Ordered by reclaimable bytes: 2*50=100 for the triple beats 1*100
	// for the pair only on the name tiebreak, so check both explicitly.
	if view.TotalPotentialSavings != 200 {
		t.Errorf("total savings = %d, want 200", view.TotalPotentialSavings)
	}

	byName := map[string]DuplicateGroup{}
	for _, g := range view.Groups {
		byName[g.Name] = g
	}

	pdf := byName["report.pdf"]
	if pdf.Count != 2 || pdf.PotentialSavings != 100 {
		t.Errorf("report.pdf group = %+v, want count 2 savings 100", pdf)
	}

	if pdf.IdenticalMetadata {
		t.Error("differing created times still marked identical")
	}

	mp3 := byName["song.mp3"]
	if mp3.Count != 3 || mp3.PotentialSavings != 100 {
		t.Errorf("song.mp3 group = %+v, want count 3 savings 100", mp3)
	}

	if !mp3.IdenticalMetadata {
		t.Error("matching metadata not marked identical")
	}

	// Equal savings break ties by name ascending.
	if view.Groups[0].Name != "report.pdf" || view.Groups[1].Name != "song.mp3" {
		t.Errorf("order = [%s %s], want [report.pdf song.mp3]",
			view.Groups[0].Name, view.Groups[1].Name)
	}
}

func TestComputeOrphans(t *testing.T) {
	t.Parallel()

	files := []*snapshot.File{
		file("root", "My Drive", snapshot.MimeFolder, 0),
		file("ok", "a.txt", "text/plain", 1, "root"),
		file("lost", "b.txt", "text/plain", 1, "ghost"),
		file("rootless", "c.txt", "text/plain", 1),
	}

	snap := &snapshot.Snapshot{Files: files}
	view := computeOrphans(files, snap.ByID())

	if view.Count != 1 {
		t.Fatalf("count = %d, want 1: %+v", view.Count, view.Orphans)
	}

	if view.Orphans[0].FileID != "lost" || view.Orphans[0].MissingParentIDs[0] != "ghost" {
		t.Errorf("orphan = %+v, want lost/ghost", view.Orphans[0])
	}
}

func TestComputeDepths(t *testing.T) {
	t.Parallel()

	files := []*snapshot.File{
		file("root", "My Drive", snapshot.MimeFolder, 0),
		file("l1", "level one", snapshot.MimeFolder, 0, "root"),
		file("l2", "level two", snapshot.MimeFolder, 0, "l1"),
	}

	snap := &snapshot.Snapshot{Files: files}
	view := computeDepths(files, snap.ByID())

	if view.MaxDepth != 2 {
		t.Errorf("max depth = %d, want 2", view.MaxDepth)
	}

	want := map[string]int{"root": 0, "l1": 1, "l2": 2}
	for id, d := range want {
		if view.DepthByID[id] != d {
			t.Errorf("depth[%s] = %d, want %d", id, view.DepthByID[id], d)
		}
	}

	if len(view.Distribution) != 3 {
		t.Errorf("distribution = %+v, want 3 buckets", view.Distribution)
	}

	// Deepest first.
	if len(view.DeepestFolderIDs) == 0 || view.DeepestFolderIDs[0] != "l2" {
		t.Errorf("deepest = %v, want l2 first", view.DeepestFolderIDs)
	}
}

func TestComputeDepthsCycleTreatedAsRoot(t *testing.T) {
	t.Parallel()

	files := []*snapshot.File{
		file("a", "A", snapshot.MimeFolder, 0, "b"),
		file("b", "B", snapshot.MimeFolder, 0, "a"),
	}

	snap := &snapshot.Snapshot{Files: files}
	view := computeDepths(files, snap.ByID())

	// The cycle breaks by treating the revisited node as a root, so
	// depths stay small instead of recursing forever.
	for id, d := range view.DepthByID {
		if d > 1 {
			t.Errorf("depth[%s] = %d, want <= 1 inside a cycle", id, d)
		}
	}
}

func TestComputeSemantic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	named := file("byname", "Photos", snapshot.MimeFolder, 0)
	named.CalculatedSize = i64(500)

	img := file("img", "x.jpg", "image/jpeg", 10, "bycontent")
	img.ModifiedTime = "2026-08-01T00:00:00Z"

	bycontent := file("bycontent", "misc", snapshot.MimeFolder, 0)
	plain := file("plain", "zzz", snapshot.MimeFolder, 0)

	files := []*snapshot.File{named, bycontent, plain, img}
	snap := &snapshot.Snapshot{
		Files:       files,
		ChildrenMap: map[string][]string{"bycontent": {"img"}},
	}

	view := computeSemantic(files, snap.ChildrenMap, snap.ByID(), now)

	if fc := view.FolderCategory["byname"]; fc.Category != "Photos" || fc.Method != "name" || fc.Confidence != "high" {
		t.Errorf("byname = %+v, want Photos/name/high", fc)
	}

	if fc := view.FolderCategory["bycontent"]; fc.Category != "Photos" || fc.Method != "content" || fc.Confidence != "medium" {
		t.Errorf("bycontent = %+v, want Photos/content/medium", fc)
	}

	if view.UncategorizedCount != 1 || len(view.UncategorizedFolderIDs) != 1 {
		t.Errorf("uncategorized = %d/%v, want the one plain folder",
			view.UncategorizedCount, view.UncategorizedFolderIDs)
	}

	total := view.Totals["Photos"]
	if total.FolderCount != 2 || total.TotalSize != 500 {
		t.Errorf("Photos total = %+v, want 2 folders / 500 bytes", total)
	}
}

func TestComputeAgeSemantic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	recent := file("recent", "Photos", snapshot.MimeFolder, 0)
	recent.ModifiedTime = "2026-08-20T00:00:00Z"

	stale := file("stale", "misc", snapshot.MimeFolder, 0)
	stale.ModifiedTime = "2024-01-01T00:00:00Z"

	// No modification time lands in the oldest bucket.
	unknown := file("unknown", "other", snapshot.MimeFolder, 0)

	categories := map[string]FolderCategory{
		"recent": {Category: "Photos"},
	}

	view := computeAgeSemantic([]*snapshot.File{recent, stale, unknown}, categories, now)

	if cell := view.Matrix["Photos"]["0-30 days"]; cell.FolderCount != 1 {
		t.Errorf("Photos/0-30 = %+v, want 1 folder", cell)
	}

	if cell := view.Matrix["Uncategorized"]["365+ days"]; cell.FolderCount != 2 {
		t.Errorf("Uncategorized/365+ = %+v, want the stale and unknown folders", cell)
	}
}

func TestComputeTypeSemantic(t *testing.T) {
	t.Parallel()

	categories := map[string]FolderCategory{
		"photos": {Category: "Photos"},
	}

	files := []*snapshot.File{
		file("photos", "Photos", snapshot.MimeFolder, 0),
		file("img", "a.jpg", "image/jpeg", 10, "photos"),
		// First parent decides the attribution.
		file("img2", "b.jpg", "image/jpeg", 20, "photos", "elsewhere"),
		file("stray", "c.pdf", "application/pdf", 5),
	}

	view := computeTypeSemantic(files, categories)

	if cell := view.Matrix["Photos"]["Images"]; cell.FileCount != 2 || cell.TotalSize != 30 {
		t.Errorf("Photos/Images = %+v, want 2 files / 30 bytes", cell)
	}

	if cell := view.Matrix["Uncategorized"]["Documents"]; cell.FileCount != 1 {
		t.Errorf("Uncategorized/Documents = %+v, want the stray pdf", cell)
	}
}

func TestComputeTypeStats(t *testing.T) {
	t.Parallel()

	files := []*snapshot.File{
		file("dir", "d", snapshot.MimeFolder, 0),
		file("img", "a.jpg", "image/jpeg", 10),
		file("zip", "b.zip", "application/zip", 20),
	}

	view := computeTypeStats(files)

	if view.Groups["Images"].Count != 1 || view.Groups["Images"].TotalSize != 10 {
		t.Errorf("Images = %+v", view.Groups["Images"])
	}

	if view.Groups["Other"].Count != 1 {
		t.Errorf("Other = %+v", view.Groups["Other"])
	}

	if view.Groups["Folders"].Count != 1 {
		t.Errorf("Folders = %+v", view.Groups["Folders"])
	}
}

func TestWeekKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		day  string
		want string
	}{
		{"2026-08-24", "2026-08-24"}, // a Monday maps to itself
		{"2026-08-26", "2026-08-24"}, // midweek
		{"2026-08-30", "2026-08-24"}, // Sunday belongs to the preceding Monday
	}

	for _, tt := range tests {
		day, err := time.Parse("2006-01-02", tt.day)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.day, err)
		}

		if got := weekKey(day); got != tt.want {
			t.Errorf("weekKey(%s) = %s, want %s", tt.day, got, tt.want)
		}
	}
}

func TestComputeTimeline(t *testing.T) {
	t.Parallel()

	f := file("f", "a.txt", "text/plain", 10)
	f.CreatedTime = "2026-08-26T12:00:00Z"
	f.ModifiedTime = "2026-08-30T12:00:00Z"

	// No timestamps at all: contributes to neither series.
	bare := file("bare", "b.txt", "text/plain", 5)

	view := computeTimeline([]*snapshot.File{f, bare})

	if entry := view.Created.Day["2026-08-26"]; entry.Count != 1 || entry.TotalSize != 10 {
		t.Errorf("created day = %+v", entry)
	}

	if entry := view.Created.Week["2026-08-24"]; entry.Count != 1 {
		t.Errorf("created week = %+v", entry)
	}

	if entry := view.Modified.Month["2026-08"]; entry.Count != 1 {
		t.Errorf("modified month = %+v", entry)
	}

	if len(view.Created.Day) != 1 || len(view.Modified.Day) != 1 {
		t.Errorf("timestampless file leaked into the series: %+v", view)
	}
}

func TestComputeLargeLists(t *testing.T) {
	t.Parallel()

	big := file("dir", "d", snapshot.MimeFolder, 0)
	big.CalculatedSize = i64(1000)

	files := []*snapshot.File{
		big,
		file("small", "a.txt", "text/plain", 1),
		file("large", "b.bin", "application/octet-stream", 500),
		file("mid", "c.bin", "application/octet-stream", 100),
	}

	view := computeLargeLists(files)

	wantFiles := []string{"large", "mid", "small"}
	if len(view.TopFileIDs) != len(wantFiles) {
		t.Fatalf("top files = %v, want %v", view.TopFileIDs, wantFiles)
	}

	for i, want := range wantFiles {
		if view.TopFileIDs[i] != want {
			t.Errorf("top files[%d] = %s, want %s", i, view.TopFileIDs[i], want)
		}
	}

	if len(view.TopFolderIDs) != 1 || view.TopFolderIDs[0] != "dir" {
		t.Errorf("top folders = %v, want [dir]", view.TopFolderIDs)
	}
}
