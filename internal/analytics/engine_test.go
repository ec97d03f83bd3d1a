package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/driveindex/driveindex/internal/snapshot"
)

func testSnapshot() *snapshot.Snapshot {
	files := []*snapshot.File{
		file("root", "My Drive", snapshot.MimeFolder, 0),
		file("photos", "Photos", snapshot.MimeFolder, 0, "root"),
		file("img1", "a.jpg", "image/jpeg", 10, "photos"),
		file("img2", "a.jpg", "image/jpeg", 10, "photos"),
		file("doc", "notes.pdf", "application/pdf", 100, "root"),
	}

	return &snapshot.Snapshot{
		Files: files,
		ChildrenMap: map[string][]string{
			"root":   {"photos", "doc"},
			"photos": {"img1", "img2"},
		},
	}
}

func TestCompute(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	bundle, timings, err := Compute(context.Background(), testSnapshot(), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if bundle.DerivedVersion != DerivedVersion {
		t.Errorf("derived version = %d, want %d", bundle.DerivedVersion, DerivedVersion)
	}

	for _, name := range ViewNames {
		if _, ok := bundle.View(name); !ok {
			t.Errorf("bundle missing view %q", name)
		}
	}

	if _, ok := bundle.View("bogus"); ok {
		t.Error("unknown view name resolved")
	}

	if len(bundle.Duplicates.Groups) != 1 || bundle.Duplicates.TotalPotentialSavings != 10 {
		t.Errorf("duplicates = %+v, want one 10-byte group", bundle.Duplicates)
	}

	if fc := bundle.Semantic.FolderCategory["photos"]; fc.Category != "Photos" {
		t.Errorf("photos folder classified as %+v", fc)
	}

	wantTimings := []string{
		"analytics.total", "analytics.duplicates", "analytics.depths",
		"analytics.orphans", "analytics.types", "analytics.timeline",
		"analytics.large", "analytics.semantic",
	}

	for _, key := range wantTimings {
		if _, ok := timings[key]; !ok {
			t.Errorf("timings missing %q: %v", key, timings)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first, _, err := Compute(ctx, testSnapshot(), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	second, _, err := Compute(ctx, testSnapshot(), now)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if first.Duplicates.TotalPotentialSavings != second.Duplicates.TotalPotentialSavings {
		t.Error("duplicate savings differ between runs")
	}

	if first.Depths.MaxDepth != second.Depths.MaxDepth {
		t.Error("max depth differs between runs")
	}

	if len(first.Large.TopFileIDs) != len(second.Large.TopFileIDs) {
		t.Fatal("large list lengths differ between runs")
	}

	for i := range first.Large.TopFileIDs {
		if first.Large.TopFileIDs[i] != second.Large.TopFileIDs[i] {
			t.Errorf("top files diverge at %d: %s vs %s",
				i, first.Large.TopFileIDs[i], second.Large.TopFileIDs[i])
		}
	}
}
