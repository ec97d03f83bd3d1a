package analytics

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driveindex/driveindex/internal/snapshot"
)

// View names, as exposed by the query surface.
const (
	ViewDuplicates   = "duplicates"
	ViewDepths       = "depths"
	ViewSemantic     = "semantic"
	ViewAgeSemantic  = "age_semantic"
	ViewTypeSemantic = "type_semantic"
	ViewOrphans      = "orphans"
	ViewTypes        = "types"
	ViewTimeline     = "timeline"
	ViewLarge        = "large"
)

// ViewNames lists every view in a bundle.
var ViewNames = []string{
	ViewDuplicates, ViewDepths, ViewSemantic, ViewAgeSemantic,
	ViewTypeSemantic, ViewOrphans, ViewTypes, ViewTimeline, ViewLarge,
}

// Bundle is the complete set of derived views for one snapshot.
type Bundle struct {
	DerivedVersion int              `json:"derived_version"`
	Duplicates     DuplicatesView   `json:"duplicates"`
	Depths         DepthsView       `json:"depths"`
	Semantic       SemanticView     `json:"semantic"`
	AgeSemantic    AgeSemanticView  `json:"age_semantic"`
	TypeSemantic   TypeSemanticView `json:"type_semantic"`
	Orphans        OrphansView      `json:"orphans"`
	Types          TypesView        `json:"types"`
	Timeline       TimelineView     `json:"timeline"`
	Large          LargeView        `json:"large"`
}

// View returns the named view, or (nil, false) for an unknown name.
func (b *Bundle) View(name string) (any, bool) {
	switch name {
	case ViewDuplicates:
		return b.Duplicates, true
	case ViewDepths:
		return b.Depths, true
	case ViewSemantic:
		return b.Semantic, true
	case ViewAgeSemantic:
		return b.AgeSemantic, true
	case ViewTypeSemantic:
		return b.TypeSemantic, true
	case ViewOrphans:
		return b.Orphans, true
	case ViewTypes:
		return b.Types, true
	case ViewTimeline:
		return b.Timeline, true
	case ViewLarge:
		return b.Large, true
	}

	return nil, false
}

// Compute derives every view from a snapshot. The computation is pure:
// same snapshot and reference time, same bundle. Independent views run
// concurrently; the two matrices that consume the semantic
// classification run after it. The returned timings map per-view and
// total wall time in milliseconds.
func Compute(ctx context.Context, snap *snapshot.Snapshot, now time.Time) (*Bundle, map[string]float64, error) {
	start := time.Now()

	byID := snap.ByID()
	bundle := &Bundle{DerivedVersion: DerivedVersion}
	timings := make(map[string]float64)

	var folders []*snapshot.File

	for _, f := range snap.Files {
		if f.IsFolder() {
			folders = append(folders, f)
		}
	}

	var timingsMu sync.Mutex

	timed := func(name string, fn func()) func() error {
		return func() error {
			t0 := time.Now()
			fn()

			timingsMu.Lock()
			timings[name] = float64(time.Since(t0).Microseconds()) / 1000
			timingsMu.Unlock()

			return nil
		}
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(timed("analytics.duplicates", func() {
		bundle.Duplicates = computeDuplicates(snap.Files)
	}))
	g.Go(timed("analytics.depths", func() {
		bundle.Depths = computeDepths(snap.Files, byID)
	}))
	g.Go(timed("analytics.orphans", func() {
		bundle.Orphans = computeOrphans(snap.Files, byID)
	}))
	g.Go(timed("analytics.types", func() {
		bundle.Types = computeTypeStats(snap.Files)
	}))
	g.Go(timed("analytics.timeline", func() {
		bundle.Timeline = computeTimeline(snap.Files)
	}))
	g.Go(timed("analytics.large", func() {
		bundle.Large = computeLargeLists(snap.Files)
	}))

	// The age and type matrices consume the folder classification, so
	// the semantic chain runs as one task.
	g.Go(timed("analytics.semantic", func() {
		bundle.Semantic = computeSemantic(snap.Files, snap.ChildrenMap, byID, now)
		bundle.AgeSemantic = computeAgeSemantic(folders, bundle.Semantic.FolderCategory, now)
		bundle.TypeSemantic = computeTypeSemantic(snap.Files, bundle.Semantic.FolderCategory)
	}))

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	timings["analytics.total"] = float64(time.Since(start).Microseconds()) / 1000

	return bundle, timings, nil
}
