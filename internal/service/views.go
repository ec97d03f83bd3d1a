package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/driveindex/driveindex/internal/analytics"
	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/jobs"
	"github.com/driveindex/driveindex/internal/snapshot"
)

// viewMaxAge is the client-side freshness hint for analytics views, in
// seconds. Conditional requests against the ETag stay cheap after it
// elapses.
const viewMaxAge = 3600

// pathMaxSegments caps first-parent path walks so a cyclic snapshot
// cannot loop forever.
const pathMaxSegments = 50

// ViewOptions select and paginate an analytics view. Category and
// FileType are only meaningful for the type matrix drill-down.
type ViewOptions struct {
	Limit    int
	Offset   int
	Category string
	FileType string
}

// ViewResponse carries one analytics view plus the caching identity a
// transport needs: a weak validator, the compute time, and a freshness
// hint.
type ViewResponse struct {
	View           string `json:"view"`
	DerivedVersion int    `json:"derived_version"`
	ComputedAt     string `json:"computed_at"`
	Data           any    `json:"data"`

	ETag         string `json:"etag"`
	LastModified string `json:"last_modified"`
	MaxAgeSec    int    `json:"max_age_sec"`
}

// ViewFile is a file reference inside a paginated view, resolved with
// its first-parent path.
type ViewFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	Path         string `json:"path"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
}

// DuplicatesPage is the paginated duplicates view payload.
type DuplicatesPage struct {
	TotalGroups           int                        `json:"total_groups"`
	Offset                int                        `json:"offset"`
	Limit                 int                        `json:"limit"`
	TotalPotentialSavings int64                      `json:"total_potential_savings"`
	Groups                []analytics.DuplicateGroup `json:"groups"`
	Files                 []ViewFile                 `json:"files"`
}

// TypeCellPage is the drill-down payload for one cell of the
// category-by-type matrix.
type TypeCellPage struct {
	Category   string     `json:"category"`
	FileType   string     `json:"file_type"`
	TotalCount int        `json:"total_count"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
	Files      []ViewFile `json:"files"`
}

// GetAnalyticsStatus reports the analytics worker state.
func (s *Service) GetAnalyticsStatus() jobs.AnalyticsStatus {
	return s.analytics.Status()
}

// StartAnalytics kicks off a compute when the cached bundle is missing
// or stale, and returns the resulting worker state.
func (s *Service) StartAnalytics(ctx context.Context) jobs.AnalyticsStatus {
	s.analytics.StartIfNeeded(ctx)

	return s.analytics.Status()
}

// GetAnalyticsView returns one derived view from the cached bundle.
// A missing or stale bundle starts a compute and returns ErrNotReady;
// the caller retries once the worker reports ready.
func (s *Service) GetAnalyticsView(ctx context.Context, name string, opts ViewOptions) (*ViewResponse, error) {
	known := false

	for _, viewName := range analytics.ViewNames {
		if viewName == name {
			known = true
			break
		}
	}

	if !known {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownView)
	}

	bundle, meta, err := s.loadValidBundle(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var (
		data  any
		extra string
	)

	switch {
	case name == analytics.ViewDuplicates:
		data, err = s.duplicatesPage(&bundle.Duplicates, opts)
		extra = fmt.Sprintf("%d:%d", opts.Offset, opts.Limit)

	case name == analytics.ViewTypeSemantic && opts.Category != "" && opts.FileType != "":
		data, err = s.typeCellPage(bundle, opts)
		extra = fmt.Sprintf("%s:%s:%d:%d", opts.Category, opts.FileType, opts.Offset, opts.Limit)

	default:
		data, _ = bundle.View(name)
	}

	if err != nil {
		return nil, err
	}

	return &ViewResponse{
		View:           name,
		DerivedVersion: bundle.DerivedVersion,
		ComputedAt:     meta.ComputedAt,
		Data:           data,
		ETag:           viewETag(bundle.DerivedVersion, meta.SourceCacheTimestamp, name, extra),
		LastModified:   meta.ComputedAt,
		MaxAgeSec:      viewMaxAge,
	}, nil
}

// loadValidBundle loads the cached bundle when it still matches the
// snapshot cache. Anything else starts a recompute and reports not
// ready.
func (s *Service) loadValidBundle(ctx context.Context) (*analytics.Bundle, *cache.AnalyticsMetadata, error) {
	notReady := func() (*analytics.Bundle, *cache.AnalyticsMetadata, error) {
		s.analytics.StartIfNeeded(ctx)
		return nil, nil, ErrNotReady
	}

	var sourceMeta cache.Metadata

	haveSource, err := s.caches.LoadMetadata(cache.ScanFull, &sourceMeta)
	if err != nil {
		return nil, nil, err
	}

	if !haveSource {
		return nil, nil, fmt.Errorf("no snapshot to analyze: %w", ErrNotFound)
	}

	var meta cache.AnalyticsMetadata

	haveAnalytics, err := s.caches.LoadMetadata(cache.ScanFullAnalytics, &meta)
	if err != nil {
		return nil, nil, err
	}

	if !haveAnalytics || meta.DerivedVersion != analytics.DerivedVersion ||
		!cache.AnalyticsValid(&meta, &sourceMeta) {
		return notReady()
	}

	envelope, err := s.caches.Load(cache.ScanFullAnalytics)
	if err != nil {
		return nil, nil, err
	}

	if envelope == nil {
		return notReady()
	}

	var bundle analytics.Bundle
	if err := jsonUnmarshal(envelope.Data, &bundle); err != nil {
		return nil, nil, err
	}

	return &bundle, &meta, nil
}

// duplicatesPage slices the duplicate groups and resolves the page's
// member files against the cached snapshot.
func (s *Service) duplicatesPage(view *analytics.DuplicatesView, opts ViewOptions) (*DuplicatesPage, error) {
	page := &DuplicatesPage{
		TotalGroups:           len(view.Groups),
		Offset:                opts.Offset,
		Limit:                 opts.Limit,
		TotalPotentialSavings: view.TotalPotentialSavings,
		Groups:                []analytics.DuplicateGroup{},
		Files:                 []ViewFile{},
	}

	start := opts.Offset
	if start > len(view.Groups) {
		start = len(view.Groups)
	}

	end := start + opts.Limit
	if end > len(view.Groups) {
		end = len(view.Groups)
	}

	page.Groups = view.Groups[start:end]

	if len(page.Groups) == 0 {
		return page, nil
	}

	byID, err := s.cachedSnapshotIndex()
	if err != nil {
		return nil, err
	}

	for _, group := range page.Groups {
		for _, id := range group.FileIDs {
			f, ok := byID[id]
			if !ok {
				continue
			}

			page.Files = append(page.Files, viewFileFrom(f, byID))
		}
	}

	return page, nil
}

// typeCellPage lists the files behind one cell of the category-by-type
// matrix, largest first.
func (s *Service) typeCellPage(bundle *analytics.Bundle, opts ViewOptions) (*TypeCellPage, error) {
	byID, err := s.cachedSnapshotIndex()
	if err != nil {
		return nil, err
	}

	folderCategory := bundle.Semantic.FolderCategory

	var matched []*snapshot.File

	for _, f := range byID {
		if f.IsFolder() {
			continue
		}

		category := "Uncategorized"

		if len(f.Parents) > 0 {
			if fc, ok := folderCategory[f.Parents[0]]; ok && fc.Category != "" {
				category = fc.Category
			}
		}

		if category != opts.Category || analytics.FileTypeGroup(f.MimeType) != opts.FileType {
			continue
		}

		matched = append(matched, f)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].EffectiveSize(), matched[j].EffectiveSize()
		if a != b {
			return a > b
		}

		return matched[i].ID < matched[j].ID
	})

	page := &TypeCellPage{
		Category:   opts.Category,
		FileType:   opts.FileType,
		TotalCount: len(matched),
		Offset:     opts.Offset,
		Limit:      opts.Limit,
		Files:      []ViewFile{},
	}

	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}

	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}

	for _, f := range matched[start:end] {
		page.Files = append(page.Files, viewFileFrom(f, byID))
	}

	return page, nil
}

// cachedSnapshotIndex loads the snapshot payload the bundle was derived
// from, keyed by file id.
func (s *Service) cachedSnapshotIndex() (map[string]*snapshot.File, error) {
	envelope, err := s.caches.Load(cache.ScanFull)
	if err != nil {
		return nil, err
	}

	if envelope == nil {
		return nil, fmt.Errorf("snapshot cache: %w", ErrNotFound)
	}

	var snap snapshot.Snapshot
	if err := jsonUnmarshal(envelope.Data, &snap); err != nil {
		return nil, err
	}

	return snap.ByID(), nil
}

// viewFileFrom resolves one snapshot file into a view reference with
// its first-parent path.
func viewFileFrom(f *snapshot.File, byID map[string]*snapshot.File) ViewFile {
	return ViewFile{
		ID:           f.ID,
		Name:         f.Name,
		Size:         f.EffectiveSize(),
		MimeType:     f.MimeType,
		Path:         firstParentPath(f, byID),
		ModifiedTime: f.ModifiedTime,
		WebViewLink:  f.WebViewLink,
	}
}

// firstParentPath walks first parents up to the root and renders the
// folder chain as /A/B. A file with no resolvable parent lives at
// "Root".
func firstParentPath(f *snapshot.File, byID map[string]*snapshot.File) string {
	var segments []string

	current := ""
	if len(f.Parents) > 0 {
		current = f.Parents[0]
	}

	for current != "" && len(segments) < pathMaxSegments {
		parent, ok := byID[current]
		if !ok {
			break
		}

		segments = append(segments, parent.Name)

		current = ""
		if len(parent.Parents) > 0 {
			current = parent.Parents[0]
		}
	}

	if len(segments) == 0 {
		return "Root"
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	path := ""
	for _, segment := range segments {
		path += "/" + segment
	}

	return path
}

// viewETag builds the weak validator for a view: the derived logic
// version, the source snapshot identity, and the pagination window
// together decide representation equality.
func viewETag(derivedVersion int, sourceTimestamp, view, extra string) string {
	tag := fmt.Sprintf("%d:%s:%s", derivedVersion, sourceTimestamp, view)
	if extra != "" {
		tag += ":" + extra
	}

	return fmt.Sprintf("W/%q", tag)
}

// NotModifiedSince reports whether a conditional request with the given
// validators can be answered without a body.
func NotModifiedSince(resp *ViewResponse, ifNoneMatch, ifModifiedSince string) bool {
	if ifNoneMatch != "" {
		return ifNoneMatch == resp.ETag
	}

	if ifModifiedSince == "" || resp.LastModified == "" {
		return false
	}

	since, err := time.Parse(time.RFC3339, ifModifiedSince)
	if err != nil {
		return false
	}

	computed, err := time.Parse(time.RFC3339, resp.LastModified)
	if err != nil {
		return false
	}

	return !computed.After(since)
}

func jsonUnmarshal(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("service: decoding cache payload: %w", err)
	}

	return nil
}
