package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/driveindex/driveindex/internal/snapshot"
)

// Bounds for the precomputed size rankings.
const (
	topFilesLimit   = 2000
	topFoldersLimit = 1000
	deepestLimit    = 50
)

// DuplicateGroup is a set of non-folder files sharing name and size.
// This is a weaker signal than content-hash matching; IdenticalMetadata
// marks groups where every other compared field matches too.
type DuplicateGroup struct {
	Name              string   `json:"name"`
	Size              int64    `json:"size"`
	FileIDs           []string `json:"file_ids"`
	Count             int      `json:"count"`
	PotentialSavings  int64    `json:"potential_savings"`
	IdenticalMetadata bool     `json:"identical_metadata"`
	MimeType          string   `json:"mimeType"`
}

// DuplicatesView groups name+size duplicates ordered by reclaimable
// bytes descending.
type DuplicatesView struct {
	Groups                []DuplicateGroup `json:"groups"`
	TotalPotentialSavings int64            `json:"total_potential_savings"`
}

func computeDuplicates(files []*snapshot.File) DuplicatesView {
	type key struct {
		name string
		size int64
	}

	groups := make(map[key][]*snapshot.File)

	for _, f := range files {
		if f.IsFolder() {
			continue
		}

		var size int64
		if f.Size != nil {
			size = *f.Size
		}

		k := key{name: f.Name, size: size}
		groups[k] = append(groups[k], f)
	}

	view := DuplicatesView{Groups: []DuplicateGroup{}}

	for k, members := range groups {
		if len(members) < 2 {
			continue
		}

		savings := int64(len(members)-1) * k.size
		view.TotalPotentialSavings += savings

		first := members[0]
		identical := true

		for _, f := range members[1:] {
			if f.Name != first.Name ||
				sizeOrZero(f) != sizeOrZero(first) ||
				f.MimeType != first.MimeType ||
				f.CreatedTime != first.CreatedTime ||
				f.ModifiedTime != first.ModifiedTime {
				identical = false
				break
			}
		}

		ids := make([]string, 0, len(members))
		for _, f := range members {
			if f.ID != "" {
				ids = append(ids, f.ID)
			}
		}

		view.Groups = append(view.Groups, DuplicateGroup{
			Name:              k.name,
			Size:              k.size,
			FileIDs:           ids,
			Count:             len(members),
			PotentialSavings:  savings,
			IdenticalMetadata: identical,
			MimeType:          first.MimeType,
		})
	}

	sort.Slice(view.Groups, func(i, j int) bool {
		a, b := view.Groups[i], view.Groups[j]
		if a.PotentialSavings != b.PotentialSavings {
			return a.PotentialSavings > b.PotentialSavings
		}

		if a.Name != b.Name {
			return a.Name < b.Name
		}

		return a.Size < b.Size
	})

	return view
}

func sizeOrZero(f *snapshot.File) int64 {
	if f.Size != nil {
		return *f.Size
	}

	return 0
}

// OrphanEntry is a file whose parent references point outside the
// snapshot.
type OrphanEntry struct {
	FileID           string   `json:"file_id"`
	MissingParentIDs []string `json:"missing_parent_ids"`
}

// OrphansView lists files with missing parent references.
type OrphansView struct {
	Orphans []OrphanEntry `json:"orphans"`
	Count   int           `json:"count"`
}

func computeOrphans(files []*snapshot.File, byID map[string]*snapshot.File) OrphansView {
	view := OrphansView{Orphans: []OrphanEntry{}}

	for _, f := range files {
		if len(f.Parents) == 0 {
			continue
		}

		var missing []string

		for _, pid := range f.Parents {
			if _, ok := byID[pid]; !ok {
				missing = append(missing, pid)
			}
		}

		if len(missing) > 0 {
			view.Orphans = append(view.Orphans, OrphanEntry{
				FileID:           f.ID,
				MissingParentIDs: missing,
			})
		}
	}

	view.Count = len(view.Orphans)

	return view
}

// DepthBucket aggregates folders at one nesting depth.
type DepthBucket struct {
	Depth       int   `json:"depth"`
	FolderCount int   `json:"folder_count"`
	TotalSize   int64 `json:"total_size"`
}

// DepthsView maps every folder to its nesting depth (max parent depth
// plus one; roots are depth zero) with a distribution and the deepest
// folders.
type DepthsView struct {
	DepthByID        map[string]int `json:"depth_by_id"`
	Distribution     []DepthBucket  `json:"distribution"`
	MaxDepth         int            `json:"max_depth"`
	DeepestFolderIDs []string       `json:"deepest_folder_ids"`
}

func computeDepths(files []*snapshot.File, byID map[string]*snapshot.File) DepthsView {
	depthByID := make(map[string]int)
	visiting := make(map[string]bool)

	var depth func(id string) int

	depth = func(id string) int {
		if d, ok := depthByID[id]; ok {
			return d
		}

		// Cycle: treat the node as a root.
		if visiting[id] {
			return 0
		}

		visiting[id] = true
		defer delete(visiting, id)

		node, ok := byID[id]
		if !ok || !node.IsFolder() || len(node.Parents) == 0 {
			depthByID[id] = 0
			return 0
		}

		maxParent := 0

		for _, pid := range node.Parents {
			if d := depth(pid); d > maxParent {
				maxParent = d
			}
		}

		d := maxParent + 1
		depthByID[id] = d

		return d
	}

	var folders []*snapshot.File

	for _, f := range files {
		if f.IsFolder() && f.ID != "" {
			folders = append(folders, f)
			depth(f.ID)
		}
	}

	dist := make(map[int]*DepthBucket)
	maxDepth := 0

	for _, folder := range folders {
		d := depthByID[folder.ID]
		if d > maxDepth {
			maxDepth = d
		}

		bucket, ok := dist[d]
		if !ok {
			bucket = &DepthBucket{Depth: d}
			dist[d] = bucket
		}

		bucket.FolderCount++
		bucket.TotalSize += folder.EffectiveSize()
	}

	view := DepthsView{
		DepthByID:        depthByID,
		Distribution:     []DepthBucket{},
		MaxDepth:         maxDepth,
		DeepestFolderIDs: []string{},
	}

	for _, bucket := range dist {
		view.Distribution = append(view.Distribution, *bucket)
	}

	sort.Slice(view.Distribution, func(i, j int) bool {
		return view.Distribution[i].Depth < view.Distribution[j].Depth
	})

	type entry struct {
		id    string
		depth int
	}

	deepest := make([]entry, 0, len(depthByID))
	for id, d := range depthByID {
		deepest = append(deepest, entry{id: id, depth: d})
	}

	sort.Slice(deepest, func(i, j int) bool {
		if deepest[i].depth != deepest[j].depth {
			return deepest[i].depth > deepest[j].depth
		}

		return deepest[i].id < deepest[j].id
	})

	for i, e := range deepest {
		if i >= deepestLimit {
			break
		}

		view.DeepestFolderIDs = append(view.DeepestFolderIDs, e.id)
	}

	return view
}

// FolderCategory records a folder's semantic classification and how it
// was derived: "name" matches are high confidence, "content" matches
// medium.
type FolderCategory struct {
	Category   string `json:"category"`
	Confidence string `json:"confidence"`
	Method     string `json:"method"`
}

// CategoryTotal aggregates folders under one semantic category.
type CategoryTotal struct {
	FolderCount int   `json:"folder_count"`
	TotalSize   int64 `json:"total_size"`
}

// SemanticView assigns semantic categories to folders. Totals and
// per-category id lists omit empty categories.
type SemanticView struct {
	FolderCategory         map[string]FolderCategory `json:"folder_category"`
	Totals                 map[string]CategoryTotal  `json:"totals"`
	CategoryFolderIDs      map[string][]string       `json:"category_folder_ids"`
	UncategorizedCount     int                       `json:"uncategorized_count"`
	UncategorizedFolderIDs []string                  `json:"uncategorized_folder_ids"`
}

func computeSemantic(files []*snapshot.File, childrenMap map[string][]string, byID map[string]*snapshot.File, now time.Time) SemanticView {
	view := SemanticView{
		FolderCategory:         map[string]FolderCategory{},
		Totals:                 map[string]CategoryTotal{},
		CategoryFolderIDs:      map[string][]string{},
		UncategorizedFolderIDs: []string{},
	}

	for _, f := range files {
		if !f.IsFolder() || f.ID == "" {
			continue
		}

		category := classifyByName(f.Name)
		confidence, method := "high", "name"

		if category == "" {
			category = classifyByContent(childrenMap[f.ID], byID, now)
			confidence, method = "medium", "content"
		}

		if category == "" {
			view.UncategorizedCount++
			view.UncategorizedFolderIDs = append(view.UncategorizedFolderIDs, f.ID)
			continue
		}

		view.FolderCategory[f.ID] = FolderCategory{
			Category:   category,
			Confidence: confidence,
			Method:     method,
		}

		total := view.Totals[category]
		total.FolderCount++
		total.TotalSize += f.EffectiveSize()
		view.Totals[category] = total

		view.CategoryFolderIDs[category] = append(view.CategoryFolderIDs[category], f.ID)
	}

	return view
}

// AgeBuckets are the folder age ranges, by days since last modification.
var AgeBuckets = []string{"0-30 days", "30-90 days", "90-180 days", "180-365 days", "365+ days"}

var ageBucketRanges = []struct {
	label      string
	start, end int
}{
	{"0-30 days", 0, 30},
	{"30-90 days", 30, 90},
	{"90-180 days", 90, 180},
	{"180-365 days", 180, 365},
	{"365+ days", 365, 10000},
}

// AgeCell aggregates folders in one category and age bucket.
type AgeCell struct {
	FolderCount int   `json:"folder_count"`
	TotalSize   int64 `json:"total_size"`
}

// AgeSemanticView is the category-by-age matrix over folders. Folders
// without a category land under "Uncategorized"; folders without a
// modification time land in the oldest bucket.
type AgeSemanticView struct {
	Buckets []string                      `json:"buckets"`
	Matrix  map[string]map[string]AgeCell `json:"matrix"`
}

func computeAgeSemantic(folders []*snapshot.File, folderCategory map[string]FolderCategory, now time.Time) AgeSemanticView {
	view := AgeSemanticView{
		Buckets: AgeBuckets,
		Matrix:  map[string]map[string]AgeCell{},
	}

	for _, f := range folders {
		if f.ID == "" {
			continue
		}

		category := "Uncategorized"
		if fc, ok := folderCategory[f.ID]; ok {
			category = fc.Category
		}

		ageDays := 10000
		if mdt, ok := parseTime(f.ModifiedTime); ok {
			ageDays = int(now.Sub(mdt).Hours() / 24)
		}

		label := "365+ days"

		for _, r := range ageBucketRanges {
			if ageDays >= r.start && ageDays < r.end {
				label = r.label
				break
			}
		}

		row, ok := view.Matrix[category]
		if !ok {
			row = map[string]AgeCell{}
			view.Matrix[category] = row
		}

		cell := row[label]
		cell.FolderCount++
		cell.TotalSize += f.EffectiveSize()
		row[label] = cell
	}

	return view
}

// TypeGroups are the broad file type groups of the type matrices.
var TypeGroups = []string{"Images", "Videos", "Audio", "Documents", "Other"}

// TypeCell aggregates files in one category and type group.
type TypeCell struct {
	FileCount int   `json:"file_count"`
	TotalSize int64 `json:"total_size"`
}

// TypeSemanticView is the category-by-type matrix over files, with each
// file attributed to its first parent's category.
type TypeSemanticView struct {
	Groups []string                       `json:"groups"`
	Matrix map[string]map[string]TypeCell `json:"matrix"`
}

func computeTypeSemantic(files []*snapshot.File, folderCategory map[string]FolderCategory) TypeSemanticView {
	view := TypeSemanticView{
		Groups: TypeGroups,
		Matrix: map[string]map[string]TypeCell{},
	}

	for _, f := range files {
		if f.IsFolder() || f.ID == "" {
			continue
		}

		category := "Uncategorized"

		if len(f.Parents) > 0 {
			if fc, ok := folderCategory[f.Parents[0]]; ok && fc.Category != "" {
				category = fc.Category
			}
		}

		group := FileTypeGroup(f.MimeType)

		row, ok := view.Matrix[category]
		if !ok {
			row = map[string]TypeCell{}
			view.Matrix[category] = row
		}

		cell := row[group]
		cell.FileCount++
		cell.TotalSize += f.EffectiveSize()
		row[group] = cell
	}

	return view
}

// TypeGroupStat aggregates one broad type group drive-wide.
type TypeGroupStat struct {
	Count     int   `json:"count"`
	TotalSize int64 `json:"total_size"`
}

// TypesView is the drive-wide type breakdown; empty groups are omitted.
type TypesView struct {
	Groups map[string]TypeGroupStat `json:"groups"`
}

func computeTypeStats(files []*snapshot.File) TypesView {
	groups := map[string]TypeGroupStat{}

	add := func(group string, size int64) {
		stat := groups[group]
		stat.Count++
		stat.TotalSize += size
		groups[group] = stat
	}

	for _, f := range files {
		size := f.EffectiveSize()

		if f.IsFolder() {
			add("Folders", size)
			continue
		}

		add(FileTypeGroup(f.MimeType), size)
	}

	return TypesView{Groups: groups}
}

// TimelineEntry aggregates files in one time bucket.
type TimelineEntry struct {
	Count     int   `json:"count"`
	TotalSize int64 `json:"total_size"`
}

// TimelineSeries buckets activity at three granularities: day keys are
// YYYY-MM-DD, week keys are the Monday of the ISO week, month keys are
// YYYY-MM.
type TimelineSeries struct {
	Day   map[string]TimelineEntry `json:"day"`
	Week  map[string]TimelineEntry `json:"week"`
	Month map[string]TimelineEntry `json:"month"`
}

// TimelineView buckets non-folder files by created and modified time.
type TimelineView struct {
	Created  TimelineSeries `json:"created"`
	Modified TimelineSeries `json:"modified"`
}

func newTimelineSeries() TimelineSeries {
	return TimelineSeries{
		Day:   map[string]TimelineEntry{},
		Week:  map[string]TimelineEntry{},
		Month: map[string]TimelineEntry{},
	}
}

func (s *TimelineSeries) add(t time.Time, size int64) {
	bump := func(m map[string]TimelineEntry, key string) {
		entry := m[key]
		entry.Count++
		entry.TotalSize += size
		m[key] = entry
	}

	bump(s.Day, t.Format("2006-01-02"))
	bump(s.Week, weekKey(t))
	bump(s.Month, fmt.Sprintf("%04d-%02d", t.Year(), t.Month()))
}

// weekKey is the Monday of t's ISO week as YYYY-MM-DD.
func weekKey(t time.Time) string {
	isoWeekday := int(t.Weekday())
	if isoWeekday == 0 {
		isoWeekday = 7
	}

	return t.AddDate(0, 0, -(isoWeekday - 1)).Format("2006-01-02")
}

func computeTimeline(files []*snapshot.File) TimelineView {
	view := TimelineView{
		Created:  newTimelineSeries(),
		Modified: newTimelineSeries(),
	}

	for _, f := range files {
		if f.IsFolder() {
			continue
		}

		size := f.EffectiveSize()

		if cdt, ok := parseTime(f.CreatedTime); ok {
			view.Created.add(cdt, size)
		}

		if mdt, ok := parseTime(f.ModifiedTime); ok {
			view.Modified.add(mdt, size)
		}
	}

	return view
}

// LargeView holds the precomputed top-N rankings: file ids and folder
// ids by effective size, descending.
type LargeView struct {
	TopFileIDs   []string `json:"top_file_ids"`
	TopFolderIDs []string `json:"top_folder_ids"`
}

func computeLargeLists(files []*snapshot.File) LargeView {
	var folders, plain []*snapshot.File

	for _, f := range files {
		if f.ID == "" {
			continue
		}

		if f.IsFolder() {
			folders = append(folders, f)
		} else {
			plain = append(plain, f)
		}
	}

	bySize := func(list []*snapshot.File) func(i, j int) bool {
		return func(i, j int) bool {
			a, b := list[i].EffectiveSize(), list[j].EffectiveSize()
			if a != b {
				return a > b
			}

			return list[i].ID < list[j].ID
		}
	}

	sort.Slice(plain, bySize(plain))
	sort.Slice(folders, bySize(folders))

	view := LargeView{TopFileIDs: []string{}, TopFolderIDs: []string{}}

	for i, f := range plain {
		if i >= topFilesLimit {
			break
		}

		view.TopFileIDs = append(view.TopFileIDs, f.ID)
	}

	for i, f := range folders {
		if i >= topFoldersLimit {
			break
		}

		view.TopFolderIDs = append(view.TopFolderIDs, f.ID)
	}

	return view
}
