package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/driveindex/driveindex/internal/snapshot"
)

// Paths reconstructs folder paths for a file. Because a file can have
// multiple parents, there can be several paths; traversal stops after
// maxPaths paths or maxDepth levels. Each path lists folder names from
// root to immediate parent. A file with no parents yields one empty path.
func (s *Store) Paths(ctx context.Context, fileID string, maxPaths, maxDepth int) ([][]string, error) {
	var (
		paths [][]string
		walk  func(id string, trail []string, depth int) error
	)

	walk = func(id string, trail []string, depth int) error {
		if depth > maxDepth || len(paths) >= maxPaths {
			return nil
		}

		parentIDs, err := s.Parents(ctx, id)
		if err != nil {
			return err
		}

		if len(parentIDs) == 0 {
			paths = append(paths, reversed(trail))
			return nil
		}

		for _, parentID := range parentIDs {
			if len(paths) >= maxPaths {
				break
			}

			parent, err := s.GetFile(ctx, parentID)
			if err != nil {
				return err
			}

			if parent == nil {
				// Dangling edge: treat the known prefix as a full path.
				paths = append(paths, reversed(trail))
				continue
			}

			// Copy before extending: siblings must not share backing arrays.
			next := make([]string, len(trail), len(trail)+1)
			copy(next, trail)
			next = append(next, parent.Name)

			if err := walk(parentID, next, depth+1); err != nil {
				return err
			}
		}

		return nil
	}

	if err := walk(fileID, nil, 0); err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		paths = [][]string{{}}
	}

	return paths, nil
}

// PrimaryPath returns the first discovered path as a string, "/A/B", or
// "Root" for a parentless file.
func (s *Store) PrimaryPath(ctx context.Context, fileID string) (string, error) {
	paths, err := s.Paths(ctx, fileID, 1, defaultPathDepth)
	if err != nil {
		return "", err
	}

	if len(paths) == 0 || len(paths[0]) == 0 {
		return "Root", nil
	}

	return "/" + strings.Join(paths[0], "/"), nil
}

// FullPathWithName returns the primary path including the file's own
// name, or "" if the file is unknown.
func (s *Store) FullPathWithName(ctx context.Context, fileID string) (string, error) {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}

	if file == nil {
		return "", nil
	}

	parentPath, err := s.PrimaryPath(ctx, fileID)
	if err != nil {
		return "", err
	}

	if parentPath == "Root" {
		return "/" + file.Name, nil
	}

	return parentPath + "/" + file.Name, nil
}

const defaultPathDepth = 50

// DuplicateGroup is a set of files sharing content hash and size.
type DuplicateGroup struct {
	MD5         string   `json:"md5"`
	Size        int64    `json:"size"`
	Count       int      `json:"count"`
	FileIDs     []string `json:"file_ids"`
	TotalWasted int64    `json:"total_wasted"`
}

// DuplicateGroups finds groups of files with identical (md5, size),
// excluding trashed files, removed files, and shortcuts. Groups are
// ordered by reclaimable bytes descending. limit <= 0 returns all.
func (s *Store) DuplicateGroups(ctx context.Context, minSize int64, limit int) ([]DuplicateGroup, error) {
	query := `
		SELECT md5, size, COUNT(*) AS count, GROUP_CONCAT(id) AS file_ids
		FROM files
		WHERE md5 IS NOT NULL
		  AND size IS NOT NULL
		  AND size >= ?
		  AND trashed = 0
		  AND removed = 0
		  AND is_shortcut = 0
		GROUP BY md5, size
		HAVING COUNT(*) > 1
		ORDER BY size * (COUNT(*) - 1) DESC`

	args := []any{minSize}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: querying duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []DuplicateGroup

	for rows.Next() {
		var (
			g       DuplicateGroup
			fileIDs string
		)

		if err := rows.Scan(&g.MD5, &g.Size, &g.Count, &fileIDs); err != nil {
			return nil, fmt.Errorf("index: scanning duplicate group: %w", err)
		}

		if fileIDs != "" {
			g.FileIDs = strings.Split(fileIDs, ",")
		}

		g.TotalWasted = g.Size * int64(g.Count-1)
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating duplicate groups: %w", err)
	}

	return groups, nil
}

// DuplicateFileDetail is the expanded view of one member of a duplicate
// group. Path is the full path including the file's own name.
type DuplicateFileDetail struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
	ModifiedTime string `json:"modified_time"`
	CreatedTime  string `json:"created_time"`
	WebViewLink  string `json:"web_view_link"`
	Path         string `json:"path"`
	OwnedByMe    bool   `json:"owned_by_me"`
}

// DuplicateDetail expands the given file ids with metadata and paths.
// Unknown ids are skipped.
func (s *Store) DuplicateDetail(ctx context.Context, fileIDs []string) ([]DuplicateFileDetail, error) {
	details := make([]DuplicateFileDetail, 0, len(fileIDs))

	for _, id := range fileIDs {
		file, err := s.GetFile(ctx, id)
		if err != nil {
			return nil, err
		}

		if file == nil {
			continue
		}

		path, err := s.FullPathWithName(ctx, id)
		if err != nil {
			return nil, err
		}

		details = append(details, DuplicateFileDetail{
			ID:           file.ID,
			Name:         file.Name,
			Size:         file.Size,
			MimeType:     file.MimeType,
			ModifiedTime: file.ModifiedTime,
			CreatedTime:  file.CreatedTime,
			WebViewLink:  file.WebViewLink,
			Path:         path,
			OwnedByMe:    file.OwnedByMe,
		})
	}

	return details, nil
}

// DuplicateSavings summarizes reclaimable duplicate storage.
type DuplicateSavings struct {
	TotalGroups         int   `json:"total_groups"`
	TotalDuplicateFiles int   `json:"total_duplicate_files"`
	TotalWastedBytes    int64 `json:"total_wasted_bytes"`
}

// TotalDuplicateSavings aggregates all duplicate groups into the bytes
// and file count that deleting all-but-one copy per group would free.
func (s *Store) TotalDuplicateSavings(ctx context.Context) (DuplicateSavings, error) {
	groups, err := s.DuplicateGroups(ctx, 0, 0)
	if err != nil {
		return DuplicateSavings{}, err
	}

	savings := DuplicateSavings{TotalGroups: len(groups)}
	for _, g := range groups {
		savings.TotalWastedBytes += g.TotalWasted
		savings.TotalDuplicateFiles += g.Count - 1
	}

	return savings, nil
}

// ChildrenMap maps each parent id to the ids of its live children.
// Edges pointing at trashed or removed children are excluded.
func (s *Store) ChildrenMap(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT parent_id, child_id
		FROM parents p
		JOIN files f ON p.child_id = f.id
		WHERE f.removed = 0 AND f.trashed = 0`)
	if err != nil {
		return nil, fmt.Errorf("index: building children map: %w", err)
	}
	defer rows.Close()

	childrenMap := make(map[string][]string)

	for rows.Next() {
		var parentID, childID string
		if err := rows.Scan(&parentID, &childID); err != nil {
			return nil, fmt.Errorf("index: scanning children map row: %w", err)
		}

		childrenMap[parentID] = append(childrenMap[parentID], childID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating children map: %w", err)
	}

	return childrenMap, nil
}

// FolderNode is a node in the folder hierarchy.
type FolderNode struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Children []*FolderNode `json:"children"`
}

// FolderTree builds the folder hierarchy. With rootID set, the tree
// starts there; otherwise every folder whose parents are all outside the
// folder set becomes a root. Depth is capped at maxDepth.
func (s *Store) FolderTree(ctx context.Context, rootID string, maxDepth int) ([]*FolderNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM files
		WHERE mime_type = ? AND removed = 0 AND trashed = 0`, MimeFolder)
	if err != nil {
		return nil, fmt.Errorf("index: listing folders: %w", err)
	}
	defer rows.Close()

	folders := make(map[string]string)

	for rows.Next() {
		var id string
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("index: scanning folder: %w", err)
		}

		folders[id] = name.String
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating folders: %w", err)
	}

	childrenMap, err := s.ChildrenMap(ctx)
	if err != nil {
		return nil, err
	}

	var build func(folderID string, depth int) *FolderNode

	build = func(folderID string, depth int) *FolderNode {
		if depth > maxDepth {
			return nil
		}

		name, ok := folders[folderID]
		if !ok {
			return nil
		}

		node := &FolderNode{ID: folderID, Name: name, Children: []*FolderNode{}}

		for _, childID := range childrenMap[folderID] {
			if _, isFolder := folders[childID]; !isFolder {
				continue
			}

			if child := build(childID, depth+1); child != nil {
				node.Children = append(node.Children, child)
			}
		}

		return node
	}

	if rootID != "" {
		if node := build(rootID, 0); node != nil {
			return []*FolderNode{node}, nil
		}

		return []*FolderNode{}, nil
	}

	var roots []*FolderNode

	for folderID := range folders {
		parentIDs, err := s.Parents(ctx, folderID)
		if err != nil {
			return nil, err
		}

		isRoot := true

		for _, parentID := range parentIDs {
			if _, ok := folders[parentID]; ok {
				isRoot = false
				break
			}
		}

		if isRoot {
			if node := build(folderID, 0); node != nil {
				roots = append(roots, node)
			}
		}
	}

	return roots, nil
}

// LargeFile is one entry of the largest-files ranking.
type LargeFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
	WebViewLink  string `json:"web_view_link"`
	Path         string `json:"path"`
}

// LargeFiles returns the largest live files with resolved paths.
func (s *Store) LargeFiles(ctx context.Context, limit int, minSize int64) ([]LargeFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, mime_type, size, modified_time, web_view_link
		FROM files
		WHERE removed = 0 AND trashed = 0 AND size IS NOT NULL AND size >= ?
		ORDER BY size DESC
		LIMIT ?`, minSize, limit)
	if err != nil {
		return nil, fmt.Errorf("index: querying large files: %w", err)
	}
	defer rows.Close()

	var files []LargeFile

	for rows.Next() {
		var (
			f            LargeFile
			name         sql.NullString
			mimeType     sql.NullString
			modifiedTime sql.NullString
			webViewLink  sql.NullString
		)

		if err := rows.Scan(&f.ID, &name, &mimeType, &f.Size, &modifiedTime, &webViewLink); err != nil {
			return nil, fmt.Errorf("index: scanning large file: %w", err)
		}

		f.Name = name.String
		f.MimeType = mimeType.String
		f.ModifiedTime = modifiedTime.String
		f.WebViewLink = webViewLink.String
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating large files: %w", err)
	}

	for i := range files {
		path, err := s.PrimaryPath(ctx, files[i].ID)
		if err != nil {
			return nil, err
		}

		files[i].Path = path
	}

	return files, nil
}

// MimeStat aggregates live files of one MIME type.
type MimeStat struct {
	Count     int64 `json:"count"`
	TotalSize int64 `json:"total_size"`
}

// MimeBreakdown groups live files by MIME type with counts and sizes.
func (s *Store) MimeBreakdown(ctx context.Context) (map[string]MimeStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mime_type, COUNT(*) AS count, SUM(COALESCE(size, 0)) AS total_size
		FROM files
		WHERE removed = 0 AND trashed = 0
		GROUP BY mime_type`)
	if err != nil {
		return nil, fmt.Errorf("index: querying mime breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[string]MimeStat)

	for rows.Next() {
		var (
			mimeType sql.NullString
			stat     MimeStat
		)

		if err := rows.Scan(&mimeType, &stat.Count, &stat.TotalSize); err != nil {
			return nil, fmt.Errorf("index: scanning mime breakdown: %w", err)
		}

		breakdown[mimeType.String] = stat
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating mime breakdown: %w", err)
	}

	return breakdown, nil
}

// Shortcut is a pointer record joined with its resolved target.
type Shortcut struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TargetID     string `json:"target_id"`
	TargetMime   string `json:"target_mime"`
	TargetName   string `json:"target_name"`
	TargetExists bool   `json:"target_exists"`
	Path         string `json:"path"`
}

// Shortcuts lists all live shortcuts, flagging those whose target no
// longer exists in the index.
func (s *Store) Shortcuts(ctx context.Context) ([]Shortcut, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.shortcut_target_id, s.shortcut_target_mime,
		       t.name, t.id
		FROM files s
		LEFT JOIN files t ON s.shortcut_target_id = t.id AND t.removed = 0
		WHERE s.is_shortcut = 1 AND s.removed = 0 AND s.trashed = 0`)
	if err != nil {
		return nil, fmt.Errorf("index: querying shortcuts: %w", err)
	}
	defer rows.Close()

	var shortcuts []Shortcut

	for rows.Next() {
		var (
			sc         Shortcut
			name       sql.NullString
			targetID   sql.NullString
			targetMime sql.NullString
			targetName sql.NullString
			targetRef  sql.NullString
		)

		if err := rows.Scan(&sc.ID, &name, &targetID, &targetMime, &targetName, &targetRef); err != nil {
			return nil, fmt.Errorf("index: scanning shortcut: %w", err)
		}

		sc.Name = name.String
		sc.TargetID = targetID.String
		sc.TargetMime = targetMime.String
		sc.TargetName = targetName.String
		sc.TargetExists = targetRef.Valid
		shortcuts = append(shortcuts, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating shortcuts: %w", err)
	}

	for i := range shortcuts {
		path, err := s.PrimaryPath(ctx, shortcuts[i].ID)
		if err != nil {
			return nil, err
		}

		shortcuts[i].Path = path
	}

	return shortcuts, nil
}

// BuildSnapshot denormalizes the live index into a snapshot: every
// non-trashed record in API form, the containment map, recursive folder
// size rollups, and summary stats.
func (s *Store) BuildSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	records, err := s.AllFiles(ctx, false, false)
	if err != nil {
		return nil, err
	}

	childrenMap, err := s.ChildrenMap(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]*snapshot.File, 0, len(records))

	for _, rec := range records {
		f := &snapshot.File{
			ID:               rec.ID,
			Name:             rec.Name,
			MimeType:         rec.MimeType,
			CreatedTime:      rec.CreatedTime,
			ModifiedTime:     rec.ModifiedTime,
			WebViewLink:      rec.WebViewLink,
			Parents:          rec.ParentIDs,
			Trashed:          rec.Trashed,
			Starred:          rec.Starred,
			OwnedByMe:        rec.OwnedByMe,
			MD5Checksum:      rec.MD5,
			IsShortcut:       rec.IsShortcut,
			ShortcutTargetID: rec.ShortcutTargetID,
		}

		if f.Parents == nil {
			f.Parents = []string{}
		}

		if rec.HasSize {
			size := rec.Size
			f.Size = &size
		}

		files = append(files, f)
	}

	calculateFolderSizes(files, childrenMap)

	snap := &snapshot.Snapshot{
		Files:       files,
		ChildrenMap: childrenMap,
	}

	// Folder rollups already include their descendants, so the size
	// total counts plain files only.
	for _, f := range files {
		snap.Stats.TotalFiles++

		if f.IsFolder() {
			snap.Stats.FolderCount++
		} else {
			snap.Stats.FileCount++
			snap.Stats.TotalSize += f.EffectiveSize()
		}
	}

	return snap, nil
}

// calculateFolderSizes fills CalculatedSize on every folder with the
// recursive sum of its descendants. Memoized; cycles in the containment
// graph terminate because a node under computation reports zero.
func calculateFolderSizes(files []*snapshot.File, childrenMap map[string][]string) {
	byID := make(map[string]*snapshot.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	done := make(map[string]bool, len(files))
	visiting := make(map[string]bool)

	var calc func(id string) int64

	calc = func(id string) int64 {
		f, ok := byID[id]
		if !ok {
			return 0
		}

		if done[id] {
			return f.EffectiveSize()
		}

		if visiting[id] {
			return 0
		}

		if !f.IsFolder() {
			done[id] = true
			return f.EffectiveSize()
		}

		visiting[id] = true

		var total int64
		for _, childID := range childrenMap[id] {
			total += calc(childID)
		}

		delete(visiting, id)
		done[id] = true
		f.CalculatedSize = &total

		return total
	}

	for _, f := range files {
		calc(f.ID)
	}
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}

	return out
}
