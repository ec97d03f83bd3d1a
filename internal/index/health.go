package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Edge is one parent-child containment edge.
type Edge struct {
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
}

// OrphanedFile is a live file with no parent edges. Root-level items are
// legitimately parentless, so orphans are informational, not failures.
type OrphanedFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// DanglingEdgeReport covers edges whose parent or child record is absent.
type DanglingEdgeReport struct {
	MissingParents  []Edge         `json:"missing_parents"`
	MissingChildren []Edge         `json:"missing_children"`
	OrphanedFiles   []OrphanedFile `json:"orphaned_files"`
}

// UnresolvedShortcut is a shortcut whose target is absent from the index.
type UnresolvedShortcut struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TargetID string `json:"shortcut_target_id"`
}

// ShortcutReport summarizes shortcut target resolution.
type ShortcutReport struct {
	Unresolved    []UnresolvedShortcut `json:"unresolved"`
	ResolvedCount int64                `json:"resolved_count"`
}

// CycleReport lists containment cycles among folders. A folder reachable
// from itself breaks path reconstruction and size rollups.
type CycleReport struct {
	Cycles [][]string `json:"cycles"`
}

// IndexStats are the aggregate counters reported by the health check.
type IndexStats struct {
	TotalFiles     int64 `json:"total_files"`
	ActiveFiles    int64 `json:"active_files"`
	TrashedFiles   int64 `json:"trashed_files"`
	RemovedFiles   int64 `json:"removed_files"`
	Folders        int64 `json:"folders"`
	Files          int64 `json:"files"`
	Shortcuts      int64 `json:"shortcuts"`
	GoogleNative   int64 `json:"google_native"`
	BinaryFiles    int64 `json:"binary_files"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
	WithMD5        int64 `json:"with_md5"`
	OwnedByMe      int64 `json:"owned_by_me"`
	ParentEdges    int64 `json:"parent_edges"`
}

// HealthResult is the combined outcome of all integrity checks.
// Warnings do not fail the check; errors do.
type HealthResult struct {
	Passed    bool                `json:"passed"`
	Warnings  []string            `json:"warnings"`
	Errors    []string            `json:"errors"`
	Stats     IndexStats          `json:"stats"`
	MimeTypes map[string]MimeStat `json:"mime_types"`
	Dangling  DanglingEdgeReport  `json:"dangling_edges"`
	Shortcuts ShortcutReport      `json:"shortcuts"`
	Cycles    CycleReport         `json:"cycles"`
}

// CheckHealth runs every integrity check over the index: dangling edges,
// unresolved shortcuts, folder containment cycles, and the aggregate
// stats. Cycles are errors; everything else warns.
func (s *Store) CheckHealth(ctx context.Context) (*HealthResult, error) {
	result := &HealthResult{
		Passed:   true,
		Warnings: []string{},
		Errors:   []string{},
	}

	stats, err := s.collectStats(ctx)
	if err != nil {
		return nil, err
	}

	result.Stats = stats

	mimeTypes, err := s.MimeBreakdown(ctx)
	if err != nil {
		return nil, err
	}

	result.MimeTypes = mimeTypes

	dangling, err := s.checkDanglingEdges(ctx)
	if err != nil {
		return nil, err
	}

	result.Dangling = dangling

	if n := len(dangling.MissingParents); n > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("found %d edges with missing parents", n))
	}

	if n := len(dangling.MissingChildren); n > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("found %d edges with missing children", n))
	}

	shortcuts, err := s.checkShortcuts(ctx)
	if err != nil {
		return nil, err
	}

	result.Shortcuts = shortcuts

	if n := len(shortcuts.Unresolved); n > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("found %d shortcuts with missing targets", n))
	}

	cycles, err := s.checkFolderCycles(ctx)
	if err != nil {
		return nil, err
	}

	result.Cycles = cycles

	if n := len(cycles.Cycles); n > 0 {
		result.Passed = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("found %d cycle(s) in folder structure", n))
	}

	s.logger.Info("health check complete",
		slog.Bool("passed", result.Passed),
		slog.Int("warnings", len(result.Warnings)),
		slog.Int("errors", len(result.Errors)),
		slog.Int64("files", result.Stats.TotalFiles),
	)

	return result, nil
}

func (s *Store) checkDanglingEdges(ctx context.Context) (DanglingEdgeReport, error) {
	report := DanglingEdgeReport{
		MissingParents:  []Edge{},
		MissingChildren: []Edge{},
		OrphanedFiles:   []OrphanedFile{},
	}

	missingParents, err := s.scanEdges(ctx, `
		SELECT p.parent_id, p.child_id
		FROM parents p
		LEFT JOIN files f ON p.parent_id = f.id
		WHERE f.id IS NULL`)
	if err != nil {
		return report, err
	}

	report.MissingParents = missingParents

	missingChildren, err := s.scanEdges(ctx, `
		SELECT p.parent_id, p.child_id
		FROM parents p
		LEFT JOIN files f ON p.child_id = f.id
		WHERE f.id IS NULL`)
	if err != nil {
		return report, err
	}

	report.MissingChildren = missingChildren

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.mime_type
		FROM files f
		LEFT JOIN parents p ON f.id = p.child_id
		WHERE p.child_id IS NULL AND f.removed = 0 AND f.trashed = 0`)
	if err != nil {
		return report, fmt.Errorf("index: querying orphans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orphan   OrphanedFile
			name     sql.NullString
			mimeType sql.NullString
		)

		if err := rows.Scan(&orphan.ID, &name, &mimeType); err != nil {
			return report, fmt.Errorf("index: scanning orphan: %w", err)
		}

		orphan.Name = name.String
		orphan.MimeType = mimeType.String
		report.OrphanedFiles = append(report.OrphanedFiles, orphan)
	}

	if err := rows.Err(); err != nil {
		return report, fmt.Errorf("index: iterating orphans: %w", err)
	}

	return report, nil
}

func (s *Store) scanEdges(ctx context.Context, query string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: querying edges: %w", err)
	}
	defer rows.Close()

	edges := []Edge{}

	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ParentID, &e.ChildID); err != nil {
			return nil, fmt.Errorf("index: scanning edge: %w", err)
		}

		edges = append(edges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating edges: %w", err)
	}

	return edges, nil
}

func (s *Store) checkShortcuts(ctx context.Context) (ShortcutReport, error) {
	report := ShortcutReport{Unresolved: []UnresolvedShortcut{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.shortcut_target_id
		FROM files s
		LEFT JOIN files t ON s.shortcut_target_id = t.id AND t.removed = 0
		WHERE s.is_shortcut = 1 AND s.removed = 0 AND s.trashed = 0
		  AND t.id IS NULL`)
	if err != nil {
		return report, fmt.Errorf("index: querying unresolved shortcuts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sc       UnresolvedShortcut
			name     sql.NullString
			targetID sql.NullString
		)

		if err := rows.Scan(&sc.ID, &name, &targetID); err != nil {
			return report, fmt.Errorf("index: scanning unresolved shortcut: %w", err)
		}

		sc.Name = name.String
		sc.TargetID = targetID.String
		report.Unresolved = append(report.Unresolved, sc)
	}

	if err := rows.Err(); err != nil {
		return report, fmt.Errorf("index: iterating unresolved shortcuts: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM files s
		JOIN files t ON s.shortcut_target_id = t.id AND t.removed = 0
		WHERE s.is_shortcut = 1 AND s.removed = 0 AND s.trashed = 0`).
		Scan(&report.ResolvedCount)
	if err != nil {
		return report, fmt.Errorf("index: counting resolved shortcuts: %w", err)
	}

	return report, nil
}

// checkFolderCycles runs a DFS over the folder-to-folder containment
// graph looking for back edges.
func (s *Store) checkFolderCycles(ctx context.Context) (CycleReport, error) {
	report := CycleReport{Cycles: [][]string{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM files
		WHERE mime_type = ? AND removed = 0 AND trashed = 0`, MimeFolder)
	if err != nil {
		return report, fmt.Errorf("index: listing folders: %w", err)
	}
	defer rows.Close()

	folderIDs := make(map[string]bool)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return report, fmt.Errorf("index: scanning folder id: %w", err)
		}

		folderIDs[id] = true
	}

	if err := rows.Err(); err != nil {
		return report, fmt.Errorf("index: iterating folder ids: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT parent_id, child_id FROM parents`)
	if err != nil {
		return report, fmt.Errorf("index: listing edges: %w", err)
	}
	defer edgeRows.Close()

	childrenMap := make(map[string][]string)

	for edgeRows.Next() {
		var parentID, childID string
		if err := edgeRows.Scan(&parentID, &childID); err != nil {
			return report, fmt.Errorf("index: scanning edge: %w", err)
		}

		if folderIDs[parentID] && folderIDs[childID] {
			childrenMap[parentID] = append(childrenMap[parentID], childID)
		}
	}

	if err := edgeRows.Err(); err != nil {
		return report, fmt.Errorf("index: iterating edges: %w", err)
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var path []string
	var dfs func(node string) bool

	dfs = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, child := range childrenMap[node] {
			if !visited[child] {
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				start := 0
				for i, id := range path {
					if id == child {
						start = i
						break
					}
				}

				cycle := append(append([]string{}, path[start:]...), child)
				report.Cycles = append(report.Cycles, cycle)

				return true
			}
		}

		path = path[:len(path)-1]
		delete(onStack, node)

		return false
	}

	for folderID := range folderIDs {
		if !visited[folderID] {
			path = path[:0]
			for k := range onStack {
				delete(onStack, k)
			}

			dfs(folderID)
		}
	}

	return report, nil
}

// collectStats gathers the aggregate counters over the live index.
func (s *Store) collectStats(ctx context.Context) (IndexStats, error) {
	var stats IndexStats

	counters := []struct {
		dest  *int64
		query string
	}{
		{&stats.TotalFiles, `SELECT COUNT(*) FROM files WHERE removed = 0`},
		{&stats.TrashedFiles, `SELECT COUNT(*) FROM files WHERE removed = 0 AND trashed = 1`},
		{&stats.ActiveFiles, `SELECT COUNT(*) FROM files WHERE removed = 0 AND trashed = 0`},
		{&stats.RemovedFiles, `SELECT COUNT(*) FROM files WHERE removed = 1`},
		{&stats.Folders, `SELECT COUNT(*) FROM files
			WHERE removed = 0 AND trashed = 0 AND mime_type = '` + MimeFolder + `'`},
		{&stats.Shortcuts, `SELECT COUNT(*) FROM files
			WHERE removed = 0 AND trashed = 0 AND is_shortcut = 1`},
		{&stats.GoogleNative, `SELECT COUNT(*) FROM files
			WHERE removed = 0 AND trashed = 0
			  AND mime_type LIKE 'application/vnd.google-apps.%'
			  AND mime_type != '` + MimeFolder + `'
			  AND is_shortcut = 0`},
		{&stats.BinaryFiles, `SELECT COUNT(*) FROM files
			WHERE removed = 0 AND trashed = 0
			  AND mime_type NOT LIKE 'application/vnd.google-apps.%'`},
		{&stats.TotalSizeBytes, `SELECT COALESCE(SUM(COALESCE(size, 0)), 0) FROM files
			WHERE removed = 0 AND trashed = 0`},
		{&stats.WithMD5, `SELECT COUNT(*) FROM files
			WHERE removed = 0 AND trashed = 0 AND md5 IS NOT NULL`},
		{&stats.OwnedByMe, `SELECT COUNT(*) FROM files
			WHERE removed = 0 AND trashed = 0 AND owned_by_me = 1`},
		{&stats.ParentEdges, `SELECT COUNT(*) FROM parents`},
	}

	for _, c := range counters {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("index: collecting stats: %w", err)
		}
	}

	stats.Files = stats.ActiveFiles - stats.Folders

	return stats, nil
}
