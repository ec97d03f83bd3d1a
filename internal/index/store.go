// Package index is the local metadata index: a SQLite database holding
// normalized file records, containment edges, continuation tokens, and
// per-record error history. The store is the sole writer (one open
// connection); crawl and sync commit through batches, the query layer
// reads through the same handle.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Keys in the sync_state table.
const (
	// KeyStartPageToken is the changes-feed continuation token.
	KeyStartPageToken = "start_page_token"

	// KeyLastFullCrawlTime is when the last full crawl completed (RFC 3339).
	KeyLastFullCrawlTime = "last_full_crawl_time"

	// KeyLastSyncTime is when the index last converged with the remote,
	// by full crawl or incremental sync (RFC 3339).
	KeyLastSyncTime = "last_sync_time"

	// KeyFileCount is the file count recorded by the last full crawl.
	KeyFileCount = "file_count"

	// KeySchemaVersion records the schema generation. Written on every
	// Open and the one sync_state row that survives Clear.
	KeySchemaVersion = "schema_version"
)

// schemaVersion is the current schema generation, matching the latest
// migration.
const schemaVersion = "1"

// Store owns the index database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if necessary) the index database at dbPath,
// applies pending migrations, and returns the store. The parent
// directory is created if missing.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("index: creating data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"+
			"&_pragma=journal_size_limit(67108864)",
		dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: opening database: %w", err)
	}

	// Sole-writer: a single connection sidesteps SQLITE_BUSY between the
	// write pipelines and the query layer.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)`,
		KeySchemaVersion, schemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: recording schema version: %w", err)
	}

	return &Store{db: db, path: dbPath, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("index: closing database: %w", err)
	}

	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// GetSyncState returns the value for key, or "" if the key is not set.
func (s *Store) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("index: reading sync state %s: %w", key, err)
	}

	return value, nil
}

// SetSyncState stores value under key, replacing any existing value.
func (s *Store) SetSyncState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("index: writing sync state %s: %w", key, err)
	}

	return nil
}

// GetFile returns the record with the given id, or (nil, nil) if it is
// absent or marked removed. Parent edges are populated.
func (s *Store) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		selectFileColumns+` FROM files WHERE id = ? AND removed = 0`, id)

	rec, err := scanFileRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("index: reading file %s: %w", id, err)
	}

	parents, err := s.Parents(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.ParentIDs = parents

	return rec, nil
}

// AllFiles returns every file record, optionally including trashed and
// removed rows. Parent edges are populated for all returned records.
func (s *Store) AllFiles(ctx context.Context, includeTrashed, includeRemoved bool) ([]*FileRecord, error) {
	query := selectFileColumns + ` FROM files WHERE 1=1`
	if !includeRemoved {
		query += ` AND removed = 0`
	}

	if !includeTrashed {
		query += ` AND trashed = 0`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index: listing files: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord

	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scanning file row: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating files: %w", err)
	}

	if err := s.attachParents(ctx, records); err != nil {
		return nil, err
	}

	return records, nil
}

// attachParents loads the full parents table once and fills ParentIDs on
// each record. One query beats a per-record lookup at index scale.
func (s *Store) attachParents(ctx context.Context, records []*FileRecord) error {
	rows, err := s.db.QueryContext(ctx, `SELECT parent_id, child_id FROM parents`)
	if err != nil {
		return fmt.Errorf("index: listing parent edges: %w", err)
	}
	defer rows.Close()

	byChild := make(map[string][]string)

	for rows.Next() {
		var parentID, childID string
		if err := rows.Scan(&parentID, &childID); err != nil {
			return fmt.Errorf("index: scanning parent edge: %w", err)
		}

		byChild[childID] = append(byChild[childID], parentID)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: iterating parent edges: %w", err)
	}

	for _, rec := range records {
		rec.ParentIDs = byChild[rec.ID]
	}

	return nil
}

// Parents returns the parent folder ids of a file.
func (s *Store) Parents(ctx context.Context, childID string) ([]string, error) {
	return s.edgeColumn(ctx,
		`SELECT parent_id FROM parents WHERE child_id = ?`, childID)
}

// Children returns the direct child ids of a folder.
func (s *Store) Children(ctx context.Context, parentID string) ([]string, error) {
	return s.edgeColumn(ctx,
		`SELECT child_id FROM parents WHERE parent_id = ?`, parentID)
}

func (s *Store) edgeColumn(ctx context.Context, query, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("index: reading edges for %s: %w", id, err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var edgeID string
		if err := rows.Scan(&edgeID); err != nil {
			return nil, fmt.Errorf("index: scanning edge: %w", err)
		}

		ids = append(ids, edgeID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating edges: %w", err)
	}

	return ids, nil
}

// FileCount returns the number of live records, optionally counting
// trashed files. Removed rows are never counted.
func (s *Store) FileCount(ctx context.Context, includeTrashed bool) (int64, error) {
	query := `SELECT COUNT(*) FROM files WHERE removed = 0`
	if !includeTrashed {
		query += ` AND trashed = 0`
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("index: counting files: %w", err)
	}

	return count, nil
}

// HasData reports whether the index holds at least one file record.
func (s *Store) HasData(ctx context.Context) (bool, error) {
	count, err := s.FileCount(ctx, true)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// FileErrorCount returns the number of logged per-record failures.
func (s *Store) FileErrorCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_errors`).Scan(&count); err != nil {
		return 0, fmt.Errorf("index: counting file errors: %w", err)
	}

	return count, nil
}

// Clear deletes all index contents: file records, edges, error history,
// and sync state except the schema version. Schema and migration
// bookkeeping survive, so the next crawl reuses the database without
// re-migrating.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM parents`,
		`DELETE FROM files`,
		`DELETE FROM file_errors`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index: clearing: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sync_state WHERE key != ?`, KeySchemaVersion); err != nil {
		return fmt.Errorf("index: clearing sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit clear: %w", err)
	}

	s.logger.Info("index cleared", slog.String("path", s.path))

	return nil
}

// LogFileError records a per-record processing failure outside a batch.
func (s *Store) LogFileError(ctx context.Context, fileID, stage, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_errors (file_id, stage, error, created_time) VALUES (?, ?, ?, ?)`,
		nullIfEmpty(fileID), stage, message, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("index: logging file error: %w", err)
	}

	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
