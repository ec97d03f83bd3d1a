package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Batch is a write transaction over the index. Crawl and sync accumulate
// a bounded number of records per batch and commit, so progress survives
// an interruption at batch granularity.
type Batch struct {
	tx  *sql.Tx
	ctx context.Context
}

// BeginBatch starts a write transaction.
func (s *Store) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("index: begin batch: %w", err)
	}

	return &Batch{tx: tx, ctx: ctx}, nil
}

// UpsertFile inserts or updates a file record and replaces its parent
// edges. An upsert always clears the removed flag: the record is live
// again if the remote reports it.
func (b *Batch) UpsertFile(rec *FileRecord) error {
	_, err := b.tx.ExecContext(b.ctx, `
		INSERT INTO files (
			id, name, mime_type, trashed, created_time, modified_time,
			size, md5, owned_by_me, owners_json, capabilities_json,
			is_shortcut, shortcut_target_id, shortcut_target_mime,
			starred, web_view_link, icon_link, raw_json, removed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mime_type = excluded.mime_type,
			trashed = excluded.trashed,
			created_time = excluded.created_time,
			modified_time = excluded.modified_time,
			size = excluded.size,
			md5 = excluded.md5,
			owned_by_me = excluded.owned_by_me,
			owners_json = excluded.owners_json,
			capabilities_json = excluded.capabilities_json,
			is_shortcut = excluded.is_shortcut,
			shortcut_target_id = excluded.shortcut_target_id,
			shortcut_target_mime = excluded.shortcut_target_mime,
			starred = excluded.starred,
			web_view_link = excluded.web_view_link,
			icon_link = excluded.icon_link,
			raw_json = excluded.raw_json,
			removed = 0`,
		rec.ID,
		nullIfEmpty(rec.Name),
		nullIfEmpty(rec.MimeType),
		boolToInt(rec.Trashed),
		nullIfEmpty(rec.CreatedTime),
		nullIfEmpty(rec.ModifiedTime),
		sql.NullInt64{Int64: rec.Size, Valid: rec.HasSize},
		nullIfEmpty(rec.MD5),
		boolToInt(rec.OwnedByMe),
		nullIfEmpty(rec.OwnersJSON),
		nullIfEmpty(rec.CapabilitiesJSON),
		boolToInt(rec.IsShortcut),
		nullIfEmpty(rec.ShortcutTargetID),
		nullIfEmpty(rec.ShortcutTargetMime),
		boolToInt(rec.Starred),
		nullIfEmpty(rec.WebViewLink),
		nullIfEmpty(rec.IconLink),
		rec.RawJSON,
	)
	if err != nil {
		return fmt.Errorf("index: upserting file %s: %w", rec.ID, err)
	}

	return b.replaceParents(rec.ID, rec.ParentIDs)
}

// replaceParents swaps the full parent edge set of a file. Handles moves:
// stale edges go away with the delete.
func (b *Batch) replaceParents(childID string, parentIDs []string) error {
	if _, err := b.tx.ExecContext(b.ctx,
		`DELETE FROM parents WHERE child_id = ?`, childID); err != nil {
		return fmt.Errorf("index: clearing parents of %s: %w", childID, err)
	}

	for _, parentID := range parentIDs {
		if _, err := b.tx.ExecContext(b.ctx,
			`INSERT OR IGNORE INTO parents (parent_id, child_id) VALUES (?, ?)`,
			parentID, childID); err != nil {
			return fmt.Errorf("index: inserting parent edge %s->%s: %w", parentID, childID, err)
		}
	}

	return nil
}

// FileExists reports whether a row with the given id exists, removed or
// not. Reads go through the batch transaction: the store holds a single
// connection, so a store-level read while a batch is open would block.
func (b *Batch) FileExists(fileID string) (bool, error) {
	var id string

	err := b.tx.QueryRowContext(b.ctx,
		`SELECT id FROM files WHERE id = ?`, fileID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("index: checking file %s: %w", fileID, err)
	}

	return true, nil
}

// MarkRemoved flags a file as removed and drops its parent edges. The
// record itself is preserved as a tombstone.
func (b *Batch) MarkRemoved(fileID string) error {
	if _, err := b.tx.ExecContext(b.ctx,
		`UPDATE files SET removed = 1 WHERE id = ?`, fileID); err != nil {
		return fmt.Errorf("index: marking %s removed: %w", fileID, err)
	}

	if _, err := b.tx.ExecContext(b.ctx,
		`DELETE FROM parents WHERE child_id = ?`, fileID); err != nil {
		return fmt.Errorf("index: clearing parents of removed %s: %w", fileID, err)
	}

	return nil
}

// SetSyncState stores a sync_state value inside the batch transaction.
// Crawl and sync write their continuation token through this so the
// token commits atomically with the final batch of records.
func (b *Batch) SetSyncState(key, value string) error {
	if _, err := b.tx.ExecContext(b.ctx,
		`INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)`,
		key, value); err != nil {
		return fmt.Errorf("index: writing sync state %s: %w", key, err)
	}

	return nil
}

// LogFileError records a per-record processing failure.
func (b *Batch) LogFileError(fileID, stage, message string) error {
	if _, err := b.tx.ExecContext(b.ctx,
		`INSERT INTO file_errors (file_id, stage, error, created_time) VALUES (?, ?, ?, ?)`,
		nullIfEmpty(fileID), stage, message,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("index: logging file error: %w", err)
	}

	return nil
}

// Commit commits the batch.
func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("index: commit batch: %w", err)
	}

	return nil
}

// Rollback aborts the batch. Safe to call after Commit.
func (b *Batch) Rollback() error {
	if err := b.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("index: rollback batch: %w", err)
	}

	return nil
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}

	return 0
}
