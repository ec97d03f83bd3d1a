package index

import "database/sql"

// selectFileColumns is the column list matching scanFileRecord.
const selectFileColumns = `SELECT
	id, name, mime_type, trashed, created_time, modified_time,
	size, md5, owned_by_me, owners_json, capabilities_json,
	is_shortcut, shortcut_target_id, shortcut_target_mime,
	starred, web_view_link, icon_link, raw_json, removed`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanFileRecord scans one files row into a FileRecord, converting the
// nullable columns. ParentIDs is left for the caller to populate.
func scanFileRecord(row rowScanner) (*FileRecord, error) {
	var (
		rec                FileRecord
		name               sql.NullString
		mimeType           sql.NullString
		createdTime        sql.NullString
		modifiedTime       sql.NullString
		size               sql.NullInt64
		md5                sql.NullString
		ownedByMe          sql.NullInt64
		ownersJSON         sql.NullString
		capabilitiesJSON   sql.NullString
		shortcutTargetID   sql.NullString
		shortcutTargetMime sql.NullString
		starred            sql.NullInt64
		webViewLink        sql.NullString
		iconLink           sql.NullString
		trashed            int64
		isShortcut         int64
		removed            int64
	)

	err := row.Scan(
		&rec.ID, &name, &mimeType, &trashed, &createdTime, &modifiedTime,
		&size, &md5, &ownedByMe, &ownersJSON, &capabilitiesJSON,
		&isShortcut, &shortcutTargetID, &shortcutTargetMime,
		&starred, &webViewLink, &iconLink, &rec.RawJSON, &removed,
	)
	if err != nil {
		return nil, err
	}

	rec.Name = name.String
	rec.MimeType = mimeType.String
	rec.Trashed = trashed != 0
	rec.CreatedTime = createdTime.String
	rec.ModifiedTime = modifiedTime.String
	rec.Size = size.Int64
	rec.HasSize = size.Valid
	rec.MD5 = md5.String
	rec.OwnedByMe = ownedByMe.Int64 != 0
	rec.OwnersJSON = ownersJSON.String
	rec.CapabilitiesJSON = capabilitiesJSON.String
	rec.IsShortcut = isShortcut != 0
	rec.ShortcutTargetID = shortcutTargetID.String
	rec.ShortcutTargetMime = shortcutTargetMime.String
	rec.Starred = starred.Int64 != 0
	rec.WebViewLink = webViewLink.String
	rec.IconLink = iconLink.String
	rec.Removed = removed != 0

	return &rec, nil
}
