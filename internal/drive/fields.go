package drive

// Field projections for files.list / changes.list requests. Two are
// used: FULL for crawl and change-feed payloads (everything the index
// normalizes), MINIMAL for the any-change-since probe where only
// existence matters.
const (
	// fullFileFields is the per-file projection shared by listing and
	// change-feed requests.
	fullFileFields = "id, name, mimeType, parents, size, createdTime, modifiedTime, " +
		"md5Checksum, trashed, starred, ownedByMe, owners, capabilities, " +
		"shortcutDetails, webViewLink, iconLink"

	// quickFileFields is the reduced projection for quick scans.
	quickFileFields = "id, name, mimeType, parents, size, createdTime, modifiedTime, webViewLink"

	// FieldsFull is the files.list projection for a full crawl.
	FieldsFull = "nextPageToken, files(" + fullFileFields + ")"

	// FieldsQuick is the files.list projection for a quick scan.
	FieldsQuick = "nextPageToken, files(" + quickFileFields + ")"

	// FieldsMinimal is the probe projection: id plus modifiedTime.
	FieldsMinimal = "files(id, modifiedTime)"

	// FieldsChanges is the changes.list projection. Change-feed file
	// payloads carry the full projection so sync upserts are complete.
	FieldsChanges = "nextPageToken, newStartPageToken, " +
		"changes(fileId, removed, file(" + fullFileFields + "))"

	// FieldsFile is the files.get projection (single-record fetch).
	FieldsFile = fullFileFields

	// QueryNotTrashed filters trashed files out of enumerations.
	QueryNotTrashed = "trashed=false"
)
