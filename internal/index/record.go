package index

import (
	"encoding/json"
	"fmt"
	"strings"

	drivev3 "google.golang.org/api/drive/v3"
)

// Well-known Drive MIME types the index treats specially.
const (
	// MimeFolder marks containment nodes.
	MimeFolder = "application/vnd.google-apps.folder"

	// MimeShortcut marks pointer records. Shortcuts carry no content of
	// their own and are excluded from size rollups.
	MimeShortcut = "application/vnd.google-apps.shortcut"
)

// FileRecord is one row of the files table: normalized columns the query
// layer reads, plus the raw API payload for anything not normalized.
type FileRecord struct {
	ID                 string
	Name               string
	MimeType           string
	Trashed            bool
	CreatedTime        string // RFC 3339, as the API returned it
	ModifiedTime       string
	Size               int64
	HasSize            bool // distinguishes size 0 from size absent
	MD5                string
	OwnedByMe          bool
	OwnersJSON         string
	CapabilitiesJSON   string
	IsShortcut         bool
	ShortcutTargetID   string
	ShortcutTargetMime string
	Starred            bool
	WebViewLink        string
	IconLink           string
	RawJSON            string
	Removed            bool

	// ParentIDs is populated from the parents table on reads and
	// consumed by ReplaceParents on writes. It is not a files column.
	ParentIDs []string
}

// IsFolder reports whether the record is a containment node.
func (r *FileRecord) IsFolder() bool {
	return r.MimeType == MimeFolder
}

// RecordFromAPI normalizes a Drive API file payload into a FileRecord.
// The full payload is preserved in RawJSON.
func RecordFromAPI(f *drivev3.File) (*FileRecord, error) {
	if f == nil || f.Id == "" {
		return nil, fmt.Errorf("index: file payload has no id")
	}

	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("index: encoding raw payload for %s: %w", f.Id, err)
	}

	rec := &FileRecord{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Trashed:      f.Trashed,
		CreatedTime:  f.CreatedTime,
		ModifiedTime: f.ModifiedTime,
		MD5:          f.Md5Checksum,
		OwnedByMe:    f.OwnedByMe,
		Starred:      f.Starred,
		WebViewLink:  f.WebViewLink,
		IconLink:     f.IconLink,
		RawJSON:      string(raw),
		ParentIDs:    f.Parents,
	}

	// The API omits size for folders and native Google editor types.
	// Binary content always carries a size, including an explicit zero,
	// so presence is determined by the MIME family rather than the value.
	if !strings.HasPrefix(f.MimeType, "application/vnd.google-apps.") || f.Size > 0 {
		rec.Size = f.Size
		rec.HasSize = true
	}

	if f.MimeType == MimeShortcut {
		rec.IsShortcut = true
	}

	if f.ShortcutDetails != nil {
		rec.ShortcutTargetID = f.ShortcutDetails.TargetId
		rec.ShortcutTargetMime = f.ShortcutDetails.TargetMimeType
	}

	if len(f.Owners) > 0 {
		b, err := json.Marshal(f.Owners)
		if err != nil {
			return nil, fmt.Errorf("index: encoding owners for %s: %w", f.Id, err)
		}

		rec.OwnersJSON = string(b)
	}

	if f.Capabilities != nil {
		b, err := json.Marshal(f.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("index: encoding capabilities for %s: %w", f.Id, err)
		}

		rec.CapabilitiesJSON = string(b)
	}

	return rec, nil
}
