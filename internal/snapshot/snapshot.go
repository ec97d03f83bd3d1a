// Package snapshot defines the drive snapshot: the denormalized view of
// the index that gets cached on disk and consumed by the analytics
// engine. Field names follow the Drive API camelCase convention so a
// cached snapshot is directly servable.
package snapshot

// MimeFolder marks containment nodes in snapshot form.
const MimeFolder = "application/vnd.google-apps.folder"

// File is one entry in a snapshot. Size is nil when the remote reported
// no size (folders, native editor documents); CalculatedSize is the
// recursive rollup for folders and nil for plain files.
type File struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	MimeType         string   `json:"mimeType"`
	Size             *int64   `json:"size"`
	CalculatedSize   *int64   `json:"calculatedSize"`
	CreatedTime      string   `json:"createdTime,omitempty"`
	ModifiedTime     string   `json:"modifiedTime,omitempty"`
	WebViewLink      string   `json:"webViewLink,omitempty"`
	Parents          []string `json:"parents"`
	Trashed          bool     `json:"trashed"`
	Starred          bool     `json:"starred"`
	OwnedByMe        bool     `json:"ownedByMe"`
	MD5Checksum      string   `json:"md5Checksum,omitempty"`
	IsShortcut       bool     `json:"isShortcut"`
	ShortcutTargetID string   `json:"shortcutTargetId,omitempty"`
}

// IsFolder reports whether the entry is a containment node.
func (f *File) IsFolder() bool {
	return f.MimeType == MimeFolder
}

// EffectiveSize is the size used for rollups and rankings: the
// calculated rollup when present, else the raw size, else zero.
func (f *File) EffectiveSize() int64 {
	if f.CalculatedSize != nil {
		return *f.CalculatedSize
	}

	if f.Size != nil {
		return *f.Size
	}

	return 0
}

// Stats summarizes a snapshot. FolderCount + FileCount == TotalFiles.
type Stats struct {
	TotalFiles  int   `json:"total_files"`
	TotalSize   int64 `json:"total_size"`
	FolderCount int   `json:"folder_count"`
	FileCount   int   `json:"file_count"`
}

// Snapshot is the complete denormalized drive state: every live entry,
// the containment map, and summary statistics.
type Snapshot struct {
	Files       []*File             `json:"files"`
	ChildrenMap map[string][]string `json:"children_map"`
	Stats       Stats               `json:"stats"`
}

// ByID builds an id-keyed lookup over the snapshot's files.
func (s *Snapshot) ByID() map[string]*File {
	m := make(map[string]*File, len(s.Files))
	for _, f := range s.Files {
		m[f.ID] = f
	}

	return m
}
