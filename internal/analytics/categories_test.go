package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/driveindex/driveindex/internal/snapshot"
)

func TestClassifyByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"Photos 2019", "Photos"},
		{"VACATION PICS", "Photos"},
		{"old tax stuff", "Backup/Archive"},
		{"Client Projects", "Work"},
		{"music library", "Music"},
		{"src", "Code"},
		{"Miscellaneous", ""},
		// "backup" outranks "photo": priority order is first match wins.
		{"photo backup", "Backup/Archive"},
	}

	for _, tt := range tests {
		if got := classifyByName(tt.name); got != tt.want {
			t.Errorf("classifyByName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// contentFixture builds a folder with n children of the given MIME type
// and m of a filler type, returning the child ids and lookup map.
func contentFixture(mime string, n, m int) ([]string, map[string]*snapshot.File) {
	byID := map[string]*snapshot.File{}
	var ids []string

	add := func(id, mime string) {
		byID[id] = &snapshot.File{ID: id, Name: id, MimeType: mime, ModifiedTime: "2026-08-01T00:00:00Z"}
		ids = append(ids, id)
	}

	for i := 0; i < n; i++ {
		add(fmt.Sprintf("match-%d", i), mime)
	}

	for i := 0; i < m; i++ {
		add(fmt.Sprintf("filler-%d", i), "text/plain")
	}

	return ids, byID
}

func TestClassifyByContentThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	// 9 of 10 images crosses the 80% bar.
	ids, byID := contentFixture("image/jpeg", 9, 1)
	if got := classifyByContent(ids, byID, now); got != "Photos" {
		t.Errorf("9/10 images = %q, want Photos", got)
	}

	// 8 of 10 is exactly 80% and the rule requires strictly more.
	ids, byID = contentFixture("image/jpeg", 8, 2)
	if got := classifyByContent(ids, byID, now); got != "" {
		t.Errorf("8/10 images = %q, want unclassified", got)
	}
}

func TestClassifyByContentOldFiles(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	byID := map[string]*snapshot.File{}
	var ids []string

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("old-%d", i)
		byID[id] = &snapshot.File{
			ID:       id,
			MimeType: "text/plain",
			// Well over a year before the reference time.
			ModifiedTime: "2020-01-01T00:00:00Z",
		}
		ids = append(ids, id)
	}

	if got := classifyByContent(ids, byID, now); got != "Backup/Archive" {
		t.Errorf("all-stale folder = %q, want Backup/Archive", got)
	}
}

func TestClassifyByContentIgnoresSubfolders(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	byID := map[string]*snapshot.File{
		"sub1": {ID: "sub1", MimeType: snapshot.MimeFolder},
		"sub2": {ID: "sub2", MimeType: snapshot.MimeFolder},
		"img":  {ID: "img", MimeType: "image/png"},
	}

	// One image among two subfolders: the folders don't count, so the
	// single file is 100% images.
	got := classifyByContent([]string{"sub1", "sub2", "img"}, byID, now)
	if got != "Photos" {
		t.Errorf("got %q, want Photos", got)
	}

	// Only subfolders: nothing to classify on.
	got = classifyByContent([]string{"sub1", "sub2"}, byID, now)
	if got != "" {
		t.Errorf("all-folder folder = %q, want unclassified", got)
	}
}

func TestFileTypeGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", "Images"},
		{"video/mp4", "Videos"},
		{"audio/mpeg", "Audio"},
		{"application/pdf", "Documents"},
		{"application/vnd.google-apps.document", "Documents"},
		{"application/msword", "Documents"},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "Documents"},
		{"application/zip", "Other"},
		{"", "Other"},
	}

	for _, tt := range tests {
		if got := FileTypeGroup(tt.mime); got != tt.want {
			t.Errorf("FileTypeGroup(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
