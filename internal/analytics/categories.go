// Package analytics computes derived views over a drive snapshot:
// duplicates, folder depths, semantic categories, age and type
// matrices, orphans, activity timelines, and top-N size rankings. All
// computation is pure over the snapshot; results are versioned so a
// logic change invalidates previously cached bundles.
package analytics

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/driveindex/driveindex/internal/snapshot"
)

// DerivedVersion identifies the analytics logic. Bump it whenever a
// computation changes shape or meaning; cached bundles from older
// versions are discarded.
const DerivedVersion = 2

// Semantic categories with their name keywords, in priority order.
// Classification takes the first category with a keyword substring
// match against the case-folded folder name.
var semanticCategories = []struct {
	name     string
	keywords []string
}{
	{"Backup/Archive", []string{"backup", "backup_", "old", "old_", "archive", "legacy", "bak", "oldbackup"}},
	{"Photos", []string{"photo", "photos", "picture", "pictures", "images", "camera", "pic", "pics", "img"}},
	{"Work", []string{"work", "business", "client", "project", "projects", "office", "corporate", "job"}},
	{"Personal", []string{"personal", "home", "family", "private", "my", "self"}},
	{"Documents", []string{"document", "doc", "documents", "files", "paperwork"}},
	{"Music", []string{"music", "audio", "song", "songs", "mp3", "sound", "tunes"}},
	{"Videos", []string{"video", "videos", "movie", "movies", "film", "films"}},
	{"Downloads", []string{"download", "downloaded", "temp", "tmp"}},
	{"Code", []string{"code", "dev", "development", "src", "source", "script", "scripts", "programming"}},
	{"School", []string{"school", "education", "study", "studies", "course", "courses", "class", "university"}},
}

// CategoryNames lists every semantic category in priority order.
func CategoryNames() []string {
	names := make([]string, len(semanticCategories))
	for i, cat := range semanticCategories {
		names[i] = cat.name
	}

	return names
}

var foldCaser = cases.Fold()

// classifyByName returns the semantic category matching the folder
// name, or "" if no keyword matches.
func classifyByName(name string) string {
	folded := foldCaser.String(name)

	for _, cat := range semanticCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(folded, kw) {
				return cat.name
			}
		}
	}

	return ""
}

// contentRuleThreshold is the dominance share a content type needs
// before it determines the folder's category.
const contentRuleThreshold = 0.8

// classifyByContent categorizes a folder from its direct children: if
// more than 80% of the child files share a content type (or are older
// than a year), the folder takes the matching category. Subfolders are
// ignored; an all-folder folder stays unclassified.
func classifyByContent(childIDs []string, byID map[string]*snapshot.File, now time.Time) string {
	if len(childIDs) == 0 {
		return ""
	}

	var total, images, videos, audio, docs, old int

	for _, childID := range childIDs {
		child, ok := byID[childID]
		if !ok || child.IsFolder() {
			continue
		}

		total++

		mime := strings.ToLower(child.MimeType)

		switch {
		case strings.HasPrefix(mime, "image/"):
			images++
		case strings.HasPrefix(mime, "video/"):
			videos++
		case strings.HasPrefix(mime, "audio/"):
			audio++
		case strings.Contains(mime, "document") || strings.Contains(mime, "pdf"):
			docs++
		}

		if mdt, ok := parseTime(child.ModifiedTime); ok && now.Sub(mdt) > 365*24*time.Hour {
			old++
		}
	}

	if total == 0 {
		return ""
	}

	ratio := func(n int) bool {
		return float64(n)/float64(total) > contentRuleThreshold
	}

	switch {
	case ratio(images):
		return "Photos"
	case ratio(old):
		return "Backup/Archive"
	case ratio(videos):
		return "Videos"
	case ratio(audio):
		return "Music"
	case ratio(docs):
		return "Documents"
	}

	return ""
}

// FileTypeGroup maps a MIME type onto the broad type groups used by the
// type matrices.
func FileTypeGroup(mime string) string {
	m := strings.ToLower(mime)

	switch {
	case strings.HasPrefix(m, "image/"):
		return "Images"
	case strings.HasPrefix(m, "video/"):
		return "Videos"
	case strings.HasPrefix(m, "audio/"):
		return "Audio"
	case strings.HasPrefix(m, "application/pdf"),
		strings.HasPrefix(m, "application/vnd.google-apps.document"),
		strings.HasPrefix(m, "application/msword"),
		strings.HasPrefix(m, "application/vnd.openxmlformats"):
		return "Documents"
	}

	return "Other"
}

// parseTime parses an API timestamp, tolerating the millisecond form.
func parseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}
