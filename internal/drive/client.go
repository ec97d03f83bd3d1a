package drive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// Service wraps the generated Drive v3 client with the operations the
// index pipelines use. All methods take a context and classify errors
// via the package sentinels.
type Service struct {
	api      *drivev3.Service
	pageSize int64
	logger   *slog.Logger
}

// NewService wraps an already-constructed *drivev3.Service.
// pageSize applies to files.list and changes.list requests.
func NewService(api *drivev3.Service, pageSize int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{api: api, pageSize: pageSize, logger: logger}
}

// Page is one page of a file enumeration.
type Page struct {
	Files         []*drivev3.File
	NextPageToken string
}

// ChangePage is one page of the changes feed. NewStartPageToken is set
// only on the final page.
type ChangePage struct {
	Changes           []*drivev3.Change
	NextPageToken     string
	NewStartPageToken string
}

// ProgressFunc is called after each fetched page with the cumulative
// file count and the number of pages fetched so far.
type ProgressFunc func(files, pages int)

// ListPage fetches a single page of files matching query with the given
// field projection.
func (s *Service) ListPage(ctx context.Context, query, fields, pageToken string) (*Page, error) {
	call := s.api.Files.List().
		Q(query).
		PageSize(s.pageSize).
		Fields(googleapi.Field(fields)).
		Context(ctx)

	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	list, err := call.Do()
	if err != nil {
		return nil, classify("files.list", err)
	}

	return &Page{Files: list.Files, NextPageToken: list.NextPageToken}, nil
}

// ListAllFiles enumerates every file matching query, following page
// tokens until exhaustion. progress may be nil.
func (s *Service) ListAllFiles(ctx context.Context, query, fields string, progress ProgressFunc) ([]*drivev3.File, error) {
	var (
		files []*drivev3.File
		token string
		pages int
	)

	for {
		page, err := s.ListPage(ctx, query, fields, token)
		if err != nil {
			return nil, err
		}

		files = append(files, page.Files...)
		pages++

		if progress != nil {
			progress(len(files), pages)
		}

		s.logger.Debug("fetched file page", "page", pages, "total_files", len(files))

		if page.NextPageToken == "" {
			return files, nil
		}

		token = page.NextPageToken
	}
}

// GetStartPageToken returns the current continuation token for the
// changes feed. Changes listed from this token cover everything that
// happens after this call.
func (s *Service) GetStartPageToken(ctx context.Context) (string, error) {
	resp, err := s.api.Changes.GetStartPageToken().Context(ctx).Do()
	if err != nil {
		return "", classify("changes.getStartPageToken", err)
	}

	return resp.StartPageToken, nil
}

// ListChangesPage fetches a single page of the changes feed starting at
// pageToken.
func (s *Service) ListChangesPage(ctx context.Context, pageToken string) (*ChangePage, error) {
	resp, err := s.api.Changes.List(pageToken).
		PageSize(s.pageSize).
		Fields(googleapi.Field(FieldsChanges)).
		IncludeRemoved(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("changes.list", err)
	}

	return &ChangePage{
		Changes:           resp.Changes,
		NextPageToken:     resp.NextPageToken,
		NewStartPageToken: resp.NewStartPageToken,
	}, nil
}

// ListAllChanges drains the changes feed from pageToken and returns all
// changes plus the new continuation token for the next sync.
func (s *Service) ListAllChanges(ctx context.Context, pageToken string) ([]*drivev3.Change, string, error) {
	var (
		changes  []*drivev3.Change
		newToken string
		token    = pageToken
	)

	for {
		page, err := s.ListChangesPage(ctx, token)
		if err != nil {
			return nil, "", err
		}

		changes = append(changes, page.Changes...)

		if page.NewStartPageToken != "" {
			newToken = page.NewStartPageToken
		}

		if page.NextPageToken == "" {
			break
		}

		token = page.NextPageToken
	}

	if newToken == "" {
		return nil, "", fmt.Errorf("drive: changes feed ended without a new start page token")
	}

	s.logger.Debug("drained changes feed", "changes", len(changes))

	return changes, newToken, nil
}

// About returns the account storage quota and user identity.
func (s *Service) About(ctx context.Context) (*drivev3.About, error) {
	about, err := s.api.About.Get().
		Fields("storageQuota, user").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("about.get", err)
	}

	return about, nil
}

// GetFile fetches a single file record with the full projection.
func (s *Service) GetFile(ctx context.Context, id string) (*drivev3.File, error) {
	file, err := s.api.Files.Get(id).
		Fields(googleapi.Field(FieldsFile)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("files.get", err)
	}

	return file, nil
}

// CheckRecentlyModified probes whether any non-trashed file was modified
// after since. It requests at most limit records with the minimal
// projection and returns true if the result set is non-empty. Used by
// cache validation to decide whether a snapshot is still current.
func (s *Service) CheckRecentlyModified(ctx context.Context, since time.Time, limit int64) (bool, error) {
	query := fmt.Sprintf("modifiedTime > '%s' and %s",
		since.UTC().Format(time.RFC3339), QueryNotTrashed)

	list, err := s.api.Files.List().
		Q(query).
		PageSize(limit).
		Fields(googleapi.Field(FieldsMinimal)).
		Context(ctx).
		Do()
	if err != nil {
		return false, classify("files.list", err)
	}

	return len(list.Files) > 0, nil
}
