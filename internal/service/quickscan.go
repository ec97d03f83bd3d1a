package service

import (
	"context"
	"time"

	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/drive"
	"github.com/driveindex/driveindex/internal/snapshot"
)

// queryTopLevelFolders enumerates live folders directly under the root.
const queryTopLevelFolders = "'root' in parents and " +
	"mimeType='application/vnd.google-apps.folder' and trashed=false"

// QuickScanResult is the shallow account picture: quota, top-level
// folders, and a file count estimate from a single enumeration page.
type QuickScanResult struct {
	Overview            *Overview        `json:"overview"`
	TopFolders          []*snapshot.File `json:"top_folders"`
	EstimatedTotalFiles int              `json:"estimated_total_files"`

	// Exact is set when the estimate enumeration fit in one page, so
	// EstimatedTotalFiles is the true live count.
	Exact bool `json:"exact"`

	// FromCache marks a result served from a validated cache.
	FromCache bool `json:"from_cache"`
}

// QuickScan answers the shallow account picture in a handful of API
// calls. A cached result that passes TTL-plus-probe validation is
// served as is; otherwise the scan runs fresh and replaces the cache.
func (s *Service) QuickScan(ctx context.Context) (*QuickScanResult, error) {
	if cached, err := s.loadQuickScanCache(ctx); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	overview, err := s.GetOverview(ctx)
	if err != nil {
		return nil, err
	}

	result := &QuickScanResult{
		Overview:   overview,
		TopFolders: []*snapshot.File{},
	}

	page, err := s.remote.ListPage(ctx, queryTopLevelFolders, drive.FieldsQuick, "")
	if err != nil {
		return nil, err
	}

	for _, f := range page.Files {
		size := f.Size

		result.TopFolders = append(result.TopFolders, &snapshot.File{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			Size:         &size,
			CreatedTime:  f.CreatedTime,
			ModifiedTime: f.ModifiedTime,
			WebViewLink:  f.WebViewLink,
			Parents:      f.Parents,
		})
	}

	probe, err := s.remote.ListPage(ctx, drive.QueryNotTrashed, drive.FieldsQuick, "")
	if err != nil {
		return nil, err
	}

	result.EstimatedTotalFiles = len(probe.Files)
	result.Exact = probe.NextPageToken == ""

	folderCount := int64(len(result.TopFolders))
	meta := cache.Metadata{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		FileCount:    &folderCount,
		CacheVersion: 1,
	}

	if err := s.caches.Save(cache.ScanQuick, result, meta); err != nil {
		return nil, err
	}

	return result, nil
}

// loadQuickScanCache returns a still-valid cached quick scan, or nil
// when the scan has to run fresh. A validation pass bumps the cache's
// validated count.
func (s *Service) loadQuickScanCache(ctx context.Context) (*QuickScanResult, error) {
	envelope, err := s.caches.Load(cache.ScanQuick)
	if err != nil {
		return nil, err
	}

	if envelope == nil {
		return nil, nil
	}

	var meta cache.Metadata
	if err := jsonUnmarshal(envelope.Metadata, &meta); err != nil {
		return nil, err
	}

	if !cache.ValidateWithRemote(ctx, s.remote, &meta, s.cfg.TTLQuick(), time.Now().UTC(), s.logger) {
		return nil, nil
	}

	s.bumpValidatedCount(cache.ScanQuick, &meta)

	var result QuickScanResult
	if err := jsonUnmarshal(envelope.Data, &result); err != nil {
		return nil, err
	}

	result.FromCache = true

	return &result, nil
}
