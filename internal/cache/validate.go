package cache

import (
	"context"
	"log/slog"
	"time"
)

// FreshWithinTTL reports whether the cache timestamp is younger than
// maxAge at the reference time. An unparsable timestamp is stale.
func FreshWithinTTL(meta *Metadata, maxAge time.Duration, now time.Time) bool {
	cachedAt, err := time.Parse(time.RFC3339, meta.Timestamp)
	if err != nil {
		return false
	}

	return now.Sub(cachedAt) < maxAge
}

// RemoteProber is the single remote call cache validation needs: has
// anything changed since the given instant.
type RemoteProber interface {
	CheckRecentlyModified(ctx context.Context, since time.Time, limit int64) (bool, error)
}

// ValidateWithRemote decides whether a cached snapshot is still
// current. Within the TTL the cache is valid with no remote call. Past
// the TTL, one probe asks the remote whether anything changed since the
// cache was written: unchanged extends validity indefinitely, changed
// invalidates. If the probe itself fails, the decision falls back to
// the strict TTL, which at this point has already expired.
func ValidateWithRemote(ctx context.Context, prober RemoteProber, meta *Metadata, maxAge time.Duration, now time.Time, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}

	if FreshWithinTTL(meta, maxAge, now) {
		return true
	}

	cachedAt, err := time.Parse(time.RFC3339, meta.Timestamp)
	if err != nil {
		return false
	}

	modified, err := prober.CheckRecentlyModified(ctx, cachedAt, 1)
	if err != nil {
		logger.Error("cache probe failed, falling back to TTL",
			slog.String("error", err.Error()),
		)

		return FreshWithinTTL(meta, maxAge, now)
	}

	if modified {
		logger.Info("cache invalidated, remote changed since cache")
		return false
	}

	logger.Info("cache past TTL but remote unchanged, still valid",
		slog.Int64("age_days", int64(now.Sub(cachedAt).Hours()/24)),
	)

	return true
}

// AnalyticsValid reports whether a cached analytics bundle still
// matches its source snapshot cache: the timestamps and cache versions
// must match exactly; a nil source file count in the analytics metadata
// matches any source.
func AnalyticsValid(analytics *AnalyticsMetadata, source *Metadata) bool {
	if analytics == nil || source == nil {
		return false
	}

	if analytics.SourceCacheTimestamp != source.Timestamp {
		return false
	}

	if analytics.SourceCacheVersion != source.CacheVersion {
		return false
	}

	if analytics.SourceFileCount == nil {
		return true
	}

	if source.FileCount == nil {
		return false
	}

	return *analytics.SourceFileCount == *source.FileCount
}
