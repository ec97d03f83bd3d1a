package config

// Default values for configuration options. These are safe starting
// points that work without any config file at all: state goes under the
// user data dir and the remote defaults match the Drive API page limits.
const (
	defaultDataDir          = "data"
	defaultCacheDir         = "cache"
	defaultCredentialsFile  = "credentials.json"
	defaultTokenFile        = "token.json"
	defaultFetchPageSize    = 1000
	defaultCommitBatchCrawl = 500
	defaultCommitBatchSync  = 100
	defaultTTLQuick         = "168h" // 7 days
	defaultTTLFull          = "720h" // 30 days
	defaultDuplicateMinSize = 0
	defaultPathMaxPaths     = 5
	defaultPathMaxDepth     = 50
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"

	// Drive caps files.list/changes.list pageSize at 1000.
	maxFetchPageSize = 1000
)

// DefaultConfig returns a Config populated with all default values.
// Used both as the starting point for TOML decoding (so unset fields
// retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		StorageConfig: StorageConfig{
			DataDir:  defaultDataDir,
			CacheDir: defaultCacheDir,
		},
		RemoteConfig: RemoteConfig{
			CredentialsFile: defaultCredentialsFile,
			TokenFile:       defaultTokenFile,
			FetchPageSize:   defaultFetchPageSize,
		},
		IndexConfig: IndexConfig{
			CommitBatchCrawl: defaultCommitBatchCrawl,
			CommitBatchSync:  defaultCommitBatchSync,
		},
		CacheConfig: CacheConfig{
			PrimaryTTLQuick: defaultTTLQuick,
			PrimaryTTLFull:  defaultTTLFull,
		},
		QueryConfig: QueryConfig{
			DuplicateMinSize: defaultDuplicateMinSize,
			PathMaxPaths:     defaultPathMaxPaths,
			PathMaxDepth:     defaultPathMaxDepth,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
