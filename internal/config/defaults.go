package config

const (
	defaultDataDir         = "~/.local/share/artgrab"
	defaultLogDir          = "~/.local/share/artgrab/logs"
	defaultTextureCacheDir = "~/.cache/artgrab/textures"

	defaultLibraryURL            = "http://127.0.0.1:8080/jsonrpc"
	defaultLibraryRequestTimeout = 30

	defaultTMDBBaseURL   = "https://api.themoviedb.org/3"
	defaultFanartBaseURL = "https://webservice.fanart.tv/v3"

	defaultFetchWindowRequests = 39
	defaultFetchWindowSeconds  = 10
	defaultFetchRetryAttempts  = 4
	defaultFetchRetryBaseMS    = 1000

	defaultPreferredLanguage = "en"
	defaultSortMode          = "popularity"

	defaultPixelUpgradeRatio  = 1.25
	defaultRatingUpgradeDelta = 0.5
	defaultLikesUpgradeDelta  = 10
	defaultPrecacheWorkers    = 4
	defaultPrecachePromptMin  = 50

	defaultReviewBatchSize    = 25
	defaultQueueRetentionDays = 30

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:         defaultDataDir,
			LogDir:          defaultLogDir,
			TextureCacheDir: defaultTextureCacheDir,
		},
		Library: Library{
			URL:            defaultLibraryURL,
			RequestTimeout: defaultLibraryRequestTimeout,
		},
		TMDB: TMDB{
			BaseURL: defaultTMDBBaseURL,
		},
		Fanart: Fanart{
			BaseURL: defaultFanartBaseURL,
		},
		Fetch: Fetch{
			WindowRequests: defaultFetchWindowRequests,
			WindowSeconds:  defaultFetchWindowSeconds,
			RetryAttempts:  defaultFetchRetryAttempts,
			RetryBaseMS:    defaultFetchRetryBaseMS,
		},
		Artwork: Artwork{
			Types:             []string{"poster", "fanart", "clearlogo"},
			PreferredLanguage: defaultPreferredLanguage,
			SortMode:          defaultSortMode,
		},
		Scanner: Scanner{
			MediaTypes:         []string{"movie", "tvshow", "season"},
			IncludeUpgrades:    false,
			PixelUpgradeRatio:  defaultPixelUpgradeRatio,
			RatingUpgradeDelta: defaultRatingUpgradeDelta,
			LikesUpgradeDelta:  defaultLikesUpgradeDelta,
			PrecacheWorkers:    defaultPrecacheWorkers,
			PrecachePromptMin:  defaultPrecachePromptMin,
		},
		Review: Review{
			BatchSize: defaultReviewBatchSize,
		},
		Queue: Queue{
			RetentionDays: defaultQueueRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
