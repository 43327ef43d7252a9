package config

const (
	defaultConfigPath              = "~/.config/muteguard/config.toml"
	defaultDataDir                 = "~/.local/share/muteguard"
	defaultCacheDir                = "~/.cache/muteguard/subtitles"
	defaultArtifactDir             = "~/.local/share/muteguard/filtered"
	defaultDatabaseName            = "analysis.db"
	defaultLogDir                  = "~/.local/share/muteguard/logs"
	defaultLockName                = "muteguard.lock"
	defaultOpenSubtitlesBaseURL    = "https://api.opensubtitles.com/api/v1"
	defaultOpenSubtitlesUserAgent  = "muteguard v1.0"
	defaultOpenSubtitlesTimeout    = 30
	defaultOpenSubtitlesAttempts   = 3
	defaultOpenSubtitlesBackoffMS  = 1000
	defaultOpenSubtitlesQueryDelay = 100
	defaultMinDownloadsMovie       = 10
	defaultMinDownloadsEpisode     = 5
	defaultMinDownloadsIdentifier  = 3
	defaultMinDownloadsRelaxed     = 1
	defaultQualityFloorMovie       = 10
	defaultQualityFloorEpisode     = 5
	defaultCacheTTLHours           = 24
	defaultStoreRetentionDays      = 30
	defaultCleanupSchedule         = "@daily"
	defaultProfanityMask           = "*"
	defaultMetricsBind             = "127.0.0.1:9464"
	defaultNtfyRequestTimeout      = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			CacheDir:    defaultCacheDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
		},
		OpenSubtitles: OpenSubtitles{
			UserAgent:        defaultOpenSubtitlesUserAgent,
			BaseURL:          defaultOpenSubtitlesBaseURL,
			Languages:        []string{"en"},
			TimeoutSeconds:   defaultOpenSubtitlesTimeout,
			MaxAttempts:      defaultOpenSubtitlesAttempts,
			InitialBackoffMS: defaultOpenSubtitlesBackoffMS,
			QueryDelayMS:     defaultOpenSubtitlesQueryDelay,
		},
		Search: Search{
			MinDownloadsMovie:      defaultMinDownloadsMovie,
			MinDownloadsEpisode:    defaultMinDownloadsEpisode,
			MinDownloadsIdentifier: defaultMinDownloadsIdentifier,
			MinDownloadsRelaxed:    defaultMinDownloadsRelaxed,
			QualityFloorMovie:      defaultQualityFloorMovie,
			QualityFloorEpisode:    defaultQualityFloorEpisode,
			RelaxedFallback:        true,
		},
		Cache: Cache{
			TTLHours: defaultCacheTTLHours,
		},
		Store: Store{
			RetentionDays:   defaultStoreRetentionDays,
			CleanupSchedule: defaultCleanupSchedule,
		},
		Profanity: Profanity{
			Mask:          defaultProfanityMask,
			DefaultLevels: []string{"MODERATE"},
		},
		Daemon: Daemon{
			MetricsBind:        defaultMetricsBind,
			NtfyRequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
