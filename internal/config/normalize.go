package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"muteguard/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOpenSubtitles()
	c.normalizeSearch()
	c.normalizeStore()
	if err := c.normalizeProfanity(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = filepath.Join(c.Paths.DataDir, "filtered")
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockPath) == "" {
		c.Paths.LockPath = filepath.Join(c.Paths.DataDir, defaultLockName)
	}
	if c.Paths.LockPath, err = expandPath(c.Paths.LockPath); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeOpenSubtitles() {
	oc := &c.OpenSubtitles
	if oc.APIKey == "" {
		oc.APIKey = lookupEnv("OPENSUBTITLES_API_KEY")
	}
	if oc.UserToken == "" {
		oc.UserToken = lookupEnv("OPENSUBTITLES_USER_TOKEN")
	}
	if value := lookupEnv("OPENSUBTITLES_USER_AGENT"); value != "" && strings.TrimSpace(oc.UserAgent) == defaultOpenSubtitlesUserAgent {
		oc.UserAgent = value
	}
	oc.APIKey = strings.TrimSpace(oc.APIKey)
	oc.UserToken = strings.TrimSpace(oc.UserToken)
	oc.UserAgent = strings.TrimSpace(oc.UserAgent)
	if oc.UserAgent == "" {
		oc.UserAgent = defaultOpenSubtitlesUserAgent
	}
	oc.BaseURL = strings.TrimRight(strings.TrimSpace(oc.BaseURL), "/")
	if oc.BaseURL == "" {
		oc.BaseURL = defaultOpenSubtitlesBaseURL
	}
	langs := language.NormalizeList(oc.Languages)
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	oc.Languages = langs
	if oc.TimeoutSeconds <= 0 {
		oc.TimeoutSeconds = defaultOpenSubtitlesTimeout
	}
	if oc.MaxAttempts <= 0 {
		oc.MaxAttempts = defaultOpenSubtitlesAttempts
	}
	if oc.InitialBackoffMS < 0 {
		oc.InitialBackoffMS = defaultOpenSubtitlesBackoffMS
	}
	if oc.QueryDelayMS < 0 {
		oc.QueryDelayMS = defaultOpenSubtitlesQueryDelay
	}
}

func (c *Config) normalizeSearch() {
	if c.Search.MinDownloadsRelaxed <= 0 {
		c.Search.MinDownloadsRelaxed = defaultMinDownloadsRelaxed
	}
}

func (c *Config) normalizeStore() {
	c.Store.CleanupSchedule = strings.TrimSpace(c.Store.CleanupSchedule)
	if c.Store.CleanupSchedule == "" {
		c.Store.CleanupSchedule = defaultCleanupSchedule
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = defaultCacheTTLHours
	}
}

func (c *Config) normalizeProfanity() error {
	if path := strings.TrimSpace(c.Profanity.WordlistPath); path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return fmt.Errorf("profanity.wordlist_path: %w", err)
		}
		c.Profanity.WordlistPath = expanded
	}
	if c.Profanity.Mask == "" {
		c.Profanity.Mask = defaultProfanityMask
	}
	levels := make([]string, 0, len(c.Profanity.DefaultLevels))
	for _, level := range c.Profanity.DefaultLevels {
		if level = strings.ToUpper(strings.TrimSpace(level)); level != "" {
			levels = append(levels, level)
		}
	}
	c.Profanity.DefaultLevels = levels
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
