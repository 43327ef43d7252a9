package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var filterLevelNames = map[string]struct{}{
	"NONE":     {},
	"MILD":     {},
	"MODERATE": {},
	"STRICT":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOpenSubtitles(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateProfanity(); err != nil {
		return err
	}
	return c.validateLogging()
}

// RequireOpenSubtitles reports a configuration error when remote searches
// cannot be issued. Offline commands skip this check.
func (c *Config) RequireOpenSubtitles() error {
	if c.OpenSubtitles.APIKey != "" {
		return nil
	}
	path, err := DefaultConfigPath()
	if err != nil {
		path = defaultConfigPath
	}
	return fmt.Errorf("opensubtitles.api_key is required. Set OPENSUBTITLES_API_KEY env var or edit %s (create with 'muteguard config init')", path)
}

func (c *Config) validateOpenSubtitles() error {
	if !strings.HasPrefix(c.OpenSubtitles.BaseURL, "http://") && !strings.HasPrefix(c.OpenSubtitles.BaseURL, "https://") {
		return fmt.Errorf("opensubtitles.base_url must be an http(s) URL, got %q", c.OpenSubtitles.BaseURL)
	}
	if c.OpenSubtitles.MaxAttempts > 10 {
		return errors.New("opensubtitles.max_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateSearch() error {
	s := c.Search
	for name, value := range map[string]int{
		"search.min_downloads_movie":      s.MinDownloadsMovie,
		"search.min_downloads_episode":    s.MinDownloadsEpisode,
		"search.min_downloads_identifier": s.MinDownloadsIdentifier,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	if s.QualityFloorMovie < 0 || s.QualityFloorEpisode < 0 {
		return errors.New("search quality floors must be non-negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be non-negative")
	}
	if _, err := cron.ParseStandard(c.Store.CleanupSchedule); err != nil {
		return fmt.Errorf("store.cleanup_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateProfanity() error {
	for _, level := range c.Profanity.DefaultLevels {
		if _, ok := filterLevelNames[level]; !ok {
			return fmt.Errorf("profanity.default_levels: unknown level %q", level)
		}
	}
	if len([]rune(c.Profanity.Mask)) != 1 {
		return errors.New("profanity.mask must be a single character")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
