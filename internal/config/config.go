package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	CacheDir     string `toml:"cache_dir"`
	ArtifactDir  string `toml:"artifact_dir"`
	DatabasePath string `toml:"database_path"`
	LogDir       string `toml:"log_dir"`
	LockPath     string `toml:"lock_path"`
}

// OpenSubtitles contains configuration for the remote subtitle index.
type OpenSubtitles struct {
	APIKey           string   `toml:"api_key"`
	UserAgent        string   `toml:"user_agent"`
	UserToken        string   `toml:"user_token"`
	BaseURL          string   `toml:"base_url"`
	Languages        []string `toml:"languages"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	MaxAttempts      int      `toml:"max_attempts"`
	InitialBackoffMS int      `toml:"initial_backoff_ms"`
	QueryDelayMS     int      `toml:"query_delay_ms"`
}

// Search contains candidate ranking thresholds.
type Search struct {
	MinDownloadsMovie      int     `toml:"min_downloads_movie"`
	MinDownloadsEpisode    int     `toml:"min_downloads_episode"`
	MinDownloadsIdentifier int     `toml:"min_downloads_identifier"`
	MinDownloadsRelaxed    int     `toml:"min_downloads_relaxed"`
	QualityFloorMovie      float64 `toml:"quality_floor_movie"`
	QualityFloorEpisode    float64 `toml:"quality_floor_episode"`
	RelaxedFallback        bool    `toml:"relaxed_fallback"`
}

// Cache contains raw subtitle cache configuration.
type Cache struct {
	TTLHours int `toml:"ttl_hours"`
}

// Store contains analysis store retention configuration.
type Store struct {
	RetentionDays   int    `toml:"retention_days"`
	CleanupSchedule string `toml:"cleanup_schedule"`
}

// Profanity contains configuration for the default word-list filter.
type Profanity struct {
	WordlistPath  string   `toml:"wordlist_path"`
	Mask          string   `toml:"mask"`
	DefaultLevels []string `toml:"default_levels"`
}

// Daemon contains configuration for the maintenance daemon.
type Daemon struct {
	MetricsBind string `toml:"metrics_bind"`
	// NtfyTopic is the full ntfy topic URL; empty disables notifications.
	NtfyTopic          string `toml:"ntfy_topic"`
	NtfyRequestTimeout int    `toml:"ntfy_request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	RetentionDays   int               `toml:"retention_days"`
	ComponentLevels map[string]string `toml:"component_levels"`
}

// Config encapsulates all configuration values for muteguard.
//
// Configuration sections by subsystem:
//   - Paths: data, cache, artifact, database, and log locations
//   - OpenSubtitles: remote index credentials and retry policy
//   - Search: popularity and quality floors for candidate ranking
//   - Cache: raw subtitle cache TTL
//   - Store: analysis record retention and cleanup schedule
//   - Profanity: default word-list filter settings
//   - Daemon: metrics endpoint and ntfy notifications
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	OpenSubtitles OpenSubtitles `toml:"opensubtitles"`
	Search        Search        `toml:"search"`
	Cache         Cache         `toml:"cache"`
	Store         Store         `toml:"store"`
	Profanity     Profanity     `toml:"profanity"`
	Daemon        Daemon        `toml:"daemon"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file beside the config file (or in the
// working directory) is loaded first so credentials can stay out of TOML.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			_ = godotenv.Load(candidate)
		}
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("muteguard.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI and daemon write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.CacheDir,
		c.Paths.ArtifactDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.DatabasePath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheTTL returns the raw subtitle cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// StoreRetention returns the age after which analysis records are cleaned up.
func (c *Config) StoreRetention() time.Duration {
	return time.Duration(c.Store.RetentionDays) * 24 * time.Hour
}

// LogRetention returns the age after which daemon log files are pruned.
func (c *Config) LogRetention() time.Duration {
	return time.Duration(c.Logging.RetentionDays) * 24 * time.Hour
}

// RequestTimeout bounds each individual remote index attempt.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.OpenSubtitles.TimeoutSeconds) * time.Second
}

// InitialBackoff is the retry delay after the first failed attempt.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.OpenSubtitles.InitialBackoffMS) * time.Millisecond
}

// QueryDelay is the pause between successive free-text searches.
func (c *Config) QueryDelay() time.Duration {
	return time.Duration(c.OpenSubtitles.QueryDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
