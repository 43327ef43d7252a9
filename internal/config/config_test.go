package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"muteguard/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENSUBTITLES_API_KEY", "env-key")
	t.Setenv("OPENSUBTITLES_USER_TOKEN", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "muteguard")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.DatabasePath != filepath.Join(wantData, "analysis.db") {
		t.Fatalf("unexpected database path: %q", cfg.Paths.DatabasePath)
	}
	if cfg.Paths.LockPath != filepath.Join(wantData, "muteguard.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.Paths.LockPath)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "muteguard", "subtitles") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.OpenSubtitles.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.OpenSubtitles.APIKey)
	}
	if got := cfg.OpenSubtitles.Languages; len(got) != 1 || got[0] != "en" {
		t.Fatalf("expected default language en, got %v", got)
	}
	if cfg.CacheTTL() != 24*time.Hour {
		t.Fatalf("unexpected cache ttl %s", cfg.CacheTTL())
	}
	if cfg.StoreRetention() != 30*24*time.Hour {
		t.Fatalf("unexpected store retention %s", cfg.StoreRetention())
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("unexpected request timeout %s", cfg.RequestTimeout())
	}
	if cfg.InitialBackoff() != time.Second {
		t.Fatalf("unexpected backoff %s", cfg.InitialBackoff())
	}
	if cfg.QueryDelay() != 100*time.Millisecond {
		t.Fatalf("unexpected query delay %s", cfg.QueryDelay())
	}
	if cfg.Search.MinDownloadsMovie != 10 || cfg.Search.MinDownloadsEpisode != 5 || cfg.Search.MinDownloadsIdentifier != 3 {
		t.Fatalf("unexpected popularity floors %+v", cfg.Search)
	}
	if !cfg.Search.RelaxedFallback {
		t.Fatal("expected relaxed fallback enabled by default")
	}
	if err := cfg.RequireOpenSubtitles(); err != nil {
		t.Fatalf("RequireOpenSubtitles: %v", err)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	t.Setenv("OPENSUBTITLES_API_KEY", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "muteguard.toml")
	type fileConfig struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		OpenSubtitles struct {
			APIKey    string   `toml:"api_key"`
			Languages []string `toml:"languages"`
		} `toml:"opensubtitles"`
		Profanity struct {
			DefaultLevels []string `toml:"default_levels"`
		} `toml:"profanity"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	var payload fileConfig
	payload.Paths.DataDir = "~/muteguard-data"
	payload.OpenSubtitles.APIKey = "file-key"
	payload.OpenSubtitles.Languages = []string{" EN ", "es", "en"}
	payload.Profanity.DefaultLevels = []string{"mild", "strict"}
	payload.Logging.Format = "JSON"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "muteguard-data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.OpenSubtitles.APIKey != "file-key" {
		t.Fatalf("expected file api key, got %q", cfg.OpenSubtitles.APIKey)
	}
	if got := strings.Join(cfg.OpenSubtitles.Languages, ","); got != "en,es" {
		t.Fatalf("expected normalized languages, got %q", got)
	}
	if got := strings.Join(cfg.Profanity.DefaultLevels, ","); got != "MILD,STRICT" {
		t.Fatalf("expected upper-cased levels, got %q", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lower-cased log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	t.Setenv("OPENSUBTITLES_API_KEY", "")
	os.Unsetenv("OPENSUBTITLES_API_KEY")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	dir := filepath.Join(tempHome, "conf")
	configPath := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(configPath); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENSUBTITLES_API_KEY=dotenv-key\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OpenSubtitles.APIKey != "dotenv-key" {
		t.Fatalf("expected api key from .env, got %q", cfg.OpenSubtitles.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad schedule", func(c *config.Config) { c.Store.CleanupSchedule = "every tuesday" }, "store.cleanup_schedule"},
		{"bad level", func(c *config.Config) { c.Profanity.DefaultLevels = []string{"EXTREME"} }, "profanity.default_levels"},
		{"bad mask", func(c *config.Config) { c.Profanity.Mask = "##" }, "profanity.mask"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad base url", func(c *config.Config) { c.OpenSubtitles.BaseURL = "ftp://example" }, "opensubtitles.base_url"},
		{"negative floor", func(c *config.Config) { c.Search.MinDownloadsMovie = -1 }, "search.min_downloads_movie"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestRequireOpenSubtitlesWithoutKey(t *testing.T) {
	cfg := config.Default()
	err := cfg.RequireOpenSubtitles()
	if err == nil || !strings.Contains(err.Error(), "OPENSUBTITLES_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Store.RetentionDays != 30 {
		t.Fatalf("unexpected sample retention %d", cfg.Store.RetentionDays)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.ArtifactDir = filepath.Join(base, "filtered")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DatabasePath = filepath.Join(base, "db", "analysis.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.CacheDir, cfg.Paths.ArtifactDir, cfg.Paths.LogDir, filepath.Join(base, "db")} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
