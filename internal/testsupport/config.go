package testsupport

import (
	"path/filepath"
	"testing"

	"muteguard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.OpenSubtitles.APIKey = "test"
	cfgVal.OpenSubtitles.BaseURL = "http://127.0.0.1:0"
	cfgVal.OpenSubtitles.InitialBackoffMS = 1
	cfgVal.OpenSubtitles.QueryDelayMS = 1
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "filtered")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "data", "analysis.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockPath = filepath.Join(base, "data", "muteguard.lock")
	cfgVal.Daemon.MetricsBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAPIKey sets the OpenSubtitles API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OpenSubtitles.APIKey = key
	}
}

// WithBaseURL points the remote index client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OpenSubtitles.BaseURL = url
	}
}

// WithNtfyTopic enables daemon notifications to topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.NtfyTopic = topic
	}
}

// WithWordList writes contents to a word-list file and selects it.
func WithWordList(contents string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "wordlist.yaml")
		WriteText(b.t, path, contents)
		b.cfg.Profanity.WordlistPath = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
