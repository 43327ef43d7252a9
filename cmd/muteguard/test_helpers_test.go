package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"muteguard/internal/config"
	"muteguard/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     *httptest.Server
	searches   atomic.Int32
	downloads  atomic.Int32
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	env := &cliTestEnv{}
	env.server = httptest.NewServer(http.HandlerFunc(env.serveOpenSubtitles))
	t.Cleanup(env.server.Close)

	opts = append([]testsupport.ConfigOption{testsupport.WithBaseURL(env.server.URL)}, opts...)
	env.cfg = testsupport.NewConfig(t, opts...)
	env.configPath = filepath.Join(testsupport.BaseDir(env.cfg), "config.toml")
	writeTestConfig(t, env.configPath, env.cfg)
	return env
}

// serveOpenSubtitles answers every search with one popular release and every
// download with the sample dialogue.
func (e *cliTestEnv) serveOpenSubtitles(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/subtitles":
		e.searches.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"id": "1",
				"attributes": map[string]any{
					"language":       "en",
					"release":        "Alpha.2019.1080p.WEBRip",
					"download_count": 500,
					"ratings":        8,
					"from_trusted":   true,
					"uploader":       map[string]any{"name": "someone", "rank": "trusted"},
					"files":          []map[string]any{{"file_id": 101, "file_name": "alpha.2019.srt"}},
				},
			}},
			"meta": map[string]any{"total_count": 1},
		})
	case "/download":
		e.downloads.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"link":      e.server.URL + "/files/alpha.2019.srt",
			"file_name": "alpha.2019.srt",
			"remaining": 99,
		})
	case "/files/alpha.2019.srt":
		_, _ = w.Write([]byte(testsupport.SampleSRT))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--log-level", "error"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}
