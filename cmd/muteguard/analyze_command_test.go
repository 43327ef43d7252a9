package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"muteguard/internal/services"
	"muteguard/internal/testsupport"
)

func analyzeJSON(t *testing.T, env *cliTestEnv, extra ...string) []analyzeOutput {
	t.Helper()
	args := append([]string{"analyze", "--title", "Alpha", "--year", "2019", "--level", "mild", "--level", "strict", "--json"}, extra...)
	out, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var results []analyzeOutput
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode analyze output: %v\n%s", err, out)
	}
	return results
}

func TestAnalyzeCommandPersistsAndReusesResults(t *testing.T) {
	env := setupCLITestEnv(t)

	first := analyzeJSON(t, env)
	if len(first) != 2 {
		t.Fatalf("expected two levels, got %+v", first)
	}
	mild, strict := first[0], first[1]
	if mild.Level != "MILD" || strict.Level != "STRICT" {
		t.Fatalf("unexpected level order: %s, %s", mild.Level, strict.Level)
	}
	if mild.ContentID != "alpha_2019" {
		t.Fatalf("content id = %q, want alpha_2019", mild.ContentID)
	}
	if !reflect.DeepEqual(mild.DetectedWords, []string{"fucking"}) {
		t.Fatalf("mild detected = %v", mild.DetectedWords)
	}
	if !reflect.DeepEqual(strict.DetectedWords, []string{"fucking", "hell"}) {
		t.Fatalf("strict detected = %v", strict.DetectedWords)
	}
	if mild.TotalWords != 14 || mild.ProfanityWords != 1 || strict.ProfanityWords != 2 {
		t.Fatalf("unexpected counts: mild %+v strict %+v", mild, strict)
	}
	if mild.Cached || !mild.Persisted || mild.ArtifactPath == "" {
		t.Fatalf("expected freshly persisted mild result, got %+v", mild)
	}
	if got := env.downloads.Load(); got != 1 {
		t.Fatalf("expected one download for both levels, got %d", got)
	}

	second := analyzeJSON(t, env)
	for _, result := range second {
		if !result.Cached {
			t.Fatalf("expected stored result on second run, got %+v", result)
		}
	}
	if got := env.downloads.Load(); got != 1 {
		t.Fatalf("second run must not download, got %d downloads", got)
	}

	forced := analyzeJSON(t, env, "--force")
	if forced[0].Cached || forced[1].Cached {
		t.Fatalf("--force must re-analyze, got %+v", forced)
	}
	// The raw cache serves the forced run.
	if got := env.downloads.Load(); got != 1 {
		t.Fatalf("forced run should reuse the raw cache, got %d downloads", got)
	}
}

func TestAnalyzeCommandTableOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"analyze", "--title", "Alpha", "--year", "2019", "--level", "strict", "--lines"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	requireContains(t, out, "Alpha (2019) [alpha_2019]")
	requireContains(t, out, "STRICT\tHigh")
	requireContains(t, out, "Traffic was a ******* nightmare.")
	requireContains(t, out, "Where the **** were you?")
}

func TestAnalyzeCommandWritesMetricsFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "textfile", "muteguard.prom")

	analyzeJSON(t, env, "--metrics-file", path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	text := string(data)
	requireContains(t, text, `muteguard_remote_requests_total{operation="search",outcome="200"}`)
	requireContains(t, text, `muteguard_remote_requests_total{operation="download_link",outcome="200"} 1`)
	requireContains(t, text, `muteguard_raw_cache_lookups_total{result="miss"} 1`)
	requireContains(t, text, `muteguard_level_results_total{level="MILD",outcome="persisted"} 1`)
	requireContains(t, text, `muteguard_level_results_total{level="STRICT",outcome="persisted"} 1`)
	requireContains(t, text, "muteguard_batch_duration_seconds_count 1")

	analyzeJSON(t, env, "--metrics-file", path)
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	requireContains(t, string(data), `muteguard_level_results_total{level="MILD",outcome="cached"} 1`)
	requireContains(t, string(data), `muteguard_store_lookups_total{result="hit"}`)
}

func TestAnalyzeCommandRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENSUBTITLES_API_KEY", "")
	env := setupCLITestEnv(t, testsupport.WithAPIKey(""))
	_, _, err := runCLI(t, []string{"analyze", "--title", "Alpha"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if code := services.ExitCode(err); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if env.searches.Load() != 0 {
		t.Fatal("no search should be issued without an api key")
	}
}

func TestAnalyzeCommandRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing title", []string{"analyze"}},
		{"bad level", []string{"analyze", "--title", "Alpha", "--level", "extreme"}},
		{"episode without numbers", []string{"analyze", "--show", "Alpha"}},
		{"bad imdb", []string{"analyze", "--title", "Alpha", "--imdb", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args, env.configPath)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
