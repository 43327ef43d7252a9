package opensubtitles

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"muteguard/internal/services"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{
		APIKey:    "abc",
		UserAgent: "muteguard/test",
		BaseURL:   baseURL,
		Retry:     DefaultRetryPolicy().WithSleep(noSleep),
	})
	if err != nil {
		t.Fatalf("New client failed: %v", err)
	}
	return client
}

func TestSearchBuildsQueryAndParsesResponse(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		if r.URL.Path != "/subtitles" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp := map[string]any{
			"data": []map[string]any{
				{
					"id": "1",
					"attributes": map[string]any{
						"language":           "en",
						"release":            "Alpha.2019.1080p.WEBRip",
						"download_count":     120,
						"ratings":            8.5,
						"points":             12,
						"hearing_impaired":   false,
						"ai_translated":      false,
						"machine_translated": false,
						"from_trusted":       true,
						"uploader":           map[string]any{"name": "someone", "rank": "trusted"},
						"feature_details": map[string]any{
							"feature_type": "episode",
							"title":        "Alpha",
							"year":         2019,
						},
						"files": []map[string]any{
							{"file_id": 555, "file_name": "alpha.s01e02.srt"},
						},
					},
				},
				{
					"id": "2",
					"attributes": map[string]any{
						"language":       "en",
						"download_count": 80,
						"files":          []map[string]any{{"file_id": 777}},
					},
				},
			},
			"meta": map[string]any{"total_count": 2},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Search(context.Background(), SearchRequest{
		IMDBID:    "tt7654321",
		Query:     "alpha s01e02",
		Languages: []string{"en"},
		Season:    1,
		Episode:   2,
		Year:      2019,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(resp.Subtitles) != 2 || resp.Total != 2 {
		t.Fatalf("expected 2 subtitles, got %d (total %d)", len(resp.Subtitles), resp.Total)
	}
	first := resp.Subtitles[0]
	if first.PrimaryFileID() != 555 || first.FileName != "alpha.s01e02.srt" {
		t.Fatalf("unexpected first subtitle: %+v", first)
	}
	if first.Rating != 8.5 || first.Points != 12 || !first.FromTrusted || first.UploaderRank != "trusted" {
		t.Fatalf("quality fields not decoded: %+v", first)
	}

	if got := captured.Header.Get("Api-Key"); got != "abc" {
		t.Fatalf("expected api key header, got %q", got)
	}
	if got := captured.Header.Get("User-Agent"); got != "muteguard/test" {
		t.Fatalf("expected user agent header, got %q", got)
	}
	values, _ := url.ParseQuery(captured.URL.RawQuery)
	expect := map[string]string{
		"imdb_id":         "7654321",
		"query":           "alpha s01e02",
		"languages":       "en",
		"season_number":   "1",
		"episode_number":  "2",
		"year":            "2019",
		"type":            "episode",
		"order_by":        "download_count",
		"order_direction": "desc",
	}
	for key, want := range expect {
		if got := values.Get(key); got != want {
			t.Fatalf("expected query param %s=%s, got %s", key, want, got)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "missing api key", cfg: Config{}, wantErr: true},
		{name: "empty api key", cfg: Config{APIKey: "   "}, wantErr: true},
		{name: "valid minimal config", cfg: Config{APIKey: "test-key"}},
		{
			name: "valid full config",
			cfg: Config{
				APIKey:    "test-key",
				UserAgent: "TestAgent/1.0",
				UserToken: "bearer-token",
				BaseURL:   "https://custom.api.example.com",
				Timeout:   5 * time.Second,
			},
		},
		{name: "invalid base url", cfg: Config{APIKey: "test-key", BaseURL: "://invalid"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client == nil {
				t.Error("expected client, got nil")
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	client, err := New(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.userAgent != defaultUserAgent {
		t.Errorf("userAgent = %q, want %q", client.userAgent, defaultUserAgent)
	}
	if client.baseURL.String() != defaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL.String(), defaultBaseURL)
	}
	if client.http.Timeout != defaultHTTPTimeout {
		t.Errorf("timeout = %v, want %v", client.http.Timeout, defaultHTTPTimeout)
	}
	if client.retry.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", client.retry.MaxAttempts)
	}
}

func TestSanitizeIMDBID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"   ", ""},
		{"tt0123456", "0123456"},
		{"0123456", "0123456"},
		{"  tt0123456  ", "0123456"},
		{"invalid", ""},
		{"tt", ""},
		{"ttabc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeIMDBID(tt.input); got != tt.want {
				t.Errorf("SanitizeIMDBID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSearchNilClient(t *testing.T) {
	var client *Client
	if _, err := client.Search(context.Background(), SearchRequest{}); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestSearchUnauthorizedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid api key"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Search(context.Background(), SearchRequest{Query: "alpha"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %T", err)
	}
	if netErr.Kind != KindHTTPStatus || netErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected classification: %+v", netErr)
	}
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatal("expected error to match services.ErrNetwork")
	}
	if !strings.Contains(services.UserMessage(err), "API key") {
		t.Fatalf("unexpected user message %q", services.UserMessage(err))
	}
}

func TestSearchRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	var delays []time.Duration
	client, err := New(Config{
		APIKey:  "abc",
		BaseURL: server.URL,
		Retry: DefaultRetryPolicy().WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Search(context.Background(), SearchRequest{Query: "alpha"}); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("unexpected backoff delays %v", delays)
	}
}

func TestSearchExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Search(context.Background(), SearchRequest{Query: "alpha"})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Attempts != 3 || calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d (server saw %d)", netErr.Attempts, calls.Load())
	}
	if netErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", netErr.StatusCode)
	}
}

func TestSearchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := server.URL
	server.Close()

	client := newTestClient(t, base)
	_, err := client.Search(context.Background(), SearchRequest{Query: "alpha"})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Kind != KindConnectionRefused {
		t.Fatalf("expected connection-refused, got %s", netErr.Kind)
	}
}

func TestSearchSkipsUnusableEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := searchResponse{Data: []searchEntry{
			{ID: "no-lang", Attributes: searchAttributes{Files: []searchFile{{FileID: 100}}}},
			{ID: "no-file", Attributes: searchAttributes{Language: "en"}},
			{ID: "ok", Attributes: searchAttributes{Language: "en", Files: []searchFile{{FileID: 200}}}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Search(context.Background(), SearchRequest{Query: "alpha"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Subtitles) != 1 || result.Subtitles[0].ID != "ok" {
		t.Fatalf("expected only the usable entry, got %+v", result.Subtitles)
	}
}

func TestDownloadFollowsLink(t *testing.T) {
	payload := "1\n00:00:01,000 --> 00:00:02,000\nHello\n"
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			body, _ := io.ReadAll(r.Body)
			var req map[string]any
			_ = json.Unmarshal(body, &req)
			if req["file_id"] != float64(555) {
				t.Errorf("unexpected file id payload %s", body)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"link":      server.URL + "/files/alpha.srt",
				"file_name": "alpha.srt",
				"remaining": 99,
			})
		case "/files/alpha.srt":
			_, _ = w.Write([]byte(payload))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Download(context.Background(), 555)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(result.Data) != payload || result.FileName != "alpha.srt" || result.Remaining != 99 {
		t.Fatalf("unexpected download result %+v", result)
	}
}

func TestDownloadRejectsInvalidFileID(t *testing.T) {
	client := newTestClient(t, "https://example.invalid")
	if _, err := client.Download(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero file id")
	}
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveRequest(operation, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, operation+":"+outcome)
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	observer := &recordingObserver{}
	client, err := New(Config{
		APIKey:   "abc",
		BaseURL:  server.URL,
		Retry:    DefaultRetryPolicy().WithSleep(noSleep),
		Observer: observer,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Search(context.Background(), SearchRequest{Query: "alpha"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"search:502", "search:200"}
	if strings.Join(observer.outcomes, ",") != strings.Join(want, ",") {
		t.Fatalf("observer outcomes = %v, want %v", observer.outcomes, want)
	}
}
