package opensubtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"muteguard/internal/logging"
)

const (
	defaultBaseURL     = "https://api.opensubtitles.com/api/v1"
	defaultUserAgent   = "muteguard v1.0"
	defaultHTTPTimeout = 30 * time.Second
	maxPayloadBytes    = 8 << 20
)

// RequestObserver receives one observation per HTTP attempt.
type RequestObserver interface {
	ObserveRequest(operation, outcome string, elapsed time.Duration)
}

// Config describes the OpenSubtitles client configuration.
type Config struct {
	APIKey    string
	UserAgent string
	UserToken string
	BaseURL   string
	// Timeout bounds each individual HTTP attempt. Ignored when HTTPClient is set.
	Timeout    time.Duration
	HTTPClient *http.Client
	Retry      RetryPolicy
	Logger     *slog.Logger
	Observer   RequestObserver
}

// Client wraps the OpenSubtitles REST API. Every call runs through the
// configured RetryPolicy.
type Client struct {
	apiKey    string
	userAgent string
	userToken string
	baseURL   *url.URL
	http      *http.Client
	retry     RetryPolicy
	logger    *slog.Logger
	observer  RequestObserver
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("opensubtitles: api key is required")
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	logger := logging.NewComponentLogger(cfg.Logger, "opensubtitles")
	retry.logger = logger
	return &Client{
		apiKey:    apiKey,
		userAgent: userAgent,
		userToken: strings.TrimSpace(cfg.UserToken),
		baseURL:   baseURL,
		http:      client,
		retry:     retry,
		logger:    logger,
		observer:  cfg.Observer,
	}, nil
}

// SearchRequest describes subtitle discovery filters. IMDBID selects the keyed
// lookup; Query selects the free-text lookup.
type SearchRequest struct {
	IMDBID    string
	Query     string
	Languages []string
	Season    int
	Episode   int
	Year      int
}

// Subtitle represents a subtitle candidate returned by OpenSubtitles.
type Subtitle struct {
	ID                string
	FileIDs           []int64
	FileName          string
	Language          string
	Release           string
	FeatureTitle      string
	FeatureYear       int
	Downloads         int
	Rating            float64
	Points            float64
	HearingImpaired   bool
	AITranslated      bool
	MachineTranslated bool
	FromTrusted       bool
	UploaderRank      string
}

// PrimaryFileID returns the first downloadable file id, or 0.
func (s Subtitle) PrimaryFileID() int64 {
	if len(s.FileIDs) == 0 {
		return 0
	}
	return s.FileIDs[0]
}

// SearchResponse bundles the subtitles returned by a query.
type SearchResponse struct {
	Subtitles []Subtitle
	Total     int
}

// DownloadResult captures the downloaded subtitle payload.
type DownloadResult struct {
	Data        []byte
	FileName    string
	Language    string
	DownloadURL string
	Remaining   int
}

// Search queries the OpenSubtitles API for matching subtitles.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if c == nil {
		return SearchResponse{}, errors.New("opensubtitles: client is nil")
	}
	endpoint := c.baseURL.JoinPath("subtitles")
	endpoint.RawQuery = searchParams(req).Encode()

	var result SearchResponse
	err := c.retry.Do(ctx, "search", func(ctx context.Context) error {
		var attemptErr error
		result, attemptErr = c.searchOnce(ctx, endpoint.String())
		return attemptErr
	})
	if err != nil {
		return SearchResponse{}, err
	}
	return result, nil
}

func searchParams(req SearchRequest) url.Values {
	params := url.Values{}
	if imdb := SanitizeIMDBID(req.IMDBID); imdb != "" {
		params.Set("imdb_id", imdb)
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		params.Set("query", q)
	}
	if len(req.Languages) > 0 {
		params.Set("languages", strings.Join(req.Languages, ","))
	}
	if req.Season > 0 {
		params.Set("season_number", strconv.Itoa(req.Season))
	}
	if req.Episode > 0 {
		params.Set("episode_number", strconv.Itoa(req.Episode))
	}
	if req.Year > 0 {
		params.Set("year", strconv.Itoa(req.Year))
	}
	if req.Season > 0 || req.Episode > 0 {
		params.Set("type", "episode")
	}
	params.Set("order_by", "download_count")
	params.Set("order_direction", "desc")
	return params
}

func (c *Client) searchOnce(ctx context.Context, endpoint string) (SearchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("opensubtitles: build search request: %w", err)
	}
	c.applyHeaders(httpReq)

	resp, err := c.do(httpReq, "search")
	if err != nil {
		return SearchResponse{}, fmt.Errorf("opensubtitles: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return SearchResponse{}, newStatusError("search", resp)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SearchResponse{}, fmt.Errorf("opensubtitles: decode search response: %w", err)
	}

	subtitles := make([]Subtitle, 0, len(payload.Data))
	for _, entry := range payload.Data {
		attrs := entry.Attributes
		if attrs.Language == "" {
			continue
		}
		fileIDs := attrs.FileIDs()
		if len(fileIDs) == 0 {
			continue
		}
		subtitles = append(subtitles, Subtitle{
			ID:                entry.ID,
			FileIDs:           fileIDs,
			FileName:          attrs.PrimaryFileName(),
			Language:          attrs.Language,
			Release:           attrs.Release,
			FeatureTitle:      attrs.FeatureDetails.Title,
			FeatureYear:       attrs.FeatureDetails.Year,
			Downloads:         attrs.DownloadCount,
			Rating:            attrs.Ratings,
			Points:            attrs.Points,
			HearingImpaired:   attrs.HearingImpaired,
			AITranslated:      attrs.AITranslated,
			MachineTranslated: attrs.MachineTranslated,
			FromTrusted:       attrs.FromTrusted,
			UploaderRank:      attrs.Uploader.Rank,
		})
	}

	return SearchResponse{Subtitles: subtitles, Total: payload.Meta.Total}, nil
}

// Download exchanges fileID for a signed link and fetches the subtitle bytes.
// The exchange and the fetch are retried independently.
func (c *Client) Download(ctx context.Context, fileID int64) (DownloadResult, error) {
	if c == nil {
		return DownloadResult{}, errors.New("opensubtitles: client is nil")
	}
	if fileID <= 0 {
		return DownloadResult{}, errors.New("opensubtitles: invalid file id")
	}

	var info downloadResponse
	err := c.retry.Do(ctx, "download_link", func(ctx context.Context) error {
		var attemptErr error
		info, attemptErr = c.requestLink(ctx, fileID)
		return attemptErr
	})
	if err != nil {
		return DownloadResult{}, err
	}

	downloadURL, err := c.baseURL.Parse(info.Link)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("opensubtitles: parse download url: %w", err)
	}

	var data []byte
	err = c.retry.Do(ctx, "download_file", func(ctx context.Context) error {
		var attemptErr error
		data, attemptErr = c.fetchPayload(ctx, downloadURL.String())
		return attemptErr
	})
	if err != nil {
		return DownloadResult{}, err
	}

	return DownloadResult{
		Data:        data,
		FileName:    info.FileName,
		Language:    info.Language,
		DownloadURL: downloadURL.String(),
		Remaining:   info.Remaining,
	}, nil
}

func (c *Client) requestLink(ctx context.Context, fileID int64) (downloadResponse, error) {
	payload, err := json.Marshal(map[string]any{"file_id": fileID, "sub_format": "srt"})
	if err != nil {
		return downloadResponse{}, fmt.Errorf("opensubtitles: encode download request: %w", err)
	}
	endpoint := c.baseURL.JoinPath("download")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return downloadResponse{}, fmt.Errorf("opensubtitles: build download request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.applyHeaders(httpReq)

	resp, err := c.do(httpReq, "download_link")
	if err != nil {
		return downloadResponse{}, fmt.Errorf("opensubtitles: download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return downloadResponse{}, newStatusError("download negotiation", resp)
	}

	var info downloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return downloadResponse{}, fmt.Errorf("opensubtitles: decode download response: %w", err)
	}
	if strings.TrimSpace(info.Link) == "" {
		return downloadResponse{}, errors.New("opensubtitles: download response missing link")
	}
	return info, nil
}

func (c *Client) fetchPayload(ctx context.Context, link string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: build link request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	resp, err := c.do(httpReq, "download_file")
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: fetch subtitle payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, newStatusError("subtitle download", resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: read subtitle data: %w", err)
	}
	return data, nil
}

func (c *Client) do(req *http.Request, operation string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if c.observer != nil {
		outcome := "error"
		if err == nil {
			outcome = strconv.Itoa(resp.StatusCode)
		}
		c.observer.ObserveRequest(operation, outcome, time.Since(start))
	}
	return resp, err
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.userToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.userToken)
	}
}

// SanitizeIMDBID strips the "tt" prefix and rejects non-numeric identifiers.
func SanitizeIMDBID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.TrimPrefix(strings.ToLower(value), "tt")
	if value == "" {
		return ""
	}
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return ""
	}
	return value
}

type searchResponse struct {
	Data []searchEntry `json:"data"`
	Meta struct {
		Total int `json:"total_count"`
	} `json:"meta"`
}

type searchEntry struct {
	ID         string           `json:"id"`
	Attributes searchAttributes `json:"attributes"`
}

type searchAttributes struct {
	Language          string         `json:"language"`
	Release           string         `json:"release"`
	DownloadCount     int            `json:"download_count"`
	Ratings           float64        `json:"ratings"`
	Points            float64        `json:"points"`
	HearingImpaired   bool           `json:"hearing_impaired"`
	AITranslated      bool           `json:"ai_translated"`
	MachineTranslated bool           `json:"machine_translated"`
	FromTrusted       bool           `json:"from_trusted"`
	Uploader          uploader       `json:"uploader"`
	FeatureDetails    featureDetails `json:"feature_details"`
	Files             []searchFile   `json:"files"`
}

func (a searchAttributes) FileIDs() []int64 {
	ids := make([]int64, 0, len(a.Files))
	for _, f := range a.Files {
		if f.FileID > 0 {
			ids = append(ids, f.FileID)
		}
	}
	return ids
}

func (a searchAttributes) PrimaryFileName() string {
	for _, f := range a.Files {
		if f.FileID > 0 {
			return f.FileName
		}
	}
	return ""
}

type uploader struct {
	Name string `json:"name"`
	Rank string `json:"rank"`
}

type featureDetails struct {
	FeatureType string `json:"feature_type"`
	Title       string `json:"title"`
	Year        int    `json:"year"`
}

type searchFile struct {
	FileID   int64  `json:"file_id"`
	FileName string `json:"file_name"`
}

type downloadResponse struct {
	Link      string `json:"link"`
	FileName  string `json:"file_name"`
	Language  string `json:"language"`
	Remaining int    `json:"remaining"`
}
