package subtitles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"

	"muteguard/internal/language"
	"muteguard/internal/logging"
	"muteguard/internal/services"
	"muteguard/internal/subtitles/opensubtitles"
)

const maxDownloadCandidates = 3

// Downloader fetches subtitle payloads by file id.
type Downloader interface {
	Download(ctx context.Context, fileID int64) (opensubtitles.DownloadResult, error)
}

// CacheObserver is told the outcome of each raw cache lookup.
type CacheObserver interface {
	ObserveRawCache(result string)
}

// RawSubtitle is the cleaned payload for one content item.
type RawSubtitle struct {
	Data      []byte
	FileName  string
	FileID    int64
	Release   string
	CacheKey  string
	FromCache bool
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Logger   *slog.Logger
	Observer CacheObserver
}

// Fetcher resolves raw subtitle bytes through the cache, then the search and
// download chain.
type Fetcher struct {
	searcher   *Searcher
	downloader Downloader
	cache      *RawCache
	observer   CacheObserver
	logger     *slog.Logger
}

// NewFetcher assembles a Fetcher. cache may be nil to disable caching.
func NewFetcher(searcher *Searcher, downloader Downloader, cache *RawCache, opts FetcherOptions) *Fetcher {
	return &Fetcher{
		searcher:   searcher,
		downloader: downloader,
		cache:      cache,
		observer:   opts.Observer,
		logger:     logging.NewComponentLogger(opts.Logger, "subtitle_fetch"),
	}
}

// Fetch returns raw subtitle bytes for content, using the cache when a fresh
// entry exists and otherwise searching, downloading and caching the winner.
func (f *Fetcher) Fetch(ctx context.Context, content Content) (RawSubtitle, error) {
	if err := content.Validate(); err != nil {
		return RawSubtitle{}, err
	}
	logger := logging.WithContext(ctx, f.logger).With(logging.String(logging.FieldContentID, content.ID))
	key := CacheKeyFor(content)

	if f.cache != nil {
		entry, ok, err := f.cache.Load(key)
		switch {
		case err != nil:
			f.observe("error")
			logging.WarnWithContext(logger, "raw cache read failed; fetching from network",
				"raw_cache_read_failed",
				logging.Error(err),
				logging.String("cache_key", key),
				logging.String(logging.FieldImpact, "subtitle will be downloaded again"),
				logging.String(logging.FieldErrorHint, "check cache_dir permissions"),
			)
		case ok && entry.Meta.Language != "" && !language.Matches(entry.Meta.Language, content.Lang()):
			f.observe("miss")
			logger.Debug("raw cache entry is in another language",
				logging.String("cache_key", key),
				logging.String("cached_language", entry.Meta.Language),
				logging.String("language", content.Lang()),
			)
		case ok:
			f.observe("hit")
			logger.Debug("raw cache hit", logging.String("cache_key", key), logging.Duration("age", entry.Age))
			return RawSubtitle{
				Data:      entry.Data,
				FileName:  entry.Meta.FileName,
				FileID:    entry.Meta.FileID,
				Release:   entry.Meta.Release,
				CacheKey:  key,
				FromCache: true,
			}, nil
		default:
			f.observe("miss")
		}
	}

	if f.searcher == nil || f.downloader == nil {
		return RawSubtitle{}, services.Wrap(services.ErrConfiguration, "subtitles", "fetch", "opensubtitles is not configured", nil)
	}
	ranking, err := f.searcher.Find(ctx, content)
	if err != nil {
		return RawSubtitle{}, err
	}

	var lastErr error
	for i, cand := range ranking.Candidates {
		if i >= maxDownloadCandidates {
			break
		}
		raw, err := f.download(ctx, content, cand.Candidate, logger)
		if err != nil {
			if ctx.Err() != nil {
				return RawSubtitle{}, ctx.Err()
			}
			lastErr = err
			logging.WarnWithContext(logger, "subtitle download failed; trying next candidate",
				"subtitle_download_failed",
				logging.Error(err),
				logging.Int64("file_id", cand.FileID()),
				logging.String(logging.FieldImpact, "next ranked candidate will be used"),
				logging.String(logging.FieldErrorHint, "check opensubtitles quota and network"),
			)
			continue
		}
		raw.CacheKey = key
		f.store(key, raw, content, logger)
		return raw, nil
	}
	if lastErr == nil {
		lastErr = services.Wrap(services.ErrNoResults, "subtitles", "fetch", content.SearchTitle(), nil)
	}
	return RawSubtitle{}, lastErr
}

func (f *Fetcher) download(ctx context.Context, content Content, cand Candidate, logger *slog.Logger) (RawSubtitle, error) {
	result, err := f.downloader.Download(ctx, cand.FileID())
	if err != nil {
		return RawSubtitle{}, err
	}
	cleaned, stats := CleanSRT(result.Data)
	if len(Parse(cleaned).Entries) == 0 {
		return RawSubtitle{}, fmt.Errorf("subtitle file %d contains no timed dialogue", cand.FileID())
	}
	if stats.RemovedCues > 0 {
		logger.Debug("removed promotional cues", logging.Int("removed", stats.RemovedCues))
	}
	f.checkLanguage(content, cleaned, logger)
	fileName := strings.TrimSpace(result.FileName)
	if fileName == "" {
		fileName = cand.FileName
	}
	if fileName == "" {
		fileName = fmt.Sprintf("%d.srt", cand.FileID())
	}
	return RawSubtitle{
		Data:     cleaned,
		FileName: fileName,
		FileID:   cand.FileID(),
		Release:  cand.Release,
	}, nil
}

func (f *Fetcher) store(key string, raw RawSubtitle, content Content, logger *slog.Logger) {
	if f.cache == nil {
		return
	}
	_, err := f.cache.Store(key, raw.Data, RawMeta{
		FileName: raw.FileName,
		FileID:   raw.FileID,
		Release:  raw.Release,
		Language: content.Lang(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "raw cache store failed",
			"raw_cache_store_failed",
			logging.Error(err),
			logging.String("cache_key", key),
			logging.String(logging.FieldImpact, "next filter level pass will download again"),
			logging.String(logging.FieldErrorHint, "check cache_dir permissions and free space"),
		)
	}
}

// checkLanguage warns when the payload reliably detects as a different
// language than the one requested.
func (f *Fetcher) checkLanguage(content Content, data []byte, logger *slog.Logger) {
	sample := Parse(data).Text
	if len(sample) > 4000 {
		sample = sample[:4000]
	}
	if strings.TrimSpace(sample) == "" {
		return
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return
	}
	detected := info.Lang.Iso6391()
	if detected == "" || language.Matches(detected, content.Lang()) {
		return
	}
	logging.WarnWithContext(logger, "subtitle language mismatch",
		"subtitle_language_mismatch",
		logging.String("expected", content.Lang()),
		logging.String("detected", detected),
		logging.Float64("confidence", info.Confidence),
		logging.String(logging.FieldImpact, "profanity detection may miss words"),
		logging.String(logging.FieldErrorHint, "verify the content language or pick another subtitle"),
	)
}

func (f *Fetcher) observe(result string) {
	if f.observer != nil {
		f.observer.ObserveRawCache(result)
	}
}
