package main

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"muteguard/internal/analysis"
	"muteguard/internal/batch"
	"muteguard/internal/config"
	"muteguard/internal/metrics"
	"muteguard/internal/profanity"
	"muteguard/internal/services"
	"muteguard/internal/subtitles"
	"muteguard/internal/subtitles/opensubtitles"
)

// pipeline is the full search, fetch, annotate and persist chain. Every stage
// reports into metrics.
type pipeline struct {
	store     *analysis.Store
	cache     *subtitles.RawCache
	searcher  *subtitles.Searcher
	processor *batch.Processor
	metrics   *metrics.Metrics
}

func (p *pipeline) Close() error {
	if p == nil || p.store == nil {
		return nil
	}
	return p.store.Close()
}

func newSearcher(cfg *config.Config, logger *slog.Logger, observer opensubtitles.RequestObserver) (*subtitles.Searcher, *opensubtitles.Client, error) {
	if err := cfg.RequireOpenSubtitles(); err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "cli", "opensubtitles", "", err)
	}
	client, err := opensubtitles.New(opensubtitles.Config{
		APIKey:    cfg.OpenSubtitles.APIKey,
		UserAgent: cfg.OpenSubtitles.UserAgent,
		UserToken: cfg.OpenSubtitles.UserToken,
		BaseURL:   cfg.OpenSubtitles.BaseURL,
		Timeout:   cfg.RequestTimeout(),
		Retry: opensubtitles.RetryPolicy{
			MaxAttempts: cfg.OpenSubtitles.MaxAttempts,
			BaseDelay:   cfg.InitialBackoff(),
		},
		Observer: observer,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "cli", "opensubtitles", "", err)
	}
	ranker := subtitles.NewRanker(subtitles.RankerOptions{
		MinDownloadsMovie:      cfg.Search.MinDownloadsMovie,
		MinDownloadsEpisode:    cfg.Search.MinDownloadsEpisode,
		MinDownloadsIdentifier: cfg.Search.MinDownloadsIdentifier,
		MinDownloadsRelaxed:    cfg.Search.MinDownloadsRelaxed,
		QualityFloorMovie:      cfg.Search.QualityFloorMovie,
		QualityFloorEpisode:    cfg.Search.QualityFloorEpisode,
	})
	searcher := subtitles.NewSearcher(client, ranker, subtitles.SearcherOptions{
		QueryDelay:      cfg.QueryDelay(),
		RelaxedFallback: cfg.Search.RelaxedFallback,
		Logger:          logger,
	})
	return searcher, client, nil
}

func newFilter(cfg *config.Config) (*profanity.WordListFilter, error) {
	mask := maskRune(cfg)
	if path := strings.TrimSpace(cfg.Profanity.WordlistPath); path != "" {
		filter, err := profanity.LoadWordListFilter(path, mask)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "cli", "load word list", path, err)
		}
		return filter, nil
	}
	return profanity.NewBuiltinFilter(mask)
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	m := metrics.New()
	searcher, client, err := newSearcher(cfg, logger, m)
	if err != nil {
		return nil, err
	}
	cache, err := subtitles.NewRawCache(cfg.Paths.CacheDir, cfg.CacheTTL(), logger)
	if err != nil {
		return nil, fmt.Errorf("open subtitle cache: %w", err)
	}
	filter, err := newFilter(cfg)
	if err != nil {
		return nil, err
	}
	store, err := analysis.Open(cfg, analysis.WithLogger(logger), analysis.WithObserver(m))
	if err != nil {
		return nil, err
	}

	fetcher := subtitles.NewFetcher(searcher, client, cache, subtitles.FetcherOptions{Observer: m, Logger: logger})
	annotator := profanity.NewAnnotator(filter, maskRune(cfg), logger)
	processor := batch.NewProcessor(fetcher, annotator, store, batch.ProcessorOptions{Observer: m, Logger: logger})
	return &pipeline{
		store:     store,
		cache:     cache,
		searcher:  searcher,
		processor: processor,
		metrics:   m,
	}, nil
}

func maskRune(cfg *config.Config) rune {
	if r, _ := utf8.DecodeRuneInString(cfg.Profanity.Mask); r != utf8.RuneError {
		return r
	}
	return subtitles.DefaultMask
}
