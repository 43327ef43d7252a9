package subtitles

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"muteguard/internal/logging"
	"muteguard/internal/subtitles/opensubtitles"
)

const defaultQueryDelay = 100 * time.Millisecond

// Index is the subset of the OpenSubtitles client used for discovery.
type Index interface {
	Search(ctx context.Context, req opensubtitles.SearchRequest) (opensubtitles.SearchResponse, error)
}

// SearcherOptions configures a Searcher.
type SearcherOptions struct {
	// QueryDelay spaces successive free-text queries.
	QueryDelay      time.Duration
	RelaxedFallback bool
	Logger          *slog.Logger
}

// Searcher runs the identifier lookup, the free-text variations and, when
// needed, the relaxed pass, handing every result list to the Ranker.
type Searcher struct {
	index   Index
	ranker  *Ranker
	limiter *rate.Limiter
	relaxed bool
	logger  *slog.Logger
}

// NewSearcher wires a Searcher around index and ranker.
func NewSearcher(index Index, ranker *Ranker, opts SearcherOptions) *Searcher {
	if ranker == nil {
		ranker = NewRanker(DefaultRankerOptions())
	}
	delay := opts.QueryDelay
	if delay <= 0 {
		delay = defaultQueryDelay
	}
	return &Searcher{
		index:   index,
		ranker:  ranker,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		relaxed: opts.RelaxedFallback,
		logger:  logging.NewComponentLogger(opts.Logger, "subtitle_search"),
	}
}

// Find returns the winning ranking for content. The identifier lookup runs
// first; when it yields nothing usable the free-text variations are tried,
// and the relaxed pass runs when the best candidate is still below the
// quality floor.
func (s *Searcher) Find(ctx context.Context, content Content) (Ranking, error) {
	if err := content.Validate(); err != nil {
		return Ranking{}, err
	}
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldContentID, content.ID))

	var results []VariationResult
	if content.IMDBID != "" && opensubtitles.SanitizeIMDBID(content.IMDBID) != "" {
		result, err := s.searchIdentifier(ctx, content)
		if err != nil {
			if ctx.Err() != nil {
				return Ranking{}, err
			}
			logging.WarnWithContext(logger, "identifier lookup failed; falling back to free text",
				"identifier_search_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "search continues with title variations"),
				logging.String(logging.FieldErrorHint, "check imdb id and network connectivity"),
			)
		} else if len(result.Candidates) > 0 {
			ranking, rankErr := s.ranker.Rank(content, []VariationResult{result})
			if rankErr == nil && !s.ranker.BelowQualityFloor(content, ranking) {
				s.logSelection(logger, ranking, "identifier_match")
				return ranking, nil
			}
			results = append(results, result)
		}
	}

	textResults, lastErr := s.searchVariations(ctx, content, QueryVariations(QueryInputFor(content)), false)
	results = append(results, textResults...)
	if ctx.Err() != nil {
		return Ranking{}, ctx.Err()
	}

	ranking, rankErr := s.ranker.Rank(content, results)
	if rankErr == nil && !s.ranker.BelowQualityFloor(content, ranking) {
		s.logSelection(logger, ranking, "strict_match")
		return ranking, nil
	}

	if s.relaxed {
		reason := "no_candidates"
		if rankErr == nil {
			reason = "below_quality_floor"
		}
		logger.Info("subtitle search relaxing criteria",
			logging.Args(logging.DecisionAttrs("subtitle_search", "relaxed_pass", reason)...)...,
		)
		relaxedResults, relaxedErr := s.searchVariations(ctx, content, RelaxedVariations(QueryInputFor(content)), true)
		if relaxedErr != nil {
			lastErr = relaxedErr
		}
		if ctx.Err() != nil {
			return Ranking{}, ctx.Err()
		}
		if relaxed, err := s.ranker.Rank(content, relaxedResults); err == nil {
			s.logSelection(logger, relaxed, "relaxed_match")
			return relaxed, nil
		}
	}

	if rankErr == nil {
		s.logSelection(logger, ranking, "below_floor_accepted")
		return ranking, nil
	}
	if len(results) == 0 && lastErr != nil {
		return Ranking{}, lastErr
	}
	logger.Info("subtitle search exhausted",
		logging.Args(logging.DecisionAttrs("subtitle_search", "no_results", "no_candidate_survived")...)...,
	)
	return Ranking{}, rankErr
}

func (s *Searcher) searchIdentifier(ctx context.Context, content Content) (VariationResult, error) {
	req := opensubtitles.SearchRequest{
		IMDBID:    content.IMDBID,
		Languages: []string{content.Lang()},
	}
	if content.IsEpisode() {
		req.Season = content.Season
		req.Episode = content.Episode
	}
	resp, err := s.index.Search(ctx, req)
	if err != nil {
		return VariationResult{}, err
	}
	return VariationResult{
		Query:      "imdb:" + content.IMDBID,
		Identifier: true,
		Candidates: toCandidates(resp.Subtitles),
	}, nil
}

// searchVariations runs each query in order, paced by the limiter. A failed
// query is skipped; the last error is returned so callers can surface it when
// every query failed.
func (s *Searcher) searchVariations(ctx context.Context, content Content, queries []string, relaxed bool) ([]VariationResult, error) {
	results := make([]VariationResult, 0, len(queries))
	var lastErr error
	for _, query := range queries {
		if err := s.limiter.Wait(ctx); err != nil {
			return results, err
		}
		req := opensubtitles.SearchRequest{
			Query:     query,
			Languages: []string{content.Lang()},
		}
		if content.Year > 0 {
			req.Year = content.Year
		}
		if content.IsEpisode() {
			req.Season = content.Season
			req.Episode = content.Episode
		}
		resp, err := s.index.Search(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return results, err
			}
			lastErr = err
			s.logger.Debug("subtitle query failed",
				logging.String("query", query),
				logging.Bool("relaxed", relaxed),
				logging.Error(err),
			)
			continue
		}
		results = append(results, VariationResult{
			Query:      query,
			Relaxed:    relaxed,
			Candidates: toCandidates(resp.Subtitles),
		})
	}
	if len(results) > 0 {
		return results, nil
	}
	return results, lastErr
}

func (s *Searcher) logSelection(logger *slog.Logger, ranking Ranking, reason string) {
	best, ok := ranking.Best()
	if !ok {
		return
	}
	attrs := logging.DecisionAttrs("subtitle_search", "selected", reason)
	attrs = append(attrs,
		logging.String("query", ranking.Query),
		logging.String("release", best.Release),
		logging.Int64("file_id", best.FileID()),
		logging.Int("downloads", best.Downloads),
		logging.Float64("score", best.Score),
		logging.Float64("quality", best.Quality),
		logging.Int("candidates", len(ranking.Candidates)),
	)
	logger.Info("subtitle candidate selected", logging.Args(attrs...)...)
}

func toCandidates(subs []opensubtitles.Subtitle) []Candidate {
	out := make([]Candidate, 0, len(subs))
	for _, sub := range subs {
		out = append(out, candidateFromSubtitle(sub))
	}
	return out
}
