package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"muteguard/internal/analysis"
	"muteguard/internal/logging"
	"muteguard/internal/profanity"
	"muteguard/internal/services"
	"muteguard/internal/subtitles"
)

// ErrAllLevelsFailed reports that none of the requested levels produced a
// result.
var ErrAllLevelsFailed = errors.New("all filter levels failed")

// Fetcher resolves raw subtitle bytes for content.
type Fetcher interface {
	Fetch(ctx context.Context, content subtitles.Content) (subtitles.RawSubtitle, error)
}

// Annotator filters dialogue at a level.
type Annotator interface {
	Annotate(ctx context.Context, entries []subtitles.DialogueEntry, level profanity.Level) (profanity.Annotation, error)
}

// Store is the subset of analysis.Store the processor needs.
type Store interface {
	Get(ctx context.Context, contentID string, level profanity.Level) (analysis.Record, bool, error)
	ExistingLevels(ctx context.Context, contentID string) ([]profanity.Level, error)
	Save(ctx context.Context, req analysis.SaveRequest) (analysis.Record, error)
}

// Observer receives per-level outcomes ("cached", "persisted", "memory",
// "failed") and the duration of each Process call.
type Observer interface {
	ObserveLevelResult(level profanity.Level, outcome string)
	ObserveBatch(elapsed time.Duration)
}

// Options adjusts a single Process call.
type Options struct {
	// Force re-analyses every requested level even when stored.
	Force bool
}

// Result is one level's outcome.
type Result struct {
	Record analysis.Record
	// Entries is nil for results served from the store.
	Entries   []subtitles.DialogueEntry
	Cached    bool
	Persisted bool
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

// Processor runs the store check, fetch, parse, annotate and save chain.
type Processor struct {
	fetcher   Fetcher
	annotator Annotator
	store     Store
	logger    *slog.Logger
	observer  Observer
	now       func() time.Time
	fetches   singleflight.Group
}

// NewProcessor wires a Processor. store may be nil to run without
// persistence; every result is then in-memory.
func NewProcessor(fetcher Fetcher, annotator Annotator, store Store, opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		fetcher:   fetcher,
		annotator: annotator,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "batch"),
		observer:  opts.Observer,
		now:       now,
	}
}

type fetched struct {
	raw    subtitles.RawSubtitle
	parsed subtitles.Parsed
}

type levelOutcome struct {
	level  profanity.Level
	result Result
	err    error
}

// Process returns a result for every requested level that succeeded.
func (p *Processor) Process(ctx context.Context, content subtitles.Content, levels []profanity.Level, opts Options) (map[profanity.Level]Result, error) {
	started := p.now()
	defer func() {
		if p.observer != nil {
			p.observer.ObserveBatch(p.now().Sub(started))
		}
	}()

	if err := content.Validate(); err != nil {
		return nil, err
	}
	levels, err := normalizeLevels(levels)
	if err != nil {
		return nil, err
	}
	if p.fetcher == nil || p.annotator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "batch", "process", "fetcher and annotator are required", nil)
	}

	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	ctx = services.WithContentID(ctx, content.ID)
	logger := logging.WithContext(ctx, p.logger)

	results := make(map[profanity.Level]Result, len(levels))
	missing := levels
	if !opts.Force {
		missing = p.partition(ctx, content, levels, results, logger)
	}
	if len(missing) == 0 {
		logger.Info("all requested levels already analyzed",
			logging.Args(logging.DecisionAttrs("batch_partition", "store", "every level has a local artifact")...)...)
		return results, nil
	}

	data, err := p.fetch(ctx, content)
	if err != nil {
		for _, level := range missing {
			p.observe(level, "failed")
		}
		if len(results) > 0 {
			logging.WarnWithContext(logger, "subtitle fetch failed; returning stored levels only", "batch_fetch_failed",
				logging.Int("missing_levels", len(missing)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "missing levels were not analyzed"),
				logging.String(logging.FieldErrorHint, "retry later or check OpenSubtitles credentials"),
			)
			return results, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrAllLevelsFailed, err)
	}

	outcomes := p.analyze(ctx, content, data, missing)
	var lastErr error
	for _, out := range outcomes {
		if out.err != nil {
			lastErr = out.err
			continue
		}
		results[out.level] = out.result
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllLevelsFailed, lastErr)
	}
	logger.Info("batch analysis complete",
		logging.Int("requested", len(levels)),
		logging.Int("analyzed", len(outcomes)),
		logging.Int("succeeded", len(results)),
		logging.String("subtitle_file", data.raw.FileName),
		logging.Bool("from_cache", data.raw.FromCache),
	)
	return results, nil
}

// partition fills results with stored levels and returns the rest.
func (p *Processor) partition(ctx context.Context, content subtitles.Content, levels []profanity.Level, results map[profanity.Level]Result, logger *slog.Logger) []profanity.Level {
	if p.store == nil {
		return levels
	}
	existing, err := p.store.ExistingLevels(ctx, content.ID)
	if err != nil {
		logging.WarnWithContext(logger, "store lookup failed; analyzing all levels", "store_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stored results are recomputed"),
			logging.String(logging.FieldErrorHint, "check the analysis database"),
		)
		return levels
	}
	present := make(map[profanity.Level]bool, len(existing))
	for _, level := range existing {
		present[level] = true
	}

	var missing []profanity.Level
	for _, level := range levels {
		if !present[level] {
			missing = append(missing, level)
			continue
		}
		rec, ok, err := p.store.Get(ctx, content.ID, level)
		if err != nil || !ok {
			missing = append(missing, level)
			continue
		}
		results[level] = Result{Record: rec, Cached: true, Persisted: true}
		p.observe(level, "cached")
	}
	return missing
}

// sharedFetchTimeout bounds a coalesced fetch once it no longer follows any
// single caller's context.
const sharedFetchTimeout = 2 * time.Minute

// fetch downloads and parses once per content id, sharing the work with
// concurrent callers for the same content. The shared work runs detached from
// the caller that started it; each caller stops waiting when its own context
// ends.
func (p *Processor) fetch(ctx context.Context, content subtitles.Content) (fetched, error) {
	ch := p.fetches.DoChan(content.ID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		raw, err := p.fetcher.Fetch(fetchCtx, content)
		if err != nil {
			return fetched{}, err
		}
		parsed := subtitles.Parse(raw.Data)
		if len(parsed.Entries) == 0 {
			return fetched{}, services.Wrap(services.ErrValidation, "batch", "parse", "subtitle "+raw.FileName+" has no dialogue", nil)
		}
		return fetched{raw: raw, parsed: parsed}, nil
	})

	select {
	case <-ctx.Done():
		return fetched{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fetched{}, res.Err
		}
		if res.Shared {
			p.logger.Debug("subtitle fetch shared with a concurrent request", logging.String(logging.FieldContentID, content.ID))
		}
		return res.Val.(fetched), nil
	}
}

// analyze annotates and saves each level concurrently. Every goroutine
// returns nil; failures travel in the outcome.
func (p *Processor) analyze(ctx context.Context, content subtitles.Content, data fetched, levels []profanity.Level) []levelOutcome {
	outcomes := make([]levelOutcome, len(levels))
	var g errgroup.Group
	for i, level := range levels {
		g.Go(func() error {
			outcomes[i] = p.analyzeLevel(ctx, content, data, level)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Processor) analyzeLevel(ctx context.Context, content subtitles.Content, data fetched, level profanity.Level) levelOutcome {
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldFilterLevel, level.String()))
	out := levelOutcome{level: level}

	annotation, err := p.annotator.Annotate(ctx, data.parsed.Entries, level)
	if err != nil {
		logging.WarnWithContext(logger, "filter level failed", "level_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this level is missing from the result"),
			logging.String(logging.FieldErrorHint, "check the profanity filter configuration"),
		)
		p.observe(level, "failed")
		out.err = err
		return out
	}

	req := analysis.SaveRequest{
		Content:        content,
		Level:          level,
		Entries:        annotation.Entries,
		SourceFileName: data.raw.FileName,
	}
	out.result.Entries = annotation.Entries
	if p.store == nil {
		out.result.Record = analysis.BuildRecord(req, "", p.now())
		p.observe(level, "memory")
		return out
	}
	rec, err := p.store.Save(ctx, req)
	if err != nil {
		logging.WarnWithContext(logger, "failed to persist analysis; returning in-memory result", "persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this level will be re-analyzed next time"),
			logging.String(logging.FieldErrorHint, "check disk space and the artifact directory"),
		)
		out.result.Record = analysis.BuildRecord(req, "", p.now())
		p.observe(level, "memory")
		return out
	}
	out.result.Record = rec
	out.result.Persisted = true
	p.observe(level, "persisted")
	return out
}

func (p *Processor) observe(level profanity.Level, outcome string) {
	if p.observer != nil {
		p.observer.ObserveLevelResult(level, outcome)
	}
}

func normalizeLevels(levels []profanity.Level) ([]profanity.Level, error) {
	if len(levels) == 0 {
		return nil, services.Wrap(services.ErrValidation, "batch", "process", "at least one filter level is required", nil)
	}
	seen := make(map[profanity.Level]bool, len(levels))
	out := make([]profanity.Level, 0, len(levels))
	for _, level := range levels {
		if !level.Valid() {
			return nil, services.Wrap(services.ErrValidation, "batch", "process", fmt.Sprintf("invalid level %d", int(level)), nil)
		}
		if seen[level] {
			continue
		}
		seen[level] = true
		out = append(out, level)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SortedLevels returns the keys of results in ascending order.
func SortedLevels(results map[profanity.Level]Result) []profanity.Level {
	levels := make([]profanity.Level, 0, len(results))
	for level := range results {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}
