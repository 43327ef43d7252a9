package subtitles

import (
	"sort"
	"strings"

	"muteguard/internal/services"
	"muteguard/internal/textutil"
)

const (
	similarityWeight = 100.0
	episodeTagBonus  = 50.0

	downloadWeight = 0.4
	ratingWeight   = 2.0
	pointsWeight   = 1.5

	bonusNotHearingImpaired   = 10.0
	bonusNotAITranslated      = 15.0
	bonusNotMachineTranslated = 10.0
	bonusFromTrusted          = 20.0
	bonusTrustedUploader      = 15.0
)

var trustedUploaderRanks = map[string]struct{}{
	"administrator":   {},
	"trusted":         {},
	"platinum member": {},
	"gold member":     {},
	"app developer":   {},
}

// RankerOptions holds the popularity and quality floors.
type RankerOptions struct {
	MinDownloadsMovie      int
	MinDownloadsEpisode    int
	MinDownloadsIdentifier int
	MinDownloadsRelaxed    int
	QualityFloorMovie      float64
	QualityFloorEpisode    float64
}

// DefaultRankerOptions returns the stock floors.
func DefaultRankerOptions() RankerOptions {
	return RankerOptions{
		MinDownloadsMovie:      10,
		MinDownloadsEpisode:    5,
		MinDownloadsIdentifier: 3,
		MinDownloadsRelaxed:    1,
		QualityFloorMovie:      10,
		QualityFloorEpisode:    5,
	}
}

// VariationResult is the raw candidate list returned for one query.
type VariationResult struct {
	Query      string
	Identifier bool
	Relaxed    bool
	Candidates []Candidate
}

// ScoredCandidate is a candidate that survived the popularity floor.
type ScoredCandidate struct {
	Candidate
	Similarity float64
	Quality    float64
	Score      float64
	TagMatch   bool
}

// Ranking is the winning variation and its candidates, best first.
type Ranking struct {
	Query        string
	Identifier   bool
	Relaxed      bool
	AverageScore float64
	Candidates   []ScoredCandidate
}

// Best returns the top candidate.
func (r Ranking) Best() (ScoredCandidate, bool) {
	if len(r.Candidates) == 0 {
		return ScoredCandidate{}, false
	}
	return r.Candidates[0], true
}

// Ranker scores candidates and picks the strongest variation.
type Ranker struct {
	opts RankerOptions
}

// NewRanker builds a Ranker. Zero-valued options fall back to the defaults.
func NewRanker(opts RankerOptions) *Ranker {
	def := DefaultRankerOptions()
	if opts.MinDownloadsMovie <= 0 {
		opts.MinDownloadsMovie = def.MinDownloadsMovie
	}
	if opts.MinDownloadsEpisode <= 0 {
		opts.MinDownloadsEpisode = def.MinDownloadsEpisode
	}
	if opts.MinDownloadsIdentifier <= 0 {
		opts.MinDownloadsIdentifier = def.MinDownloadsIdentifier
	}
	if opts.MinDownloadsRelaxed <= 0 {
		opts.MinDownloadsRelaxed = def.MinDownloadsRelaxed
	}
	if opts.QualityFloorMovie <= 0 {
		opts.QualityFloorMovie = def.QualityFloorMovie
	}
	if opts.QualityFloorEpisode <= 0 {
		opts.QualityFloorEpisode = def.QualityFloorEpisode
	}
	return &Ranker{opts: opts}
}

// Rank filters and scores every variation and keeps the one whose surviving
// candidates have the highest average score. Ties keep the earlier variation.
// When no variation has a survivor the error matches services.ErrNoResults.
func (r *Ranker) Rank(content Content, results []VariationResult) (Ranking, error) {
	var (
		best  Ranking
		found bool
	)
	for _, result := range results {
		floor := r.popularityFloor(content, result)
		scored := make([]ScoredCandidate, 0, len(result.Candidates))
		var total float64
		for _, cand := range result.Candidates {
			if cand.FileID() == 0 || cand.Downloads < floor {
				continue
			}
			sc := r.score(content, cand)
			total += sc.Score
			scored = append(scored, sc)
		}
		if len(scored) == 0 {
			continue
		}
		avg := total / float64(len(scored))
		if found && avg <= best.AverageScore {
			continue
		}
		sortScored(scored)
		best = Ranking{
			Query:        result.Query,
			Identifier:   result.Identifier,
			Relaxed:      result.Relaxed,
			AverageScore: avg,
			Candidates:   scored,
		}
		found = true
	}
	if !found {
		return Ranking{}, services.Wrap(services.ErrNoResults, "subtitles", "rank", content.SearchTitle(), nil)
	}
	return best, nil
}

// BelowQualityFloor reports whether the top candidate of ranking is too weak
// to accept without trying the relaxed pass.
func (r *Ranker) BelowQualityFloor(content Content, ranking Ranking) bool {
	top, ok := ranking.Best()
	if !ok {
		return true
	}
	floor := r.opts.QualityFloorMovie
	if content.IsEpisode() {
		floor = r.opts.QualityFloorEpisode
	}
	return top.Quality < floor
}

func (r *Ranker) popularityFloor(content Content, result VariationResult) int {
	switch {
	case result.Relaxed:
		return r.opts.MinDownloadsRelaxed
	case content.IsEpisode() && result.Identifier:
		return r.opts.MinDownloadsIdentifier
	case content.IsEpisode():
		return r.opts.MinDownloadsEpisode
	default:
		return r.opts.MinDownloadsMovie
	}
}

func (r *Ranker) score(content Content, cand Candidate) ScoredCandidate {
	sc := ScoredCandidate{Candidate: cand}
	sc.Similarity, sc.TagMatch = TitleSimilarity(content.SearchTitle(), content.EpisodeTag(), cand.Release)
	sc.Quality = QualityScore(cand)
	sc.Score = sc.Similarity*similarityWeight + sc.Quality
	if sc.TagMatch {
		sc.Score += episodeTagBonus
	}
	return sc
}

// TitleSimilarity compares title with a release name. For episodes the
// release is cut at the episode tag first, and tagMatch reports whether the
// tag occurs in the release at all.
func TitleSimilarity(title, episodeTag, release string) (similarity float64, tagMatch bool) {
	name := strings.ToLower(strings.TrimSpace(release))
	if tag := strings.ToLower(episodeTag); tag != "" {
		if idx := strings.Index(name, tag); idx >= 0 {
			tagMatch = true
			name = name[:idx]
		}
	}
	name = releaseWords(name)
	return textutil.Similarity(strings.ToLower(strings.TrimSpace(title)), name), tagMatch
}

// releaseWords turns scene separators into spaces.
func releaseWords(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '.', '_':
			return ' '
		}
		return r
	}, name)
	return strings.Join(strings.Fields(name), " ")
}

// QualityScore weighs popularity and the trust flags of cand.
func QualityScore(cand Candidate) float64 {
	score := downloadWeight*float64(cand.Downloads) +
		ratingWeight*cand.Rating +
		pointsWeight*cand.Points
	if !cand.HearingImpaired {
		score += bonusNotHearingImpaired
	}
	if !cand.AITranslated {
		score += bonusNotAITranslated
	}
	if !cand.MachineTranslated {
		score += bonusNotMachineTranslated
	}
	if cand.FromTrusted {
		score += bonusFromTrusted
	}
	if _, ok := trustedUploaderRanks[strings.ToLower(strings.TrimSpace(cand.UploaderRank))]; ok {
		score += bonusTrustedUploader
	}
	return score
}

func sortScored(scored []ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Downloads != scored[j].Downloads {
			return scored[i].Downloads > scored[j].Downloads
		}
		return scored[i].FileID() < scored[j].FileID()
	})
}
