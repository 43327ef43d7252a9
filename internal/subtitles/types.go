package subtitles

import (
	"fmt"
	"strings"
	"time"

	"muteguard/internal/language"
	"muteguard/internal/services"
	"muteguard/internal/subtitles/opensubtitles"
)

// ContentKind distinguishes feature films from TV episodes.
type ContentKind string

const (
	KindMovie   ContentKind = "movie"
	KindEpisode ContentKind = "episode"
)

// ParseContentKind accepts the usual spellings of movie and episode.
func ParseContentKind(value string) (ContentKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "movie", "film":
		return KindMovie, nil
	case "episode", "tv", "series", "show":
		return KindEpisode, nil
	default:
		return "", services.Wrap(services.ErrValidation, "subtitles", "parse kind", fmt.Sprintf("unknown content kind %q", value), nil)
	}
}

// Content identifies one movie or episode.
type Content struct {
	ID        string
	Kind      ContentKind
	Title     string
	Year      int
	ShowTitle string
	Season    int
	Episode   int
	IMDBID    string
	Language  string
}

// IsEpisode reports whether c describes a TV episode.
func (c Content) IsEpisode() bool {
	return c.Kind == KindEpisode
}

// SearchTitle is the title used for queries: the show title for episodes when
// present, otherwise the content title.
func (c Content) SearchTitle() string {
	if c.IsEpisode() {
		if show := strings.TrimSpace(c.ShowTitle); show != "" {
			return show
		}
	}
	return strings.TrimSpace(c.Title)
}

// EpisodeTag returns the zero-padded sNNeNN tag, or "" for movies.
func (c Content) EpisodeTag() string {
	if !c.IsEpisode() || c.Season <= 0 || c.Episode <= 0 {
		return ""
	}
	return fmt.Sprintf("s%02de%02d", c.Season, c.Episode)
}

// Lang returns the requested subtitle language as an OpenSubtitles code,
// defaulting to English.
func (c Content) Lang() string {
	if lang := language.Normalize(c.Language); lang != "" {
		return lang
	}
	return "en"
}

// Validate checks the fields every search needs.
func (c Content) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return services.Wrap(services.ErrValidation, "subtitles", "validate content", "content id is required", nil)
	case c.SearchTitle() == "":
		return services.Wrap(services.ErrValidation, "subtitles", "validate content", "title is required", nil)
	case c.Kind != KindMovie && c.Kind != KindEpisode:
		return services.Wrap(services.ErrValidation, "subtitles", "validate content", fmt.Sprintf("unknown content kind %q", c.Kind), nil)
	case c.IsEpisode() && (c.Season <= 0 || c.Episode <= 0):
		return services.Wrap(services.ErrValidation, "subtitles", "validate content", "episodes need season and episode numbers", nil)
	case strings.TrimSpace(c.Language) != "" && language.Normalize(c.Language) == "":
		return services.Wrap(services.ErrValidation, "subtitles", "validate content", fmt.Sprintf("unknown language %q", c.Language), nil)
	}
	return nil
}

// Candidate is a search result before download. It is never persisted.
type Candidate struct {
	FileIDs           []int64
	Release           string
	FileName          string
	Language          string
	Downloads         int
	Rating            float64
	Points            float64
	HearingImpaired   bool
	AITranslated      bool
	MachineTranslated bool
	FromTrusted       bool
	UploaderRank      string
}

// FileID returns the first downloadable file id.
func (c Candidate) FileID() int64 {
	if len(c.FileIDs) == 0 {
		return 0
	}
	return c.FileIDs[0]
}

func candidateFromSubtitle(sub opensubtitles.Subtitle) Candidate {
	return Candidate{
		FileIDs:           append([]int64(nil), sub.FileIDs...),
		Release:           sub.Release,
		FileName:          sub.FileName,
		Language:          sub.Language,
		Downloads:         sub.Downloads,
		Rating:            sub.Rating,
		Points:            sub.Points,
		HearingImpaired:   sub.HearingImpaired,
		AITranslated:      sub.AITranslated,
		MachineTranslated: sub.MachineTranslated,
		FromTrusted:       sub.FromTrusted,
		UploaderRank:      sub.UploaderRank,
	}
}

// DialogueEntry is one timed subtitle cue. Entries are values: annotation
// produces new entries rather than mutating existing ones.
type DialogueEntry struct {
	Index        int
	Start        time.Duration
	End          time.Duration
	OriginalText string
	// MarkedText is OriginalText with every filtered span wrapped in the
	// textutil sentinel markers. Empty until annotated.
	MarkedText string
	// FilteredText is the display rendering with filtered spans masked.
	FilteredText  string
	HasProfanity  bool
	DetectedWords []string
}

// DisplayText returns the filtered rendering when present.
func (e DialogueEntry) DisplayText() string {
	if e.FilteredText != "" {
		return e.FilteredText
	}
	return e.OriginalText
}
