package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"muteguard/internal/config"
	"muteguard/internal/services"
	"muteguard/internal/subtitles"
	"muteguard/internal/subtitles/opensubtitles"
	"muteguard/internal/textutil"
)

// contentFlags collects the flags that identify a movie or episode.
type contentFlags struct {
	id       string
	kind     string
	title    string
	year     int
	show     string
	season   int
	episode  int
	imdb     string
	language string
}

func (f *contentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "Content identifier used as the storage key (derived from title or IMDb id when empty)")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Content kind: movie or episode (inferred from --show/--season/--episode)")
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Movie or episode title")
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "Release year")
	cmd.Flags().StringVar(&f.show, "show", "", "Show title for episodes")
	cmd.Flags().IntVarP(&f.season, "season", "s", 0, "Season number")
	cmd.Flags().IntVarP(&f.episode, "episode", "e", 0, "Episode number")
	cmd.Flags().StringVar(&f.imdb, "imdb", "", "IMDb id (tt1234567)")
	cmd.Flags().StringVar(&f.language, "lang", "", "Subtitle language (defaults to the first configured language)")
}

// content builds a validated Content. An explicit --kind wins; otherwise any
// episode field selects an episode.
func (f *contentFlags) content(cfg *config.Config) (subtitles.Content, error) {
	kind := subtitles.KindMovie
	if strings.TrimSpace(f.kind) != "" {
		parsed, err := subtitles.ParseContentKind(f.kind)
		if err != nil {
			return subtitles.Content{}, err
		}
		kind = parsed
	} else if strings.TrimSpace(f.show) != "" || f.season > 0 || f.episode > 0 {
		kind = subtitles.KindEpisode
	}

	lang := strings.TrimSpace(f.language)
	if lang == "" && cfg != nil && len(cfg.OpenSubtitles.Languages) > 0 {
		lang = cfg.OpenSubtitles.Languages[0]
	}

	content := subtitles.Content{
		ID:        strings.TrimSpace(f.id),
		Kind:      kind,
		Title:     strings.TrimSpace(f.title),
		Year:      f.year,
		ShowTitle: strings.TrimSpace(f.show),
		Season:    f.season,
		Episode:   f.episode,
		IMDBID:    strings.TrimSpace(f.imdb),
		Language:  lang,
	}
	if content.IMDBID != "" && opensubtitles.SanitizeIMDBID(content.IMDBID) == "" {
		return subtitles.Content{}, services.Wrap(services.ErrValidation, "cli", "content", fmt.Sprintf("invalid imdb id %q", content.IMDBID), nil)
	}
	if content.ID == "" {
		content.ID = deriveContentID(content)
	}
	if err := content.Validate(); err != nil {
		return subtitles.Content{}, err
	}
	return content, nil
}

// deriveContentID builds a stable key so repeated runs hit the same records:
// the IMDb id when known, otherwise the title and year, plus the episode tag.
func deriveContentID(c subtitles.Content) string {
	var parts []string
	if imdb := opensubtitles.SanitizeIMDBID(c.IMDBID); imdb != "" {
		parts = append(parts, "tt"+imdb)
	} else {
		title := c.SearchTitle()
		if title == "" {
			return ""
		}
		parts = append(parts, strings.ToLower(title))
		if c.Year > 0 {
			parts = append(parts, strconv.Itoa(c.Year))
		}
	}
	if tag := c.EpisodeTag(); tag != "" {
		parts = append(parts, tag)
	}
	return textutil.SanitizeKey(strings.Join(parts, " "))
}
