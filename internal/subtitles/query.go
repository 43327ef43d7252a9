package subtitles

import (
	"fmt"
	"strings"
	"unicode"

	"muteguard/internal/textutil"
)

// QueryInput carries the metadata variations are built from.
type QueryInput struct {
	Title   string
	Year    int
	Season  int
	Episode int
}

// QueryInputFor extracts the query metadata from content.
func QueryInputFor(c Content) QueryInput {
	in := QueryInput{Title: c.SearchTitle(), Year: c.Year}
	if c.IsEpisode() {
		in.Season = c.Season
		in.Episode = c.Episode
	}
	return in
}

func (in QueryInput) episodeTag() string {
	if in.Season <= 0 || in.Episode <= 0 {
		return ""
	}
	return fmt.Sprintf("s%02de%02d", in.Season, in.Episode)
}

// QueryVariations returns the ordered, de-duplicated search strings for in.
//
// Movies get the dot form, the normalized form, the raw lower-case title and
// year-qualified dot and normalized forms. Episodes get the episode tag
// appended to the three base forms plus one year-qualified episode form.
func QueryVariations(in QueryInput) []string {
	raw := strings.Join(strings.Fields(strings.ToLower(in.Title)), " ")
	if raw == "" {
		return nil
	}
	dot := strings.ReplaceAll(raw, " ", ".")
	normalized := NormalizeTitle(in.Title)
	if normalized == "" {
		normalized = raw
	}

	var out []string
	if tag := in.episodeTag(); tag != "" {
		out = []string{
			dot + "." + tag,
			normalized + " " + tag,
			raw + " " + tag,
		}
		if in.Year > 0 {
			out = append(out, fmt.Sprintf("%s %d %s", normalized, in.Year, tag))
		}
		return dedupe(out)
	}

	out = []string{dot, normalized, raw}
	if in.Year > 0 {
		out = append(out,
			fmt.Sprintf("%s.%d", dot, in.Year),
			fmt.Sprintf("%s %d", normalized, in.Year),
		)
	}
	return dedupe(out)
}

// RelaxedVariations returns the looser forms used when the strict pass finds
// nothing worth downloading: the punctuation-stripped title joined by dots and
// by spaces, with leading articles kept. Episodes also get the normalized
// title with the episode tag.
func RelaxedVariations(in QueryInput) []string {
	stripped := stripPunctuation(strings.ToLower(textutil.Fold(in.Title)))
	if stripped == "" {
		return nil
	}
	dotted := strings.ReplaceAll(stripped, " ", ".")
	tag := in.episodeTag()
	if tag == "" {
		return dedupe([]string{dotted, stripped})
	}
	return dedupe([]string{
		dotted + "." + tag,
		stripped + " " + tag,
		NormalizeTitle(in.Title) + " " + tag,
	})
}

// NormalizeTitle lower-cases title, folds diacritics, drops punctuation and a
// leading article, and collapses whitespace.
func NormalizeTitle(title string) string {
	value := stripPunctuation(strings.ToLower(textutil.Fold(title)))
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(value, article) && len(value) > len(article) {
			value = value[len(article):]
			break
		}
	}
	return value
}

func stripPunctuation(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
