package profanity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"muteguard/internal/logging"
	"muteguard/internal/services"
	"muteguard/internal/subtitles"
	"muteguard/internal/textutil"
)

// ErrLevelFailed is returned when the filter failed for every entry.
var ErrLevelFailed = errors.New("profanity filter failed for every dialogue entry")

// Annotation is the outcome of one level pass.
type Annotation struct {
	Level   Level
	Entries []subtitles.DialogueEntry
	// Events counts entries that carry at least one filtered span.
	Events int
	// Failed counts entries kept unfiltered because the filter errored.
	Failed int
	// Hint is the capability's own severity guess for the whole dialogue.
	Hint Severity
}

// DetectedWords returns the distinct words filtered across all entries.
func (a Annotation) DetectedWords() []string {
	var all []string
	for _, entry := range a.Entries {
		all = append(all, entry.DetectedWords...)
	}
	return distinctSorted(all)
}

// Annotator runs a Filter over dialogue and records filtered spans with
// sentinel markers.
type Annotator struct {
	filter Filter
	mask   rune
	logger *slog.Logger
}

// NewAnnotator wraps filter. mask 0 selects '*'.
func NewAnnotator(filter Filter, mask rune, logger *slog.Logger) *Annotator {
	if mask == 0 {
		mask = subtitles.DefaultMask
	}
	return &Annotator{
		filter: filter,
		mask:   mask,
		logger: logging.NewComponentLogger(logger, "profanity"),
	}
}

// Annotate filters every entry at level and returns new entries; the input
// slice is not modified. A failing entry keeps its original text. The level
// fails only when every entry failed.
func (a *Annotator) Annotate(ctx context.Context, entries []subtitles.DialogueEntry, level Level) (Annotation, error) {
	if a == nil || a.filter == nil {
		return Annotation{}, services.Wrap(services.ErrConfiguration, "profanity", "annotate", "no filter configured", nil)
	}
	if !level.Valid() {
		return Annotation{}, services.Wrap(services.ErrValidation, "profanity", "annotate", fmt.Sprintf("invalid level %d", int(level)), nil)
	}
	logger := logging.WithContext(ctx, a.logger).With(logging.String(logging.FieldFilterLevel, level.String()))

	out := Annotation{Level: level, Entries: make([]subtitles.DialogueEntry, len(entries))}
	var lastErr error
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Annotation{}, err
		}
		annotated, err := a.annotateEntry(ctx, entry, level)
		if err != nil {
			out.Failed++
			lastErr = err
			logging.WarnWithContext(logger, "profanity filter failed for entry; keeping original text",
				"profanity_filter_failed",
				logging.Int("entry_index", entry.Index),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this line will not be filtered"),
				logging.String(logging.FieldErrorHint, "check the word list or filter service"),
			)
			annotated = unfiltered(entry)
		}
		if annotated.HasProfanity {
			out.Events++
		}
		out.Entries[i] = annotated
	}
	if len(entries) > 0 && out.Failed == len(entries) {
		return Annotation{}, fmt.Errorf("%w: %s: %w", ErrLevelFailed, level, lastErr)
	}

	if level != LevelNone {
		out.Hint = a.classify(ctx, out.Entries, logger)
	}
	logger.Debug("dialogue annotated",
		logging.Int("entries", len(entries)),
		logging.Int("events", out.Events),
		logging.Int("failed", out.Failed),
		logging.String("severity_hint", out.Hint.String()),
	)
	return out, nil
}

func (a *Annotator) classify(ctx context.Context, entries []subtitles.DialogueEntry, logger *slog.Logger) Severity {
	texts := make([]string, 0, len(entries))
	for _, entry := range entries {
		texts = append(texts, entry.OriginalText)
	}
	hint, err := a.filter.Classify(ctx, strings.Join(texts, " "))
	if err != nil {
		logger.Debug("severity classification unavailable", logging.Error(err))
		return SeverityNone
	}
	return hint
}

func unfiltered(entry subtitles.DialogueEntry) subtitles.DialogueEntry {
	entry.MarkedText = entry.OriginalText
	entry.FilteredText = entry.OriginalText
	entry.HasProfanity = false
	entry.DetectedWords = nil
	return entry
}

func (a *Annotator) annotateEntry(ctx context.Context, entry subtitles.DialogueEntry, level Level) (subtitles.DialogueEntry, error) {
	original := entry.OriginalText
	if level == LevelNone || strings.TrimSpace(original) == "" {
		return unfiltered(entry), nil
	}
	result, err := a.filter.FilterText(ctx, original, level)
	if err != nil {
		return subtitles.DialogueEntry{}, err
	}
	marked := MarkSpans(original, result)
	entry.MarkedText = marked
	entry.FilteredText = textutil.MaskMarked(marked, a.mask)
	entry.DetectedWords = subtitles.SpanWords(marked)
	entry.HasProfanity = len(entry.DetectedWords) > 0
	return entry, nil
}

// MarkSpans wraps the words of original that result replaced. When the
// filtered text lines up word-for-word with the original, only the changed
// run inside each differing word is wrapped, widened to whole letters and
// digits so "sh*t" marks "shit" and "What-the-****" marks "fuck". Otherwise
// every occurrence of a detected word is wrapped.
func MarkSpans(original string, result FilterResult) string {
	if result.Text == original && len(result.Detected) == 0 {
		return original
	}
	origTokens := tokenize(original)
	filtTokens := tokenize(result.Text)
	if result.Text != original && len(origTokens) == len(filtTokens) {
		var b strings.Builder
		b.Grow(len(original) + 8)
		for i, tok := range origTokens {
			if tok.space || tok.text == filtTokens[i].text {
				b.WriteString(tok.text)
				continue
			}
			b.WriteString(markCore(tok.text))
		}
		return b.String()
	}
	return markOccurrences(original, result.Detected)
}

type token struct {
	text  string
	space bool
}

// tokenize splits s into alternating word and whitespace runs so joining the
// tokens reproduces s exactly.
func tokenize(s string) []token {
	var tokens []token
	start := 0
	inSpace := false
	for i, r := range s {
		isSpace := unicode.IsSpace(r)
		if i == 0 {
			inSpace = isSpace
			continue
		}
		if isSpace != inSpace {
			tokens = append(tokens, token{text: s[start:i], space: inSpace})
			start = i
			inSpace = isSpace
		}
	}
	if start < len(s) {
		tokens = append(tokens, token{text: s[start:], space: inSpace})
	}
	return tokens
}

// markChanged wraps the run of word that differs from its filtered form.
func markChanged(word, filtered string) string {
	orig := []rune(word)
	repl := []rune(filtered)
	pre := 0
	for pre < len(orig) && pre < len(repl) && orig[pre] == repl[pre] {
		pre++
	}
	suf := 0
	for suf < len(orig)-pre && suf < len(repl)-pre && orig[len(orig)-1-suf] == repl[len(repl)-1-suf] {
		suf++
	}
	start, end := pre, len(orig)-suf
	if start >= end {
		return markCore(word)
	}
	for start > 0 && isWordRune(orig[start-1]) {
		start--
	}
	for end < len(orig) && isWordRune(orig[end]) {
		end++
	}
	return string(orig[:start]) + textutil.Mark(string(orig[start:end])) + string(orig[end:])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// markCore wraps the part of word between its first and last letter or digit,
// leaving surrounding punctuation outside the markers.
func markCore(word string) string {
	first, last := -1, -1
	for i, r := range word {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if first < 0 {
				first = i
			}
			last = i + len(string(r))
		}
	}
	if first < 0 {
		return textutil.Mark(word)
	}
	return word[:first] + textutil.Mark(word[first:last]) + word[last:]
}

func markOccurrences(original string, detected []string) string {
	words := distinctSorted(detected)
	if len(words) == 0 {
		return original
	}
	// Longest first so overlapping phrases win over their parts.
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	parts := make([]string, 0, len(words))
	for _, w := range words {
		expr := regexp.QuoteMeta(w)
		parts = append(parts, strings.ReplaceAll(expr, " ", `\s+`))
	}
	pattern := regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(` + strings.Join(parts, "|") + `)`)
	var b strings.Builder
	last := 0
	for _, loc := range pattern.FindAllStringSubmatchIndex(original, -1) {
		start, end := loc[4], loc[5]
		if end < len(original) {
			r := []rune(original[end:])[0]
			if unicode.IsLetter(r) || unicode.IsNumber(r) {
				continue
			}
		}
		b.WriteString(original[last:start])
		b.WriteString(textutil.Mark(original[start:end]))
		last = end
	}
	b.WriteString(original[last:])
	return b.String()
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
