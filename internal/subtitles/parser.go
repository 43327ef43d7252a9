package subtitles

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"muteguard/internal/textutil"
)

// DefaultMask replaces each rune of a filtered span in display text.
const DefaultMask = '*'

// ParseWarning records a line the parser skipped. Warnings never fail a parse.
type ParseWarning struct {
	Line   int
	Reason string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
}

// Parsed is the best-effort result of reading SRT text.
type Parsed struct {
	// Text is every dialogue block joined by single spaces.
	Text     string
	Entries  []DialogueEntry
	Warnings []ParseWarning
}

// WordCount counts whitespace separated words in Text.
func (p Parsed) WordCount() int {
	return len(strings.Fields(p.Text))
}

type cueBlock struct {
	index     int
	start     time.Duration
	end       time.Duration
	timed     bool
	lines     []string
	startLine int
}

// Parse converts SRT text into dialogue. Index lines and timing lines are
// consumed, markup is stripped, and malformed lines become warnings. Sentinel
// marker code points in the source are dropped so annotation markers stay
// unambiguous.
func Parse(data []byte) Parsed {
	blocks, warnings := scanBlocks(data, false)
	parsed := Parsed{Warnings: warnings}
	texts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		text := strings.Join(block.lines, "\n")
		texts = append(texts, strings.Join(block.lines, " "))
		if !block.timed {
			continue
		}
		parsed.Entries = append(parsed.Entries, DialogueEntry{
			Index:        block.index,
			Start:        block.start,
			End:          block.end,
			OriginalText: text,
		})
	}
	parsed.Text = strings.Join(texts, " ")
	return parsed
}

// ParseArtifact reads a filtered artifact written by FormatArtifact. Markers
// are kept in MarkedText; OriginalText, FilteredText, HasProfanity and
// DetectedWords are rebuilt from them. mask 0 selects DefaultMask.
func ParseArtifact(data []byte, mask rune) ([]DialogueEntry, []ParseWarning) {
	if mask == 0 {
		mask = DefaultMask
	}
	blocks, warnings := scanBlocks(data, true)
	entries := make([]DialogueEntry, 0, len(blocks))
	for _, block := range blocks {
		if !block.timed {
			continue
		}
		marked := strings.Join(block.lines, "\n")
		entry := DialogueEntry{
			Index:        block.index,
			Start:        block.start,
			End:          block.end,
			OriginalText: textutil.StripMarkers(marked),
		}
		if words := SpanWords(marked); len(words) > 0 {
			entry.MarkedText = marked
			entry.FilteredText = textutil.MaskMarked(marked, mask)
			entry.HasProfanity = true
			entry.DetectedWords = words
		} else {
			entry.MarkedText = entry.OriginalText
			entry.FilteredText = entry.OriginalText
		}
		entries = append(entries, entry)
	}
	return entries, warnings
}

// FormatArtifact renders entries as SRT using MarkedText when present, so the
// filtered spans survive on disk. Entries are renumbered from 1.
func FormatArtifact(entries []DialogueEntry) []byte {
	var buf bytes.Buffer
	for i, entry := range entries {
		text := entry.MarkedText
		if text == "" {
			text = entry.OriginalText
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%d\n%s %s %s\n%s\n",
			i+1,
			formatSRTTimestamp(entry.Start),
			timingSeparator,
			formatSRTTimestamp(entry.End),
			text,
		)
	}
	return buf.Bytes()
}

func scanBlocks(data []byte, keepMarkers bool) ([]cueBlock, []ParseWarning) {
	content := string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var (
		blocks   []cueBlock
		warnings []ParseWarning
		current  cueBlock
		seq      int
	)
	flush := func() {
		if len(current.lines) > 0 {
			if current.timed && current.start >= current.end {
				warnings = append(warnings, ParseWarning{
					Line:   current.startLine,
					Reason: "cue end does not follow start; dialogue kept without timing",
				})
				current.timed = false
			}
			seq++
			if current.index <= 0 {
				current.index = seq
			}
			blocks = append(blocks, current)
		}
		current = cueBlock{}
	}

	for i, rawLine := range strings.Split(content, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(rawLine)
		if !utf8.ValidString(line) {
			warnings = append(warnings, ParseWarning{Line: lineNo, Reason: "invalid utf-8 replaced"})
			line = strings.ToValidUTF8(line, "�")
		}
		if !keepMarkers {
			line = strings.TrimSpace(textutil.StripMarkers(line))
		}
		switch {
		case line == "":
			flush()
		case isDigitsOnly(line):
			if len(current.lines) == 0 && !current.timed {
				if n, err := strconv.Atoi(line); err == nil {
					current.index = n
				}
			}
		case strings.Contains(line, timingSeparator):
			if len(current.lines) > 0 {
				// A timing line without a separating blank starts a new cue.
				flush()
			}
			start, end, err := parseTimingLine(line)
			if err != nil {
				warnings = append(warnings, ParseWarning{Line: lineNo, Reason: err.Error()})
				current.timed = false
				continue
			}
			current.start, current.end, current.timed = start, end, true
			current.startLine = lineNo
		default:
			cleaned := stripMarkup(line)
			if cleaned == "" {
				continue
			}
			if current.startLine == 0 {
				current.startLine = lineNo
			}
			current.lines = append(current.lines, cleaned)
		}
	}
	flush()
	return blocks, warnings
}

// stripMarkup removes <...> and {...} spans until none remain. Unmatched
// openers are left in place.
func stripMarkup(line string) string {
	for _, pair := range [][2]string{{"<", ">"}, {"{", "}"}} {
		for {
			open := strings.Index(line, pair[0])
			if open < 0 {
				break
			}
			closeIdx := strings.Index(line[open:], pair[1])
			if closeIdx < 0 {
				break
			}
			line = line[:open] + line[open+closeIdx+1:]
		}
	}
	return strings.Join(strings.Fields(line), " ")
}

func isDigitsOnly(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SpanWords returns the sorted, lower-cased, distinct texts of the marked
// spans in marked.
func SpanWords(marked string) []string {
	spans := textutil.MarkedSpans(marked)
	seen := make(map[string]struct{}, len(spans))
	out := make([]string, 0, len(spans))
	for _, span := range spans {
		word := strings.ToLower(strings.TrimSpace(span))
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	sort.Strings(out)
	return out
}
