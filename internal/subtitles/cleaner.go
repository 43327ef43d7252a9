package subtitles

import (
	"regexp"
	"strings"
)

// Cues matching any of these are release-group or site promotions rather
// than dialogue.
var promoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)addic7ed`),
	regexp.MustCompile(`(?i)podnapisi`),
	regexp.MustCompile(`(?i)\bsubscene\b`),
	regexp.MustCompile(`(?i)\b(yts|yify)\b`),
	regexp.MustCompile(`(?i)subtitles? (by|ripped|provided)`),
	regexp.MustCompile(`(?i)(synced?|sync) (and|&) correct(ed|ions)`),
	regexp.MustCompile(`(?i)(ripped|encoded|translated) by`),
	regexp.MustCompile(`(?i)advertise (your|yours?) product`),
	regexp.MustCompile(`(?i)support us and become vip`),
	regexp.MustCompile(`(?i)https?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
}

// CleanStats reports what CleanSRT removed.
type CleanStats struct {
	RemovedCues int
	Removed     []string
}

// CleanSRT drops promotional cues, trims trailing whitespace and normalizes
// line endings. Cue numbering is left to the parser.
func CleanSRT(raw []byte) ([]byte, CleanStats) {
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	trimmed := strings.TrimSpace(normalized)
	var stats CleanStats
	if trimmed == "" {
		return []byte("\n"), stats
	}
	blocks := strings.Split(trimmed, "\n\n")
	kept := make([]string, 0, len(blocks))
	for _, block := range blocks {
		block = strings.Trim(block, "\n")
		if block == "" {
			continue
		}
		if payload := cueText(block); isPromotion(payload) {
			stats.RemovedCues++
			stats.Removed = append(stats.Removed, payload)
			continue
		}
		kept = append(kept, trimLineEnds(block))
	}
	return []byte(strings.Join(kept, "\n\n") + "\n"), stats
}

func isPromotion(payload string) bool {
	if payload == "" {
		return false
	}
	for _, pattern := range promoPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

// cueText returns the dialogue lines of block joined by spaces.
func cueText(block string) string {
	lines := strings.Split(block, "\n")
	start := 0
	if start < len(lines) && isDigitsOnly(strings.TrimSpace(lines[start])) {
		start++
	}
	if start < len(lines) && strings.Contains(lines[start], timingSeparator) {
		start++
	}
	text := make([]string, 0, len(lines)-start)
	for _, line := range lines[start:] {
		if line = strings.TrimSpace(line); line != "" {
			text = append(text, line)
		}
	}
	return strings.Join(text, " ")
}

func trimLineEnds(block string) string {
	lines := strings.Split(block, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines, "\n")
}
