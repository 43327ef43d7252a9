package textutil

import "strings"

// Positional sentinel markers bracket a filtered span inside otherwise
// original dialogue. Both code points are invisible when rendered.
const (
	MarkerOpen  = '\u2062'
	MarkerClose = '\u2063'
)

// Mark wraps span in the sentinel pair.
func Mark(span string) string {
	return string(MarkerOpen) + span + string(MarkerClose)
}

// HasMarkers reports whether s contains either sentinel.
func HasMarkers(s string) bool {
	return strings.ContainsRune(s, MarkerOpen) || strings.ContainsRune(s, MarkerClose)
}

// StripMarkers removes every sentinel, leaving the original text.
func StripMarkers(s string) string {
	if !HasMarkers(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == MarkerOpen || r == MarkerClose {
			return -1
		}
		return r
	}, s)
}

// MarkedSpans returns the text of each balanced span in order of appearance.
// An opening marker without a matching close is ignored.
func MarkedSpans(s string) []string {
	var spans []string
	walkMarked(s, func(text string, marked bool) {
		if marked {
			spans = append(spans, text)
		}
	})
	return spans
}

// MaskMarked replaces every non-space rune inside a marked span with mask and
// drops the markers, producing display text.
func MaskMarked(s string, mask rune) string {
	if !HasMarkers(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	walkMarked(s, func(text string, marked bool) {
		if !marked {
			b.WriteString(text)
			return
		}
		for _, r := range text {
			if r == ' ' {
				b.WriteRune(r)
				continue
			}
			b.WriteRune(mask)
		}
	})
	return b.String()
}

func walkMarked(s string, visit func(text string, marked bool)) {
	for len(s) > 0 {
		open := strings.IndexRune(s, MarkerOpen)
		if open < 0 {
			visit(StripMarkers(s), false)
			return
		}
		if open > 0 {
			visit(StripMarkers(s[:open]), false)
		}
		rest := s[open+len(string(MarkerOpen)):]
		closeIdx := strings.IndexRune(rest, MarkerClose)
		nextOpen := strings.IndexRune(rest, MarkerOpen)
		if closeIdx < 0 || (nextOpen >= 0 && nextOpen < closeIdx) {
			s = rest
			continue
		}
		visit(rest[:closeIdx], true)
		s = rest[closeIdx+len(string(MarkerClose)):]
	}
}
