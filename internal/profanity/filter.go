package profanity

import "context"

// FilterResult is the capability's answer for one piece of text.
type FilterResult struct {
	// Text is the input with filtered words substituted.
	Text string
	// Detected lists the words filtered at the requested level.
	Detected []string
}

// Filter is the word-matching capability. Implementations decide which words
// count as profanity at each level; callers only place markers around what
// they report.
type Filter interface {
	FilterText(ctx context.Context, text string, level Level) (FilterResult, error)
	Classify(ctx context.Context, text string) (Severity, error)
}
