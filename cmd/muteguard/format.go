package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"muteguard/internal/analysis"
	"muteguard/internal/subtitles"
)

var titleCaser = cases.Title(language.English)

// displayTitle renders a record's content as "Show S01E02 - Title" for
// episodes and "Title" for movies.
func displayTitle(rec analysis.Record) string {
	title := strings.TrimSpace(rec.ContentTitle)
	if rec.ContentType != subtitles.KindEpisode {
		return title
	}
	show := strings.TrimSpace(rec.ShowTitle)
	if show == "" {
		show = title
	}
	label := fmt.Sprintf("%s S%02dE%02d", show, rec.Season, rec.Episode)
	if title != "" && !strings.EqualFold(title, show) {
		label += " - " + title
	}
	return label
}

// severityLabel renders HIGH as "High".
func severityLabel(value fmt.Stringer) string {
	return titleCaser.String(strings.ToLower(value.String()))
}

func humanAge(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.2f%%", value)
}

func formatTimestamp(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}
