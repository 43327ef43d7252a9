package analysis

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"muteguard/internal/profanity"
	"muteguard/internal/subtitles"
	"muteguard/internal/textutil"
)

// Record is one persisted analysis of a content item at a filter level.
type Record struct {
	ID                   string
	ContentID            string
	ContentType          subtitles.ContentKind
	ContentTitle         string
	ShowTitle            string
	Season               int
	Episode              int
	FilterLevel          profanity.Level
	ProfanityLevel       profanity.Severity
	DetectedWords        []string
	TotalWords           int
	ProfanityWords       int
	ProfanityPercentage  float64
	SubtitleFileName     string
	FilteredSubtitlePath string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RecordID is the primary key for contentID at level.
func RecordID(contentID string, level profanity.Level) string {
	return contentID + "_" + level.String()
}

// SaveRequest carries one level's annotated dialogue to Save.
type SaveRequest struct {
	Content        subtitles.Content
	Level          profanity.Level
	Entries        []subtitles.DialogueEntry
	SourceFileName string
}

// Summary holds the counts derived from annotated dialogue.
type Summary struct {
	Entries        int
	Events         int
	TotalWords     int
	ProfanityWords int
	Percentage     float64
	Severity       profanity.Severity
	DetectedWords  []string
}

// Summarize counts words and filtered spans across entries. Severity comes
// from the share of entries with at least one filtered span.
func Summarize(entries []subtitles.DialogueEntry) Summary {
	sum := Summary{Entries: len(entries)}
	seen := make(map[string]struct{})
	for _, entry := range entries {
		sum.TotalWords += len(strings.Fields(entry.OriginalText))
		if !entry.HasProfanity {
			continue
		}
		sum.Events++
		for _, span := range textutil.MarkedSpans(entry.MarkedText) {
			sum.ProfanityWords += len(strings.Fields(span))
		}
		for _, word := range entry.DetectedWords {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			sum.DetectedWords = append(sum.DetectedWords, word)
		}
	}
	sort.Strings(sum.DetectedWords)
	if sum.TotalWords > 0 {
		sum.Percentage = math.Round(float64(sum.ProfanityWords)/float64(sum.TotalWords)*10000) / 100
	}
	sum.Severity = SeverityFor(sum.Events, sum.Entries)
	return sum
}

// BuildRecord derives the record Save would persist for req, with both
// timestamps set to at. Callers holding an unpersisted result use it directly.
func BuildRecord(req SaveRequest, artifactPath string, at time.Time) Record {
	content := req.Content
	sum := Summarize(req.Entries)
	rec := Record{
		ID:                   RecordID(content.ID, req.Level),
		ContentID:            content.ID,
		ContentType:          content.Kind,
		ContentTitle:         content.Title,
		FilterLevel:          req.Level,
		ProfanityLevel:       sum.Severity,
		DetectedWords:        sum.DetectedWords,
		TotalWords:           sum.TotalWords,
		ProfanityWords:       sum.ProfanityWords,
		ProfanityPercentage:  sum.Percentage,
		SubtitleFileName:     req.SourceFileName,
		FilteredSubtitlePath: artifactPath,
		CreatedAt:            at,
		UpdatedAt:            at,
	}
	if strings.TrimSpace(rec.ContentTitle) == "" {
		rec.ContentTitle = content.SearchTitle()
	}
	if content.IsEpisode() {
		rec.ShowTitle = content.ShowTitle
		rec.Season = content.Season
		rec.Episode = content.Episode
	}
	return rec
}

// SeverityFor grades profanity events over dialogue entries.
func SeverityFor(events, entries int) profanity.Severity {
	return profanity.SeverityForRatio(events, entries)
}

// ArtifactName builds "<contentId>_<LEVEL>_<base>_filtered.srt".
func ArtifactName(contentID string, level profanity.Level, sourceFileName string) string {
	base := strings.TrimSuffix(filepath.Base(sourceFileName), filepath.Ext(sourceFileName))
	base = textutil.SanitizeFileName(base)
	if base == "" || base == "." {
		base = "subtitle"
	}
	return fmt.Sprintf("%s_%s_%s_filtered.srt", textutil.SanitizeKey(contentID), level, base)
}

const recordColumns = "id, content_id, content_type, content_title, show_title, season_number, episode_number, filter_level, profanity_level, detected_words_json, total_words_count, profanity_words_count, profanity_percentage, subtitle_file_name, filtered_subtitle_path, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec         Record
		contentType string
		showTitle   sql.NullString
		season      sql.NullInt64
		episode     sql.NullInt64
		levelRaw    string
		severityRaw string
		wordsJSON   string
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.ContentID,
		&contentType,
		&rec.ContentTitle,
		&showTitle,
		&season,
		&episode,
		&levelRaw,
		&severityRaw,
		&wordsJSON,
		&rec.TotalWords,
		&rec.ProfanityWords,
		&rec.ProfanityPercentage,
		&rec.SubtitleFileName,
		&rec.FilteredSubtitlePath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return Record{}, err
	}

	rec.ContentType = subtitles.ContentKind(contentType)
	rec.ShowTitle = showTitle.String
	rec.Season = int(season.Int64)
	rec.Episode = int(episode.Int64)

	level, err := profanity.ParseLevel(levelRaw)
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.FilterLevel = level
	severity, err := profanity.ParseSeverity(severityRaw)
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.ProfanityLevel = severity
	if wordsJSON != "" {
		if err := json.Unmarshal([]byte(wordsJSON), &rec.DetectedWords); err != nil {
			return Record{}, fmt.Errorf("record %s: decode detected words: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = parseTime(createdRaw)
	rec.UpdatedAt = parseTime(updatedRaw)
	return rec, nil
}

// timeLayout has fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullInt(value int) sql.NullInt64 {
	if value <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(value), Valid: true}
}
