package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"muteguard/internal/fileutil"
	"muteguard/internal/logging"
	"muteguard/internal/profanity"
	"muteguard/internal/services"
	"muteguard/internal/subtitles"
)

// Save writes the level's filtered artifact and upserts its record. The
// record keeps its original created_at when it already exists.
func (s *Store) Save(ctx context.Context, req SaveRequest) (Record, error) {
	ctx = ensureContext(ctx)
	if err := req.Content.Validate(); err != nil {
		return Record{}, err
	}
	if !req.Level.Valid() {
		return Record{}, services.Wrap(services.ErrValidation, "analysis", "save", fmt.Sprintf("invalid level %d", int(req.Level)), nil)
	}
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldContentID, req.Content.ID),
		logging.String(logging.FieldFilterLevel, req.Level.String()),
	)

	id := RecordID(req.Content.ID, req.Level)
	previous, hadPrevious, err := s.lookup(ctx, id)
	if err != nil {
		return Record{}, services.Wrap(services.ErrPersistence, "analysis", "save", "read existing record", err)
	}

	artifact := filepath.Join(s.artifactDir, ArtifactName(req.Content.ID, req.Level, req.SourceFileName))
	if err := fileutil.WriteFileAtomic(artifact, subtitles.FormatArtifact(req.Entries), 0o644); err != nil {
		return Record{}, services.Wrap(services.ErrPersistence, "analysis", "save", "write filtered artifact", err)
	}

	built := BuildRecord(req, artifact, s.now())
	words := built.DetectedWords
	if words == nil {
		words = []string{}
	}
	wordsJSON, err := json.Marshal(words)
	if err != nil {
		return Record{}, services.Wrap(services.ErrPersistence, "analysis", "save", "encode detected words", err)
	}

	now := formatTime(built.UpdatedAt)
	_, err = s.execWithRetry(ctx, `INSERT INTO analysis_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_id, filter_level) DO UPDATE SET
			content_type = excluded.content_type,
			content_title = excluded.content_title,
			show_title = excluded.show_title,
			season_number = excluded.season_number,
			episode_number = excluded.episode_number,
			profanity_level = excluded.profanity_level,
			detected_words_json = excluded.detected_words_json,
			total_words_count = excluded.total_words_count,
			profanity_words_count = excluded.profanity_words_count,
			profanity_percentage = excluded.profanity_percentage,
			subtitle_file_name = excluded.subtitle_file_name,
			filtered_subtitle_path = excluded.filtered_subtitle_path,
			updated_at = excluded.updated_at`,
		built.ID,
		built.ContentID,
		string(built.ContentType),
		built.ContentTitle,
		nullString(built.ShowTitle),
		nullInt(built.Season),
		nullInt(built.Episode),
		built.FilterLevel.String(),
		built.ProfanityLevel.String(),
		string(wordsJSON),
		built.TotalWords,
		built.ProfanityWords,
		built.ProfanityPercentage,
		built.SubtitleFileName,
		built.FilteredSubtitlePath,
		now,
		now,
	)
	if err != nil {
		if !hadPrevious || previous.FilteredSubtitlePath != artifact {
			_ = fileutil.RemoveIfExists(artifact)
		}
		return Record{}, services.Wrap(services.ErrPersistence, "analysis", "save", "upsert record", err)
	}
	if hadPrevious && previous.FilteredSubtitlePath != artifact {
		if err := fileutil.RemoveIfExists(previous.FilteredSubtitlePath); err != nil {
			logging.WarnWithContext(logger, "failed to remove superseded artifact", "artifact_cleanup_failed",
				logging.String("path", previous.FilteredSubtitlePath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "an orphaned artifact remains on disk"),
				logging.String(logging.FieldErrorHint, "check permissions on the artifact directory"),
			)
		}
	}

	rec, ok, err := s.lookup(ctx, id)
	if err != nil {
		return Record{}, services.Wrap(services.ErrPersistence, "analysis", "save", "read saved record", err)
	}
	if !ok {
		return Record{}, services.Wrap(services.ErrPersistence, "analysis", "save", "record missing after upsert", nil)
	}
	logger.Info("analysis record saved",
		logging.String("severity", rec.ProfanityLevel.String()),
		logging.Int("profanity_words", rec.ProfanityWords),
		logging.Int("total_words", rec.TotalWords),
		logging.String("artifact", artifact),
	)
	return rec, nil
}

// Get returns the record for contentID at level. A row whose artifact is not
// on this device is reported as absent and left in place.
func (s *Store) Get(ctx context.Context, contentID string, level profanity.Level) (Record, bool, error) {
	ctx = ensureContext(ctx)
	rec, ok, err := s.lookup(ctx, RecordID(contentID, level))
	if err != nil {
		return Record{}, false, services.Wrap(services.ErrPersistence, "analysis", "get", "query record", err)
	}
	if !ok {
		s.observe("miss")
		return Record{}, false, nil
	}
	if !fileutil.RegularFileExists(rec.FilteredSubtitlePath) {
		s.observe("ghost")
		logging.WithContext(ctx, s.logger).Debug("record has no local artifact; treating as absent",
			logging.String(logging.FieldContentID, contentID),
			logging.String(logging.FieldFilterLevel, level.String()),
			logging.String("path", rec.FilteredSubtitlePath),
		)
		return Record{}, false, nil
	}
	s.observe("hit")
	return rec, true, nil
}

func (s *Store) lookup(ctx context.Context, id string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM analysis_records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// ExistingLevels returns the levels of contentID whose artifacts are present,
// in ascending order.
func (s *Store) ExistingLevels(ctx context.Context, contentID string) ([]profanity.Level, error) {
	records, err := s.recordsFor(ctx, contentID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "existing levels", "query records", err)
	}
	var levels []profanity.Level
	for _, rec := range records {
		if fileutil.RegularFileExists(rec.FilteredSubtitlePath) {
			levels = append(levels, rec.FilterLevel)
		}
	}
	return levels, nil
}

func (s *Store) recordsFor(ctx context.Context, contentID string) ([]Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM analysis_records WHERE content_id = ?", contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

// Delete removes rows and artifacts for contentID. With no levels every
// level is removed. It returns the number of rows deleted.
func (s *Store) Delete(ctx context.Context, contentID string, levels ...profanity.Level) (int, error) {
	ctx = ensureContext(ctx)
	records, err := s.recordsFor(ctx, contentID)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "analysis", "delete", "query records", err)
	}
	wanted := make(map[profanity.Level]bool, len(levels))
	for _, level := range levels {
		wanted[level] = true
	}
	removed := 0
	for _, rec := range records {
		if len(wanted) > 0 && !wanted[rec.FilterLevel] {
			continue
		}
		if err := s.remove(ctx, rec); err != nil {
			return removed, services.Wrap(services.ErrPersistence, "analysis", "delete", "remove "+rec.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) remove(ctx context.Context, rec Record) error {
	if _, err := s.execWithRetry(ctx, "DELETE FROM analysis_records WHERE id = ?", rec.ID); err != nil {
		return err
	}
	return fileutil.RemoveIfExists(rec.FilteredSubtitlePath)
}

// Cleanup removes records and artifacts last updated more than olderThan ago.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx = ensureContext(ctx)
	if olderThan <= 0 {
		return 0, services.Wrap(services.ErrValidation, "analysis", "cleanup", "retention must be positive", nil)
	}
	cutoff := formatTime(s.now().Add(-olderThan))
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM analysis_records WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "analysis", "cleanup", "query expired records", err)
	}
	expired, err := collectRecords(rows)
	rows.Close()
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "analysis", "cleanup", "scan expired records", err)
	}

	removed := 0
	for _, rec := range expired {
		if err := s.remove(ctx, rec); err != nil {
			return removed, services.Wrap(services.ErrPersistence, "analysis", "cleanup", "remove "+rec.ID, err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("expired analysis records removed",
			logging.Int("removed", removed),
			logging.Duration("older_than", olderThan),
		)
	}
	return removed, nil
}

// List returns every record, newest first, without checking artifacts.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM analysis_records ORDER BY updated_at DESC, id ASC")
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "list", "query records", err)
	}
	defer rows.Close()
	records, err := collectRecords(rows)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "list", "scan records", err)
	}
	return records, nil
}

// LoadEntries reads a record's artifact back into dialogue entries.
func (s *Store) LoadEntries(ctx context.Context, rec Record) ([]subtitles.DialogueEntry, error) {
	if err := ensureContext(ctx).Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(rec.FilteredSubtitlePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "analysis", "load entries", "artifact missing for "+rec.ID, err)
		}
		return nil, services.Wrap(services.ErrPersistence, "analysis", "load entries", "read artifact", err)
	}
	entries, warnings := subtitles.ParseArtifact(data, s.mask)
	if len(warnings) > 0 {
		parts := make([]string, 0, len(warnings))
		for _, w := range warnings {
			parts = append(parts, w.String())
		}
		s.logger.Debug("artifact parse warnings",
			logging.String("record", rec.ID),
			logging.String("warnings", strings.Join(parts, "; ")),
		)
	}
	return entries, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].FilterLevel < records[j].FilterLevel })
}
