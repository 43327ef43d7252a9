package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"muteguard/internal/analysis"
	"muteguard/internal/batch"
	"muteguard/internal/config"
	"muteguard/internal/profanity"
	"muteguard/internal/subtitles"
)

type analyzeOutput struct {
	ContentID      string   `json:"content_id"`
	Level          string   `json:"filter_level"`
	Severity       string   `json:"profanity_level"`
	DetectedWords  []string `json:"detected_words"`
	TotalWords     int      `json:"total_words"`
	ProfanityWords int      `json:"profanity_words"`
	Percentage     float64  `json:"profanity_percentage"`
	SubtitleFile   string   `json:"subtitle_file,omitempty"`
	ArtifactPath   string   `json:"filtered_subtitle_path,omitempty"`
	Cached         bool     `json:"cached"`
	Persisted      bool     `json:"persisted"`
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		flags       contentFlags
		levelArgs   []string
		force       bool
		jsonOut     bool
		lines       bool
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Fetch subtitles for a title and analyze profanity at one or more levels",
		Example: `  muteguard analyze --title "The Matrix" --year 1999 --level mild --level strict
  muteguard analyze --show "The Office" --season 2 --episode 1 --imdb tt0664521`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			content, err := flags.content(cfg)
			if err != nil {
				return err
			}
			levels, err := requestedLevels(cfg, levelArgs)
			if err != nil {
				return err
			}

			p, err := newPipeline(cfg, ctx.cliLogger())
			if err != nil {
				return err
			}
			defer p.Close()

			results, err := p.processor.Process(cmd.Context(), content, levels, batch.Options{Force: force})
			if metricsFile != "" {
				if werr := p.metrics.WriteTextfile(metricsFile); werr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: unable to write metrics file: %v\n", werr)
				}
			}
			if err != nil {
				return err
			}

			ordered := batch.SortedLevels(results)
			if jsonOut {
				payload := make([]analyzeOutput, 0, len(ordered))
				for _, level := range ordered {
					payload = append(payload, toAnalyzeOutput(results[level]))
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s [%s]\n", describeContent(content), content.ID)
			printAnalyzeTable(out, ordered, results)
			if missing := missingLevels(levels, results); len(missing) > 0 {
				fmt.Fprintf(out, "Failed levels: %s\n", strings.Join(missing, ", "))
			}
			if lines {
				for _, level := range ordered {
					entries := results[level].Entries
					if entries == nil {
						entries, err = p.store.LoadEntries(cmd.Context(), results[level].Record)
						if err != nil {
							return err
						}
					}
					printProfaneLines(out, level, entries)
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&levelArgs, "level", "l", nil, "Filter level (NONE, MILD, MODERATE, STRICT); repeatable, defaults to profanity.default_levels")
	cmd.Flags().BoolVar(&force, "force", false, "Re-analyze levels that already have stored results")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&lines, "lines", false, "Print the filtered dialogue lines for each level")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this path")
	return cmd
}

func requestedLevels(cfg *config.Config, args []string) ([]profanity.Level, error) {
	values := args
	if len(values) == 0 {
		values = cfg.Profanity.DefaultLevels
	}
	if len(values) == 0 {
		values = []string{profanity.LevelModerate.String()}
	}
	return profanity.ParseLevels(values)
}

func toAnalyzeOutput(result batch.Result) analyzeOutput {
	rec := result.Record
	words := rec.DetectedWords
	if words == nil {
		words = []string{}
	}
	return analyzeOutput{
		ContentID:      rec.ContentID,
		Level:          rec.FilterLevel.String(),
		Severity:       rec.ProfanityLevel.String(),
		DetectedWords:  words,
		TotalWords:     rec.TotalWords,
		ProfanityWords: rec.ProfanityWords,
		Percentage:     rec.ProfanityPercentage,
		SubtitleFile:   rec.SubtitleFileName,
		ArtifactPath:   rec.FilteredSubtitlePath,
		Cached:         result.Cached,
		Persisted:      result.Persisted,
	}
}

func printAnalyzeTable(out io.Writer, levels []profanity.Level, results map[profanity.Level]batch.Result) {
	rows := make([][]string, 0, len(levels))
	for _, level := range levels {
		result := results[level]
		rec := result.Record
		rows = append(rows, []string{
			level.String(),
			severityLabel(rec.ProfanityLevel),
			strconv.Itoa(rec.ProfanityWords),
			strconv.Itoa(rec.TotalWords),
			formatPercent(rec.ProfanityPercentage),
			resultSource(result),
			strings.Join(rec.DetectedWords, ", "),
		})
	}
	headers := []string{"Level", "Severity", "Profane", "Words", "Share", "Source", "Detected"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft}
	fmt.Fprintln(out, renderTabular(out, headers, rows, aligns))
}

func resultSource(result batch.Result) string {
	switch {
	case result.Cached:
		return "stored"
	case result.Persisted:
		return "new"
	default:
		return "memory"
	}
}

func missingLevels(requested []profanity.Level, results map[profanity.Level]batch.Result) []string {
	var missing []string
	for _, level := range requested {
		if _, ok := results[level]; !ok {
			missing = append(missing, level.String())
		}
	}
	return missing
}

func printProfaneLines(out io.Writer, level profanity.Level, entries []subtitles.DialogueEntry) {
	fmt.Fprintf(out, "\n%s:\n", level)
	count := 0
	for _, entry := range entries {
		if !entry.HasProfanity {
			continue
		}
		count++
		text := strings.ReplaceAll(entry.DisplayText(), "\n", " / ")
		fmt.Fprintf(out, "  [%s] %s\n", formatTimestamp(entry.Start), text)
	}
	if count == 0 {
		fmt.Fprintln(out, "  (no filtered lines)")
	}
}

func describeContent(c subtitles.Content) string {
	if c.IsEpisode() {
		return fmt.Sprintf("%s %s", c.SearchTitle(), strings.ToUpper(c.EpisodeTag()))
	}
	if c.Year > 0 {
		return fmt.Sprintf("%s (%d)", c.Title, c.Year)
	}
	return c.Title
}

// recordOutputs converts stored records for JSON listing.
func recordOutputs(records []analysis.Record) []analyzeOutput {
	out := make([]analyzeOutput, 0, len(records))
	for _, rec := range records {
		out = append(out, toAnalyzeOutput(batch.Result{Record: rec, Cached: true, Persisted: true}))
	}
	return out
}
