package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"muteguard/internal/analysis"
	"muteguard/internal/profanity"
	"muteguard/internal/services"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var (
		levelArg    string
		all         bool
		showMarkers bool
	)

	cmd := &cobra.Command{
		Use:   "show <content-id>",
		Short: "Print the filtered dialogue of a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID := strings.TrimSpace(args[0])
			return ctx.withStore(func(store *analysis.Store) error {
				rec, err := resolveRecord(cmd, store, contentID, levelArg)
				if err != nil {
					return err
				}
				entries, err := store.LoadEntries(cmd.Context(), rec)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s [%s]\n", displayTitle(rec), rec.ID)
				fmt.Fprintf(out, "Severity: %s  Profane words: %d of %d (%s)\n",
					severityLabel(rec.ProfanityLevel), rec.ProfanityWords, rec.TotalWords, formatPercent(rec.ProfanityPercentage))
				if len(rec.DetectedWords) > 0 {
					fmt.Fprintf(out, "Detected: %s\n", strings.Join(rec.DetectedWords, ", "))
				}
				fmt.Fprintf(out, "Artifact: %s\n\n", rec.FilteredSubtitlePath)

				printed := 0
				for _, entry := range entries {
					if !all && !entry.HasProfanity {
						continue
					}
					text := entry.DisplayText()
					if showMarkers {
						text = entry.MarkedText
					}
					fmt.Fprintf(out, "%4d  %s --> %s  %s\n", entry.Index, formatTimestamp(entry.Start), formatTimestamp(entry.End),
						strings.ReplaceAll(text, "\n", " / "))
					printed++
				}
				if printed == 0 {
					fmt.Fprintln(out, "No filtered lines.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&levelArg, "level", "l", "", "Filter level to show (defaults to the only or strictest stored level)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Print every dialogue line, not only filtered ones")
	cmd.Flags().BoolVar(&showMarkers, "markers", false, "Print marked text with span sentinels instead of masked text")
	return cmd
}

// resolveRecord picks the record for contentID at the requested level, or the
// strictest stored level when none is given.
func resolveRecord(cmd *cobra.Command, store *analysis.Store, contentID, levelArg string) (analysis.Record, error) {
	if strings.TrimSpace(levelArg) != "" {
		level, err := profanity.ParseLevel(levelArg)
		if err != nil {
			return analysis.Record{}, err
		}
		rec, ok, err := store.Get(cmd.Context(), contentID, level)
		if err != nil {
			return analysis.Record{}, err
		}
		if !ok {
			return analysis.Record{}, services.Wrap(services.ErrNotFound, "cli", "show", fmt.Sprintf("no %s analysis stored for %s", level, contentID), nil)
		}
		return rec, nil
	}

	levels, err := store.ExistingLevels(cmd.Context(), contentID)
	if err != nil {
		return analysis.Record{}, err
	}
	for i := len(levels) - 1; i >= 0; i-- {
		rec, ok, err := store.Get(cmd.Context(), contentID, levels[i])
		if err != nil {
			return analysis.Record{}, err
		}
		if ok {
			return rec, nil
		}
	}
	return analysis.Record{}, services.Wrap(services.ErrNotFound, "cli", "show", fmt.Sprintf("no analysis stored for %s", contentID), nil)
}
