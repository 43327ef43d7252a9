package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"muteguard/internal/analysis"
	"muteguard/internal/fileutil"
	"muteguard/internal/profanity"
	"muteguard/internal/services"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and manage stored analyses",
	}

	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsDeleteCommand(ctx))

	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var (
		contentFilter string
		jsonOut       bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored analyses, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *analysis.Store) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if filter := strings.TrimSpace(contentFilter); filter != "" {
					kept := records[:0]
					for _, rec := range records {
						if rec.ContentID == filter {
							kept = append(kept, rec)
						}
					}
					records = kept
				}

				if jsonOut {
					return writeJSON(cmd, recordOutputs(records))
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No stored analyses.")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						rec.ContentID,
						displayTitle(rec),
						rec.FilterLevel.String(),
						severityLabel(rec.ProfanityLevel),
						strconv.Itoa(rec.ProfanityWords),
						formatPercent(rec.ProfanityPercentage),
						yesNo(fileutil.RegularFileExists(rec.FilteredSubtitlePath)),
						humanAge(rec.UpdatedAt),
					})
				}
				headers := []string{"Content", "Title", "Level", "Severity", "Profane", "Share", "Artifact", "Updated"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
				fmt.Fprintln(out, renderTabular(out, headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&contentFilter, "content", "", "Only list records for this content id")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output records as JSON")
	return cmd
}

func newRecordsDeleteCommand(ctx *commandContext) *cobra.Command {
	var levelArgs []string

	cmd := &cobra.Command{
		Use:     "delete <content-id>",
		Aliases: []string{"rm"},
		Short:   "Delete stored analyses and their filtered subtitle files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID := strings.TrimSpace(args[0])
			levels, err := profanity.ParseLevels(levelArgs)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *analysis.Store) error {
				removed, err := store.Delete(cmd.Context(), contentID, levels...)
				if err != nil {
					return err
				}
				if removed == 0 {
					return services.Wrap(services.ErrNotFound, "cli", "records delete", fmt.Sprintf("no records stored for %s", contentID), nil)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d record(s) for %s\n", removed, contentID)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&levelArgs, "level", "l", nil, "Only delete these levels (repeatable)")
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var (
		olderThan time.Duration
		withCache bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove analyses not updated within the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			window := olderThan
			if window <= 0 {
				window = cfg.StoreRetention()
			}
			out := cmd.OutOrStdout()
			err = ctx.withStore(func(store *analysis.Store) error {
				removed, err := store.Cleanup(cmd.Context(), window)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d record(s) older than %s\n", removed, window)
				return nil
			})
			if err != nil || !withCache {
				return err
			}
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			pruned, err := cache.Prune()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d expired cache entr%s\n", pruned, pluralY(pruned))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age threshold such as 720h (defaults to store.retention_days)")
	cmd.Flags().BoolVar(&withCache, "cache", false, "Also prune expired raw subtitle cache entries")
	return cmd
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
