package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"muteguard/internal/language"
	"muteguard/internal/subtitles"
)

type candidateOutput struct {
	Rank       int     `json:"rank"`
	FileID     int64   `json:"file_id"`
	Release    string  `json:"release"`
	FileName   string  `json:"file_name,omitempty"`
	Language   string  `json:"language"`
	Downloads  int     `json:"downloads"`
	Rating     float64 `json:"rating"`
	Similarity float64 `json:"similarity"`
	Quality    float64 `json:"quality"`
	Score      float64 `json:"score"`
	TagMatch   bool    `json:"episode_tag_match"`
}

type searchOutput struct {
	ContentID    string            `json:"content_id"`
	Query        string            `json:"query"`
	Identifier   bool              `json:"identifier_match"`
	Relaxed      bool              `json:"relaxed"`
	AverageScore float64           `json:"average_score"`
	Candidates   []candidateOutput `json:"candidates"`
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		flags   contentFlags
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Show ranked subtitle candidates without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			content, err := flags.content(cfg)
			if err != nil {
				return err
			}
			searcher, _, err := newSearcher(cfg, ctx.cliLogger(), nil)
			if err != nil {
				return err
			}
			ranking, err := searcher.Find(cmd.Context(), content)
			if err != nil {
				return err
			}

			payload := buildSearchOutput(content, ranking, limit)
			if jsonOut {
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			mode := "free text"
			switch {
			case payload.Identifier:
				mode = "imdb id"
			case payload.Relaxed:
				mode = "relaxed"
			}
			fmt.Fprintf(out, "Query: %q (%s, average score %.2f)\n", payload.Query, mode, payload.AverageScore)
			fmt.Fprintf(out, "Language: %s\n", language.DisplayName(content.Lang()))
			rows := make([][]string, 0, len(payload.Candidates))
			for _, cand := range payload.Candidates {
				rows = append(rows, []string{
					strconv.Itoa(cand.Rank),
					cand.Release,
					strconv.Itoa(cand.Downloads),
					fmt.Sprintf("%.1f", cand.Rating),
					fmt.Sprintf("%.2f", cand.Similarity),
					fmt.Sprintf("%.1f", cand.Quality),
					fmt.Sprintf("%.1f", cand.Score),
					strconv.FormatInt(cand.FileID, 10),
				})
			}
			headers := []string{"#", "Release", "Downloads", "Rating", "Similarity", "Quality", "Score", "File"}
			aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
			fmt.Fprintln(out, renderTabular(out, headers, rows, aligns))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum candidates to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output candidates as JSON")
	return cmd
}

func buildSearchOutput(content subtitles.Content, ranking subtitles.Ranking, limit int) searchOutput {
	candidates := ranking.Candidates
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := searchOutput{
		ContentID:    content.ID,
		Query:        ranking.Query,
		Identifier:   ranking.Identifier,
		Relaxed:      ranking.Relaxed,
		AverageScore: ranking.AverageScore,
		Candidates:   make([]candidateOutput, 0, len(candidates)),
	}
	for i, cand := range candidates {
		release := strings.TrimSpace(cand.Release)
		if release == "" {
			release = cand.FileName
		}
		out.Candidates = append(out.Candidates, candidateOutput{
			Rank:       i + 1,
			FileID:     cand.FileID(),
			Release:    release,
			FileName:   cand.FileName,
			Language:   cand.Language,
			Downloads:  cand.Downloads,
			Rating:     cand.Rating,
			Similarity: cand.Similarity,
			Quality:    cand.Quality,
			Score:      cand.Score,
			TagMatch:   cand.TagMatch,
		})
	}
	return out
}
