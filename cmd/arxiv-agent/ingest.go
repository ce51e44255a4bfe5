// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-agent/internal/catalog"
	"github.com/pdiddy/arxiv-agent/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch recent arXiv papers into the store",
	Long: `Ingest queries arXiv for computer-science papers in the given categories
(short codes such as AI, CL, CV), keeps those updated inside the date
window, and stores the ones not already present.

The window is --start-date when given, otherwise --days-back days before
today, otherwise the configured default. A start date that is not
YYYY-MM-DD is logged and ignored.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSlice("categories", nil, "category codes, e.g. AI,CL,CV (default: all of cs.*)")
	ingestCmd.Flags().String("keyword", "", "restrict to papers matching this phrase")
	ingestCmd.Flags().Int("days-back", 0, "window size in days")
	ingestCmd.Flags().String("start-date", "", "window start (YYYY-MM-DD), overrides --days-back")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	req := catalog.Request{}
	req.Categories, _ = cmd.Flags().GetStringSlice("categories")
	req.Keyword, _ = cmd.Flags().GetString("keyword")
	req.StartDate, _ = cmd.Flags().GetString("start-date")
	if cmd.Flags().Changed("days-back") {
		days, _ := cmd.Flags().GetInt("days-back")
		req.DaysBack = &days
	}
	for i, c := range req.Categories {
		req.Categories[i] = strings.ToUpper(strings.TrimSpace(c))
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := newPipeline(s).Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fetched %d, out of window %d, duplicates %d, malformed %d, already stored %d, failed %d\n",
		summary.Fetched, summary.OutOfWindow, summary.Duplicates, summary.Malformed, summary.Existing, summary.Failed)
	for _, p := range summary.New {
		fmt.Fprintf(out, "  + %-14s %s\n", p.ID, p.Title)
	}
	fmt.Fprintln(out, ingest.NewReply(summary).Message)

	if summary.ProviderErr != nil {
		return fmt.Errorf("arXiv query incomplete: %w", summary.ProviderErr)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d paper(s) could not be stored", summary.Failed)
	}
	return nil
}
