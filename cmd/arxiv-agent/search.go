// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search stored papers by title",
	Long: `Search lists stored papers whose title contains the keyword, ignoring
case. Without a keyword every paper matches. Results are ordered by
--sort-by (published_date, updated_date or crawled_at), newest first
unless --order asc is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "List the newest stored papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		papers, err := s.Latest(cmd.Context())
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return printPapers(cmd.OutOrStdout(), papers, asJSON)
	},
}

func init() {
	searchCmd.Flags().String("sort-by", string(store.SortPublished), "published_date, updated_date or crawled_at")
	searchCmd.Flags().String("order", "desc", "asc or desc")
	searchCmd.Flags().Int("limit", store.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	latestCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd, latestCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts := store.SearchOptions{}
	if len(args) == 1 {
		opts.Keyword = args[0]
	}
	sortBy, _ := cmd.Flags().GetString("sort-by")
	order, _ := cmd.Flags().GetString("order")
	opts.Sort = store.ParseSortField(sortBy)
	opts.Ascending = strings.EqualFold(order, "asc")
	opts.Limit, _ = cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	papers, err := s.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	return printPapers(cmd.OutOrStdout(), papers, asJSON)
}

func printPapers(w io.Writer, papers []*types.Paper, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if papers == nil {
			papers = []*types.Paper{}
		}
		return enc.Encode(papers)
	}

	fmt.Fprintf(w, "%-16s  %-10s  %-8s  %-60s  %s\n", "ID", "PUBLISHED", "CATEGORY", "TITLE", "ANALYSED")
	for _, p := range papers {
		analysed := ""
		if p.HasAnalysis() {
			analysed = "yes"
		}
		fmt.Fprintf(w, "%-16s  %-10s  %-8s  %-60s  %s\n",
			p.ID, p.PublishedDate.Format("2006-01-02"), p.PrimeCategory, truncate(p.Title, 60), analysed)
	}
	fmt.Fprintf(w, "\n%d results\n", len(papers))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
