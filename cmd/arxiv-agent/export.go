// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-agent/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write stored papers to a YAML or JSON file",
	Long: `Export writes the papers matching --keyword to a file. The format
follows the file extension (.json for JSON, anything else YAML) unless
--format is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "", "yaml or json (default: from extension)")
	exportCmd.Flags().String("keyword", "", "only export papers whose title contains this")
	exportCmd.Flags().Int("limit", 10000, "maximum number of papers")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, _ := cmd.Flags().GetString("format")
	if format == "" && strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	f := store.ExportYAML
	switch strings.ToLower(format) {
	case "json":
		f = store.ExportJSON
	case "yaml", "yml", "":
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	keyword, _ := cmd.Flags().GetString("keyword")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Export(cmd.Context(), path, f, store.SearchOptions{Keyword: keyword, Limit: limit})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d papers to %s\n", n, path)
	return nil
}
