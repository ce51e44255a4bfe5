// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <paper-id>",
	Short: "Print the deep analysis of a stored paper",
	Long: `Analyze downloads the paper's PDF, asks the model for a four-section
analysis, and stores it. Later runs print the stored analysis without
downloading again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		cache, err := newAnalysisCache(cmd.Context(), s)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cache.GetDeepAnalysis(cmd.Context(), args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
