// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the arxiv-agent CLI and server.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/logging"
	"github.com/pdiddy/arxiv-agent/internal/secrets"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration, filled before any subcommand runs.
	cfg types.Config

	logger = zap.NewNop()

	// loadedSecrets holds API keys read from the secrets directory.
	loadedSecrets map[string]string
)

var rootCmd = &cobra.Command{
	Use:   "arxiv-agent",
	Short: "Ingest arXiv papers and chat about them with a tool-using model",
	Long: `arxiv-agent keeps a local catalog of recent arXiv papers and answers
questions about any one of them. Answers come from the abstract, a web
search, or a deep read of the full PDF, chosen by the model per question.

Run "arxiv-agent serve" for the HTTP API, or use the ingest, search,
latest, chat, analyze and export subcommands directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		loaded, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded

		verbose, _ := cmd.Flags().GetBool("verbose")
		logger, err = logging.New(cfg.Log, verbose)
		if err != nil {
			return err
		}
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		secrets.ApplyAPIKey(&cfg.AI, loadedSecrets)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./arxiv-agent.yaml or ~/.config/arxiv-agent/arxiv-agent.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of API key files")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides store.path)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	setupViper(viper.GetViper(), cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "reading config:", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
