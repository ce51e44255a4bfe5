// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/catalog"
	"github.com/pdiddy/arxiv-agent/internal/ingest"
	"github.com/pdiddy/arxiv-agent/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve opens the paper store, runs one startup ingest of recent papers
in the configured categories, and then serves the HTTP API until
interrupted. Startup ingest faults are logged and do not stop the server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("no-startup-ingest", false, "skip the startup ingest")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	orchestrator, err := newOrchestrator(ctx, s)
	if err != nil {
		return err
	}
	pipeline := newPipeline(s)

	skip, _ := cmd.Flags().GetBool("no-startup-ingest")
	if cfg.Ingest.IngestOnStart && !skip {
		startupIngest(ctx, pipeline)
	}

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	srv := server.New(pipeline, s, orchestrator, logger.Named("http"))
	return srv.ListenAndServe(ctx, cfg.Server)
}

// startupIngest fetches the last few days of the startup categories.
func startupIngest(ctx context.Context, p *ingest.Pipeline) {
	days := cfg.Ingest.StartupDaysBack
	req := catalog.Request{Categories: cfg.Ingest.StartupCategories, DaysBack: &days}
	logger.Info("startup ingest", zap.Strings("categories", req.Categories), zap.Int("days_back", days))

	summary, err := p.Run(ctx, req)
	if err != nil {
		logger.Warn("startup ingest stopped", zap.Error(err))
		return
	}
	logger.Info("startup ingest complete",
		zap.Int("new", len(summary.New)),
		zap.Int("existing", summary.Existing),
		zap.Bool("failures", summary.HasFailures()))
}
