// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/pdiddy/arxiv-agent/internal/analysis"
	"github.com/pdiddy/arxiv-agent/internal/catalog"
	"github.com/pdiddy/arxiv-agent/internal/chat"
	"github.com/pdiddy/arxiv-agent/internal/fetch"
	"github.com/pdiddy/arxiv-agent/internal/ingest"
	"github.com/pdiddy/arxiv-agent/internal/llm"
	"github.com/pdiddy/arxiv-agent/internal/secrets"
	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/internal/tools"
	"github.com/pdiddy/arxiv-agent/internal/websearch"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// openStore opens the configured database. Failure here is fatal to the
// command.
func openStore() (*store.Store, error) {
	s, err := store.NewStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening paper store: %w", err)
	}
	return s, nil
}

func newPipeline(s *store.Store) *ingest.Pipeline {
	p := ingest.New(catalog.NewClient(cfg.Catalog, logger.Named("catalog")), s, logger.Named("ingest"))
	if cfg.Ingest.DefaultDaysBack > 0 {
		p.DefaultDaysBack = cfg.Ingest.DefaultDaysBack
	}
	return p
}

// newModel builds the configured model at the given temperature.
func newModel(ctx context.Context, temperature float32) (llm.Model, error) {
	ai := cfg.AI
	ai.Temperature = temperature
	if ai.APIKey == "" {
		return nil, fmt.Errorf("no API key for %s: set ai.api_key, ARXIV_AGENT_AI_API_KEY, or %s/%s",
			ai.Provider, secrets.DefaultDir, secrets.KeyFor(ai.Provider))
	}
	return llm.New(ctx, ai)
}

func newAnalysisCache(ctx context.Context, s *store.Store) (*analysis.Cache, error) {
	model, err := newModel(ctx, cfg.Analysis.Temperature)
	if err != nil {
		return nil, err
	}
	summarizer := analysis.NewSummarizer(model, cfg.Analysis.MaxInputChars, logger.Named("summarizer"))
	fetcher := fetch.New(cfg.Analysis, logger.Named("fetch"))
	return analysis.NewCache(s, fetcher, summarizer, cfg.Analysis, logger.Named("analysis")), nil
}

// newOrchestrator wires the chat loop with both tools.
func newOrchestrator(ctx context.Context, s *store.Store) (*chat.Orchestrator, error) {
	cache, err := newAnalysisCache(ctx, s)
	if err != nil {
		return nil, err
	}
	model, err := newModel(ctx, cfg.AI.Temperature)
	if err != nil {
		return nil, err
	}
	registry := tools.NewRegistry(
		tools.WebSearch{Searcher: websearch.New(types.HTTPConfig{Timeout: cfg.Catalog.Timeout}, logger.Named("websearch")), Logger: logger},
		tools.DeepRead{Reader: cache, Logger: logger},
	)
	return chat.New(s, model, registry, cfg.Chat, logger.Named("chat")), nil
}
