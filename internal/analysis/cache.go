// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// NotFoundText is returned for paper ids absent from the store.
const NotFoundText = "Sorry, I could not find this paper in the database."

const (
	errorPrefix       = "Could not read the paper: "
	defaultRunTimeout = 5 * time.Minute
)

// pdfURLFormat builds a download URL for papers stored without one.
var pdfURLFormat = "http://arxiv.org/pdf/%s.pdf"

// PaperStore reads papers and records their analyses.
type PaperStore interface {
	Get(ctx context.Context, id string) (*types.Paper, error)
	SaveAnalysis(ctx context.Context, id, analysis string, at time.Time) error
}

// DocumentFetcher returns the full text of the document at url.
type DocumentFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Analyzer condenses document text. The bool reports whether the result
// is a real analysis rather than a fallback excerpt.
type Analyzer interface {
	Summarize(ctx context.Context, text string) (string, bool)
}

// Cache computes a paper's deep analysis at most once and serves the
// stored copy afterwards. Concurrent requests for the same paper share a
// single fetch-and-summarize run.
type Cache struct {
	Store      PaperStore
	Fetcher    DocumentFetcher
	Analyzer   Analyzer
	RunTimeout time.Duration
	Logger     *zap.Logger
	Now        func() time.Time

	group singleflight.Group
}

// NewCache wires a Cache from its collaborators.
func NewCache(s PaperStore, f DocumentFetcher, a Analyzer, cfg types.AnalysisConfig, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &Cache{
		Store:      s,
		Fetcher:    f,
		Analyzer:   a,
		RunTimeout: timeout,
		Logger:     logger,
		Now:        time.Now,
	}
}

// GetDeepAnalysis returns the analysis for id. It always returns text:
// NotFoundText for unknown ids and an error sentence when the document
// cannot be fetched, summarised or stored. A summarizer fallback excerpt
// is returned but not stored, so the next call asks the model again.
func (c *Cache) GetDeepAnalysis(ctx context.Context, id string) string {
	id = strings.TrimSpace(id)
	p, err := c.Store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundText
	}
	if err != nil {
		return c.errorText(id, err)
	}
	if p.HasAnalysis() {
		c.Logger.Debug("analysis cache hit", zap.String("paper_id", id))
		return p.DeepAnalysis
	}

	// The shared run outlives any single waiter so one caller hanging up
	// does not fail the others.
	ch := c.group.DoChan(id, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.RunTimeout)
		defer cancel()
		return c.analyze(runCtx, id)
	})

	select {
	case <-ctx.Done():
		return c.errorText(id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, store.ErrNotFound) {
				return NotFoundText
			}
			return c.errorText(id, res.Err)
		}
		return res.Val.(string)
	}
}

func (c *Cache) analyze(ctx context.Context, id string) (string, error) {
	// Another flight may have finished between the caller's read and ours.
	p, err := c.Store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p.HasAnalysis() {
		return p.DeepAnalysis, nil
	}

	url := SourceURL(p)
	c.Logger.Info("deep reading paper", zap.String("paper_id", id), zap.String("url", url))
	text, err := c.Fetcher.FetchText(ctx, url)
	if err != nil {
		return "", err
	}

	analysis, ok := c.Analyzer.Summarize(ctx, text)
	if !ok {
		// Excerpts are not cached so a later request retries the model.
		return analysis, nil
	}

	at := c.Now().UTC()
	if err := c.Store.SaveAnalysis(ctx, id, analysis, at); err != nil {
		return "", fmt.Errorf("saving analysis: %w", err)
	}
	c.Logger.Info("analysis stored", zap.String("paper_id", id), zap.Int("chars", len(analysis)))
	return analysis, nil
}

func (c *Cache) errorText(id string, err error) string {
	c.Logger.Error("deep read failed", zap.String("paper_id", id), zap.Error(err))
	return errorPrefix + err.Error()
}

// SourceURL returns the paper's PDF URL, or the canonical arXiv PDF URL
// derived from its id when none was stored.
func SourceURL(p *types.Paper) string {
	if u := strings.TrimSpace(p.PDFURL); u != "" {
		return u
	}
	return fmt.Sprintf(pdfURLFormat, p.ID)
}
