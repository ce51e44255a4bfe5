// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest turns catalog results into stored Papers. It filters by
// the cutoff window, drops duplicates within a batch, and inserts each
// remaining paper independently so one failure never blocks the others.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/catalog"
	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// Searcher fetches catalog results for a planned query. It may return
// partial results together with an error.
type Searcher interface {
	Search(ctx context.Context, q catalog.Query) ([]catalog.Result, error)
}

// Inserter persists a paper if its id is not already stored, returning
// store.ErrDuplicate otherwise.
type Inserter interface {
	Insert(ctx context.Context, p *types.Paper) error
}

// Summary holds counts from one ingest run.
type Summary struct {
	// Fetched is the number of results the catalog returned.
	Fetched int

	// OutOfWindow counts results updated before the cutoff.
	OutOfWindow int

	// Duplicates counts repeated ids within the batch.
	Duplicates int

	// Malformed counts results without a usable entry id.
	Malformed int

	// Existing counts papers already stored by an earlier run.
	Existing int

	// Failed counts papers whose insert failed for another reason.
	Failed int

	// New holds the papers persisted by this run, in catalog order.
	New []*types.Paper

	// ProviderErr is the catalog error, if any. Results fetched before it
	// are still processed.
	ProviderErr error
}

// Total returns the number of results examined.
func (s Summary) Total() int {
	return s.Fetched
}

// HasFailures reports whether any insert failed or the catalog faulted.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.ProviderErr != nil
}

// Pipeline runs ingest batches against one catalog and one store.
type Pipeline struct {
	Catalog Searcher
	Store   Inserter
	Logger  *zap.Logger

	// DefaultDaysBack applies when a request has no date selector.
	DefaultDaysBack int

	// Now returns the current time. Tests pin it.
	Now func() time.Time
}

// New returns a Pipeline with a nop logger and the wall clock.
func New(c Searcher, s Inserter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		Catalog:         c,
		Store:           s,
		Logger:          logger,
		DefaultDaysBack: catalog.DefaultDaysBack,
		Now:             time.Now,
	}
}

// Run plans the query for req, searches the catalog, filters the results
// and persists the survivors. Catalog faults are logged and the partial
// results kept; the returned error is reserved for cancellation.
func (p *Pipeline) Run(ctx context.Context, req catalog.Request) (Summary, error) {
	now := p.Now().UTC()

	if req.StartDate != "" && !catalog.ValidStartDate(req.StartDate) {
		p.Logger.Warn("invalid start date, falling back to days back",
			zap.String("start_date", req.StartDate))
	}
	q := catalog.Plan(req, now, p.DefaultDaysBack)

	p.Logger.Info("ingest started",
		zap.String("query", q.Search),
		zap.Time("cutoff", q.Cutoff),
		zap.Int("limit", q.Limit))

	results, err := p.Catalog.Search(ctx, q)
	var summary Summary
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		p.Logger.Error("catalog search failed, keeping partial results",
			zap.Error(err), zap.Int("partial", len(results)))
		summary.ProviderErr = err
	}
	summary.Fetched = len(results)

	papers, stats := Filter(results, q.Cutoff, now)
	summary.OutOfWindow = stats.OutOfWindow
	summary.Duplicates = stats.Duplicates
	summary.Malformed = stats.Malformed

	newPapers, existing, failed := p.Persist(ctx, papers)
	summary.New = newPapers
	summary.Existing = existing
	summary.Failed = failed

	p.Logger.Info("ingest finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("new", len(summary.New)),
		zap.Int("existing", summary.Existing),
		zap.Int("out_of_window", summary.OutOfWindow),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("malformed", summary.Malformed),
		zap.Int("failed", summary.Failed))

	return summary, ctx.Err()
}

// Persist inserts each paper independently. Papers already stored are
// skipped silently; other failures are logged and counted. It returns
// the newly stored papers.
func (p *Pipeline) Persist(ctx context.Context, papers []*types.Paper) (stored []*types.Paper, existing, failed int) {
	for _, paper := range papers {
		if ctx.Err() != nil {
			break
		}
		err := p.Store.Insert(ctx, paper)
		switch {
		case err == nil:
			stored = append(stored, paper)
			p.Logger.Debug("stored paper", zap.String("id", paper.ID))
		case errors.Is(err, store.ErrDuplicate):
			existing++
		default:
			failed++
			p.Logger.Error("storing paper failed", zap.String("id", paper.ID), zap.Error(err))
		}
	}
	return stored, existing, failed
}

// FilterStats counts results dropped by Filter.
type FilterStats struct {
	OutOfWindow int
	Duplicates  int
	Malformed   int
}

// Filter walks results in order and keeps each one updated within the
// cutoff window whose id has not been seen earlier in the batch. The
// window is measured in whole UTC days: a result is kept when the days
// since its update do not exceed the days since the cutoff.
func Filter(results []catalog.Result, cutoff, now time.Time) ([]*types.Paper, FilterStats) {
	var stats FilterStats
	window := DaysSince(cutoff, now)
	seen := make(map[string]struct{}, len(results))

	var papers []*types.Paper
	for _, r := range results {
		if DaysSince(r.Updated, now) > window {
			stats.OutOfWindow++
			continue
		}
		id := ShortID(r.EntryID)
		if id == "" {
			stats.Malformed++
			continue
		}
		if _, ok := seen[id]; ok {
			stats.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		papers = append(papers, toPaper(id, r))
	}
	return papers, stats
}

// DaysSince returns the number of whole UTC calendar days from t to now.
// It is negative when t is after now.
func DaysSince(t, now time.Time) int {
	return int(catalog.Day(now).Sub(catalog.Day(t)).Hours() / 24)
}

// ShortID returns the last path segment of an entry URL
// ("http://arxiv.org/abs/2401.00001v2" gives "2401.00001v2").
func ShortID(entryURL string) string {
	entryURL = strings.TrimRight(strings.TrimSpace(entryURL), "/")
	if i := strings.LastIndex(entryURL, "/"); i >= 0 {
		return entryURL[i+1:]
	}
	return entryURL
}

func toPaper(id string, r catalog.Result) *types.Paper {
	return &types.Paper{
		ID:            id,
		Title:         flatten(r.Title),
		Authors:       r.Authors,
		ArxivURL:      r.EntryID,
		PDFURL:        r.PDFURL,
		PublishedDate: r.Published,
		UpdatedDate:   r.Updated,
		Summary:       flatten(r.Summary),
		PrimeCategory: r.PrimaryCategory,
		Categories:    r.Categories,
	}
}

// flatten replaces newlines with spaces.
func flatten(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", " "), "\n", " ")
}

// Reply is the ingest trigger response body.
type Reply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// NewReply summarizes a run for the ingest trigger.
func NewReply(s Summary) Reply {
	if len(s.New) == 0 {
		return Reply{
			Status:  "success",
			Message: "Finished, but no new papers were found (or they already exist in the database).",
		}
	}
	return Reply{
		Status:  "success",
		Message: fmt.Sprintf("%d new papers were found and stored", len(s.New)),
		Count:   len(s.New),
	}
}

// ErrorReply reports a failed run.
func ErrorReply(err error) Reply {
	return Reply{Status: "error", Message: err.Error()}
}
