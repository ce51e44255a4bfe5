// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/arxiv-agent/internal/catalog"
	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

var now = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return now.AddDate(0, 0, -n) }

func result(id string, updated time.Time) catalog.Result {
	return catalog.Result{
		EntryID:         "http://arxiv.org/abs/" + id,
		Title:           "Title of\n" + id,
		Authors:         []string{"A. Author"},
		Summary:         "First line.\nSecond line.",
		Published:       updated.Add(-48 * time.Hour),
		Updated:         updated,
		PrimaryCategory: "cs.AI",
		Categories:      []string{"cs.AI"},
		PDFURL:          "http://arxiv.org/pdf/" + id,
	}
}

// fakeCatalog returns fixed results and records the query it was given.
type fakeCatalog struct {
	results []catalog.Result
	err     error
	got     catalog.Query
}

func (f *fakeCatalog) Search(_ context.Context, q catalog.Query) ([]catalog.Result, error) {
	f.got = q
	return f.results, f.err
}

// flakyStore fails inserts for the listed ids and records the rest.
type flakyStore struct {
	failIDs  map[string]bool
	inserted []string
}

func (f *flakyStore) Insert(_ context.Context, p *types.Paper) error {
	if f.failIDs[p.ID] {
		return errors.New("disk full")
	}
	f.inserted = append(f.inserted, p.ID)
	return nil
}

func testPipeline(c Searcher, s Inserter) *Pipeline {
	p := New(c, s, nil)
	p.Now = func() time.Time { return now }
	return p
}

func sqliteStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(types.StoreConfig{Path: filepath.Join(t.TempDir(), "papers.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(n int) *int { return &n }

func TestShortID(t *testing.T) {
	tests := map[string]string{
		"http://arxiv.org/abs/2401.00001v2":  "2401.00001v2",
		"http://arxiv.org/abs/cs/0112017v1":  "0112017v1",
		"http://arxiv.org/abs/2401.00001v2/": "2401.00001v2",
		"2401.00001":                         "2401.00001",
		"":                                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShortID(in), in)
	}
}

func TestDaysSince(t *testing.T) {
	assert.Equal(t, 0, DaysSince(now.Add(-time.Hour), now))
	assert.Equal(t, 1, DaysSince(time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC), now))
	assert.Equal(t, 5, DaysSince(daysAgo(5), now))
	assert.Equal(t, -1, DaysSince(now.Add(24*time.Hour), now))
}

func TestFilter_CutoffWindow(t *testing.T) {
	cutoff := catalog.ResolveCutoff("", intPtr(3), now, 0)
	results := []catalog.Result{
		result("recent", daysAgo(1)),
		result("edge", daysAgo(3)),
		result("old", daysAgo(5)),
	}

	papers, stats := Filter(results, cutoff, now)
	require.Len(t, papers, 2)
	assert.Equal(t, "recent", papers[0].ID)
	assert.Equal(t, "edge", papers[1].ID)
	assert.Equal(t, 1, stats.OutOfWindow)
}

func TestFilter_IntraBatchDedup(t *testing.T) {
	cutoff := catalog.ResolveCutoff("", intPtr(3), now, 0)
	results := []catalog.Result{
		result("2610.00001v1", daysAgo(0)),
		result("2610.00002v1", daysAgo(0)),
		result("2610.00001v1", daysAgo(1)),
	}

	papers, stats := Filter(results, cutoff, now)
	require.Len(t, papers, 2)
	assert.Equal(t, 1, stats.Duplicates)
	// The first sighting wins.
	assert.True(t, daysAgo(0).Equal(papers[0].UpdatedDate))
}

func TestFilter_CountsMalformedEntries(t *testing.T) {
	cutoff := catalog.ResolveCutoff("", intPtr(3), now, 0)
	blank := result("x", daysAgo(0))
	blank.EntryID = "  "
	results := []catalog.Result{result("2610.00001v1", daysAgo(0)), blank, result("old", daysAgo(9))}

	papers, stats := Filter(results, cutoff, now)
	require.Len(t, papers, 1)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, len(results), len(papers)+stats.OutOfWindow+stats.Duplicates+stats.Malformed)
}

func TestFilter_FlattensText(t *testing.T) {
	papers, _ := Filter([]catalog.Result{result("x", now)}, daysAgo(1), now)
	require.Len(t, papers, 1)
	p := papers[0]
	assert.Equal(t, "Title of x", p.Title)
	assert.Equal(t, "First line. Second line.", p.Summary)
	assert.Equal(t, "http://arxiv.org/abs/x", p.ArxivURL)
	assert.Equal(t, "http://arxiv.org/pdf/x", p.PDFURL)
	assert.Equal(t, "cs.AI", p.PrimeCategory)
}

func TestRun_DedupIdempotence(t *testing.T) {
	fc := &fakeCatalog{results: []catalog.Result{
		result("2610.00001v1", daysAgo(0)),
		result("2610.00002v1", daysAgo(1)),
		result("2610.00002v1", daysAgo(1)),
	}}
	s := sqliteStore(t)
	p := testPipeline(fc, s)
	req := catalog.Request{Categories: []string{"AI"}, DaysBack: intPtr(3)}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, first.New, 2)
	assert.Equal(t, 1, first.Duplicates)
	assert.Equal(t, 2, NewReply(first).Count)

	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, second.New)
	assert.Equal(t, 2, second.Existing)
	assert.Equal(t, 0, NewReply(second).Count)
	assert.False(t, second.HasFailures())

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_PassesPlannedQuery(t *testing.T) {
	fc := &fakeCatalog{}
	p := testPipeline(fc, &flakyStore{})

	_, err := p.Run(context.Background(), catalog.Request{
		Categories: []string{"AI", "CL"},
		Keyword:    "diffusion",
		StartDate:  "2026-10-01",
	})
	require.NoError(t, err)
	assert.Equal(t, `(cat:cs.AI OR cat:cs.CL) AND all:"diffusion"`, fc.got.Search)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), fc.got.Cutoff)
	assert.Equal(t, catalog.KeywordLimit, fc.got.Limit)
}

func TestRun_InvalidStartDateFallsBackToDaysBack(t *testing.T) {
	fc := &fakeCatalog{results: []catalog.Result{result("a", daysAgo(1)), result("b", daysAgo(6))}}
	fs := &flakyStore{}
	core, logs := observer.New(zap.WarnLevel)
	p := testPipeline(fc, fs)
	p.Logger = zap.New(core)

	summary, err := p.Run(context.Background(), catalog.Request{
		Categories: []string{"AI"},
		DaysBack:   intPtr(3),
		StartDate:  "01/09/2026",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), fc.got.Cutoff)
	assert.Equal(t, []string{"a"}, fs.inserted)
	assert.Equal(t, 1, summary.OutOfWindow)
	assert.Equal(t, 1, logs.FilterMessage("invalid start date, falling back to days back").Len())
}

func TestRun_PersistenceFaultDoesNotAbortBatch(t *testing.T) {
	fc := &fakeCatalog{results: []catalog.Result{
		result("a", now), result("b", now), result("c", now),
	}}
	fs := &flakyStore{failIDs: map[string]bool{"b": true}}
	core, logs := observer.New(zap.ErrorLevel)
	p := testPipeline(fc, fs)
	p.Logger = zap.New(core)

	summary, err := p.Run(context.Background(), catalog.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, fs.inserted)
	assert.Len(t, summary.New, 2)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, summary.HasFailures())
	assert.Equal(t, 1, logs.FilterMessage("storing paper failed").Len())
}

func TestRun_ProviderFaultKeepsPartialResults(t *testing.T) {
	fc := &fakeCatalog{
		results: []catalog.Result{result("a", now)},
		err:     errors.New("arXiv API returned HTTP 503"),
	}
	fs := &flakyStore{}
	p := testPipeline(fc, fs)

	summary, err := p.Run(context.Background(), catalog.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, fs.inserted)
	assert.Error(t, summary.ProviderErr)
	assert.True(t, summary.HasFailures())
	assert.Equal(t, 1, summary.Total())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fc := &fakeCatalog{results: []catalog.Result{result("a", now)}, err: context.Canceled}
	fs := &flakyStore{}

	_, err := testPipeline(fc, fs).Run(ctx, catalog.Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.inserted)
}

func TestReplies(t *testing.T) {
	r := NewReply(Summary{New: []*types.Paper{{ID: "a"}, {ID: "b"}}})
	assert.Equal(t, "success", r.Status)
	assert.Equal(t, 2, r.Count)
	assert.Contains(t, r.Message, "2 new papers")

	r = ErrorReply(errors.New("boom"))
	assert.Equal(t, Reply{Status: "error", Message: "boom"}, r)
}
