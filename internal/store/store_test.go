// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.StoreConfig{Path: filepath.Join(t.TempDir(), "db", "papers.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePaper(id, title string, published time.Time) *types.Paper {
	return &types.Paper{
		ID:            id,
		Title:         title,
		Authors:       []string{"Ada Lovelace", "Alan Turing"},
		ArxivURL:      "http://arxiv.org/abs/" + id,
		PDFURL:        "http://arxiv.org/pdf/" + id,
		PublishedDate: published,
		UpdatedDate:   published.Add(24 * time.Hour),
		Summary:       "An abstract.",
		PrimeCategory: "cs.AI",
		Categories:    []string{"cs.AI", "cs.LG"},
		CrawledAt:     published.Add(48 * time.Hour),
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInsertAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := samplePaper("2603.00001v1", "Diffusion Models", base)
	require.NoError(t, s.Insert(ctx, p))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, got.HasAnalysis())
}

func TestInsertDuplicate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, samplePaper("2603.00001v1", "First", base)))
	err := s.Insert(ctx, samplePaper("2603.00001v1", "Second", base))
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.Get(ctx, "2603.00001v1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title, "duplicate insert must not overwrite")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertSetsCrawledAt(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := samplePaper("2603.00002v1", "No crawl time", base)
	p.CrawledAt = time.Time{}
	require.NoError(t, s.Insert(ctx, p))
	assert.False(t, p.CrawledAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAnalysis(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, samplePaper("2603.00003v1", "Analyzed", base)))
	at := base.Add(72 * time.Hour)
	require.NoError(t, s.SaveAnalysis(ctx, "2603.00003v1", "# 1. Core Contributions", at))

	got, err := s.Get(ctx, "2603.00003v1")
	require.NoError(t, err)
	assert.True(t, got.HasAnalysis())
	assert.Equal(t, "# 1. Core Contributions", got.DeepAnalysis)
	require.NotNil(t, got.AnalyzedAt)
	assert.True(t, at.Equal(*got.AnalyzedAt))

	assert.ErrorIs(t, s.SaveAnalysis(ctx, "absent", "x", at), ErrNotFound)
}

func TestUpsertKeepsAnalysis(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := samplePaper("2603.00004v1", "Old title", base)
	require.NoError(t, s.Upsert(ctx, p))
	require.NoError(t, s.SaveAnalysis(ctx, p.ID, "cached", base))

	p.Title = "New title"
	require.NoError(t, s.Upsert(ctx, p))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "New title", got.Title)
	assert.Equal(t, "cached", got.DeepAnalysis)
}

func seedSearch(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	papers := []*types.Paper{
		samplePaper("a", "Diffusion Transformers", base),
		samplePaper("b", "Scaling LAWS for diffusion", base.Add(48*time.Hour)),
		samplePaper("c", "Graph Networks", base.Add(24*time.Hour)),
	}
	papers[2].CrawledAt = base.Add(240 * time.Hour)
	for _, p := range papers {
		require.NoError(t, s.Insert(ctx, p))
	}
}

func ids(papers []*types.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	s := testStore(t)
	seedSearch(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{"all newest first", SearchOptions{}, []string{"b", "c", "a"}},
		{"ascending", SearchOptions{Ascending: true}, []string{"a", "c", "b"}},
		{"keyword case-insensitive", SearchOptions{Keyword: "DIFFUSION"}, []string{"b", "a"}},
		{"keyword with wildcard chars", SearchOptions{Keyword: "%"}, nil},
		{"crawled order", SearchOptions{Sort: SortCrawled}, []string{"c", "b", "a"}},
		{"invalid sort falls back", SearchOptions{Sort: "title; DROP TABLE papers"}, []string{"b", "c", "a"}},
		{"limit", SearchOptions{Limit: 1}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, nilIfEmpty(ids(got)))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestParseSortField(t *testing.T) {
	assert.Equal(t, SortPublished, ParseSortField("publishedDate"))
	assert.Equal(t, SortUpdated, ParseSortField("updatedDate"))
	assert.Equal(t, SortCrawled, ParseSortField("ingestedAt"))
	assert.Equal(t, SortCrawled, ParseSortField("crawled_at"))
	assert.Equal(t, SortPublished, ParseSortField("bogus"))
}

func TestLatest(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for i := 0; i < LatestLimit+5; i++ {
		p := samplePaper(string(rune('A'+i)), "Paper", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.Insert(ctx, p))
	}

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, got, LatestLimit)
	assert.Equal(t, string(rune('A'+LatestLimit+4)), got[0].ID)
}

func TestExport(t *testing.T) {
	s := testStore(t)
	seedSearch(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "out", "papers.yaml")
	n, err := s.Export(ctx, yamlPath, ExportYAML, SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML []types.Paper
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Len(t, fromYAML, 3)

	jsonPath := filepath.Join(dir, "papers.json")
	n, err = s.Export(ctx, jsonPath, ExportJSON, SearchOptions{Keyword: "graph"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON []types.Paper
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	require.Len(t, fromJSON, 1)
	assert.Equal(t, "Graph Networks", fromJSON[0].Title)

	_, err = s.Export(ctx, jsonPath, "xml", SearchOptions{})
	assert.Error(t, err)
}
