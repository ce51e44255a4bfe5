// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// SortField names a column papers can be ordered by.
type SortField string

const (
	SortPublished SortField = "published_date"
	SortUpdated   SortField = "updated_date"
	SortCrawled   SortField = "crawled_at"
)

// ParseSortField maps a request value to a SortField. The camel-case
// forms publishedDate, updatedDate and ingestedAt are accepted as well.
// Unknown values fall back to SortPublished.
func ParseSortField(s string) SortField {
	switch strings.TrimSpace(s) {
	case "updated_date", "updatedDate":
		return SortUpdated
	case "crawled_at", "ingestedAt", "ingested_at":
		return SortCrawled
	default:
		return SortPublished
	}
}

// DefaultSearchLimit is the result cap when SearchOptions.Limit is unset.
const DefaultSearchLimit = 50

// LatestLimit is the number of papers returned by Latest.
const LatestLimit = 20

// SearchOptions holds parameters for Search.
type SearchOptions struct {
	// Keyword filters to papers whose title contains it, case-insensitively.
	// Empty matches every paper.
	Keyword string

	Sort SortField

	// Ascending reverses the default newest-first order.
	Ascending bool

	// Limit caps the result count. Zero uses DefaultSearchLimit.
	Limit int
}

// Search returns papers matching opts in the requested order.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]*types.Paper, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + paperColumns + ` FROM papers`)

	if kw := strings.TrimSpace(opts.Keyword); kw != "" {
		qb.WriteString(` WHERE instr(lower(title), lower(?)) > 0`)
		args = append(args, kw)
	}

	// The column name comes from the SortField whitelist, never the request.
	qb.WriteString(` ORDER BY ` + string(ParseSortField(string(opts.Sort))))
	if opts.Ascending {
		qb.WriteString(` ASC`)
	} else {
		qb.WriteString(` DESC`)
	}
	qb.WriteString(`, id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching papers: %w", err)
	}
	defer rows.Close()

	var papers []*types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating papers: %w", err)
	}
	return papers, nil
}

// Latest returns the LatestLimit most recently published papers.
func (s *Store) Latest(ctx context.Context) ([]*types.Paper, error) {
	return s.Search(ctx, SearchOptions{Sort: SortPublished, Limit: LatestLimit})
}
