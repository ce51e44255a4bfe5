// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/arxiv-agent/internal/httputil"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const (
	defaultPageSize = 100
	defaultDelay    = 3 * time.Second
)

// Result is one catalog entry.
type Result struct {
	// EntryID is the canonical entry URL, e.g. "http://arxiv.org/abs/2401.00001v2".
	EntryID         string
	Title           string
	Authors         []string
	Summary         string
	Published       time.Time
	Updated         time.Time
	PrimaryCategory string
	Categories      []string
	PDFURL          string
}

// Client pages through the arXiv export API. Requests are paced by a
// rate limiter shared across calls on the same Client.
type Client struct {
	HTTP    *http.Client
	Config  types.CatalogConfig
	Logger  *zap.Logger
	limiter *rate.Limiter
}

// NewClient returns a Client for cfg.
func NewClient(cfg types.CatalogConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = defaultDelay
	}
	return &Client{
		HTTP:    httputil.NewClient(cfg.HTTPConfig),
		Config:  cfg,
		Logger:  logger,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Search fetches results for q sorted by last-updated date, newest first.
// Paging stops at q.Limit, on a short page, or once a whole page is older
// than q.Cutoff. When a page fails the results gathered so far are
// returned together with the error.
func (c *Client) Search(ctx context.Context, q Query) ([]Result, error) {
	pageSize := c.Config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	limit := q.Limit
	if limit <= 0 {
		limit = BrowseLimit
	}

	var results []Result
	for start := 0; start < limit; start += pageSize {
		n := min(pageSize, limit-start)

		page, err := c.fetchPage(ctx, q.Search, start, n)
		if err != nil {
			return results, fmt.Errorf("fetching arXiv page at offset %d: %w", start, err)
		}
		results = append(results, page...)

		c.Logger.Debug("fetched arXiv page",
			zap.String("query", q.Search),
			zap.Int("start", start),
			zap.Int("entries", len(page)))

		if len(page) < n {
			break
		}
		if last := page[len(page)-1]; !q.Cutoff.IsZero() && last.Updated.Before(q.Cutoff) {
			break
		}
	}
	return results, nil
}

func (c *Client) fetchPage(ctx context.Context, search string, start, maxResults int) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	base := arxivAPIBase
	if c.Config.BaseURL != "" {
		base = c.Config.BaseURL
	}
	params := url.Values{}
	params.Set("search_query", search)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "lastUpdatedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", httputil.UserAgent(c.Config.HTTPConfig))

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, httputil.RetryOptions{
		MaxRetries: c.Config.MaxRetries,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	results := make([]Result, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		results = append(results, entry.result())
	}
	return results, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	Updated         string          `xml:"updated"`
	Authors         []arxivAuthor   `xml:"author"`
	Links           []arxivLink     `xml:"link"`
	PrimaryCategory arxivCategory   `xml:"http://arxiv.org/schemas/atom primary_category"`
	Categories      []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func (e arxivEntry) result() Result {
	r := Result{
		EntryID:         strings.TrimSpace(e.ID),
		Title:           strings.TrimSpace(e.Title),
		Summary:         strings.TrimSpace(e.Summary),
		PrimaryCategory: e.PrimaryCategory.Term,
	}
	for _, a := range e.Authors {
		r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			r.Categories = append(r.Categories, c.Term)
		}
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			r.PDFURL = l.Href
			break
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		r.Published = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Updated)); err == nil {
		r.Updated = t.UTC()
	} else {
		r.Updated = r.Published
	}
	return r
}
