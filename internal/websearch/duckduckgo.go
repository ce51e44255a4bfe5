// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch answers general-knowledge queries by scraping the
// DuckDuckGo HTML endpoint.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pdiddy/arxiv-agent/internal/httputil"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// duckDuckGoBase is the HTML search endpoint. Declared as a var so tests
// can substitute an httptest server.
var duckDuckGoBase = "https://html.duckduckgo.com/html/"

const (
	defaultMaxResults = 5
	maxBodyBytes      = 1 << 20
	browserUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// DuckDuckGo searches the web through DuckDuckGo's HTML interface.
type DuckDuckGo struct {
	HTTP       *http.Client
	Config     types.HTTPConfig
	MaxResults int
	Logger     *zap.Logger
}

// New returns a DuckDuckGo searcher.
func New(cfg types.HTTPConfig, logger *zap.Logger) *DuckDuckGo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuckDuckGo{
		HTTP:       httputil.NewClient(cfg),
		Config:     cfg,
		MaxResults: defaultMaxResults,
		Logger:     logger,
	}
}

// Search returns up to MaxResults hits for query.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, duckDuckGoBase, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := httputil.DoWithRetry(ctx, d.HTTP, req, httputil.RetryOptions{
		MaxRetries: d.Config.MaxRetries,
		Logger:     d.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading web search response: %w", err)
	}

	limit := d.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	results, err := parseResults(string(body), limit)
	if err != nil {
		return nil, err
	}

	d.Logger.Info("web search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// Format renders results as numbered plain text for a model to read.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return b.String()
}

// parseResults extracts hits from a DuckDuckGo HTML results page. Each
// hit is a div whose class list contains "result" and "results_links".
func parseResults(page string, limit int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing web search HTML: %w", err)
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "results_links") {
			if r := extractResult(n); r.Title != "" && r.URL != "" {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var r Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				r.Title = textContent(n)
				r.URL = resolveRedirect(attr(n, "href"))
			case hasClass(n, "result__snippet"):
				r.Snippet = textContent(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return r
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
