// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog builds arXiv catalog queries and fetches result pages
// from the arXiv export API.
package catalog

import (
	"strings"
	"time"
)

const (
	// DefaultDaysBack is the window used when a request names neither a
	// start date nor a days-back count.
	DefaultDaysBack = 30

	// KeywordLimit caps results for keyword searches.
	KeywordLimit = 300

	// BrowseLimit caps results for category-only browsing.
	BrowseLimit = 100

	dateLayout = "2006-01-02"
)

// Request describes one ingest run: which categories to browse, an
// optional keyword, and the date window.
type Request struct {
	// Categories are arXiv computer-science subject codes such as "AI" or
	// "CL". Empty browses every cs.* category.
	Categories []string `json:"categories"`

	Keyword string `json:"keyword"`

	// DaysBack counts days before today. Nil means absent.
	DaysBack *int `json:"days_back,omitempty"`

	// StartDate is an explicit YYYY-MM-DD cutoff; it wins over DaysBack.
	StartDate string `json:"start_date,omitempty"`
}

// Query is a planned catalog search.
type Query struct {
	// Search is the arXiv search_query expression.
	Search string

	// Cutoff is the UTC midnight of the oldest update date to keep.
	Cutoff time.Time

	// Limit caps the number of results requested.
	Limit int
}

// Plan resolves req into a Query relative to now. A defaultDays of zero
// or less uses DefaultDaysBack.
func Plan(req Request, now time.Time, defaultDays int) Query {
	return Query{
		Search: BuildQuery(req.Categories, req.Keyword),
		Cutoff: ResolveCutoff(req.StartDate, req.DaysBack, now, defaultDays),
		Limit:  ResultLimit(req.Keyword),
	}
}

// BuildQuery combines an OR-group of category terms with an optional
// exact-phrase keyword term:
//
//	BuildQuery([]string{"AI", "CL"}, "diffusion")
//	// (cat:cs.AI OR cat:cs.CL) AND all:"diffusion"
//
// An empty category set becomes the wildcard cat:cs.*.
func BuildQuery(categories []string, keyword string) string {
	var terms []string
	for _, c := range categories {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		terms = append(terms, "cat:cs."+c)
	}

	var q string
	if len(terms) == 0 {
		q = "cat:cs.*"
	} else {
		q = "(" + strings.Join(terms, " OR ") + ")"
	}

	if kw := cleanKeyword(keyword); kw != "" {
		q += ` AND all:"` + kw + `"`
	}
	return q
}

// cleanKeyword trims the keyword and strips quote characters so it can be
// wrapped in an exact-phrase term.
func cleanKeyword(keyword string) string {
	return strings.TrimSpace(strings.ReplaceAll(keyword, `"`, ""))
}

// ResolveCutoff picks the cutoff date. An explicit start date wins; if it
// is absent or fails to parse, daysBack is used (at least one day); if
// daysBack is nil too, the default window applies. The result is UTC
// midnight.
func ResolveCutoff(startDate string, daysBack *int, now time.Time, defaultDays int) time.Time {
	if startDate = strings.TrimSpace(startDate); startDate != "" {
		if t, err := time.Parse(dateLayout, startDate); err == nil {
			return t.UTC()
		}
	}

	days := defaultDays
	if days <= 0 {
		days = DefaultDaysBack
	}
	if daysBack != nil {
		days = max(*daysBack, 1)
	}
	return Day(now).AddDate(0, 0, -days)
}

// ResultLimit widens the cap for keyword searches.
func ResultLimit(keyword string) int {
	if cleanKeyword(keyword) != "" {
		return KeywordLimit
	}
	return BrowseLimit
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidStartDate reports whether s parses as YYYY-MM-DD.
func ValidStartDate(s string) bool {
	_, err := time.Parse(dateLayout, strings.TrimSpace(s))
	return err == nil
}
