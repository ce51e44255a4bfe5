// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data model shared by the ingest pipeline, the
// paper store, the analysis cache and the chat orchestrator.
package types

import (
	"strings"
	"time"
)

// Paper holds catalog metadata for one arXiv paper plus its cached deep
// analysis. The ID is assigned on first ingest and never changes.
type Paper struct {
	// ID is the short identifier, the last path segment of ArxivURL
	// (e.g. "2401.00001v2").
	ID string `json:"id" yaml:"id"`

	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in catalog order.
	Authors []string `json:"author" yaml:"author"`

	// ArxivURL is the canonical entry URL (e.g. "http://arxiv.org/abs/2401.00001v2").
	ArxivURL string `json:"arxiv_url" yaml:"arxiv_url"`

	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	PublishedDate time.Time `json:"published_date" yaml:"published_date"`
	UpdatedDate   time.Time `json:"updated_date" yaml:"updated_date"`

	// Summary is the abstract.
	Summary string `json:"summary" yaml:"summary"`

	PrimeCategory string   `json:"prime_category" yaml:"prime_category"`
	Categories    []string `json:"categories" yaml:"categories"`

	// CrawledAt is when the ingest pipeline first persisted the paper.
	CrawledAt time.Time `json:"crawled_at" yaml:"crawled_at"`

	// DeepAnalysis is the four-section analysis of the full text. It is
	// written once by the analysis cache and stable afterwards.
	DeepAnalysis string     `json:"deep_analysis,omitempty" yaml:"deep_analysis,omitempty"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty" yaml:"analyzed_at,omitempty"`
}

// HasAnalysis reports whether a non-empty deep analysis is cached.
func (p *Paper) HasAnalysis() bool {
	return strings.TrimSpace(p.DeepAnalysis) != ""
}
