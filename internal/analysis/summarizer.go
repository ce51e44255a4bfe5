// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis produces and caches structured deep analyses of papers.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/llm"
)

const (
	// FallbackPrefix opens the reply returned when the model call fails.
	FallbackPrefix = "⚠️ AI analysis failed. Here is the beginning of the document:\n\n"

	fallbackChars        = 5000
	defaultMaxInputChars = 300000
)

var promptTemplate = template.Must(template.New("analysis").Parse(`You are an expert research assistant. Read the full text of the scientific paper below and write a detailed analysis in Markdown with exactly these sections:

# 1. Core Contributions
What problem does the paper address and what is new about its solution?

# 2. Methodology
How does the proposed method work? Describe the architecture, algorithms and key equations.

# 3. Experiments & Results
Which datasets and baselines were used, and what do the main results show?

# 4. Limitations & Future Work
What weaknesses do the authors acknowledge, and what directions do they propose?

Be precise and technical. Quote concrete numbers where the paper reports them.

--- ORIGINAL TEXT ---
{{.Text}}
`))

// Summarizer turns raw paper text into a four-section analysis.
type Summarizer struct {
	Model         llm.Generator
	MaxInputChars int
	Logger        *zap.Logger
}

// NewSummarizer returns a Summarizer backed by model.
func NewSummarizer(model llm.Generator, maxInputChars int, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxInputChars <= 0 {
		maxInputChars = defaultMaxInputChars
	}
	return &Summarizer{Model: model, MaxInputChars: maxInputChars, Logger: logger}
}

// Summarize returns the model's analysis of text and reports whether the
// model produced it. A model error yields Fallback(text) and false.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, bool) {
	prompt, err := Prompt(clip(text, s.MaxInputChars))
	if err == nil {
		var out string
		out, err = s.Model.Generate(ctx, prompt)
		if err == nil {
			return out, true
		}
	}
	s.Logger.Warn("analysis generation failed, returning document excerpt", zap.Error(err))
	return Fallback(text), false
}

// Prompt renders the analysis prompt over text.
func Prompt(text string) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, struct{ Text string }{text}); err != nil {
		return "", fmt.Errorf("rendering analysis prompt: %w", err)
	}
	return b.String(), nil
}

// Fallback is the reply used when the model cannot analyse text.
func Fallback(text string) string {
	return FallbackPrefix + clip(text, fallbackChars) + "..."
}

// clip returns at most n runes of s.
func clip(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
