// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools defines the closed set of tools the chat model may call.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/llm"
	"github.com/pdiddy/arxiv-agent/internal/websearch"
)

// Kind names a tool. The set is closed: web search and deep read.
type Kind string

const (
	KindWebSearch Kind = "web_search"
	KindDeepRead  Kind = "read_full_paper"
)

// Notices streamed to the user when a tool starts.
const (
	WebSearchNotice = "\n\n*🔍 Searching the web...*\n\n"
	DeepReadNotice  = "\n\n*📥 Downloading and reading the full paper (PDF)...*\n\n"
)

// ErrUnknownTool is returned by Lookup for names outside the tool set.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is one callable capability.
type Tool interface {
	Kind() Kind
	Spec() llm.ToolSpec
	Notice() string
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// DeepReader returns a paper's deep analysis. It always returns text.
type DeepReader interface {
	GetDeepAnalysis(ctx context.Context, id string) string
}

// WebSearch looks up general knowledge outside the paper.
type WebSearch struct {
	Searcher Searcher
	Logger   *zap.Logger
}

func (WebSearch) Kind() Kind     { return KindWebSearch }
func (WebSearch) Notice() string { return WebSearchNotice }

func (WebSearch) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: string(KindWebSearch),
		Description: "Search the web for general knowledge, new concepts, or up-to-date information " +
			"that is not contained in the paper.",
		Params: []llm.ToolParam{
			{Name: "query", Description: "The search query", Required: true},
		},
	}
}

func (w WebSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := StringArg(args, "query")
	if err != nil {
		return "", err
	}
	logger(w.Logger).Info("tool: web search", zap.String("query", query))
	results, err := w.Searcher.Search(ctx, query)
	if err != nil {
		return "", err
	}
	return websearch.Format(results), nil
}

// DeepRead downloads and analyses the full paper.
type DeepRead struct {
	Reader DeepReader
	Logger *zap.Logger
}

func (DeepRead) Kind() Kind     { return KindDeepRead }
func (DeepRead) Notice() string { return DeepReadNotice }

func (DeepRead) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: string(KindDeepRead),
		Description: "Download the full PDF of the paper and return a detailed analysis of its " +
			"methodology, experiments, and math. Use only when the abstract is not enough.",
		Params: []llm.ToolParam{
			{Name: "paper_id", Description: "The arXiv id of the paper", Required: true},
		},
	}
}

func (d DeepRead) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, err := StringArg(args, "paper_id")
	if err != nil {
		return "", err
	}
	logger(d.Logger).Info("tool: deep read", zap.String("paper_id", id))
	return d.Reader.GetDeepAnalysis(ctx, id), nil
}

// Registry resolves tool names from model calls.
type Registry struct {
	tools []Tool
}

// NewRegistry returns a registry holding tools in declaration order.
func NewRegistry(tools ...Tool) *Registry {
	return &Registry{tools: tools}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, error) {
	for _, t := range r.tools {
		if string(t.Kind()) == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Specs declares every registered tool to the model.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

// StringArg returns the non-empty string argument name.
func StringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", name, v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("argument %q is empty", name)
	}
	return s, nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
