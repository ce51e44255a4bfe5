// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the provider-neutral language-model capability used by
// the summarizer and the chat orchestrator. Gemini and Claude adapters
// translate the neutral message model into each SDK's request types.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// Default model identifiers per provider.
const (
	DefaultGeminiModel = "gemini-2.5-flash-lite"
	DefaultClaudeModel = "claude-sonnet-4-5"
	defaultMaxTokens   = 4096
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is a model's request to run a named tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult carries a tool's output back to the model.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Message is one entry in a conversation. Assistant messages may carry
// tool calls; user messages may carry tool results.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolParam describes one string argument of a tool.
type ToolParam struct {
	Name        string
	Description string
	Required    bool
}

// ToolSpec declares a tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

func (s ToolSpec) required() []string {
	var names []string
	for _, p := range s.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// ChatRequest is one model invocation within a chat turn.
type ChatRequest struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// ChatResponse is the complete result of one streamed invocation.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// Generator produces a single completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatModel streams a tool-capable chat completion. onText receives text
// fragments in order as they arrive; a non-nil return aborts the call.
type ChatModel interface {
	StreamChat(ctx context.Context, req ChatRequest, onText func(string) error) (ChatResponse, error)
}

// Model is implemented by every provider adapter.
type Model interface {
	Generator
	ChatModel
}

// New returns the adapter for cfg.Provider. An empty provider selects
// Gemini.
func New(ctx context.Context, cfg types.AIConfig) (Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", providerName(cfg.Provider))
	}
	switch cfg.Provider {
	case types.ProviderGemini, "":
		return NewGeminiModel(ctx, cfg)
	case types.ProviderClaude:
		return NewClaudeModel(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func providerName(p types.Provider) string {
	if p == "" {
		return string(types.ProviderGemini)
	}
	return string(p)
}

func maxTokens(cfg types.AIConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}
