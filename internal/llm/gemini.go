// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// GeminiModel calls Google's Gemini API through google.golang.org/genai.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewGeminiModel creates a Gemini client for cfg.
func NewGeminiModel(ctx context.Context, cfg types.AIConfig) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiModel{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens(cfg),
	}, nil
}

func (g *GeminiModel) config(system string, tools []ToolSpec) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxTokens),
		Tools:           geminiTools(tools),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

// Generate returns the model's complete text reply to prompt.
func (g *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config("", nil))
	if err != nil {
		return "", fmt.Errorf("Gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Gemini returned an empty response")
	}
	return text, nil
}

// StreamChat streams one chat invocation, forwarding text parts to onText
// and collecting function calls.
func (g *GeminiModel) StreamChat(ctx context.Context, req ChatRequest, onText func(string) error) (ChatResponse, error) {
	var out ChatResponse
	var text strings.Builder

	stream := g.client.Models.GenerateContentStream(ctx, g.model, geminiContents(req.Messages), g.config(req.System, req.Tools))
	for resp, err := range stream {
		if err != nil {
			return out, fmt.Errorf("Gemini stream: %w", err)
		}
		calls, err := collectGeminiParts(resp, func(s string) error {
			text.WriteString(s)
			return onText(s)
		})
		out.ToolCalls = append(out.ToolCalls, calls...)
		if err != nil {
			return out, err
		}
	}
	out.Text = text.String()
	return out, nil
}

// collectGeminiParts walks the first candidate of resp. Text parts go to
// onText and function calls are returned. A callback error stops the walk.
func collectGeminiParts(resp *genai.GenerateContentResponse, onText func(string) error) ([]ToolCall, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	var calls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			calls = append(calls, fromGeminiCall(part.FunctionCall))
		case part.Text != "" && !part.Thought:
			if err := onText(part.Text); err != nil {
				return calls, err
			}
		}
	}
	return calls, nil
}

func fromGeminiCall(fc *genai.FunctionCall) ToolCall {
	id := fc.ID
	if id == "" {
		id = uuid.NewString()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return ToolCall{ID: id, Name: fc.Name, Args: args}
}

// geminiContents maps neutral messages onto Gemini contents. Assistant
// turns use the "model" role; tool results travel as function responses
// in a user turn.
func geminiContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var parts []*genai.Part
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, c := range m.ToolCalls {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   c.ID,
				Name: c.Name,
				Args: c.Args,
			}})
		}
		for _, r := range m.ToolResults {
			key := "output"
			if r.IsError {
				key = "error"
			}
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       r.CallID,
				Name:     r.Name,
				Response: map[string]any{key: r.Content},
			}})
		}
		if len(parts) == 0 {
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func geminiTools(specs []ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		props := make(map[string]*genai.Schema, len(s.Params))
		for _, p := range s.Params {
			props[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   s.required(),
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
