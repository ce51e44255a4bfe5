// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// ClaudeModel calls Anthropic's Messages API.
type ClaudeModel struct {
	client      anthropic.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewClaudeModel creates a Claude client for cfg.
func NewClaudeModel(cfg types.AIConfig) *ClaudeModel {
	model := cfg.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	return &ClaudeModel{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens(cfg),
	}
}

func (c *ClaudeModel) params(system string, msgs []anthropic.MessageParam, tools []ToolSpec) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Messages:    msgs,
		Tools:       claudeTools(tools),
		Temperature: anthropic.Float(float64(c.temperature)),
	}
	if system != "" {
		p.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return p
}

// Generate returns the concatenated text blocks of a single reply.
func (c *ClaudeModel) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))}
	resp, err := c.client.Messages.New(ctx, c.params("", msgs, nil))
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("Claude returned an empty response")
	}
	return text.String(), nil
}

// StreamChat streams text deltas to onText and returns the accumulated
// message's tool_use blocks as tool calls.
func (c *ClaudeModel) StreamChat(ctx context.Context, req ChatRequest, onText func(string) error) (ChatResponse, error) {
	msgs, err := claudeMessages(req.Messages)
	if err != nil {
		return ChatResponse{}, err
	}

	stream := c.client.Messages.NewStreaming(ctx, c.params(req.System, msgs, req.Tools))
	defer stream.Close()

	message := anthropic.Message{}
	var text strings.Builder
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return ChatResponse{}, fmt.Errorf("accumulating Claude stream: %w", err)
		}
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if td, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
			text.WriteString(td.Text)
			if err := onText(td.Text); err != nil {
				return ChatResponse{Text: text.String()}, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return ChatResponse{Text: text.String()}, fmt.Errorf("Claude stream: %w", err)
	}

	out := ChatResponse{Text: text.String()}
	for _, block := range message.Content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		call, err := fromClaudeToolUse(toolUse.ID, toolUse.Name, toolUse.Input)
		if err != nil {
			return out, err
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out, nil
}

func fromClaudeToolUse(id, name string, input json.RawMessage) (ToolCall, error) {
	args := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return ToolCall{}, fmt.Errorf("decoding %s tool input: %w", name, err)
		}
	}
	return ToolCall{ID: id, Name: name, Args: args}, nil
}

// claudeMessages maps neutral messages onto Anthropic message params.
// Tool results travel in user messages; tool calls in assistant messages.
func claudeMessages(msgs []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		var blocks []anthropic.ContentBlockParamUnion
		for _, r := range m.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(r.CallID, r.Content, r.IsError))
		}
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, call := range m.ToolCalls {
			blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Args, call.Name))
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func claudeTools(specs []ToolSpec) []anthropic.ToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		props := make(map[string]interface{}, len(s.Params))
		for _, p := range s.Params {
			props[p.Name] = map[string]interface{}{"type": "string", "description": p.Description}
		}
		tool := anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   s.required(),
			},
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}
