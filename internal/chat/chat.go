// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat drives tool-augmented conversations about a single paper.
// Each turn is one producer goroutine writing an ordered event channel:
// model text is streamed as it arrives, tool dispatches announce
// themselves with a notice, and any fault ends the turn with one
// bracketed error fragment.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/llm"
	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/internal/tools"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// NotFoundReply is the whole reply for a turn about an unknown paper.
const NotFoundReply = "Sorry, I could not find this paper in the database."

const (
	defaultMaxIterations = 10
	defaultBuffer        = 16
)

// ErrTooManyIterations ends a turn whose model keeps calling tools.
var ErrTooManyIterations = errors.New("conversation exceeded maximum iterations")

// SystemPrompt tells the model how to choose between answering directly
// and calling a tool.
const SystemPrompt = `You are an expert AI research assistant helping the user understand one specific scientific paper. The paper's id, title and abstract are given at the start of the conversation.

How to answer:
1. Read the user's question.
2. If the abstract already answers it, answer directly without calling any tool.
3. If the question is about general knowledge (for example "What is a Transformer?" or "When was YOLO released?"), call the web_search tool.
4. If the question needs details that only the full text contains (for example the exact loss function or the numbers in a results table), call the read_full_paper tool with the paper's id.
5. After receiving tool output, combine it into a clear, professional answer in the same language the user wrote in.

Notes:
- Do NOT call read_full_paper for summaries or basic information; the abstract is enough for those.
- When read_full_paper returns, read its output carefully before answering.`

// State is the position of a turn in its lifecycle.
type State int

const (
	AwaitingModel State = iota
	ModelResponded
	ToolDispatch
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingModel:
		return "awaiting_model"
	case ModelResponded:
		return "model_responded"
	case ToolDispatch:
		return "tool_dispatch"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PaperLookup reads a paper by id, returning store.ErrNotFound when it
// does not exist.
type PaperLookup interface {
	Get(ctx context.Context, id string) (*types.Paper, error)
}

// Request is one user message about one paper.
type Request struct {
	PaperID string           `json:"paper_id"`
	Message string           `json:"message"`
	History []types.ChatTurn `json:"history"`
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	Papers        PaperLookup
	Model         llm.ChatModel
	Tools         *tools.Registry
	MaxIterations int
	Buffer        int
	Logger        *zap.Logger
}

// New returns an Orchestrator. Zero config values take their defaults.
func New(papers PaperLookup, model llm.ChatModel, registry *tools.Registry, cfg types.ChatConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	return &Orchestrator{
		Papers:        papers,
		Model:         model,
		Tools:         registry,
		MaxIterations: cfg.MaxIterations,
		Buffer:        cfg.Buffer,
		Logger:        logger,
	}
}

// Stream starts a turn and returns its events. The channel is closed when
// the turn ends. Cancelling ctx stops the producer even if nobody drains
// the channel.
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan types.StreamEvent {
	out := make(chan types.StreamEvent, o.Buffer)
	t := &turn{
		o:      o,
		ctx:    ctx,
		out:    out,
		logger: o.Logger.With(zap.String("turn_id", uuid.NewString()), zap.String("paper_id", req.PaperID)),
	}
	go func() {
		defer close(out)
		t.run(req)
	}()
	return out
}

type turn struct {
	o      *Orchestrator
	ctx    context.Context
	out    chan<- types.StreamEvent
	logger *zap.Logger
	state  State
}

func (t *turn) run(req Request) {
	defer t.enter(Done)
	t.logger.Info("chat turn started", zap.Int("history", len(req.History)))

	paper, err := t.o.Papers.Get(t.ctx, strings.TrimSpace(req.PaperID))
	if errors.Is(err, store.ErrNotFound) {
		t.logger.Info("chat about unknown paper")
		t.emit(types.StreamEvent{Kind: types.EventText, Text: NotFoundReply})
		return
	}
	if err != nil {
		t.fail(fmt.Errorf("loading paper: %w", err))
		return
	}

	msgs := Messages(paper, req.History, req.Message)
	var specs []llm.ToolSpec
	if t.o.Tools != nil {
		specs = t.o.Tools.Specs()
	}

	for i := 0; i < t.o.MaxIterations; i++ {
		t.enter(AwaitingModel)
		resp, err := t.o.Model.StreamChat(t.ctx, llm.ChatRequest{
			System:   SystemPrompt,
			Messages: msgs,
			Tools:    specs,
		}, t.text)
		if t.ctx.Err() != nil {
			t.logger.Info("chat turn abandoned", zap.Error(t.ctx.Err()))
			return
		}
		if err != nil {
			t.fail(err)
			return
		}

		t.enter(ModelResponded)
		if len(resp.ToolCalls) == 0 {
			t.logger.Info("chat turn completed", zap.Int("model_calls", i+1))
			return
		}

		t.enter(ToolDispatch)
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})
		results, err := t.dispatch(resp.ToolCalls)
		if err != nil {
			if t.ctx.Err() == nil {
				t.fail(err)
			}
			return
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, ToolResults: results})
	}

	t.fail(fmt.Errorf("%w (%d)", ErrTooManyIterations, t.o.MaxIterations))
}

// dispatch runs each tool call in order. Any failure ends the turn.
func (t *turn) dispatch(calls []llm.ToolCall) ([]llm.ToolResult, error) {
	results := make([]llm.ToolResult, 0, len(calls))
	for _, call := range calls {
		tool, err := t.o.lookup(call.Name)
		if err != nil {
			return nil, err
		}
		if !t.emit(types.StreamEvent{
			Kind: types.EventNotice,
			Text: tool.Notice(),
			Tool: &types.ToolEvent{ToolName: call.Name, Phase: types.ToolStart, Payload: argsPayload(call.Args)},
		}) {
			return nil, t.ctx.Err()
		}

		t.logger.Info("dispatching tool", zap.String("tool", call.Name), zap.String("call_id", call.ID))
		output, err := tool.Execute(t.ctx, call.Args)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		if !t.emit(types.StreamEvent{
			Kind: types.EventNotice,
			Tool: &types.ToolEvent{ToolName: call.Name, Phase: types.ToolEnd},
		}) {
			return nil, t.ctx.Err()
		}
		results = append(results, llm.ToolResult{CallID: call.ID, Name: call.Name, Content: output})
	}
	return results, nil
}

func (o *Orchestrator) lookup(name string) (tools.Tool, error) {
	if o.Tools == nil {
		return nil, fmt.Errorf("%w: %q", tools.ErrUnknownTool, name)
	}
	return o.Tools.Lookup(name)
}

// text forwards one model fragment. It returns the context error once the
// consumer is gone so the model call stops streaming.
func (t *turn) text(s string) error {
	if !t.emit(types.StreamEvent{Kind: types.EventText, Text: s}) {
		return t.ctx.Err()
	}
	return nil
}

func (t *turn) fail(err error) {
	t.logger.Error("chat turn failed", zap.Stringer("state", t.state), zap.Error(err))
	t.emit(types.StreamEvent{Kind: types.EventError, Text: ErrorFragment(err)})
}

func (t *turn) emit(ev types.StreamEvent) bool {
	select {
	case t.out <- ev:
		return true
	case <-t.ctx.Done():
		return false
	}
}

func (t *turn) enter(s State) {
	t.logger.Debug("chat state", zap.Stringer("from", t.state), zap.Stringer("to", s))
	t.state = s
}

// ErrorFragment renders the text that ends a failed turn.
func ErrorFragment(err error) string {
	return fmt.Sprintf("\n\n[System error: %v]", err)
}

// ContextMessage introduces the paper under discussion.
func ContextMessage(p *types.Paper) string {
	return fmt.Sprintf("--- CONTEXT: PAPER UNDER DISCUSSION ---\nID: %s\nTitle: %s\nAbstract: %s\n---------------------------------------",
		p.ID, p.Title, p.Summary)
}

// Messages builds the model conversation: the paper context, the user and
// assistant turns of history, then the new message. Turns with any other
// role are dropped.
func Messages(p *types.Paper, history []types.ChatTurn, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: ContextMessage(p)})
	for _, h := range history {
		switch h.Role {
		case types.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: h.Content})
		case types.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: h.Content})
		}
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}

func argsPayload(args map[string]any) string {
	for _, key := range []string{"query", "paper_id"} {
		if v, ok := args[key].(string); ok {
			return v
		}
	}
	return ""
}
