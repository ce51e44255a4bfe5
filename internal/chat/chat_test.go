// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/arxiv-agent/internal/llm"
	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/internal/tools"
	"github.com/pdiddy/arxiv-agent/internal/websearch"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose stats worker starts at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type paperMap map[string]*types.Paper

func (m paperMap) Get(_ context.Context, id string) (*types.Paper, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

var papers = paperMap{
	"1706.03762": {ID: "1706.03762", Title: "Attention Is All You Need", Summary: "We propose the Transformer."},
}

// step is one scripted model invocation.
type step struct {
	fragments []string
	calls     []llm.ToolCall
	err       error
}

// scriptedModel replays steps in order and records every request. Once
// the script runs out it repeats the last step.
type scriptedModel struct {
	mu       sync.Mutex
	steps    []step
	requests []llm.ChatRequest
}

func (m *scriptedModel) StreamChat(_ context.Context, req llm.ChatRequest, onText func(string) error) (llm.ChatResponse, error) {
	m.mu.Lock()
	idx := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	s := m.steps[idx]

	var text strings.Builder
	for _, f := range s.fragments {
		text.WriteString(f)
		if err := onText(f); err != nil {
			return llm.ChatResponse{}, err
		}
	}
	if s.err != nil {
		return llm.ChatResponse{}, s.err
	}
	return llm.ChatResponse{Text: text.String(), ToolCalls: s.calls}, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type stubSearcher struct{ err error }

func (s stubSearcher) Search(context.Context, string) ([]websearch.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []websearch.Result{{Title: "Transformer", URL: "https://en.wikipedia.org/wiki/Transformer"}}, nil
}

type stubReader struct{}

func (stubReader) GetDeepAnalysis(_ context.Context, id string) string { return "deep analysis of " + id }

func newOrchestrator(model llm.ChatModel, searchErr error) *Orchestrator {
	registry := tools.NewRegistry(
		tools.WebSearch{Searcher: stubSearcher{err: searchErr}},
		tools.DeepRead{Reader: stubReader{}},
	)
	return New(papers, model, registry, types.ChatConfig{}, nil)
}

func collect(ch <-chan types.StreamEvent) []types.StreamEvent {
	var events []types.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func render(events []types.StreamEvent) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.Text)
	}
	return b.String()
}

func startNotices(events []types.StreamEvent) []types.StreamEvent {
	var out []types.StreamEvent
	for _, ev := range events {
		if ev.Kind == types.EventNotice && ev.Tool != nil && ev.Tool.Phase == types.ToolStart {
			out = append(out, ev)
		}
	}
	return out
}

func TestStream_UnknownPaper(t *testing.T) {
	model := &scriptedModel{steps: []step{{fragments: []string{"never"}}}}
	events := collect(newOrchestrator(model, nil).Stream(context.Background(), Request{PaperID: "nope", Message: "hi"}))

	require.Len(t, events, 1)
	assert.Equal(t, types.StreamEvent{Kind: types.EventText, Text: NotFoundReply}, events[0])
	assert.Zero(t, model.calls())
}

func TestStream_DirectAnswer(t *testing.T) {
	model := &scriptedModel{steps: []step{{fragments: []string{"The paper ", "proposes ", "the Transformer."}}}}
	events := collect(newOrchestrator(model, nil).Stream(context.Background(), Request{
		PaperID: "1706.03762",
		Message: "What is proposed?",
	}))

	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, types.EventText, ev.Kind)
	}
	assert.Equal(t, "The paper proposes the Transformer.", render(events))

	req := model.requests[0]
	assert.Equal(t, SystemPrompt, req.System)
	require.Len(t, req.Tools, 2)
	assert.Contains(t, req.Messages[0].Content, "Title: Attention Is All You Need")
	assert.Equal(t, "What is proposed?", req.Messages[len(req.Messages)-1].Content)
}

func TestStream_ToolCallThenAnswer(t *testing.T) {
	model := &scriptedModel{steps: []step{
		{calls: []llm.ToolCall{{ID: "c1", Name: "web_search", Args: map[string]any{"query": "transformer"}}}},
		{fragments: []string{"A Transformer ", "is an architecture."}},
	}}
	events := collect(newOrchestrator(model, nil).Stream(context.Background(), Request{
		PaperID: "1706.03762",
		Message: "What is a Transformer?",
	}))

	notices := startNotices(events)
	require.Len(t, notices, 1)
	assert.Equal(t, tools.WebSearchNotice, notices[0].Text)
	assert.Equal(t, "transformer", notices[0].Tool.Payload)
	assert.Equal(t, tools.WebSearchNotice+"A Transformer is an architecture.", render(events))

	// The notice precedes every answer fragment.
	assert.Equal(t, types.EventNotice, events[0].Kind)

	require.Equal(t, 2, model.calls())
	second := model.requests[1].Messages
	last := second[len(second)-1]
	require.Len(t, last.ToolResults, 1)
	assert.Equal(t, "c1", last.ToolResults[0].CallID)
	assert.Contains(t, last.ToolResults[0].Content, "1. Transformer")
	assert.Equal(t, llm.RoleAssistant, second[len(second)-2].Role)
}

func TestStream_DeepReadTool(t *testing.T) {
	model := &scriptedModel{steps: []step{
		{calls: []llm.ToolCall{{ID: "c1", Name: "read_full_paper", Args: map[string]any{"paper_id": "1706.03762"}}}},
		{fragments: []string{"Done."}},
	}}
	events := collect(newOrchestrator(model, nil).Stream(context.Background(), Request{PaperID: "1706.03762", Message: "Loss?"}))

	assert.Equal(t, tools.DeepReadNotice+"Done.", render(events))
	msgs := model.requests[1].Messages
	assert.Equal(t, "deep analysis of 1706.03762", msgs[len(msgs)-1].ToolResults[0].Content)
}

func TestStream_ModelErrorEndsWithFragment(t *testing.T) {
	model := &scriptedModel{steps: []step{{fragments: []string{"partial "}, err: errors.New("quota exceeded")}}}
	events := collect(newOrchestrator(model, nil).Stream(context.Background(), Request{PaperID: "1706.03762", Message: "hi"}))

	require.Len(t, events, 2)
	assert.Equal(t, "partial ", events[0].Text)
	assert.Equal(t, types.EventError, events[1].Kind)
	assert.Equal(t, "\n\n[System error: quota exceeded]", events[1].Text)
}

func TestStream_ToolErrorEndsWithFragment(t *testing.T) {
	model := &scriptedModel{steps: []step{
		{calls: []llm.ToolCall{{ID: "c1", Name: "web_search", Args: map[string]any{"query": "x"}}}},
	}}
	events := collect(newOrchestrator(model, errors.New("blocked")).Stream(context.Background(), Request{PaperID: "1706.03762", Message: "hi"}))

	last := events[len(events)-1]
	assert.Equal(t, types.EventError, last.Kind)
	assert.Equal(t, "\n\n[System error: tool web_search: blocked]", last.Text)
	assert.Equal(t, 1, model.calls())
}

func TestStream_UnknownToolIsError(t *testing.T) {
	model := &scriptedModel{steps: []step{
		{calls: []llm.ToolCall{{ID: "c1", Name: "rm_rf"}}},
	}}
	events := collect(newOrchestrator(model, nil).Stream(context.Background(), Request{PaperID: "1706.03762", Message: "hi"}))

	require.Len(t, events, 1)
	assert.Equal(t, types.EventError, events[0].Kind)
	assert.Contains(t, events[0].Text, "unknown tool")
}

func TestStream_MissingArgumentIsError(t *testing.T) {
	model := &scriptedModel{steps: []step{
		{calls: []llm.ToolCall{{ID: "c1", Name: "read_full_paper", Args: map[string]any{}}}},
	}}
	events := collect(newOrchestrator(model, nil).Stream(context.Background(), Request{PaperID: "1706.03762", Message: "hi"}))

	last := events[len(events)-1]
	assert.Equal(t, types.EventError, last.Kind)
	assert.Contains(t, last.Text, `missing required argument "paper_id"`)
}

func TestStream_IterationCap(t *testing.T) {
	model := &scriptedModel{steps: []step{
		{calls: []llm.ToolCall{{ID: "loop", Name: "web_search", Args: map[string]any{"query": "again"}}}},
	}}
	o := newOrchestrator(model, nil)
	o.MaxIterations = 3

	events := collect(o.Stream(context.Background(), Request{PaperID: "1706.03762", Message: "hi"}))

	assert.Equal(t, 3, model.calls())
	assert.Len(t, startNotices(events), 3)
	last := events[len(events)-1]
	assert.Equal(t, types.EventError, last.Kind)
	assert.Contains(t, last.Text, "maximum iterations (3)")
}

func TestStream_AbandonedConsumerDoesNotLeak(t *testing.T) {
	fragments := make([]string, 100)
	for i := range fragments {
		fragments[i] = "x"
	}
	model := &scriptedModel{steps: []step{{fragments: fragments}}}
	o := newOrchestrator(model, nil)
	o.Buffer = 1

	ctx, cancel := context.WithCancel(context.Background())
	ch := o.Stream(ctx, Request{PaperID: "1706.03762", Message: "hi"})
	<-ch
	cancel()

	closed := make(chan struct{})
	go func() {
		for range ch {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not stop after cancellation")
	}
}

func TestMessages_MapsHistory(t *testing.T) {
	history := []types.ChatTurn{
		{Role: types.RoleUser, Content: "first question"},
		{Role: types.RoleAssistant, Content: "first answer"},
		{Role: "system", Content: "ignored"},
	}
	msgs := Messages(papers["1706.03762"], history, "second question")

	require.Len(t, msgs, 4)
	assert.Equal(t, ContextMessage(papers["1706.03762"]), msgs[0].Content)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "second question"}, msgs[3])
}

func TestContextMessage(t *testing.T) {
	msg := ContextMessage(papers["1706.03762"])
	assert.Contains(t, msg, "ID: 1706.03762")
	assert.Contains(t, msg, "Abstract: We propose the Transformer.")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_model", AwaitingModel.String())
	assert.Equal(t, "tool_dispatch", ToolDispatch.String())
	assert.Equal(t, "state(9)", State(9).String())
}
