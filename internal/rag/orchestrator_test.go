package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammad-safakhou/coursechat/internal/telemetry"
	"github.com/mohammad-safakhou/coursechat/models"
	"github.com/mohammad-safakhou/coursechat/provider"
	"github.com/mohammad-safakhou/coursechat/session/inmemory"
	"github.com/mohammad-safakhou/coursechat/tools"
)

// scriptedModel replays canned responses and records every request.
type scriptedModel struct {
	responses []*provider.ChatResponse
	err       error
	requests  []provider.ChatRequest
}

func (m *scriptedModel) ChatWithTools(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	i := len(m.requests) - 1
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

// countingTool records executions and serves a fixed result.
type countingTool struct {
	name   string
	result tools.Result
	calls  int
}

func (c *countingTool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{Name: c.name, InputSchema: map[string]any{"type": "object"}}
}

func (c *countingTool) Execute(context.Context, json.RawMessage) (tools.Result, error) {
	c.calls++
	return c.result, nil
}

func newTestOrchestrator(t *testing.T, model ChatModel, ts ...tools.Tool) *Orchestrator {
	t.Helper()
	registry, err := tools.NewRegistry(ts...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewOrchestrator(model, inmemory.NewStore(2), registry, log.New(io.Discard, "", 0))
}

func toolCallResponse(name, id string) *provider.ChatResponse {
	return &provider.ChatResponse{ToolCalls: []provider.ToolCall{
		{ID: id, Name: name, Arguments: json.RawMessage(`{"query":"q"}`)},
	}}
}

func TestAnswerWithoutTools(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []*provider.ChatResponse{{Content: "direct answer"}}}
	tool := &countingTool{name: "search_course_content"}
	orch := newTestOrchestrator(t, model, tool)

	ans, err := orch.Answer(context.Background(), "what is 2+2?", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "direct answer" {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	if ans.SessionID == "" {
		t.Fatal("empty session id must be replaced with a fresh one")
	}
	if len(ans.Sources) != 0 {
		t.Fatalf("no tool ran, no sources expected: %v", ans.Sources)
	}
	if tool.calls != 0 {
		t.Fatalf("tool must not run, got %d calls", tool.calls)
	}
	if len(model.requests) != 1 {
		t.Fatalf("expected a single model call, got %d", len(model.requests))
	}
	if len(model.requests[0].Tools) == 0 {
		t.Fatal("first model call must declare the tools")
	}
}

func TestAnswerSingleToolRound(t *testing.T) {
	t.Parallel()

	tool := &countingTool{
		name: "search_course_content",
		result: tools.Result{
			Text:    "[Course X - Lesson 1]\nchunk text",
			Sources: []any{models.Source{Text: "Course X - Lesson 1", Link: "https://example.com/x/1"}},
		},
	}
	model := &scriptedModel{responses: []*provider.ChatResponse{
		toolCallResponse(tool.name, "call-1"),
		{Content: "grounded answer"},
	}}
	orch := newTestOrchestrator(t, model, tool)

	ans, err := orch.Answer(context.Background(), "tell me about lesson 1", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "grounded answer" {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	if tool.calls != 1 {
		t.Fatalf("expected exactly one tool execution, got %d", tool.calls)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Link != "https://example.com/x/1" {
		t.Fatalf("sources not threaded through: %+v", ans.Sources)
	}

	if len(model.requests) != 2 {
		t.Fatalf("expected two model calls, got %d", len(model.requests))
	}
	followUp := model.requests[1]
	if len(followUp.Tools) != 0 {
		t.Fatal("follow-up call must not declare tools")
	}
	last := followUp.Messages[len(followUp.Messages)-1]
	if last.Role != provider.RoleTool || last.ToolCallID != "call-1" {
		t.Fatalf("tool result message malformed: %+v", last)
	}
	if last.Content != tool.result.Text {
		t.Fatalf("tool output not forwarded, got %q", last.Content)
	}
}

func TestAnswerIgnoresExtraToolCalls(t *testing.T) {
	t.Parallel()

	tool := &countingTool{name: "search_course_content", result: tools.Result{Text: "found"}}
	first := &provider.ChatResponse{ToolCalls: []provider.ToolCall{
		{ID: "c1", Name: tool.name, Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: tool.name, Arguments: json.RawMessage(`{}`)},
	}}
	// The model asks for another tool even in its follow-up; that request
	// is dropped and its text stands as the final answer.
	second := &provider.ChatResponse{
		Content:   "answer despite asking again",
		ToolCalls: []provider.ToolCall{{ID: "c3", Name: tool.name}},
	}
	model := &scriptedModel{responses: []*provider.ChatResponse{first, second}}
	orch := newTestOrchestrator(t, model, tool)

	ans, err := orch.Answer(context.Background(), "query", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if tool.calls != 1 {
		t.Fatalf("only the first requested call may run, got %d executions", tool.calls)
	}
	if ans.Text != "answer despite asking again" {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	if len(model.requests) != 2 {
		t.Fatalf("expected exactly two model calls, got %d", len(model.requests))
	}
}

func TestAnswerModelFailureLeavesSessionUntouched(t *testing.T) {
	t.Parallel()

	sessions := inmemory.NewStore(2)
	id := sessions.Create()
	sessions.AddExchange(id, "earlier question", "earlier answer")
	before := sessions.History(id)

	registry, err := tools.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	model := &scriptedModel{err: errors.New("upstream 503")}
	orch := NewOrchestrator(model, sessions, registry, log.New(io.Discard, "", 0))

	_, err = orch.Answer(context.Background(), "new question", id)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if after := sessions.History(id); !reflect.DeepEqual(before, after) {
		t.Fatalf("failed turn must not touch history: before %+v, after %+v", before, after)
	}
}

func TestAnswerToolRoundModelFailure(t *testing.T) {
	t.Parallel()

	tool := &countingTool{name: "search_course_content", result: tools.Result{Text: "found"}}
	model := &scriptedModel{responses: []*provider.ChatResponse{toolCallResponse(tool.name, "c1")}}
	sessions := inmemory.NewStore(2)
	id := sessions.Create()
	registry, err := tools.NewRegistry(tool)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	orch := NewOrchestrator(&failSecondCall{inner: model}, sessions, registry, log.New(io.Discard, "", 0))

	_, err = orch.Answer(context.Background(), "query", id)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if h := sessions.History(id); len(h) != 0 {
		t.Fatalf("failed follow-up must not record the exchange, got %+v", h)
	}
}

// failSecondCall passes the first model call through and fails the rest.
type failSecondCall struct {
	inner *scriptedModel
	calls int
}

func (f *failSecondCall) ChatWithTools(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("connection reset")
	}
	return f.inner.ChatWithTools(ctx, req)
}

// failingTool always errors, standing in for an unreachable index.
type failingTool struct {
	name string
}

func (f *failingTool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{Name: f.name, InputSchema: map[string]any{"type": "object"}}
}

func (f *failingTool) Execute(context.Context, json.RawMessage) (tools.Result, error) {
	return tools.Result{}, errors.New("index unreachable")
}

func TestAnswerToolFailureCountsAsToolError(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(telemetry.QueryTurns.WithLabelValues("tool_error"))

	tool := &failingTool{name: "search_course_content"}
	model := &scriptedModel{responses: []*provider.ChatResponse{toolCallResponse(tool.name, "c1")}}
	sessions := inmemory.NewStore(2)
	id := sessions.Create()
	registry, err := tools.NewRegistry(tool)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	orch := NewOrchestrator(model, sessions, registry, log.New(io.Discard, "", 0))

	_, err = orch.Answer(context.Background(), "query", id)
	if err == nil {
		t.Fatal("expected the turn to fail")
	}
	if errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("tool failure must not read as a model failure: %v", err)
	}
	if h := sessions.History(id); len(h) != 0 {
		t.Fatalf("failed turn must not record the exchange, got %+v", h)
	}

	after := testutil.ToFloat64(telemetry.QueryTurns.WithLabelValues("tool_error"))
	if after-before != 1 {
		t.Fatalf("expected one tool_error turn, counter moved by %v", after-before)
	}
}

func TestAnswerUnknownToolNameStillAnswers(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []*provider.ChatResponse{
		toolCallResponse("imaginary_tool", "c1"),
		{Content: "recovered"},
	}}
	orch := newTestOrchestrator(t, model, &countingTool{name: "search_course_content"})

	ans, err := orch.Answer(context.Background(), "query", "")
	if err != nil {
		t.Fatalf("hallucinated tool name must not abort the turn: %v", err)
	}
	if ans.Text != "recovered" {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	followUp := model.requests[1].Messages
	if got := followUp[len(followUp)-1].Content; got != "Tool 'imaginary_tool' not found" {
		t.Fatalf("model should see the not-found payload, got %q", got)
	}
}

func TestAnswerThreadsHistoryIntoSystemContent(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []*provider.ChatResponse{{Content: "second answer"}}}
	sessions := inmemory.NewStore(2)
	id := sessions.Create()
	sessions.AddExchange(id, "first question", "first answer")

	registry, err := tools.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	orch := NewOrchestrator(model, sessions, registry, log.New(io.Discard, "", 0))

	if _, err := orch.Answer(context.Background(), "second question", id); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	system := model.requests[0].System
	if !strings.Contains(system, "Previous conversation:") ||
		!strings.Contains(system, "User: first question") ||
		!strings.Contains(system, "Assistant: first answer") {
		t.Fatalf("history missing from system content:\n%s", system)
	}

	h := sessions.History(id)
	if len(h) != 2 || h[1].User != "second question" || h[1].Assistant != "second answer" {
		t.Fatalf("successful turn must append the exchange, got %+v", h)
	}
}

func TestNormalizeSources(t *testing.T) {
	t.Parallel()

	raw := []any{
		models.Source{Text: "Course A - Lesson 1", Link: "https://example.com/a/1"},
		"plain label",
		map[string]any{"text": "Course B", "link": "https://example.com/b"},
		map[string]any{"link": "https://example.com/orphan"},
		42,
	}
	got := NormalizeSources(raw)
	want := []models.Source{
		{Text: "Course A - Lesson 1", Link: "https://example.com/a/1"},
		{Text: "plain label"},
		{Text: "Course B", Link: "https://example.com/b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if NormalizeSources(nil) != nil {
		t.Fatal("empty input must normalize to nil")
	}
	if NormalizeSources([]any{42}) != nil {
		t.Fatal("all-dropped input must normalize to nil")
	}
}
