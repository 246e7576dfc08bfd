// Package rag composes the session store, the tool registry and the
// language model into single query turns.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/coursechat/internal/telemetry"
	"github.com/mohammad-safakhou/coursechat/models"
	"github.com/mohammad-safakhou/coursechat/provider"
	"github.com/mohammad-safakhou/coursechat/session"
	"github.com/mohammad-safakhou/coursechat/tools"
)

// ErrModelUnavailable wraps any transport, auth or rate-limit failure of
// the language model. The turn fails without touching session history.
var ErrModelUnavailable = errors.New("language model unavailable")

const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to search tools for course information.

Tool Usage Guidelines:
- Use search_course_content for questions about specific course materials or detailed educational content
- Use get_course_outline for questions about course structure, lesson lists, or course overview
- You get one tool call per question; choose the most appropriate tool directly
- Synthesize tool results into accurate, fact-based responses
- If a tool yields no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer from existing knowledge without tools
- Course content questions: search first, then answer
- Course outline questions: fetch the outline first, then answer
- Provide direct answers only; no reasoning process, tool explanations, or question-type analysis

All responses must be brief, educational, clear, and example-supported when examples aid understanding.
Provide only the direct answer to what was asked.`

// ChatModel is the slice of the LLM provider the orchestrator needs.
type ChatModel interface {
	ChatWithTools(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error)
}

// Answer is one completed query turn.
type Answer struct {
	Text      string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

// Orchestrator runs the tool-calling protocol: at most one tool
// round-trip per user turn, then a forced final answer. The bound caps
// external call fan-out per turn at one search and two model calls.
type Orchestrator struct {
	llm      ChatModel
	sessions session.Store
	registry *tools.Registry
	logger   *log.Logger
}

func NewOrchestrator(llm ChatModel, sessions session.Store, registry *tools.Registry, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{llm: llm, sessions: sessions, registry: registry, logger: logger}
}

// Answer resolves the session, runs the turn against the model and, only
// on success, records the exchange. Session mutation is all-or-nothing
// per turn: any failure leaves history exactly as it was.
func (o *Orchestrator) Answer(ctx context.Context, query, sessionID string) (Answer, error) {
	start := time.Now()
	if sessionID == "" {
		sessionID = o.sessions.Create()
	}

	system := buildSystemContent(o.sessions.History(sessionID))
	req := provider.ChatRequest{
		System:   system,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: query}},
		Tools:    o.registry.Definitions(),
	}

	resp, err := o.llm.ChatWithTools(ctx, req)
	if err != nil {
		telemetry.QueryTurns.WithLabelValues("model_error").Inc()
		return Answer{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var sources []models.Source
	answerText := resp.Content

	if resp.IsToolCall() {
		answerText, sources, err = o.runToolRound(ctx, system, req.Messages, resp)
		if err != nil {
			outcome := "tool_error"
			if errors.Is(err, ErrModelUnavailable) {
				outcome = "model_error"
			}
			telemetry.QueryTurns.WithLabelValues(outcome).Inc()
			return Answer{}, err
		}
	}

	o.sessions.AddExchange(sessionID, query, answerText)
	telemetry.QueryTurns.WithLabelValues("ok").Inc()
	telemetry.QueryDuration.Observe(time.Since(start).Seconds())
	return Answer{Text: answerText, Sources: sources, SessionID: sessionID}, nil
}

// runToolRound executes exactly one tool call and feeds the result back
// for the final answer. Additional calls the model requested alongside
// the first, or in its follow-up response, are rejected as no-ops: the
// model has to answer with what was already retrieved.
func (o *Orchestrator) runToolRound(ctx context.Context, system string, messages []provider.Message, resp *provider.ChatResponse) (string, []models.Source, error) {
	call := resp.ToolCalls[0]
	if extra := len(resp.ToolCalls) - 1; extra > 0 {
		o.logger.Printf("ignoring %d extra tool call(s) in one turn", extra)
	}

	result, err := o.registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		return "", nil, fmt.Errorf("executing tool %s: %w", call.Name, err)
	}

	followUp := provider.ChatRequest{
		System: system,
		Messages: append(append([]provider.Message{}, messages...),
			provider.Message{Role: provider.RoleAssistant, Content: resp.Content, ToolCalls: []provider.ToolCall{call}},
			provider.Message{Role: provider.RoleTool, Content: result.Text, ToolCallID: call.ID},
		),
		// No tool declarations: the single search round is spent.
	}
	final, err := o.llm.ChatWithTools(ctx, followUp)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if final.IsToolCall() {
		o.logger.Printf("rejecting tool call requested after the tool round; forcing final answer")
	}
	return final.Content, NormalizeSources(result.Sources), nil
}

func buildSystemContent(history []models.Exchange) string {
	if len(history) == 0 {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nPrevious conversation:\n")
	for _, ex := range history {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", ex.User, ex.Assistant)
	}
	return b.String()
}
