package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mohammad-safakhou/coursechat/config"
)

// Message roles on the chat wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolDefinition declares one model-callable function. The schema is a
// plain JSON-schema object so the set of callable operations stays a
// closed, enumerable table.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is the model's request to execute a declared tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one turn on the conversation wire. Assistant messages may
// carry tool calls; tool messages carry the result for one ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ChatRequest is one model invocation: system instructions, the running
// message list and the declared tool set.
type ChatRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// ChatResponse is either a final answer (Content, no ToolCalls) or a
// request to execute tools.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// IsToolCall reports whether the model asked for tool execution instead
// of answering.
func (r *ChatResponse) IsToolCall() bool { return len(r.ToolCalls) > 0 }

// Provider is the interface all LLM implementations must satisfy.
type Provider interface {
	ChatWithTools(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM provider from configuration. Only the
// OpenAI-compatible wire format is implemented; compatible gateways are
// selected via llm.base_url.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm.api_key not set")
	}
	return NewOpenAIProvider(cfg), nil
}
