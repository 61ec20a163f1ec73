// Package llm is the typed client for the remote chat/embeddings model.
// It is stateless: callers own the message sequence and pass the full
// conversation on every call.
package llm

import "time"

// Role values for ConversationMessage.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ConversationMessage is the Go-side message type shared by chat and
// classification calls.
type ConversationMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"name,omitempty"`
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// TokenUsage aggregates token consumption for a single call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ChatResult is the Gateway's single typed return shape: either Text or
// ToolCalls is populated (never both empty and non-empty simultaneously
// in a well-formed response — the zero-text-and-zero-tool-calls case is
// handled by the caller as a retry).
type ChatResult struct {
	Text      string
	ToolCalls []ToolCall
	Usage     TokenUsage
}

// Config configures a Client.
type Config struct {
	APIKey      string
	BaseURL     string // e.g. https://api.openai.com/v1
	ChatModel   string
	ParserModel string // weaker/cheaper model for classification
	EmbedModel  string
	HTTPTimeout time.Duration // per-call timeout
	MaxRetries  int
}
