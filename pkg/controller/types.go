// Package controller is the Agent Controller (C9): the
// per-turn state machine that sequences injection checking, prompt
// composition, tool-calling, numeric self-validation, and answer-shape
// classification around a single synchronous call to the LLM Gateway.
package controller

import (
	"context"

	"github.com/uavlogviewer/chatbot/pkg/docindex"
	"github.com/uavlogviewer/chatbot/pkg/llm"
	"github.com/uavlogviewer/chatbot/pkg/safety"
	"github.com/uavlogviewer/chatbot/pkg/validator"
)

// Correction budgets and tool-hop bound.
const (
	kq = 1 // query-discrepancy correction attempts
	ka = 2 // answer-shape correction attempts
	h  = 4 // tool-call rounds per turn
)

// refusalText is the fixed body emitted when the injection detector flags a
// message as suspicious. It never varies with the detector's
// stated reason, so a prompt cannot steer its own refusal wording.
const refusalText = "I can't act on that message. I can only answer questions about the ingested flight log using read-only queries."

// diagnosticAnswer is emitted when a turn exceeds the tool-hop bound H.
const diagnosticAnswer = "ANSWER: I was unable to reach a conclusive answer within the allotted number of tool calls. Please narrow the question or ask about a more specific field.\nDATA SOURCE: none (tool-hop bound exceeded)"

// ChatClient is the subset of pkg/llm.Client the controller depends on.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.ConversationMessage, tools []llm.ToolDefinition, toolChoice string) (*llm.ChatResult, error)
}

// DocSearcher is the subset of pkg/docindex.Index the controller depends on.
type DocSearcher interface {
	Search(ctx context.Context, query string, k int) ([]docindex.SearchResult, error)
}

// Result is the outcome of one turn: EMIT, EMIT_BEST_EFFORT, or REFUSE.
type Result struct {
	Text            string             `json:"text"`
	Shape           safety.AnswerShape `json:"shape,omitempty"`
	QueryValidation validator.Report   `json:"queryValidation"`
	Refused         bool               `json:"refused"`
	BestEffort      bool               `json:"bestEffort"`
	ToolHopsUsed    int                `json:"toolHopsUsed"`
	QueryAttempts   int                `json:"queryCorrectionAttempts"`
	AnswerAttempts  int                `json:"answerCorrectionAttempts"`
}
