package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uavlogviewer/chatbot/pkg/llm"
	"github.com/uavlogviewer/chatbot/pkg/safety"
	"github.com/uavlogviewer/chatbot/pkg/session"
	"github.com/uavlogviewer/chatbot/pkg/tools"
	"github.com/uavlogviewer/chatbot/pkg/validator"
)

// Controller wires the Safety Gate, LLM Gateway, Tool Runtime, Query
// Validator, and Doc Index into a single per-turn state machine. It holds
// no per-turn state itself; everything mutable lives in a turn's local run.
type Controller struct {
	gate      *safety.Gate
	chat      ChatClient
	docs      DocSearcher
	validator *validator.Validator
}

// New creates a Controller over its injected capabilities.
func New(gate *safety.Gate, chat ChatClient, docs DocSearcher, v *validator.Validator) *Controller {
	return &Controller{gate: gate, chat: chat, docs: docs, validator: v}
}

// Handle runs one full turn against sess for userMessage and returns the
// terminal outcome. It is sequential end to end: no concurrent LLM calls or
// tool executions within a turn.
func (c *Controller) Handle(ctx context.Context, sess *session.Session, userMessage string) (*Result, error) {
	verdict, err := c.gate.CheckInjection(ctx, userMessage)
	if err != nil {
		return nil, fmt.Errorf("injection check: %w", err)
	}
	if verdict.Suspicious {
		// The refused user message is never appended to history.
		return &Result{Text: refusalText, Refused: true}, nil
	}

	messages := c.buildInitialMessages(ctx, sess, userMessage)

	run := &turnRun{
		ctrl:     c,
		sess:     sess,
		messages: messages,
	}
	result, err := run.loop(ctx)
	if err != nil {
		return nil, err
	}

	sess.AppendTurn(session.RoleUser, userMessage)
	sess.AppendTurn(session.RoleAssistant, result.Text)

	return result, nil
}

func (c *Controller) buildInitialMessages(ctx context.Context, sess *session.Session, userMessage string) []llm.ConversationMessage {
	system := buildSystemPrompt(sess.TablesAvailable)

	if c.docs != nil {
		if hits, err := c.docs.Search(ctx, userMessage, 0); err == nil {
			if addendum := buildDocContext(hits); addendum != "" {
				system = system + "\n\n" + addendum
			}
		}
	}

	messages := []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: system},
	}

	if hist := buildHistoryContext(sess.History()); hist != "" {
		messages = append(messages, llm.ConversationMessage{Role: llm.RoleSystem, Content: "Prior conversation in this session:\n" + hist})
	}

	messages = append(messages, llm.ConversationMessage{Role: llm.RoleUser, Content: userMessage})
	return messages
}

// turnRun holds the mutable state of a single in-flight turn: the growing
// message sequence and the counters bounding its three loops (tool hops,
// query corrections, answer corrections).
type turnRun struct {
	ctrl     *Controller
	sess     *session.Session
	messages []llm.ConversationMessage

	toolHops       int
	queryAttempts  int
	answerAttempts int
}

// loop implements LLM_CALL / RUN_TOOLS / VALIDATE_QUERIES / CLASSIFY_ANSWER /
// CORRECTION_PROMPT.
func (r *turnRun) loop(ctx context.Context) (*Result, error) {
	for {
		text, err := r.callLLM(ctx)
		if err != nil {
			return nil, err
		}
		if text == nil {
			// callLLM hit the tool-hop bound; emit the diagnostic answer.
			return &Result{
				Text:          diagnosticAnswer,
				ToolHopsUsed:  r.toolHops,
				QueryAttempts: r.queryAttempts,
			}, nil
		}

		report := r.ctrl.validator.Validate(ctx, r.sess.Store(), *text)
		if report.QueriesWithDiscrepancies > 0 && r.queryAttempts < kq {
			r.queryAttempts++
			r.messages = append(r.messages,
				llm.ConversationMessage{Role: llm.RoleAssistant, Content: *text},
				llm.ConversationMessage{Role: llm.RoleUser, Content: buildQueryCorrectionPrompt(*text, report)},
			)
			continue
		}

		av, err := r.ctrl.gate.ClassifyAnswer(ctx, *text)
		if err != nil {
			return nil, fmt.Errorf("classify answer: %w", err)
		}

		if av.IsTerminal() {
			return &Result{
				Text:            *text,
				Shape:           av.Shape,
				QueryValidation: report,
				ToolHopsUsed:    r.toolHops,
				QueryAttempts:   r.queryAttempts,
				AnswerAttempts:  r.answerAttempts,
			}, nil
		}

		if r.answerAttempts < ka {
			r.answerAttempts++
			r.messages = append(r.messages,
				llm.ConversationMessage{Role: llm.RoleAssistant, Content: *text},
				llm.ConversationMessage{Role: llm.RoleUser, Content: buildAnswerCorrectionPrompt(*text, av)},
			)
			continue
		}

		return &Result{
			Text:            *text,
			Shape:           av.Shape,
			QueryValidation: report,
			BestEffort:      true,
			ToolHopsUsed:    r.toolHops,
			QueryAttempts:   r.queryAttempts,
			AnswerAttempts:  r.answerAttempts,
		}, nil
	}
}

// callLLM runs the RUN_TOOLS sub-loop: it calls the model, dispatches any
// tool calls and feeds back their results, repeating until the model
// returns text or the tool-hop bound H is exceeded. A nil *string with a
// nil error means the bound was exceeded and the caller should emit the
// diagnostic answer.
func (r *turnRun) callLLM(ctx context.Context) (*string, error) {
	defs := tools.Definitions()

	for {
		res, err := r.callOnceWithEmptyRetry(ctx, defs)
		if err != nil {
			return nil, err
		}

		if len(res.ToolCalls) == 0 {
			text := res.Text
			r.messages = append(r.messages, llm.ConversationMessage{Role: llm.RoleAssistant, Content: text})
			return &text, nil
		}

		if r.toolHops >= h {
			return nil, nil
		}
		r.toolHops++

		r.messages = append(r.messages, llm.ConversationMessage{Role: llm.RoleAssistant, ToolCalls: res.ToolCalls})
		for _, call := range res.ToolCalls {
			result := tools.Dispatch(ctx, r.sess.Store(), call.Name, call.Arguments)
			body, err := json.Marshal(result)
			if err != nil {
				body = []byte(fmt.Sprintf(`{"ok":false,"message":%q}`, err.Error()))
			}
			r.messages = append(r.messages, llm.ConversationMessage{
				Role:       llm.RoleTool,
				Content:    string(body),
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
}

// callOnceWithEmptyRetry calls the model once and retries exactly once if
// the response carries neither text nor tool calls, a malformed response
// treated the same as a transient transport failure. A second empty
// response is surfaced as a TransportError rather than silently emitted
// as an empty answer.
func (r *turnRun) callOnceWithEmptyRetry(ctx context.Context, defs []llm.ToolDefinition) (*llm.ChatResult, error) {
	res, err := r.ctrl.chat.Chat(ctx, r.messages, defs, "auto")
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	if res.Text == "" && len(res.ToolCalls) == 0 {
		res, err = r.ctrl.chat.Chat(ctx, r.messages, defs, "auto")
		if err != nil {
			return nil, fmt.Errorf("chat: %w", err)
		}
		if res.Text == "" && len(res.ToolCalls) == 0 {
			return nil, &llm.TransportError{Cause: fmt.Errorf("model returned empty text and no tool calls twice in a row")}
		}
	}

	return res, nil
}
