package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxRetries  = 3
)

// Client is a typed HTTP client for a hosted OpenAI-compatible chat and
// embeddings provider. It is stateless — see package doc.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client from Config, applying defaults.
func NewClient(cfg Config) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// wire types match the OpenAI-style chat completions contract.
type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function wireToolCallFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireChatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireChoice struct {
	Message wireMessage `json:"message"`
}

type wireChatResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends a conversation and optional tool set to the chat model.
// toolChoice follows the provider convention ("auto", "none", or "" for
// provider default).
func (c *Client) Chat(ctx context.Context, messages []ConversationMessage, tools []ToolDefinition, toolChoice string) (*ChatResult, error) {
	req := wireChatRequest{
		Model:       c.cfg.ChatModel,
		Messages:    toWireMessages(messages),
		Tools:       toWireTools(tools),
		ToolChoice:  toolChoice,
		Temperature: 0,
	}

	body, err := c.postJSONWithRetry(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}

	var resp wireChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("decode chat response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return &ChatResult{}, nil
	}

	msg := resp.Choices[0].Message
	calls := make([]ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		calls[i] = ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
	}

	return &ChatResult{
		Text:      msg.Content,
		ToolCalls: calls,
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func toWireMessages(messages []ConversationMessage) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.ToolName,
		}
		if len(m.ToolCalls) > 0 {
			wm.ToolCalls = make([]wireToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				wm.ToolCalls[j] = wireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: wireToolCallFunction{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
		}
		out[i] = wm
	}
	return out
}

func toWireTools(tools []ToolDefinition) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, len(tools))
	for i, t := range tools {
		out[i] = wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// postJSONWithRetry POSTs to the provider with bounded exponential backoff.
// Network failures and 5xx/429 responses are retried; 4xx responses surface
// immediately as ModelError.
func (c *Client) postJSONWithRetry(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.cfg.HTTPTimeout * time.Duration(c.cfg.MaxRetries)
	bo.InitialInterval = 200 * time.Millisecond
	boWithCtx := backoff.WithContext(bo, ctx)

	var result []byte
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		resp, doErr := c.doOnce(ctx, path, reqBody)
		if doErr == nil {
			result = resp
			return nil
		}
		var modelErr *ModelError
		if isModelError(doErr, &modelErr) {
			return backoff.Permanent(modelErr)
		}
		if attempt >= c.cfg.MaxRetries {
			return backoff.Permanent(&TransportError{Cause: doErr})
		}
		return doErr
	}, boWithCtx)

	if err != nil {
		if me, ok := err.(*ModelError); ok {
			return nil, me
		}
		if te, ok := err.(*TransportError); ok {
			return nil, te
		}
		return nil, &TransportError{Cause: err}
	}
	return result, nil
}

func isModelError(err error, target **ModelError) bool {
	if me, ok := err.(*ModelError); ok {
		*target = me
		return true
	}
	return false
}

func (c *Client) doOnce(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err // network error: retryable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == 429 || resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(respBody, 200))
	default:
		var eb wireErrorBody
		_ = json.Unmarshal(respBody, &eb)
		msg := eb.Error.Message
		if msg == "" {
			msg = string(truncate(respBody, 200))
		}
		return nil, &ModelError{StatusCode: resp.StatusCode, Message: msg}
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// Close is a no-op; Client owns no long-lived resources beyond the
// pooled *http.Client.
func (c *Client) Close() error { return nil }

type wireEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type wireEmbeddingItem struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type wireEmbeddingResponse struct {
	Data []wireEmbeddingItem `json:"data"`
}

// Embed returns one embedding vector per input string, in input order. Used
// by pkg/docindex to build and query the corpus's vector index.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	req := wireEmbeddingRequest{Model: c.cfg.EmbedModel, Input: inputs}

	body, err := c.postJSONWithRetry(ctx, "/embeddings", req)
	if err != nil {
		return nil, err
	}

	var resp wireEmbeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("decode embeddings response: %w", err)}
	}

	out := make([][]float64, len(inputs))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			continue
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// Classify runs a single-turn completion against the parser model — the
// cheaper model used for the Safety Gate's injection and answer-shape
// classifiers. It sends a chat-completions request of its own with a system
// and a user message, no tools, and the parser model in place of the chat
// model, and returns the first choice's text.
func (c *Client) Classify(ctx context.Context, systemPrompt, input string) (string, error) {
	req := wireChatRequest{
		Model: c.cfg.ParserModel,
		Messages: []wireMessage{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: input},
		},
		Temperature: 0,
	}

	body, err := c.postJSONWithRetry(ctx, "/chat/completions", req)
	if err != nil {
		return "", err
	}

	var resp wireChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &TransportError{Cause: fmt.Errorf("decode classify response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
