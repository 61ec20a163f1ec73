package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		ChatModel:   "gpt-test",
		ParserModel: "gpt-test-mini",
		EmbedModel:  "embed-test",
		HTTPTimeout: 2 * time.Second,
		MaxRetries:  3,
	})
	return c, srv
}

func TestChatReturnsTextAndUsage(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(wireChatResponse{
			Choices: []wireChoice{{Message: wireMessage{Role: RoleAssistant, Content: "the max altitude was 1448.0 meters"}}},
			Usage:   wireUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	})
	defer srv.Close()

	res, err := c.Chat(context.Background(), []ConversationMessage{{Role: RoleUser, Content: "what was max altitude?"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "the max altitude was 1448.0 meters", res.Text)
	assert.Equal(t, 15, res.Usage.TotalTokens)
}

func TestChatReturnsToolCalls(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireChatResponse{
			Choices: []wireChoice{{Message: wireMessage{
				Role: RoleAssistant,
				ToolCalls: []wireToolCall{
					{ID: "call_1", Type: "function", Function: wireToolCallFunction{Name: "queryData", Arguments: `{"sql":"SELECT MAX(Alt) FROM gps_0_data"}`}},
				},
			}}},
		})
	})
	defer srv.Close()

	tools := []ToolDefinition{{Name: "queryData", Description: "run sql", Parameters: map[string]any{"type": "object"}}}
	res, err := c.Chat(context.Background(), []ConversationMessage{{Role: RoleUser, Content: "max altitude?"}}, tools, "auto")
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "queryData", res.ToolCalls[0].Name)
}

func TestChatSurfacesModelErrorWithoutRetry(t *testing.T) {
	attempts := 0
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "invalid model"}})
	})
	defer srv.Close()

	_, err := c.Chat(context.Background(), []ConversationMessage{{Role: RoleUser, Content: "hi"}}, nil, "")
	require.Error(t, err)
	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, http.StatusBadRequest, modelErr.StatusCode)
	assert.Equal(t, 1, attempts, "4xx model errors must not be retried")
}

func TestChatRetriesTransportFailureThenSucceeds(t *testing.T) {
	attempts := 0
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(wireChatResponse{
			Choices: []wireChoice{{Message: wireMessage{Role: RoleAssistant, Content: "ok"}}},
		})
	})
	defer srv.Close()

	res, err := c.Chat(context.Background(), []ConversationMessage{{Role: RoleUser, Content: "hi"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, 3, attempts)
}

func TestChatExhaustsRetriesAndSurfacesTransportError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := c.Chat(context.Background(), []ConversationMessage{{Role: RoleUser, Content: "hi"}}, nil, "")
	require.Error(t, err)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestEmbedPreservesInputOrder(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireEmbeddingResponse{
			Data: []wireEmbeddingItem{
				{Index: 1, Embedding: []float64{0.2, 0.3}},
				{Index: 0, Embedding: []float64{0.1, 0.1}},
			},
		})
	})
	defer srv.Close()

	vecs, err := c.Embed(context.Background(), []string{"doc a", "doc b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float64{0.1, 0.1}, vecs[0])
	assert.Equal(t, []float64{0.2, 0.3}, vecs[1])
}

func TestClassifyUsesParserModel(t *testing.T) {
	var gotModel string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req wireChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_ = json.NewEncoder(w).Encode(wireChatResponse{
			Choices: []wireChoice{{Message: wireMessage{Role: RoleAssistant, Content: "ANSWER"}}},
		})
	})
	defer srv.Close()

	out, err := c.Classify(context.Background(), "classify the input", "some text")
	require.NoError(t, err)
	assert.Equal(t, "ANSWER", out)
	assert.Equal(t, "gpt-test-mini", gotModel)
}
