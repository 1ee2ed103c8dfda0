package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishra/smartinfo/internal/testutil"
	"github.com/tanishra/smartinfo/model"
)

const toolUseMessage = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [
    {"type": "text", "text": "Checking."},
    {"type": "tool_use", "id": "toolu_1", "name": "get_crypto_price", "input": {"symbol": "BTC"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 20, "output_tokens": 9}
}`

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolUseMessage))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	req := model.Request{
		Instructions: "Be brief.",
		Contents: testutil.NewTranscriptBuilder().
			User("BTC price?").
			Call("toolu_0", "get_crypto_price", `{"symbol":"BTC"}`).
			ToolResponse("toolu_0", "", `{"succeeded":false}`, "timeout").
			Build(),
		Tools: []model.ToolDefinition{model.NewToolDefinition("get_crypto_price", "quotes", map[string]any{
			"type":       "object",
			"properties": map[string]any{"symbol": map[string]any{"type": "string"}},
			"required":   []string{"symbol"},
		})},
	}

	resp, err := model.Complete(context.Background(), m, req)
	require.NoError(t, err)

	assert.Equal(t, "Checking.", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_crypto_price", calls[0].Name)
	assert.JSONEq(t, `{"symbol":"BTC"}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 29, resp.Usage.TotalTokens)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	block := last["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, true, block["is_error"])

	tools := body["tools"].([]any)
	assert.Equal(t, "quotes", tools[0].(map[string]any)["description"])
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "claude-x" })
	assert.Equal(t, model.Info{Name: "claude-x", Provider: "anthropic", SupportsTools: true}, m.Info())
}
