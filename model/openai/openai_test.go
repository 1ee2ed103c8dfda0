package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/internal/testutil"
	"github.com/tanishra/smartinfo/model"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "get_weather_info", "arguments": "{\"city\":\"Delhi\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
}`

func TestModel_GenerateToolCall(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallCompletion))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	req := model.Request{
		Instructions: "You are helpful.",
		Contents: testutil.NewTranscriptBuilder().
			User("Weather in Delhi").
			Call("call_0", "get_weather_info", `{"city":"Delhi"}`).
			ToolResponse("call_0", "get_weather_info", `{"succeeded":true}`, "").
			Build(),
		Tools: []model.ToolDefinition{model.NewToolDefinition("get_weather_info", "weather", map[string]any{"type": "object"})},
	}

	resp, err := model.Complete(context.Background(), m, req)
	require.NoError(t, err)

	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, `{"city":"Delhi"}`, calls[0].Arguments)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 19, resp.Usage.TotalTokens)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "tool", msgs[3].(map[string]any)["role"])
	assert.Equal(t, "call_0", msgs[3].(map[string]any)["tool_call_id"])
	assert.Len(t, body["tools"], 1)
}

func TestModel_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
	})

	_, err := model.Complete(context.Background(), m, model.Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func TestInfo_Azure(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt4o-deployment"
		o.APIKey = "k"
		o.AzureEndpoint = "https://example.openai.azure.com"
	})
	assert.Equal(t, "azure", m.Info().Provider)
	assert.Equal(t, "gpt4o-deployment", m.Info().Name)
}
