package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCall is a validated-on-dispatch request to invoke a registered tool.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ParseToolCall decodes the raw arguments of an oracle function call. An empty
// argument string is treated as an empty object.
func ParseToolCall(fc FunctionCall) (ToolCall, error) {
	call := ToolCall{ID: fc.ID, Name: fc.Name, Arguments: map[string]any{}}
	if strings.TrimSpace(fc.Name) == "" {
		return call, NewToolError(fc.Name, CodeInvalidToolCall, "missing tool name", nil)
	}
	if strings.TrimSpace(fc.Arguments) == "" {
		return call, nil
	}
	if err := json.Unmarshal([]byte(fc.Arguments), &call.Arguments); err != nil {
		return call, NewToolError(fc.Name, CodeInvalidToolCall, fmt.Sprintf("arguments are not a JSON object: %v", err), err)
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return call, nil
}

// ToolResult is the immutable outcome of exactly one ToolCall. Err is non-nil
// iff Succeeded is false.
type ToolResult struct {
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name"`
	Payload   any    `json:"payload,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Succeeded bool   `json:"succeeded"`
	Err       error  `json:"-"`
}

// NewToolSuccess builds a successful result for call.
func NewToolSuccess(call ToolCall, payload any, summary string) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Payload: payload, Summary: summary, Succeeded: true}
}

// NewToolFailure builds a failed result for call. A nil err is replaced with a
// generic invocation failure to keep the invariant.
func NewToolFailure(call ToolCall, err error) ToolResult {
	if err == nil {
		err = ErrToolInvocation
	}
	return ToolResult{CallID: call.ID, Name: call.Name, Err: err}
}

// Response renders the result as the JSON string handed back to the oracle.
func (r ToolResult) Response() string {
	body := map[string]any{"succeeded": r.Succeeded}
	if r.Succeeded {
		body["result"] = r.Payload
		if r.Summary != "" {
			body["summary"] = r.Summary
		}
	} else {
		body["error"] = r.Err.Error()
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf(`{"succeeded":false,"error":%q}`, err.Error())
	}
	return string(b)
}

// FunctionResponse converts the result into its transcript form.
func (r ToolResult) FunctionResponse() FunctionResponse {
	fr := FunctionResponse{ID: r.CallID, Name: r.Name, Response: r.Response()}
	if r.Err != nil {
		fr.Error = r.Err.Error()
	}
	return fr
}
