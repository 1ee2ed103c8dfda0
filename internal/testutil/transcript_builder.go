package testutil

import (
	"github.com/tanishra/smartinfo/core"
)

// TranscriptBuilder constructs oracle transcripts in tests.
// Example:
//
//	contents := NewTranscriptBuilder().
//		User("Weather in Delhi").
//		Call("call_0", "get_weather_info", `{"city":"Delhi"}`).
//		ToolResponse("call_0", "get_weather_info", `{"succeeded":true}`, "").
//		Build()
//
// Consecutive Call invocations are merged into one assistant message, the
// way an oracle requests a batch of tools.
type TranscriptBuilder struct {
	contents []core.Content
}

// NewTranscriptBuilder creates an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder { return &TranscriptBuilder{} }

// User appends a user text message (chainable).
func (b *TranscriptBuilder) User(text string) *TranscriptBuilder {
	b.contents = append(b.contents, core.NewTextContent(core.RoleUser, text))
	return b
}

// Assistant appends an assistant text message (chainable).
func (b *TranscriptBuilder) Assistant(text string) *TranscriptBuilder {
	b.contents = append(b.contents, core.NewTextContent(core.RoleAssistant, text))
	return b
}

// Call appends a function call to the trailing assistant message, starting a
// new one when the last message is not an assistant call batch (chainable).
func (b *TranscriptBuilder) Call(id, name, args string) *TranscriptBuilder {
	part := core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}}

	if n := len(b.contents); n > 0 && b.contents[n-1].Role == core.RoleAssistant && len(b.contents[n-1].FunctionCalls()) > 0 {
		b.contents[n-1].Parts = append(b.contents[n-1].Parts, part)
		return b
	}

	b.contents = append(b.contents, core.Content{Role: core.RoleAssistant, Parts: []core.Part{part}})
	return b
}

// ToolResponse appends a tool message answering call id. A non-empty errMsg
// marks the invocation as failed (chainable).
func (b *TranscriptBuilder) ToolResponse(id, name, response, errMsg string) *TranscriptBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: response, Error: errMsg}
	b.contents = append(b.contents, core.Content{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: fr}}})
	return b
}

// Build returns the transcript.
func (b *TranscriptBuilder) Build() []core.Content {
	return append([]core.Content(nil), b.contents...)
}
