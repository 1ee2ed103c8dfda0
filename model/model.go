package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanishra/smartinfo/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual tool exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function ToolDefinition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request captures the normalized oracle input.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final answer of one oracle step.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "azure", "anthropic", "scripted"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the reasoning oracle.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by Complete when the model closes without a
// final response.
var ErrNoResponse = errors.New("model returned no response")

// Complete drains a Generate call and returns the last non-partial response.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final Response
		got   bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final, got = resp, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if !got {
		return Response{}, ErrNoResponse
	}

	return final, nil
}

// Step is one scripted oracle reply: a final text, tool calls, or an error.
type Step struct {
	Text  string
	Calls []core.FunctionCall
	Err   error
}

// TextStep scripts a final answer.
func TextStep(text string) Step { return Step{Text: text} }

// CallStep scripts a single tool call with raw JSON arguments.
func CallStep(name, arguments string) Step {
	return Step{Calls: []core.FunctionCall{{Name: name, Arguments: arguments}}}
}

// ErrorStep scripts an oracle failure.
func ErrorStep(err error) Step { return Step{Err: err} }

// ScriptedModel replays a fixed sequence of steps and records every request.
// When the script is exhausted the last step repeats, which models an
// oracle that never converges.
type ScriptedModel struct {
	steps    []Step
	next     int
	requests []Request
	calls    int
}

var _ Model = (*ScriptedModel)(nil)

// NewScriptedModel constructs a ScriptedModel.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.requests = append(m.requests, req)
	m.calls++

	defer close(respCh)
	defer close(errCh)

	if err := ctx.Err(); err != nil {
		errCh <- err
		return respCh, errCh
	}
	if len(m.steps) == 0 {
		errCh <- fmt.Errorf("scripted model has no steps")
		return respCh, errCh
	}

	step := m.steps[m.next]
	if m.next < len(m.steps)-1 {
		m.next++
	}

	if step.Err != nil {
		errCh <- step.Err
		return respCh, errCh
	}

	content := core.Content{Role: core.RoleAssistant}
	if step.Text != "" {
		content.Parts = append(content.Parts, core.TextPart{Text: step.Text})
	}
	for i, fc := range step.Calls {
		if fc.ID == "" {
			fc.ID = fmt.Sprintf("call_%d_%d", m.calls, i)
		}
		content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: fc})
	}

	finish := "stop"
	if len(step.Calls) > 0 {
		finish = "tool_calls"
	}

	respCh <- Response{ID: fmt.Sprintf("scripted-%d", m.calls), Content: content, FinishReason: finish}

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "scripted", SupportsTools: true}
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request { return m.requests }

// Calls returns how many times Generate was invoked.
func (m *ScriptedModel) Calls() int { return m.calls }
