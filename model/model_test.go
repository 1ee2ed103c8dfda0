package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishra/smartinfo/core"
)

func TestScriptedModel_ReplaysSteps(t *testing.T) {
	m := NewScriptedModel(
		CallStep("get_weather_info", `{"city":"Delhi"}`),
		TextStep("It is hazy in Delhi."),
	)
	ctx := context.Background()

	first, err := Complete(ctx, m, Request{})
	require.NoError(t, err)
	calls := first.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather_info", calls[0].Name)
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, "tool_calls", first.FinishReason)

	second, err := Complete(ctx, m, Request{Instructions: "x"})
	require.NoError(t, err)
	assert.Equal(t, "It is hazy in Delhi.", second.Content.Text())
	assert.Equal(t, core.RoleAssistant, second.Content.Role)

	// Exhausted scripts repeat the last step.
	third, err := Complete(ctx, m, Request{})
	require.NoError(t, err)
	assert.Equal(t, "It is hazy in Delhi.", third.Content.Text())

	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, "x", m.Requests()[1].Instructions)
}

func TestScriptedModel_Error(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewScriptedModel(ErrorStep(boom))

	_, err := Complete(context.Background(), m, Request{})
	assert.ErrorIs(t, err, boom)
}

func TestComplete_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Complete(ctx, NewScriptedModel(TextStep("hi")), Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

type silentModel struct{}

func (silentModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	r := make(chan Response)
	e := make(chan error)
	close(r)
	close(e)
	return r, e
}

func (silentModel) Info() Info { return Info{Name: "silent"} }

func TestComplete_NoResponse(t *testing.T) {
	_, err := Complete(context.Background(), silentModel{}, Request{})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestNewToolDefinition(t *testing.T) {
	td := NewToolDefinition("t", "desc", map[string]any{"type": "object"})
	assert.Equal(t, "function", td.Type)
	assert.Equal(t, "t", td.Function.Name)
}
