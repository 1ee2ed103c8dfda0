package orchestrator

import (
	"github.com/tanishra/smartinfo/core"
)

// Phase is a state of the decision loop.
type Phase int

// Loop phases.
const (
	PhaseAwaitDecision Phase = iota
	PhaseDispatchTool
	PhaseFinalize
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitDecision:
		return "await_decision"
	case PhaseDispatchTool:
		return "dispatch_tool"
	case PhaseFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// ConversationState is the per-query loop state. It is created for each
// query, threaded through every Step and discarded once the query is
// finalized.
type ConversationState struct {
	Query string
	Phase Phase

	// Recent holds the memory turns the query was seeded with.
	Recent []core.Turn
	// Context holds the retrieved document chunks, if any.
	Context []core.ScoredChunk

	// Transcript is the oracle-facing exchange of this query: assistant
	// tool requests and the matching tool responses.
	Transcript []core.Content
	// Pending are the calls requested by the last decision, not yet
	// dispatched.
	Pending []core.FunctionCall
	// Results holds one entry per dispatched call, in dispatch order.
	Results []core.ToolResult

	Iterations   int
	LimitReached bool

	Answer string
	// Err records why the loop finalized without an oracle answer.
	Err error
}

// NewConversationState seeds a state for query.
func NewConversationState(query string, recent []core.Turn, context []core.ScoredChunk) ConversationState {
	return ConversationState{
		Query:   query,
		Phase:   PhaseAwaitDecision,
		Recent:  recent,
		Context: context,
	}
}

// Done reports whether the loop has reached its terminal phase.
func (s ConversationState) Done() bool { return s.Phase == PhaseFinalize }

// Succeeded returns the successful tool results.
func (s ConversationState) Succeeded() []core.ToolResult {
	var out []core.ToolResult
	for _, r := range s.Results {
		if r.Succeeded {
			out = append(out, r)
		}
	}
	return out
}
