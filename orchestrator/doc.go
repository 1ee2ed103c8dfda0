// Package orchestrator runs the bounded tool-calling loop that turns a user
// query into an answer.
//
// Each query starts in PhaseAwaitDecision. The oracle either answers, which
// moves the loop to PhaseFinalize, or requests tool calls, which moves it to
// PhaseDispatchTool and back. The number of dispatched calls is capped by
// MaxIterations; a query that hits the cap is finalized with a fallback
// answer built from the tool results gathered so far. Memory is appended
// exactly once, when the loop finalizes.
package orchestrator
