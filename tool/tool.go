// Package tool implements the tool-calling subsystem: the Tool contract, a
// FunctionTool adapter for plain Go functions, and the Registry that validates
// and dispatches oracle tool calls. Dispatch never fails: every outcome,
// including unknown tools, schema violations, timeouts and panics, is reported
// as a core.ToolResult.
package tool

import "context"

// Tool is a named external capability invokable by the oracle.
//
// Implementations should:
//   - Provide a snake_case name and an imperative description
//   - Declare a JSON schema for their arguments
//   - Honour ctx cancellation on blocking I/O
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is shown to the oracle to help it decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema object describing the arguments.
	Parameters() map[string]any

	// Call executes the tool with arguments that already satisfy Parameters.
	// The returned payload must be JSON-serialisable.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Summarizer is implemented by tools that can render their payload as a short
// human-readable report.
type Summarizer interface {
	Summarize(payload any) string
}

// ArgumentNormalizer is implemented by tools that accept aliased argument
// names. It runs before schema validation.
type ArgumentNormalizer interface {
	NormalizeArguments(args map[string]any) map[string]any
}
